package supervision

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Tier 1: deterministic rules.
//
// Only two outcomes exist here: approve with a reason naming the matched
// category, or fall through to the next tier. Rules never reject.

// readOnlyTools are tools that observe but never mutate.
var readOnlyTools = map[string]bool{
	"read":       true,
	"glob":       true,
	"grep":       true,
	"list_dir":   true,
	"web_search": true,
	"web_fetch":  true,
	"todo_read":  true,
}

// collaborationTools coordinate between agents without touching the
// outside world; gating them would deadlock the orchestration itself.
var collaborationTools = map[string]bool{
	"agents_spawn":  true,
	"agents_send":   true,
	"agents_wait":   true,
	"agents_list":   true,
	"agents_output": true,
}

// shellTools take a free-form command and need content inspection.
var shellTools = map[string]bool{
	"bash":  true,
	"shell": true,
	"exec":  true,
}

// readOnlyCommands is the set of leading binaries considered safe to run
// unreviewed, provided the command carries no shell metacharacters.
var readOnlyCommands = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true,
	"grep": true, "rg": true, "find": true, "pwd": true,
	"wc": true, "stat": true, "file": true, "du": true, "df": true,
	"which": true, "whoami": true, "date": true, "env": true,
}

// gitReadSubcommands are git subcommands that never write.
var gitReadSubcommands = map[string]bool{
	"status": true, "log": true, "diff": true, "show": true, "branch": true,
}

var shellMetaPattern = regexp.MustCompile("[;&|><`$]")

// RuleSet is the tier-1 configuration. Extra patterns extend the built-in
// allowlists with glob matching (e.g. "mcp__docs__*").
type RuleSet struct {
	ExtraReadOnlyPatterns []string
}

// Match evaluates the deterministic rules against a tool call.
// Returns (decision, true) on an auto-approval, (zero, false) to fall
// through to the next tier.
func (r *RuleSet) Match(toolName string, args map[string]interface{}) (Decision, bool) {
	name := strings.ToLower(toolName)

	if readOnlyTools[name] {
		return Decision{
			Verdict: VerdictApprove,
			Reason:  fmt.Sprintf("auto-approved: %q is a read-only tool", toolName),
		}, true
	}

	if collaborationTools[name] {
		return Decision{
			Verdict: VerdictApprove,
			Reason:  fmt.Sprintf("auto-approved: %q is an agent collaboration tool", toolName),
		}, true
	}

	for _, pattern := range r.ExtraReadOnlyPatterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return Decision{
				Verdict: VerdictApprove,
				Reason:  fmt.Sprintf("auto-approved: %q matches read-only pattern %q", toolName, pattern),
			}, true
		}
	}

	if shellTools[name] {
		if cmd, ok := args["command"].(string); ok && isReadOnlyCommand(cmd) {
			return Decision{
				Verdict: VerdictApprove,
				Reason:  fmt.Sprintf("auto-approved: read-only shell command %q", firstToken(cmd)),
			}, true
		}
	}

	return Decision{}, false
}

// isReadOnlyCommand accepts only a single plain command whose binary is in
// the read-only set. Any shell metacharacter fails the check: a pipe or
// substitution can turn a harmless reader into anything.
func isReadOnlyCommand(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || shellMetaPattern.MatchString(cmd) {
		return false
	}
	fields := strings.Fields(cmd)
	if readOnlyCommands[fields[0]] {
		return true
	}
	if fields[0] == "git" && len(fields) >= 2 && gitReadSubcommands[fields[1]] {
		return true
	}
	return false
}

func firstToken(cmd string) string {
	fields := strings.Fields(strings.TrimSpace(cmd))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

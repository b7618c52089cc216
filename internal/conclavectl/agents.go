package conclavectl

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/mellis-dev/conclave/internal/conclavectl/client"
)

func newSpawnCommand(opts *globalOptions) *cobra.Command {
	var name, modelRef string
	var items []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "spawn TASK",
		Short: "Spawn a new sub-agent for a delegated task",
		Example: heredoc.Doc(`
			# Fire and forget
			conclavectl spawn "Summarize the open issues"

			# Enumerated sub-points, block until done
			conclavectl spawn "Collect test fixtures" --item "unit tests" --item "golden files" --wait`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			id, err := c.Spawn(cmd.Context(), &client.SpawnRequest{
				Task:     args[0],
				Items:    items,
				Name:     name,
				ModelRef: modelRef,
			})
			if err != nil {
				return err
			}
			fmt.Println(id)

			if !wait {
				return nil
			}
			result, err := c.Wait(cmd.Context(), []string{id}, 600)
			if err != nil {
				return err
			}
			if result.TimedOut {
				return fmt.Errorf("agent %s did not finish in time", id)
			}
			agent, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printAgentDetail(agent)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the agent.")
	cmd.Flags().StringVar(&modelRef, "model", "", "Model the agent should run against.")
	cmd.Flags().StringArrayVar(&items, "item", nil, "Enumerated sub-point of the task; repeatable.")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the agent reaches a terminal state.")
	return cmd
}

func newListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the session's resident agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := opts.client().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				fmt.Printf("%sNo agents in session %s.%s\n", colorDim, opts.Session, colorReset)
				return nil
			}
			for _, a := range agents {
				fmt.Printf("%s  %s%-10s%s  %s\n", a.ID, statusColor(a.Status), a.Status, colorReset, a.Name)
			}
			return nil
		},
	}
}

func newGetCommand(opts *globalOptions) *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "get AGENT_ID",
		Short: "Show one agent, including its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := opts.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if render && agent.Result != "" {
				agent.Result = renderMarkdownToTerminal(agent.Result, getTermWidth()-4)
			}
			printAgentDetail(agent)
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Render the result as markdown.")
	return cmd
}

func newInputCommand(opts *globalOptions) *cobra.Command {
	var interrupt bool
	cmd := &cobra.Command{
		Use:   "input AGENT_ID MESSAGE",
		Short: "Send a follow-up message to an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().Input(cmd.Context(), args[0], args[1], interrupt)
		},
	}
	cmd.Flags().BoolVar(&interrupt, "interrupt", false, "Cancel the in-flight cycle before delivering the message.")
	return cmd
}

func newWaitCommand(opts *globalOptions) *cobra.Command {
	var timeoutSec int
	cmd := &cobra.Command{
		Use:   "wait AGENT_ID...",
		Short: "Block until any of the agents reaches a terminal state",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.client().Wait(cmd.Context(), args, timeoutSec)
			if err != nil {
				return err
			}
			for id, status := range result.Statuses {
				fmt.Printf("%s  %s%s%s\n", id, statusColor(status), status, colorReset)
			}
			if result.TimedOut {
				return fmt.Errorf("no agent reached a terminal state within %ds", timeoutSec)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout", 60, "Seconds to wait before giving up.")
	return cmd
}

func newAbortCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abort AGENT_ID",
		Short: "Abort an agent and print its partial output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.client().Abort(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result.Output != "" {
				fmt.Println(result.Output)
			}
			return nil
		},
	}
}

func newResumeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume AGENT_ID",
		Short: "Resume an agent from its persisted history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().Resume(cmd.Context(), args[0])
		},
	}
}

func newApproveCommand(opts *globalOptions) *cobra.Command {
	var deny bool
	var reason string
	cmd := &cobra.Command{
		Use:   "approve CALL_ID",
		Short: "Resolve a pending tool approval",
		Example: heredoc.Doc(`
			# Approve a gated tool call
			conclavectl approve call-42

			# Deny it with a reason
			conclavectl approve call-42 --deny --reason "not during the release freeze"`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().Approve(cmd.Context(), args[0], !deny, reason)
		},
	}
	cmd.Flags().BoolVar(&deny, "deny", false, "Deny the call instead of approving it.")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the decision.")
	return cmd
}

func printAgentDetail(a *client.Agent) {
	printSeparator()
	fmt.Printf("%s%s%s%s  %s%s%s\n", colorBold, colorPinkANSI, a.Name, colorReset,
		statusColor(a.Status), a.Status, colorReset)
	fmt.Printf("  ID:       %s\n", a.ID)
	fmt.Printf("  Task:     %s\n", a.Task)
	fmt.Printf("  Created:  %s\n", a.CreatedAt)
	if a.Error != "" {
		printError(a.Error)
	}
	if a.Result != "" {
		printSeparator()
		fmt.Println(strings.TrimRight(a.Result, "\n"))
	}
	printSeparator()
}

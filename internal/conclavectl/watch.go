package conclavectl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mellis-dev/conclave/internal/conclavectl/client"
	"github.com/mellis-dev/conclave/pkg/utils/json"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the session's live event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			fmt.Printf("%sWatching session %s on %s (Ctrl+C to stop)%s\n",
				colorDim, opts.Session, opts.ServerAddr, colorReset)

			w := &eventWriter{filter: agentID}
			return opts.streamClient().StreamEvents(ctx, w.handle)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Only show events of this agent.")
	return cmd
}

// eventWriter renders the event stream line by line. Text deltas flow
// raw so output can be selected and copied; lifecycle events get a
// colored prefix.
type eventWriter struct {
	filter    string
	lastAgent string
	inText    bool
}

func (w *eventWriter) handle(ev *client.Event) {
	if w.filter != "" && ev.AgentID != w.filter {
		return
	}

	if ev.AgentID != w.lastAgent {
		w.breakLine()
		printSeparator()
		fmt.Printf("%s%sagent %s%s\n", colorBold, colorPinkANSI, ev.AgentID, colorReset)
		w.lastAgent = ev.AgentID
	}

	switch ev.Type {
	case "text_delta":
		fmt.Print(ev.Delta)
		w.inText = true
	case "tool_call":
		w.breakLine()
		if ev.ToolCall == nil {
			return
		}
		args := ""
		if ev.ToolCall.Args != nil {
			args, _ = json.MarshalString(ev.ToolCall.Args)
		}
		outcome := ""
		if ev.ToolCall.Approval != nil {
			outcome = ev.ToolCall.Approval.Outcome
			if ev.ToolCall.Approval.Reason != "" {
				outcome += ": " + ev.ToolCall.Approval.Reason
			}
		}
		fmt.Printf("%s[tool] %s %s -> %s%s\n", colorOrangeANSI, ev.ToolCall.Name, args, outcome, colorReset)
	case "agent_status":
		w.breakLine()
		fmt.Printf("%s[status] %s%s\n", statusColor(ev.Status), ev.Status, colorReset)
	case "error":
		w.breakLine()
		printError(ev.Error)
	case "done":
		w.breakLine()
		fmt.Printf("%s[done]%s\n", colorGreenANSI, colorReset)
	}
}

func (w *eventWriter) breakLine() {
	if w.inText {
		fmt.Println()
		w.inText = false
	}
}

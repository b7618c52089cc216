// Package conclavectl implements the command line client for conclaved.
package conclavectl

import (
	"net/http"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/mellis-dev/conclave/internal/conclavectl/client"
)

const defaultServerAddr = "http://127.0.0.1:10888"

type globalOptions struct {
	ServerAddr string
	Session    string
}

func (o *globalOptions) client() *client.ConclaveClient {
	return client.New(o.ServerAddr, o.Session, &http.Client{Timeout: 5 * time.Minute})
}

// streamClient returns a client without a request timeout, for the SSE
// event stream which stays open indefinitely.
func (o *globalOptions) streamClient() *client.ConclaveClient {
	return client.New(o.ServerAddr, o.Session, &http.Client{})
}

// NewConclaveCtlCommand creates the `conclavectl` root command.
func NewConclaveCtlCommand() *cobra.Command {
	opts := &globalOptions{}

	cmds := &cobra.Command{
		Use:   "conclavectl",
		Short: "conclavectl drives sub-agents on a conclaved server",
		Long: heredoc.Doc(`
			conclavectl is the command line client for the conclaved
			sub-agent orchestration server.

			It spawns delegated tasks as session-scoped agents, follows
			their live event streams, resolves pending tool approvals,
			and aborts or resumes agents across restarts.`),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmds.PersistentFlags()
	flags.StringVar(&opts.ServerAddr, "server-addr", defaultServerAddr, "Address of the conclaved server.")
	flags.StringVarP(&opts.Session, "session", "s", "default", "Session the agents belong to.")

	cmds.AddCommand(
		newSpawnCommand(opts),
		newListCommand(opts),
		newGetCommand(opts),
		newInputCommand(opts),
		newWaitCommand(opts),
		newAbortCommand(opts),
		newResumeCommand(opts),
		newApproveCommand(opts),
		newWatchCommand(opts),
	)
	return cmds
}

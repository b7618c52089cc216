package conclaved

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mellis-dev/conclave/internal/conclaved/config"
	"github.com/mellis-dev/conclave/internal/conclaved/options"
	genericapiserver "github.com/mellis-dev/conclave/internal/pkg/server"
	"github.com/mellis-dev/conclave/pkg/logger"
)

const appName = "conclaved"

const bannerText = `
   ____ ___  _ __   ___| | __ ___   _____
  / ___/ _ \| '_ \ / __| |/ _` + "`" + ` \ \ / / _ \
 | |__| (_) | | | | (__| | (_| |\ V /  __/
  \____\___/|_| |_|\___|_|\__,_| \_/ \___|
`

// Banner returns the startup banner.
func Banner() string {
	return color.CyanString(bannerText)
}

// NewCommand builds the conclaved root command.
func NewCommand() *cobra.Command {
	opts := options.NewOptions()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "conclaved runs the conclave sub-agent orchestration engine",
		Long: heredoc.Doc(`
			conclaved hosts session-scoped sub-agent managers behind a REST +
			SSE surface: spawn bounded trees of task-focused agents, follow
			their live output, steer them with follow-up input, and resolve
			the tool-call approvals the tiered gate escalates to you.

			Agent histories persist across restarts; a shut-down agent can be
			resumed from its log at any time.`),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(Banner())

			if err := viper.Unmarshal(opts); err != nil {
				return fmt.Errorf("failed to unmarshal configuration: %w", err)
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if errs := opts.Validate(); len(errs) != 0 {
				return fmt.Errorf("invalid options: %v", errs)
			}

			if err := logger.InitLog(opts.Log.Path); err != nil {
				return err
			}
			defer logger.FlushLog()
			if err := logger.SetLevel(opts.Log.Level); err != nil {
				return err
			}

			cfg, err := config.CreateConfigFromOptions(opts)
			if err != nil {
				return err
			}

			return Run(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to the conclaved configuration file.")
	opts.AddFlags(cmd.Flags())

	_ = viper.BindPFlags(cmd.Flags())
	cobra.OnInitialize(func() {
		genericapiserver.LoadConfig(cfgFile, appName)
	})

	return cmd
}

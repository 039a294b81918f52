package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/internal/logging"
)

// NewRootCommand builds the dsops-rotator command tree around cfg.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "dsops-rotator",
		Short: "Four-step secret rotation for managed and local secret stores",
		Long: `dsops-rotator rotates a secret through createSecret, setSecret, testSecret
and finishSecret, moving stage labels so consumers always read a working
CURRENT credential.

It runs as an AWS Secrets Manager rotation Lambda, as an HTTP service, or
from the command line against a local store.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		NewHandleCommand(cfg),
		NewEventCommand(cfg),
		NewLambdaCommand(cfg),
		NewServeCommand(cfg),
		NewRotateCommand(cfg),
		NewStartCommand(cfg),
		NewStatusCommand(cfg),
		NewSeedCommand(cfg),
		NewDoctorCommand(cfg),
		NewCompletionCommand(),
	)

	return rootCmd
}

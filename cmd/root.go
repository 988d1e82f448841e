package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mithai/internal/config"
	"mithai/pkg/logger"
)

// rootCmd runs the API server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "mithai",
	Short: "Sweet shop inventory API",
	Long: `Sweet shop inventory API. Usage:

	mithai            # same as "mithai serve"
	mithai serve
	mithai seed
	mithai events
`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and initialises the process logger.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	return cfg, log, nil
}

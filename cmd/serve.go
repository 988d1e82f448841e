package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mithai/internal/app"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		rt, err := app.Build(ctx, cfg, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to build application")
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				log.Error().Err(err).Msg("error while closing dependencies")
			}
		}()

		if cfg.SeedOnStart {
			if err := rt.Seeder.Seed(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
				log.Error().Err(err).Msg("seeding failed")
				return err
			}
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.AppPort).Str("prefix", cfg.APIPrefix).Str("driver", cfg.DBDriver).Msg("starting server")
			errCh <- rt.App.Listen(cfg.AppPort)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("server failed")
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down server")
		if err := rt.App.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.Error().Err(err).Msg("error during shutdown")
		}
		log.Info().Msg("server gracefully stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

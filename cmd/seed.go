package cmd

import (
	"github.com/spf13/cobra"

	"mithai/internal/app"
	"mithai/internal/services"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Creates the admin account and default catalog if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		store, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		auth := app.NewAuthService(cfg, store.Users, log)
		seeder := services.NewSeeder(auth, store.Sweets, log)
		if err := seeder.Seed(cmd.Context(), cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			log.Error().Err(err).Msg("seeding failed")
			return err
		}
		log.Info().Msg("seed complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

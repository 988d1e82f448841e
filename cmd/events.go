package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"mithai/internal/services"
	"mithai/pkg/rabbitmq"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tails inventory events and warns on low stock",
	Long: `Consumes inventory events from RABBITMQ_QUEUE and logs a warning
whenever a sweet's remaining stock is at or below LOW_STOCK_THRESHOLD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cfg.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is required")
		}

		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue})
		if err != nil {
			return err
		}
		defer mq.Close()

		alerter := services.NewStockAlerter(cfg.LowStockThreshold, log.With().Str("component", "events").Logger())
		log.Info().Str("queue", cfg.RabbitMQQueue).Int("threshold", cfg.LowStockThreshold).Msg("consuming inventory events")

		return mq.ConsumeInventoryEvents(cmd.Context(), alerter.HandleInventoryEvent)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

package services

import (
	"context"

	"github.com/rs/zerolog"

	"mithai/internal/models"
)

// StockAlerter inspects inventory events and warns when a sweet runs low.
type StockAlerter struct {
	threshold int
	log       zerolog.Logger
}

// NewStockAlerter creates a StockAlerter that fires at or below threshold.
func NewStockAlerter(threshold int, log zerolog.Logger) *StockAlerter {
	return &StockAlerter{threshold: threshold, log: log}
}

// Low reports whether ev leaves its sweet at or below the threshold.
// Events without a remaining count never are.
func (a *StockAlerter) Low(ev models.InventoryEvent) bool {
	return ev.Remaining != nil && *ev.Remaining <= a.threshold
}

// HandleInventoryEvent logs every event and warns on low stock.
func (a *StockAlerter) HandleInventoryEvent(_ context.Context, ev models.InventoryEvent) error {
	a.log.Info().
		Str("event_id", ev.ID).
		Str("type", string(ev.Type)).
		Uint("sweet_id", ev.SweetID).
		Int("quantity", ev.Quantity).
		Str("actor", ev.Actor).
		Msg("inventory event")

	if a.Low(ev) {
		a.log.Warn().
			Uint("sweet_id", ev.SweetID).
			Int("remaining", *ev.Remaining).
			Int("threshold", a.threshold).
			Msg("low stock")
	}
	return nil
}

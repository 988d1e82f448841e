package repositories

import (
	"fmt"
	"sort"

	"mithai/internal/models"
)

// storeErr tags a database failure with models.ErrStore while keeping the cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStore, err)
}

func insufficient(available int) error {
	return fmt.Errorf("%w: only %d left", models.ErrInsufficientStock, available)
}

// mergeLines sums quantities of repeated sweets and orders lines by id, so
// every checkout locks rows in the same order.
func mergeLines(lines []models.StockLine) []models.StockLine {
	totals := make(map[uint]int, len(lines))
	for _, l := range lines {
		totals[l.SweetID] += l.Quantity
	}
	merged := make([]models.StockLine, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, models.StockLine{SweetID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].SweetID < merged[j].SweetID })
	return merged
}

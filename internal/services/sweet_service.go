package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mithai/internal/metrics"
	"mithai/internal/models"
	"mithai/internal/repositories"
)

// SweetService handles catalog and stock operations.
type SweetService struct {
	repo   repositories.SweetRepository
	events EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewSweetService creates a new SweetService. A nil publisher disables events.
func NewSweetService(repo repositories.SweetRepository, events EventPublisher, log zerolog.Logger) *SweetService {
	if events == nil {
		events = NopPublisher{}
	}
	return &SweetService{
		repo:   repo,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// List returns every sweet ordered by name.
func (s *SweetService) List(ctx context.Context) ([]models.Sweet, error) {
	return s.repo.List(ctx)
}

// Search returns the sweets matching the filter ordered by name.
func (s *SweetService) Search(ctx context.Context, filter models.SearchFilter) ([]models.Sweet, error) {
	return s.repo.Search(ctx, filter)
}

// Categories returns the distinct catalog categories.
func (s *SweetService) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Get returns a single sweet.
func (s *SweetService) Get(ctx context.Context, id uint) (*models.Sweet, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds a sweet to the catalog and assigns its ID.
func (s *SweetService) Create(ctx context.Context, actor models.Identity, sweet *models.Sweet) error {
	sweet.ID = 0
	if err := s.repo.Create(ctx, sweet); err != nil {
		return err
	}

	ev := newEvent(models.EventSweetCreated, actor, s.now())
	ev.SweetID = sweet.ID
	ev.Quantity = sweet.Quantity
	s.publish(ctx, ev)
	return nil
}

// Update applies a partial update. Omitted fields keep their stored value.
func (s *SweetService) Update(ctx context.Context, actor models.Identity, id uint, patch models.SweetPatch) error {
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return err
	}
	if !patch.Empty() {
		ev := newEvent(models.EventSweetUpdated, actor, s.now())
		ev.SweetID = id
		s.publish(ctx, ev)
	}
	return nil
}

// Delete removes a sweet. Deleting a missing sweet succeeds.
func (s *SweetService) Delete(ctx context.Context, actor models.Identity, id uint) error {
	existed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !existed {
		s.log.Debug().Uint("sweet_id", id).Msg("delete of missing sweet")
		return nil
	}
	ev := newEvent(models.EventSweetDeleted, actor, s.now())
	ev.SweetID = id
	s.publish(ctx, ev)
	return nil
}

// Purchase removes quantity units from stock, or fails without changing it.
func (s *SweetService) Purchase(ctx context.Context, actor models.Identity, id uint, quantity int) (models.StockResult, error) {
	if quantity < 1 {
		metrics.PurchasesTotal.WithLabelValues("invalid_amount").Inc()
		return models.StockResult{}, fmt.Errorf("%w: quantity must be at least 1", models.ErrInvalidAmount)
	}

	result, err := s.repo.Purchase(ctx, id, quantity)
	metrics.PurchasesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return models.StockResult{}, err
	}
	metrics.UnitsSoldTotal.Add(float64(quantity))

	ev := newEvent(models.EventPurchased, actor, s.now())
	ev.SweetID = id
	ev.Quantity = quantity
	ev.Remaining = intPtr(result.Remaining)
	s.publish(ctx, ev)
	return result, nil
}

// MaxRestockAmount caps a single restock so stock never overflows the
// integer column.
const MaxRestockAmount = 1_000_000

// Restock adds amount units to stock and returns the new quantity.
func (s *SweetService) Restock(ctx context.Context, actor models.Identity, id uint, amount int) (int, error) {
	if amount <= 0 || amount > MaxRestockAmount {
		metrics.RestocksTotal.WithLabelValues("invalid_amount").Inc()
		return 0, fmt.Errorf("%w: amount must be between 1 and %d", models.ErrInvalidAmount, MaxRestockAmount)
	}

	remaining, err := s.repo.Restock(ctx, id, amount)
	metrics.RestocksTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return 0, err
	}

	ev := newEvent(models.EventRestocked, actor, s.now())
	ev.SweetID = id
	ev.Quantity = amount
	ev.Remaining = intPtr(remaining)
	s.publish(ctx, ev)
	return remaining, nil
}

// Checkout purchases every line of a cart in one step. Either all lines are
// applied or none is.
func (s *SweetService) Checkout(ctx context.Context, actor models.Identity, lines []models.StockLine) (*models.Receipt, error) {
	if len(lines) == 0 {
		metrics.CheckoutsTotal.WithLabelValues("invalid_amount").Inc()
		return nil, fmt.Errorf("%w: cart is empty", models.ErrValidation)
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			metrics.CheckoutsTotal.WithLabelValues("invalid_amount").Inc()
			return nil, fmt.Errorf("%w: quantity for sweet %d must be at least 1", models.ErrInvalidAmount, l.SweetID)
		}
	}

	results, err := s.repo.Checkout(ctx, lines)
	metrics.CheckoutsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	receipt := &models.Receipt{OrderRef: uuid.NewString(), Lines: results}
	units := 0
	for _, r := range results {
		receipt.Total += r.Price * float64(r.Quantity)
		units += r.Quantity
	}
	receipt.Total = math.Round(receipt.Total*100) / 100
	metrics.UnitsSoldTotal.Add(float64(units))

	for _, r := range results {
		ev := newEvent(models.EventCheckedOut, actor, s.now())
		ev.OrderRef = receipt.OrderRef
		ev.SweetID = r.SweetID
		ev.Quantity = r.Quantity
		ev.Remaining = intPtr(r.Remaining)
		s.publish(ctx, ev)
	}
	s.log.Info().Str("order_ref", receipt.OrderRef).Int("units", units).Float64("total", receipt.Total).Msg("checkout completed")
	return receipt, nil
}

// publish never fails the caller; the mutation has already committed.
func (s *SweetService) publish(ctx context.Context, ev models.InventoryEvent) {
	if err := s.events.PublishInventoryEvent(ctx, ev); err != nil {
		metrics.EventPublishFailures.Inc()
		s.log.Warn().Err(err).Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("failed to publish inventory event")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrSweetNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func intPtr(v int) *int { return &v }

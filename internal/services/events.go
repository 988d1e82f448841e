package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mithai/internal/models"
)

// EventPublisher delivers inventory events to interested consumers.
type EventPublisher interface {
	PublishInventoryEvent(ctx context.Context, event models.InventoryEvent) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

// PublishInventoryEvent implements EventPublisher.
func (NopPublisher) PublishInventoryEvent(context.Context, models.InventoryEvent) error { return nil }

func newEvent(kind models.EventType, actor models.Identity, now time.Time) models.InventoryEvent {
	return models.InventoryEvent{
		ID:         uuid.NewString(),
		Type:       kind,
		Actor:      actor.Email,
		OccurredAt: now.UTC(),
	}
}

package models

import "time"

// EventType names an inventory mutation.
type EventType string

const (
	EventSweetCreated EventType = "sweet.created"
	EventSweetUpdated EventType = "sweet.updated"
	EventSweetDeleted EventType = "sweet.deleted"
	EventPurchased    EventType = "stock.purchased"
	EventRestocked    EventType = "stock.restocked"
	EventCheckedOut   EventType = "order.checked_out"
)

// InventoryEvent is published to the broker after a mutation commits.
type InventoryEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	SweetID    uint      `json:"sweetId,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	Remaining  *int      `json:"remaining,omitempty"`
	OrderRef   string    `json:"orderRef,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

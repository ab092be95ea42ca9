package models

import "time"

// Event types
const (
	EventTypeCartItemAdded   = "CART_ITEM_ADDED"
	EventTypeCartItemUpdated = "CART_ITEM_UPDATED"
	EventTypeCartItemRemoved = "CART_ITEM_REMOVED"
	EventTypeCartCleared     = "CART_CLEARED"
	EventTypeCartAbandoned   = "CART_ABANDONED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartItemAddedEvent published when a line is added or its quantity merged
type CartItemAddedEvent struct {
	BaseEvent
	CartID    int64  `json:"cart_id"`
	UserID    int64  `json:"user_id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// CartItemUpdatedEvent published when a line quantity changes
type CartItemUpdatedEvent struct {
	BaseEvent
	CartID   int64 `json:"cart_id"`
	UserID   int64 `json:"user_id"`
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// CartItemRemovedEvent published when a line is removed
type CartItemRemovedEvent struct {
	BaseEvent
	CartID int64 `json:"cart_id"`
	UserID int64 `json:"user_id"`
	ItemID int64 `json:"item_id"`
}

// CartClearedEvent published when a cart is emptied
type CartClearedEvent struct {
	BaseEvent
	CartID int64 `json:"cart_id"`
	UserID int64 `json:"user_id"`
}

// CartAbandonedEvent published when an idle cart is flagged for follow-up
type CartAbandonedEvent struct {
	BaseEvent
	CartID      int64 `json:"cart_id"`
	UserID      int64 `json:"user_id"`
	TotalAmount int64 `json:"total_amount"`
	ItemCount   int   `json:"item_count"`
}

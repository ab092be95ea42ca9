package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing cart domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCartItemAdded publishes CartItemAdded event
func (ep *EventPublisher) PublishCartItemAdded(ctx context.Context, event *models.CartItemAddedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartItemUpdated publishes CartItemUpdated event
func (ep *EventPublisher) PublishCartItemUpdated(ctx context.Context, event *models.CartItemUpdatedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartItemRemoved publishes CartItemRemoved event
func (ep *EventPublisher) PublishCartItemRemoved(ctx context.Context, event *models.CartItemRemovedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartCleared publishes CartCleared event
func (ep *EventPublisher) PublishCartCleared(ctx context.Context, event *models.CartClearedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartAbandoned publishes CartAbandoned event
func (ep *EventPublisher) PublishCartAbandoned(ctx context.Context, event *models.CartAbandonedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming cart events
type EventHandler struct {
	onCartAbandoned func(context.Context, *models.CartAbandonedEvent) error
	onCartCleared   func(context.Context, *models.CartClearedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCartAbandoned registers a handler for CartAbandoned events
func (eh *EventHandler) OnCartAbandoned(handler func(context.Context, *models.CartAbandonedEvent) error) {
	eh.onCartAbandoned = handler
}

// OnCartCleared registers a handler for CartCleared events
func (eh *EventHandler) OnCartCleared(handler func(context.Context, *models.CartClearedEvent) error) {
	eh.onCartCleared = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCartAbandoned:
		if eh.onCartAbandoned != nil {
			var event models.CartAbandonedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartAbandoned event: %w", err)
			}
			return eh.onCartAbandoned(ctx, &event)
		}

	case models.EventTypeCartCleared:
		if eh.onCartCleared != nil {
			var event models.CartClearedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartCleared event: %w", err)
			}
			return eh.onCartCleared(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

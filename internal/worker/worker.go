package worker

import (
	"context"
	"log"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AbandonedCartWorker periodically flags carts that went idle with items in
// them, so the bot layer can follow up with the customer.
type AbandonedCartWorker struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	threshold      time.Duration
	interval       time.Duration
	logger         *zap.Logger
}

// NewAbandonedCartWorker creates a new abandoned cart worker
func NewAbandonedCartWorker(
	store *store.Store,
	eventPublisher *broker.EventPublisher,
	threshold, interval time.Duration,
) *AbandonedCartWorker {
	return &AbandonedCartWorker{
		store:          store,
		eventPublisher: eventPublisher,
		threshold:      threshold,
		interval:       interval,
		logger:         util.GetLogger(),
	}
}

// Start runs the scan loop until ctx is cancelled
func (w *AbandonedCartWorker) Start(ctx context.Context) error {
	log.Println("Starting abandoned cart worker...")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.scan(ctx); err != nil {
				w.logger.Error("Abandoned cart scan failed", zap.Error(err))
			}
		}
	}
}

func (w *AbandonedCartWorker) scan(ctx context.Context) error {
	candidates, err := w.store.FindAbandonedCandidates(ctx, time.Now().Add(-w.threshold))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	w.logger.Info("Found abandoned carts", zap.Int("count", len(candidates)))

	for _, cand := range candidates {
		if err := w.store.CreateAbandonedCart(ctx, cand); err != nil {
			w.logger.Error("Failed to record abandoned cart",
				zap.Int64("cart_id", cand.CartID),
				zap.Error(err))
			continue
		}
		util.CartsAbandonedTotal.Inc()

		event := &models.CartAbandonedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCartAbandoned,
				Timestamp: time.Now(),
			},
			CartID:      cand.CartID,
			UserID:      cand.UserID,
			TotalAmount: cand.TotalAmount,
			ItemCount:   cand.ItemCount,
		}
		if err := w.eventPublisher.PublishCartAbandoned(ctx, event); err != nil {
			w.logger.Error("Failed to publish CartAbandoned event",
				zap.Int64("cart_id", cand.CartID),
				zap.Error(err))
		}
	}
	return nil
}

// NotificationWorker consumes cart events and records the follow-ups the
// Telegram bot should send. The actual bot delivery lives outside this
// service; here the events are logged and counted.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	logger := util.GetLogger()

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCartAbandoned(func(ctx context.Context, event *models.CartAbandonedEvent) error {
		logger.Info("Abandoned cart follow-up queued",
			zap.Int64("cart_id", event.CartID),
			zap.Int64("user_id", event.UserID),
			zap.Int64("total_amount", event.TotalAmount),
			zap.Int("item_count", event.ItemCount))
		return nil
	})
	eventHandler.OnCartCleared(func(ctx context.Context, event *models.CartClearedEvent) error {
		logger.Info("Cart cleared",
			zap.Int64("cart_id", event.CartID),
			zap.Int64("user_id", event.UserID))
		return nil
	})

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

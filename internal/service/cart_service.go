package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound   = errors.New("product not found or inactive")
	ErrVariantNotFound   = errors.New("variant not found or inactive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("cart item not found")
)

// CartService handles cart business logic
type CartService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	cacheTTL       time.Duration
	logger         *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	cacheTTL time.Duration,
) *CartService {
	return &CartService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		cacheTTL:       cacheTTL,
		logger:         util.GetLogger(),
	}
}

// How long a replayed add is recognized after the original was applied.
const idempotencyTTL = 24 * time.Hour

// AddItemRequest represents a request to add a line to the cart
type AddItemRequest struct {
	ProductID      int64  `json:"productId" binding:"required"`
	VariantID      *int64 `json:"variantId,omitempty"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// UpdateItemRequest represents a quantity change for a line
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// GetCart returns the user's cart, served from cache when fresh
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	if cached, err := s.redis.GetCachedCart(ctx, userID); err == nil && cached != nil {
		util.CartCacheHitsTotal.Inc()
		return cached, nil
	} else if err != nil {
		s.logger.Warn("Cart cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	util.CartCacheMissesTotal.Inc()

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if err := s.redis.CacheCart(ctx, userID, cart, s.cacheTTL); err != nil {
		s.logger.Warn("Cart cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return cart, nil
}

// AddItem adds a line to the cart, merging quantity into an existing line
// with the same (product, variant) pair instead of duplicating it
func (s *CartService) AddItem(ctx context.Context, userID int64, req *AddItemRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil || !product.IsActive {
		util.CartMutationsFailedTotal.WithLabelValues("product_not_found").Inc()
		return nil, ErrProductNotFound
	}

	unitPrice := product.BasePrice
	if req.VariantID != nil {
		variant, err := s.store.GetVariant(ctx, *req.VariantID)
		if err != nil || !variant.IsActive || variant.ProductID != product.ID {
			util.CartMutationsFailedTotal.WithLabelValues("variant_not_found").Inc()
			return nil, ErrVariantNotFound
		}
		if variant.Stock < req.Quantity {
			util.CartMutationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, ErrInsufficientStock
		}
		if variant.Price > 0 {
			unitPrice = variant.Price
		}
	}

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	// A replayed request (same Idempotency-Key) returns the current line
	// without applying the quantity again.
	idemKey := idempotencyKey(userID, req.IdempotencyKey)
	if idemKey != "" {
		seen, err := s.redis.CheckIdempotencyKey(ctx, idemKey)
		if err != nil {
			s.logger.Warn("Idempotency check failed", zap.String("key", idemKey), zap.Error(err))
		} else if seen {
			s.logger.Info("Duplicate add ignored", zap.String("key", idemKey), zap.Int64("user_id", userID))
			item, err := s.store.FindCartItem(ctx, cart.ID, req.ProductID, req.VariantID)
			if errors.Is(err, store.ErrCartItemNotFound) {
				return nil, ErrItemNotFound
			}
			return item, err
		}
	}

	existing, err := s.store.FindCartItem(ctx, cart.ID, req.ProductID, req.VariantID)
	if err != nil && !errors.Is(err, store.ErrCartItemNotFound) {
		return nil, err
	}

	var itemID int64
	if existing != nil {
		itemID = existing.ID
		if err := s.store.UpdateCartItemQuantity(ctx, cart.ID, existing.ID, existing.Quantity+req.Quantity); err != nil {
			return nil, fmt.Errorf("failed to merge cart line: %w", err)
		}
	} else {
		itemID, err = s.store.InsertCartItem(ctx, cart.ID, req.ProductID, req.VariantID, req.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to insert cart line: %w", err)
		}
	}

	s.afterMutation(ctx, userID, cart.ID)
	util.CartItemsAddedTotal.Inc()

	if idemKey != "" {
		if err := s.redis.SetIdempotencyKey(ctx, idemKey, itemID, idempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.String("key", idemKey), zap.Error(err))
		}
	}

	event := &models.CartItemAddedEvent{
		BaseEvent: newBaseEvent(models.EventTypeCartItemAdded),
		CartID:    cart.ID,
		UserID:    userID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		UnitPrice: unitPrice,
	}
	if err := s.eventPublisher.PublishCartItemAdded(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartItemAdded event", zap.Error(err))
	}

	return s.store.GetCartItem(ctx, cart.ID, itemID)
}

// UpdateItemQuantity sets the quantity of a line owned by the user
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID int64, req *UpdateItemRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItemQuantity")
	defer span.End()

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if err := s.store.UpdateCartItemQuantity(ctx, cart.ID, itemID, req.Quantity); err != nil {
		if errors.Is(err, store.ErrCartItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	s.afterMutation(ctx, userID, cart.ID)

	event := &models.CartItemUpdatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeCartItemUpdated),
		CartID:    cart.ID,
		UserID:    userID,
		ItemID:    itemID,
		Quantity:  req.Quantity,
	}
	if err := s.eventPublisher.PublishCartItemUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartItemUpdated event", zap.Error(err))
	}

	return s.store.GetCartItem(ctx, cart.ID, itemID)
}

// RemoveItem deletes a line owned by the user
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	if err := s.store.DeleteCartItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, store.ErrCartItemNotFound) {
			return ErrItemNotFound
		}
		return err
	}

	s.afterMutation(ctx, userID, cart.ID)
	util.CartItemsRemovedTotal.Inc()

	event := &models.CartItemRemovedEvent{
		BaseEvent: newBaseEvent(models.EventTypeCartItemRemoved),
		CartID:    cart.ID,
		UserID:    userID,
		ItemID:    itemID,
	}
	if err := s.eventPublisher.PublishCartItemRemoved(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartItemRemoved event", zap.Error(err))
	}
	return nil
}

// ClearCart removes every line in the user's cart
func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.ClearCart")
	defer span.End()

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	if err := s.store.ClearCartItems(ctx, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.afterMutation(ctx, userID, cart.ID)
	util.CartsClearedTotal.Inc()

	event := &models.CartClearedEvent{
		BaseEvent: newBaseEvent(models.EventTypeCartCleared),
		CartID:    cart.ID,
		UserID:    userID,
	}
	if err := s.eventPublisher.PublishCartCleared(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartCleared event", zap.Error(err))
	}
	return nil
}

// afterMutation invalidates the cache and flags recovered abandoned carts
func (s *CartService) afterMutation(ctx context.Context, userID, cartID int64) {
	if err := s.redis.InvalidateCart(ctx, userID); err != nil {
		s.logger.Warn("Cart cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if err := s.store.MarkAbandonedCartRecovered(ctx, cartID); err != nil {
		s.logger.Warn("Failed to mark abandoned cart recovered", zap.Int64("cart_id", cartID), zap.Error(err))
	}
}

// idempotencyKey scopes a client-supplied key to the user so keys cannot
// collide across accounts.
func idempotencyKey(userID int64, key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("%d:%s", userID, key)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

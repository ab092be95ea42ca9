package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/localstore"
	"storefront-service/internal/models"
	"storefront-service/internal/notify"
	"storefront-service/internal/remote"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Config tunes the background synchronization loop.
type Config struct {
	// PollInterval between authoritative cart refreshes while authenticated
	// and online.
	PollInterval time.Duration
	// DrainDebounce is how long the local store must sit unchanged before
	// pending lines are drained to the server.
	DrainDebounce time.Duration
}

// Reconciler produces a single consistent cart view from the server cart and
// the locally pending lines, and applies mutations to whichever side owns the
// line. Server responses are always treated as the source of truth; the
// reconciler itself never is.
//
// Operations against the server are not serialized relative to each other:
// rapid repeated mutations may race and the last response to resolve wins.
type Reconciler struct {
	remote   *remote.Client
	local    *localstore.Store
	tokens   remote.TokenSource
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      Config

	mu       sync.Mutex
	server   models.Cart
	view     models.Cart
	online   bool
	draining bool
}

// AddOptions carries the optional parameters of AddToCart. Display fields are
// supplied by the caller; the reconciler does not fetch product data itself.
type AddOptions struct {
	VariantID    int64 // zero means no variant
	Quantity     int   // defaults to 1
	ProductSlug  string
	ProductName  string
	ProductPrice int64
	VariantPrice int64
	VariantName  string
	ImageURL     string
}

// New builds a reconciler. Zero config fields get the standard intervals
// (30s poll, 1s drain debounce).
func New(client *remote.Client, local *localstore.Store, tokens remote.TokenSource, notifier notify.Notifier, logger *zap.Logger, cfg Config) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.DrainDebounce <= 0 {
		cfg.DrainDebounce = time.Second
	}
	r := &Reconciler{
		remote:   client,
		local:    local,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		online:   true,
		server:   models.Cart{Items: []models.CartItem{}},
	}
	r.mu.Lock()
	r.rebuildViewLocked()
	r.mu.Unlock()
	return r
}

// Cart returns a copy of the current merged view.
func (r *Reconciler) Cart() models.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCart(r.view)
}

// Total is the merged view total in minor currency units.
func (r *Reconciler) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return CartTotal(r.view.Items)
}

// ItemsCount is the sum of quantities across the merged view.
func (r *Reconciler) ItemsCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return CartItemsCount(r.view.Items)
}

// SetOnline records a connectivity transition. Going offline suspends the
// background refresh and drain; coming back online does not force an
// immediate refresh.
func (r *Reconciler) SetOnline(online bool) {
	r.mu.Lock()
	r.online = online
	r.mu.Unlock()
}

func (r *Reconciler) isOnline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// AddToCart applies an optimistic add and routes it to the server or the
// local store depending on authentication and connectivity. Failures never
// propagate to the caller, they resolve into a notification.
func (r *Reconciler) AddToCart(ctx context.Context, productID int64, opts AddOptions) {
	quantity := opts.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	// A known-offline session routes straight to the local store rather than
	// issuing a doomed request.
	if r.tokens() == "" || !r.isOnline() {
		r.addLocal(productID, opts, quantity)
		util.SyncLocalFallbacksTotal.Inc()
		r.notifier.Success("Added to cart")
		return
	}

	r.mu.Lock()
	txn := beginOptimistic(&r.server)
	r.applyAddLocked(productID, opts, quantity)
	r.rebuildViewLocked()
	r.mu.Unlock()

	err := r.remote.AddItem(ctx, remote.AddItemRequest{
		ProductID: productID,
		VariantID: variantPtr(opts.VariantID),
		Quantity:  quantity,
	})
	switch {
	case err == nil:
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("Failed to refresh cart after add", zap.Error(err))
		}
		r.notifier.Success("Added to cart")

	case remote.IsNetworkError(err):
		// Connectivity loss is routine, not exceptional: keep the line
		// locally and let the drain pick it up later.
		r.SetOnline(false)
		r.mu.Lock()
		txn.Rollback()
		r.mu.Unlock()
		r.addLocal(productID, opts, quantity)
		util.SyncLocalFallbacksTotal.Inc()
		r.logger.Warn("Add fell back to local store", zap.Int64("product_id", productID), zap.Error(err))
		r.notifier.Success("Added to cart")

	default:
		r.mu.Lock()
		txn.Rollback()
		r.rebuildViewLocked()
		r.mu.Unlock()
		util.SyncRollbacksTotal.Inc()
		r.logger.Warn("Add rejected by server", zap.Int64("product_id", productID), zap.Error(err))
		r.notifier.Error("Failed to add to cart")
	}
}

// UpdateQuantity changes the quantity of a line by delta, never below one.
// Callers wanting removal must use RemoveItem; in practice UI code substitutes
// a RemoveItem call when delta is negative and the quantity is already one.
func (r *Reconciler) UpdateQuantity(ctx context.Context, lineID int64, delta int) {
	r.mu.Lock()
	item, ok := findItem(r.view.Items, lineID)
	r.mu.Unlock()
	if !ok {
		return
	}

	newQuantity := item.Quantity + delta
	if newQuantity < 1 {
		newQuantity = 1
	}

	if lineID < 0 {
		r.local.SetQuantity(item.ProductID, variantValue(item.VariantID), newQuantity)
		r.rebuild()
		return
	}

	if r.tokens() == "" {
		// Server-confirmed line without a credential: nothing to update against.
		return
	}

	r.mu.Lock()
	txn := beginOptimistic(&r.server)
	for i := range r.server.Items {
		if r.server.Items[i].ID == lineID {
			r.server.Items[i].Quantity = newQuantity
		}
	}
	r.rebuildViewLocked()
	r.mu.Unlock()

	if err := r.remote.UpdateItemQuantity(ctx, lineID, newQuantity); err != nil {
		r.mu.Lock()
		txn.Rollback()
		r.rebuildViewLocked()
		r.mu.Unlock()
		util.SyncRollbacksTotal.Inc()
		r.logger.Warn("Quantity update failed", zap.Int64("item_id", lineID), zap.Error(err))
		r.notifier.Error("Failed to update quantity")
		return
	}

	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("Failed to refresh cart after update", zap.Error(err))
	}
	r.notifier.Success("Cart updated")
}

// RemoveItem removes a line from whichever source owns it.
func (r *Reconciler) RemoveItem(ctx context.Context, lineID int64) {
	if lineID < 0 {
		r.mu.Lock()
		item, ok := findItem(r.view.Items, lineID)
		r.mu.Unlock()
		if !ok {
			return
		}
		r.local.Remove(item.ProductID, variantValue(item.VariantID))
		r.rebuild()
		r.notifier.Success("Removed from cart")
		return
	}

	if r.tokens() == "" {
		return
	}

	r.mu.Lock()
	txn := beginOptimistic(&r.server)
	kept := r.server.Items[:0]
	for _, it := range r.server.Items {
		if it.ID != lineID {
			kept = append(kept, it)
		}
	}
	r.server.Items = kept
	r.rebuildViewLocked()
	r.mu.Unlock()

	if err := r.remote.RemoveItem(ctx, lineID); err != nil {
		r.mu.Lock()
		txn.Rollback()
		r.rebuildViewLocked()
		r.mu.Unlock()
		util.SyncRollbacksTotal.Inc()
		r.logger.Warn("Remove failed", zap.Int64("item_id", lineID), zap.Error(err))
		r.notifier.Error("Failed to remove item")
		return
	}

	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("Failed to refresh cart after remove", zap.Error(err))
	}
	r.notifier.Success("Removed from cart")
}

// ClearCart empties both sources. The server call is best-effort: a failure
// is logged but does not block local clearing.
func (r *Reconciler) ClearCart(ctx context.Context) {
	if r.tokens() != "" {
		if err := r.remote.ClearCart(ctx); err != nil {
			r.logger.Warn("Failed to clear server cart", zap.Error(err))
		}
	}

	r.local.Clear()
	r.mu.Lock()
	r.server = models.Cart{Items: []models.CartItem{}}
	r.rebuildViewLocked()
	r.mu.Unlock()
}

// Refresh replaces the server snapshot with the authoritative cart. An
// unauthenticated session keeps an empty server cart; a 401/403 response is
// treated the same way rather than as an error. Refresh outcomes also drive
// the connectivity flag: a transport failure marks the session offline, any
// server response marks it online.
func (r *Reconciler) Refresh(ctx context.Context) error {
	if r.tokens() == "" {
		return nil
	}

	start := time.Now()
	cart, err := r.remote.GetCart(ctx)
	util.SyncRefreshLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if status, ok := apiStatus(err); ok && (status == 401 || status == 403) {
			r.SetOnline(true)
			r.mu.Lock()
			r.server = models.Cart{Items: []models.CartItem{}}
			r.rebuildViewLocked()
			r.mu.Unlock()
			return nil
		}
		if remote.IsNetworkError(err) {
			r.SetOnline(false)
		}
		return err
	}

	r.SetOnline(true)
	r.mu.Lock()
	r.server = *cart
	r.rebuildViewLocked()
	r.mu.Unlock()
	return nil
}

// Drain submits every pending local line to the server, tolerating partial
// failures, then unconditionally clears the local store and refetches. The
// merge is one-directional and at-least-once: a silently failed request loses
// that line, which is accepted for cart convenience state.
func (r *Reconciler) Drain(ctx context.Context) {
	lines := r.local.Lines()
	if len(lines) == 0 {
		return
	}

	r.logger.Info("Draining local cart to server", zap.Int("lines", len(lines)))

	var wg sync.WaitGroup
	for _, line := range lines {
		wg.Add(1)
		go func(l localstore.PendingLine) {
			defer wg.Done()
			err := r.remote.AddItem(ctx, remote.AddItemRequest{
				ProductID: l.ProductID,
				VariantID: variantPtr(l.VariantID),
				Quantity:  l.Quantity,
				// Stable per line, so a drain replayed after a crash does
				// not double the quantity on the server.
				IdempotencyKey: fmt.Sprintf("drain-%s-%d", l.Key(), l.Timestamp),
			})
			if err != nil {
				util.SyncDrainFailuresTotal.Inc()
				r.logger.Warn("Drain request failed",
					zap.Int64("product_id", l.ProductID),
					zap.Error(err))
				return
			}
			util.SyncDrainedLinesTotal.Inc()
		}(line)
	}
	wg.Wait()

	r.local.Clear()
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("Failed to refresh cart after drain", zap.Error(err))
	}
	r.rebuild()
}

// Run executes the background loop: an initial refresh, periodic refreshes
// while authenticated and online, and debounced drains whenever a credential
// is present and local lines exist. Blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.tokens() != "" && r.isOnline() {
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("Initial cart refresh failed", zap.Error(err))
		}
	}

	poll := time.NewTicker(r.cfg.PollInterval)
	defer poll.Stop()
	drainCheck := time.NewTicker(r.cfg.DrainDebounce)
	defer drainCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-poll.C:
			if r.tokens() == "" || !r.isOnline() {
				continue
			}
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("Background cart refresh failed", zap.Error(err))
			}

		case <-drainCheck.C:
			r.maybeDrain(ctx)
		}
	}
}

func (r *Reconciler) maybeDrain(ctx context.Context) {
	// Draining into an unreachable server would discard every pending line,
	// since Drain clears the local store regardless of per-request outcomes.
	if r.tokens() == "" || !r.isOnline() || r.local.Len() == 0 {
		return
	}
	// Coalesce rapid successive additions.
	if time.Since(r.local.LastModified()) < r.cfg.DrainDebounce && !r.local.LastModified().IsZero() {
		return
	}

	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	r.mu.Unlock()

	r.Drain(ctx)

	r.mu.Lock()
	r.draining = false
	r.mu.Unlock()
}

func (r *Reconciler) addLocal(productID int64, opts AddOptions, quantity int) {
	r.local.Upsert(localstore.PendingLine{
		ProductID:    productID,
		VariantID:    opts.VariantID,
		Quantity:     quantity,
		ProductSlug:  opts.ProductSlug,
		ProductName:  opts.ProductName,
		ProductPrice: opts.ProductPrice,
		VariantPrice: opts.VariantPrice,
		VariantName:  opts.VariantName,
		ImageURL:     opts.ImageURL,
	})
	r.rebuild()
}

// applyAddLocked increments a matching server line or appends a placeholder
// with a negative identity. Caller holds r.mu.
func (r *Reconciler) applyAddLocked(productID int64, opts AddOptions, quantity int) {
	key := localstore.LineKey(productID, opts.VariantID)
	for i := range r.server.Items {
		if itemKey(r.server.Items[i].ProductID, r.server.Items[i].VariantID) == key {
			r.server.Items[i].Quantity += quantity
			return
		}
	}

	item := models.CartItem{
		// Placeholder identity, replaced by the server-assigned one on refetch.
		ID:        -time.Now().UnixMilli(),
		ProductID: productID,
		VariantID: variantPtr(opts.VariantID),
		Quantity:  quantity,
		Product: &models.CartItemProduct{
			ID:        productID,
			Slug:      opts.ProductSlug,
			Name:      opts.ProductName,
			BasePrice: opts.ProductPrice,
			ImageURL:  opts.ImageURL,
		},
	}
	if opts.VariantID != 0 && opts.VariantPrice > 0 {
		item.Variant = &models.CartItemVariant{
			ID:    opts.VariantID,
			Name:  opts.VariantName,
			Price: opts.VariantPrice,
		}
	}
	r.server.Items = append(r.server.Items, item)
}

func (r *Reconciler) rebuild() {
	r.mu.Lock()
	r.rebuildViewLocked()
	r.mu.Unlock()
}

// rebuildViewLocked recomputes the merged view. Caller holds r.mu.
func (r *Reconciler) rebuildViewLocked() {
	r.view = Merge(r.server, r.local.Lines())
}

func findItem(items []models.CartItem, lineID int64) (models.CartItem, bool) {
	for _, it := range items {
		if it.ID == lineID {
			return it, true
		}
	}
	return models.CartItem{}, false
}

func variantPtr(variantID int64) *int64 {
	if variantID == 0 {
		return nil
	}
	return &variantID
}

func variantValue(variantID *int64) int64 {
	if variantID == nil {
		return 0
	}
	return *variantID
}

func apiStatus(err error) (int, bool) {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, true
	}
	return 0, false
}

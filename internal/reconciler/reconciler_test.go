package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-service/internal/localstore"
	"storefront-service/internal/models"
	"storefront-service/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCartAPI is an in-memory stand-in for the cart service, implementing the
// same routes and merge-on-add behavior.
type fakeCartAPI struct {
	mu         sync.Mutex
	items      []models.CartItem
	nextID     int64
	addCalls   int
	getCalls   int
	seenKeys   map[string]bool
	rejectAll  bool
	authStatus int // non-zero forces that status on GET /cart
}

func newFakeCartAPI() *fakeCartAPI {
	return &fakeCartAPI{nextID: 1, seenKeys: map[string]bool{}}
}

func (f *fakeCartAPI) getCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *fakeCartAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectAll {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/cart":
		f.getCalls++
		if f.authStatus != 0 {
			w.WriteHeader(f.authStatus)
			return
		}
		cart := models.Cart{ID: 1, UserID: 1, Items: f.items}
		if cart.Items == nil {
			cart.Items = []models.CartItem{}
		}
		json.NewEncoder(w).Encode(cart)

	case r.Method == http.MethodPost && r.URL.Path == "/cart/add":
		f.addCalls++
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			if f.seenKeys[key] {
				w.WriteHeader(http.StatusCreated)
				return
			}
			f.seenKeys[key] = true
		}
		var req remote.AddItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for i := range f.items {
			if f.items[i].ProductID == req.ProductID && variantValue(f.items[i].VariantID) == variantValue(req.VariantID) {
				f.items[i].Quantity += req.Quantity
				w.WriteHeader(http.StatusCreated)
				return
			}
		}
		f.items = append(f.items, models.CartItem{
			ID:        f.nextID,
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
			Product: &models.CartItemProduct{
				ID:        req.ProductID,
				Slug:      "slab",
				Name:      "Slab",
				BasePrice: 100,
			},
		})
		f.nextID++
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/cart/items/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/cart/items/"), 10, 64)
		var body struct {
			Quantity int `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for i := range f.items {
			if f.items[i].ID == id {
				f.items[i].Quantity = body.Quantity
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	case r.Method == http.MethodDelete && r.URL.Path == "/cart/clear":
		f.items = nil
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/cart/items/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/cart/items/"), 10, 64)
		for i := range f.items {
			if f.items[i].ID == id {
				f.items = append(f.items[:i], f.items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// recordingNotifier captures outcome notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type fixture struct {
	rec      *Reconciler
	api      *fakeCartAPI
	local    *localstore.Store
	notifier *recordingNotifier
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		api:      newFakeCartAPI(),
		notifier: &recordingNotifier{},
	}
	srv := httptest.NewServer(f.api)
	t.Cleanup(srv.Close)

	f.local = localstore.New(filepath.Join(t.TempDir(), "cart_items.json"), zap.NewNop())
	tokens := func() string { return f.token }
	client := remote.NewClient(srv.URL, 5*time.Second, tokens)
	f.rec = New(client, f.local, tokens, f.notifier, zap.NewNop(), Config{})
	return f
}

func TestAddToCartUnauthenticatedStaysLocal(t *testing.T) {
	f := newFixture(t)

	f.rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 2, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})

	assert.Equal(t, 0, f.api.addCalls)
	assert.Equal(t, 1, f.local.Len())

	cart := f.rec.Cart()
	require.Len(t, cart.Items, 1)
	assert.Less(t, cart.Items[0].ID, int64(0))
	assert.Equal(t, int64(200), f.rec.Total())
	assert.Equal(t, 2, f.rec.ItemsCount())
}

func TestAddToCartAuthenticatedHitsServer(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"

	f.rec.AddToCart(context.Background(), 42, AddOptions{Quantity: 3})

	assert.Equal(t, 1, f.api.addCalls)
	assert.Equal(t, 0, f.local.Len())

	cart := f.rec.Cart()
	require.Len(t, cart.Items, 1)
	// Refetch replaced the optimistic placeholder with the server identity.
	assert.Equal(t, int64(1), cart.Items[0].ID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddToCartServerRejectionRollsBack(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"
	f.api.rejectAll = true

	f.rec.AddToCart(context.Background(), 42, AddOptions{Quantity: 1})

	assert.Empty(t, f.rec.Cart().Items)
	assert.Equal(t, 0, f.local.Len())
	assert.Equal(t, 1, f.notifier.errorCount())
}

func TestAddToCartNetworkErrorFallsBackToLocal(t *testing.T) {
	api := newFakeCartAPI()
	srv := httptest.NewServer(api)
	srv.Close() // unreachable from the start

	local := localstore.New(filepath.Join(t.TempDir(), "cart_items.json"), zap.NewNop())
	notifier := &recordingNotifier{}
	tokens := func() string { return "tok" }
	client := remote.NewClient(srv.URL, time.Second, tokens)
	rec := New(client, local, tokens, notifier, zap.NewNop(), Config{})

	rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 1, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})

	assert.Equal(t, 1, local.Len())
	assert.Equal(t, 0, notifier.errorCount())
	require.Len(t, rec.Cart().Items, 1)
	assert.Less(t, rec.Cart().Items[0].ID, int64(0))
}

func TestUpdateQuantityLocalLineFloorsAtOne(t *testing.T) {
	f := newFixture(t)

	f.rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 2, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})
	lineID := f.rec.Cart().Items[0].ID

	f.rec.UpdateQuantity(context.Background(), lineID, -5)

	require.Len(t, f.rec.Cart().Items, 1)
	assert.Equal(t, 1, f.rec.Cart().Items[0].Quantity)
}

func TestUpdateQuantityServerFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"

	f.rec.AddToCart(context.Background(), 42, AddOptions{Quantity: 2})
	lineID := f.rec.Cart().Items[0].ID
	require.Greater(t, lineID, int64(0))

	f.api.rejectAll = true
	f.rec.UpdateQuantity(context.Background(), lineID, 3)

	require.Len(t, f.rec.Cart().Items, 1)
	assert.Equal(t, 2, f.rec.Cart().Items[0].Quantity)
	assert.Equal(t, 1, f.notifier.errorCount())
}

func TestRemoveItemLocalLine(t *testing.T) {
	f := newFixture(t)

	f.rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 1, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})
	lineID := f.rec.Cart().Items[0].ID

	f.rec.RemoveItem(context.Background(), lineID)

	assert.Empty(t, f.rec.Cart().Items)
	assert.Equal(t, 0, f.local.Len())
}

func TestRemoveItemServerFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"

	f.rec.AddToCart(context.Background(), 42, AddOptions{Quantity: 1})
	lineID := f.rec.Cart().Items[0].ID

	f.api.rejectAll = true
	f.rec.RemoveItem(context.Background(), lineID)

	require.Len(t, f.rec.Cart().Items, 1)
	assert.Equal(t, lineID, f.rec.Cart().Items[0].ID)
}

func TestDrainSubmitsAndClearsLocal(t *testing.T) {
	f := newFixture(t)

	f.rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 2, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})
	f.rec.AddToCart(context.Background(), 43, AddOptions{
		VariantID: 3, Quantity: 1, ProductSlug: "tile", ProductName: "Tile",
		ProductPrice: 50, VariantPrice: 75, VariantName: "30mm",
	})
	require.Equal(t, 2, f.local.Len())

	f.token = "tok"
	f.rec.Drain(context.Background())

	assert.Equal(t, 2, f.api.addCalls)
	assert.Equal(t, 0, f.local.Len())

	cart := f.rec.Cart()
	require.Len(t, cart.Items, 2)
	for _, it := range cart.Items {
		assert.Greater(t, it.ID, int64(0))
	}
}

func TestDrainClearsLocalEvenOnFailure(t *testing.T) {
	f := newFixture(t)

	f.rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 1, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})

	f.token = "tok"
	f.api.rejectAll = true
	f.rec.Drain(context.Background())

	assert.Equal(t, 0, f.local.Len())
}

func TestClearCartEmptiesBothSources(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"

	f.rec.AddToCart(context.Background(), 42, AddOptions{Quantity: 1})
	f.token = ""
	f.rec.AddToCart(context.Background(), 43, AddOptions{
		Quantity: 1, ProductSlug: "tile", ProductName: "Tile", ProductPrice: 50,
	})
	f.token = "tok"

	f.rec.ClearCart(context.Background())

	assert.Empty(t, f.rec.Cart().Items)
	assert.Equal(t, 0, f.local.Len())
	f.api.mu.Lock()
	assert.Empty(t, f.api.items)
	f.api.mu.Unlock()
}

func TestRefreshUnauthorizedYieldsEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"

	f.rec.AddToCart(context.Background(), 42, AddOptions{Quantity: 1})
	require.Len(t, f.rec.Cart().Items, 1)

	f.api.authStatus = http.StatusUnauthorized
	err := f.rec.Refresh(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, f.rec.Cart().Items)
}

func TestRefreshSkippedWithoutToken(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.rec.Refresh(context.Background()))
}

func TestRunOfflineSkipsPeriodicRefresh(t *testing.T) {
	api := newFakeCartAPI()
	srv := httptest.NewServer(api)
	defer srv.Close()

	local := localstore.New(filepath.Join(t.TempDir(), "cart_items.json"), zap.NewNop())
	tokens := func() string { return "tok" }
	client := remote.NewClient(srv.URL, time.Second, tokens)
	rec := New(client, local, tokens, &recordingNotifier{}, zap.NewNop(), Config{
		PollInterval:  10 * time.Millisecond,
		DrainDebounce: 10 * time.Millisecond,
	})
	rec.SetOnline(false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rec.Run(ctx)

	assert.Equal(t, 0, api.getCallCount())
}

func TestRunOnlineRefreshesPeriodically(t *testing.T) {
	api := newFakeCartAPI()
	srv := httptest.NewServer(api)
	defer srv.Close()

	local := localstore.New(filepath.Join(t.TempDir(), "cart_items.json"), zap.NewNop())
	tokens := func() string { return "tok" }
	client := remote.NewClient(srv.URL, time.Second, tokens)
	rec := New(client, local, tokens, &recordingNotifier{}, zap.NewNop(), Config{
		PollInterval:  10 * time.Millisecond,
		DrainDebounce: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rec.Run(ctx)

	assert.GreaterOrEqual(t, api.getCallCount(), 1)
}

func TestRefreshDrivesConnectivityFlag(t *testing.T) {
	api := newFakeCartAPI()
	srv := httptest.NewServer(api)

	local := localstore.New(filepath.Join(t.TempDir(), "cart_items.json"), zap.NewNop())
	tokens := func() string { return "tok" }
	client := remote.NewClient(srv.URL, time.Second, tokens)
	rec := New(client, local, tokens, &recordingNotifier{}, zap.NewNop(), Config{})

	require.NoError(t, rec.Refresh(context.Background()))
	assert.True(t, rec.isOnline())

	srv.Close()
	require.Error(t, rec.Refresh(context.Background()))
	assert.False(t, rec.isOnline())
}

func TestAddToCartOfflineStaysLocal(t *testing.T) {
	f := newFixture(t)
	f.token = "tok"
	f.rec.SetOnline(false)

	f.rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 1, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})

	assert.Equal(t, 0, f.api.addCalls)
	assert.Equal(t, 1, f.local.Len())
}

func TestMaybeDrainSkippedWhileOffline(t *testing.T) {
	api := newFakeCartAPI()
	srv := httptest.NewServer(api)
	defer srv.Close()

	local := localstore.New(filepath.Join(t.TempDir(), "cart_items.json"), zap.NewNop())
	notifier := &recordingNotifier{}
	token := ""
	tokens := func() string { return token }
	client := remote.NewClient(srv.URL, time.Second, tokens)
	rec := New(client, local, tokens, notifier, zap.NewNop(), Config{
		DrainDebounce: 5 * time.Millisecond,
	})

	rec.AddToCart(context.Background(), 42, AddOptions{
		Quantity: 1, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
	})
	time.Sleep(20 * time.Millisecond)

	token = "tok"
	rec.SetOnline(false)
	rec.maybeDrain(context.Background())

	// Pending lines survive: draining while unreachable would discard them.
	assert.Equal(t, 1, local.Len())
	assert.Equal(t, 0, api.addCalls)

	rec.SetOnline(true)
	rec.maybeDrain(context.Background())

	assert.Equal(t, 0, local.Len())
	assert.Equal(t, 1, api.addCalls)
}

func TestDrainReplayDoesNotDuplicate(t *testing.T) {
	api := newFakeCartAPI()
	srv := httptest.NewServer(api)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cart_items.json")
	lines := []localstore.PendingLine{{
		ProductID: 42, Quantity: 2,
		ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100,
		Timestamp: time.Now().UnixMilli(),
	}}
	data, err := json.Marshal(lines)
	require.NoError(t, err)

	tokens := func() string { return "tok" }
	client := remote.NewClient(srv.URL, time.Second, tokens)

	drain := func() {
		require.NoError(t, os.WriteFile(path, data, 0o644))
		local := localstore.New(path, zap.NewNop())
		rec := New(client, local, tokens, &recordingNotifier{}, zap.NewNop(), Config{})
		rec.Drain(context.Background())
	}

	// A crash between the drain requests and the local clear replays the
	// same lines on restart; the idempotency key keeps the quantity stable.
	drain()
	drain()

	assert.Equal(t, 2, api.addCalls)
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.items, 1)
	assert.Equal(t, 2, api.items[0].Quantity)
}

func TestAddMergesQuantityForSameLine(t *testing.T) {
	f := newFixture(t)

	opts := AddOptions{Quantity: 1, ProductSlug: "slab", ProductName: "Slab", ProductPrice: 100}
	f.rec.AddToCart(context.Background(), 42, opts)
	f.rec.AddToCart(context.Background(), 42, opts)

	require.Equal(t, 1, f.local.Len())
	require.Len(t, f.rec.Cart().Items, 1)
	assert.Equal(t, 2, f.rec.Cart().Items[0].Quantity)
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-service/internal/models"
)

// TokenSource supplies the current bearer credential. An empty string means
// the session is unauthenticated.
type TokenSource func() string

// APIError is a response the server actively rejected (non-2xx).
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api error: status=%d body=%s", e.Status, e.Body)
}

// IsNetworkError reports whether err is a transport-level failure (timeout,
// connection refused, DNS) rather than a server rejection. The sync client
// treats these as routine: adds fall back to the local store instead of
// surfacing an error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// Client talks to the cart API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient creates a cart API client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// AddItemRequest is the body for POST /cart/add. IdempotencyKey, when set,
// travels as the Idempotency-Key header so a replayed add is not applied twice.
type AddItemRequest struct {
	ProductID      int64  `json:"productId"`
	VariantID      *int64 `json:"variantId,omitempty"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"-"`
}

// Ping reports whether the cart API is reachable. Any HTTP response counts,
// including an auth rejection; only a transport failure means unreachable.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/cart", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// GetCart fetches the authoritative cart.
func (c *Client) GetCart(ctx context.Context) (*models.Cart, error) {
	var cart models.Cart
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &cart, nil); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

// AddItem adds a line (or merges quantity into an existing line).
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) error {
	var headers http.Header
	if req.IdempotencyKey != "" {
		headers = http.Header{"Idempotency-Key": []string{req.IdempotencyKey}}
	}
	return c.do(ctx, http.MethodPost, "/cart/add", req, nil, headers)
}

// UpdateItemQuantity sets the quantity of a server-confirmed line.
func (c *Client) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/cart/items/%d", itemID), body, nil, nil)
}

// RemoveItem deletes a server-confirmed line.
func (c *Client) RemoveItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart/items/%d", itemID), nil, nil, nil)
}

// ClearCart empties the server cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart/clear", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, headers http.Header) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if token := c.tokens(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

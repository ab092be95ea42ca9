package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"
)

var ErrCartItemNotFound = fmt.Errorf("cart item not found")

// cartItemRow is the flat join row behind the nested CartItem read model
type cartItemRow struct {
	ID           int64          `db:"id"`
	CartID       int64          `db:"cart_id"`
	ProductID    int64          `db:"product_id"`
	VariantID    sql.NullInt64  `db:"variant_id"`
	Quantity     int            `db:"quantity"`
	ProductSlug  string         `db:"product_slug"`
	ProductName  string         `db:"product_name"`
	BasePrice    int64          `db:"base_price"`
	ImageURL     sql.NullString `db:"image_url"`
	VariantName  sql.NullString `db:"variant_name"`
	VariantPrice sql.NullInt64  `db:"variant_price"`
}

func (r cartItemRow) toItem() models.CartItem {
	item := models.CartItem{
		ID:        r.ID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Product: &models.CartItemProduct{
			ID:        r.ProductID,
			Slug:      r.ProductSlug,
			Name:      r.ProductName,
			BasePrice: r.BasePrice,
			ImageURL:  r.ImageURL.String,
		},
	}
	if r.VariantID.Valid {
		vid := r.VariantID.Int64
		item.VariantID = &vid
		item.Variant = &models.CartItemVariant{
			ID:    vid,
			Name:  r.VariantName.String,
			Price: r.VariantPrice.Int64,
		}
	}
	return item
}

const cartItemsQuery = `
	SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity,
	       p.slug AS product_slug, p.name AS product_name, p.base_price, p.image_url,
	       v.name AS variant_name, v.price AS variant_price
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	LEFT JOIN variants v ON v.id = ci.variant_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id`

// GetOrCreateCart returns the user's cart, creating an empty one on first use
func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		query := `
			INSERT INTO carts (user_id)
			VALUES ($1)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			RETURNING id, user_id, created_at, updated_at`
		if err := s.db.GetContext(ctx, &cart, query, userID); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	var rows []cartItemRow
	if err := s.db.SelectContext(ctx, &rows, cartItemsQuery, cart.ID); err != nil {
		return nil, err
	}
	cart.Items = make([]models.CartItem, 0, len(rows))
	for _, r := range rows {
		cart.Items = append(cart.Items, r.toItem())
	}
	return &cart, nil
}

// FindCartItem locates a line by (product, variant) within a cart
func (s *Store) FindCartItem(ctx context.Context, cartID, productID int64, variantID *int64) (*models.CartItem, error) {
	var row cartItemRow
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity,
		       p.slug AS product_slug, p.name AS product_name, p.base_price, p.image_url,
		       v.name AS variant_name, v.price AS variant_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN variants v ON v.id = ci.variant_id
		WHERE ci.cart_id = $1 AND ci.product_id = $2 AND ci.variant_id IS NOT DISTINCT FROM $3`

	err := s.db.GetContext(ctx, &row, query, cartID, productID, variantID)
	if err == sql.ErrNoRows {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	item := row.toItem()
	return &item, nil
}

// GetCartItem retrieves a line by ID, scoped to a cart
func (s *Store) GetCartItem(ctx context.Context, cartID, itemID int64) (*models.CartItem, error) {
	var row cartItemRow
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity,
		       p.slug AS product_slug, p.name AS product_name, p.base_price, p.image_url,
		       v.name AS variant_name, v.price AS variant_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN variants v ON v.id = ci.variant_id
		WHERE ci.id = $1 AND ci.cart_id = $2`

	err := s.db.GetContext(ctx, &row, query, itemID, cartID)
	if err == sql.ErrNoRows {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	item := row.toItem()
	return &item, nil
}

// InsertCartItem creates a new line and returns its ID
func (s *Store) InsertCartItem(ctx context.Context, cartID, productID int64, variantID *int64, quantity int) (int64, error) {
	var id int64
	query := `
		INSERT INTO cart_items (cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := s.db.GetContext(ctx, &id, query, cartID, productID, variantID, quantity); err != nil {
		return 0, err
	}
	return id, s.touchCart(ctx, cartID)
}

// UpdateCartItemQuantity sets a line quantity
func (s *Store) UpdateCartItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3",
		quantity, itemID, cartID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return s.touchCart(ctx, cartID)
}

// DeleteCartItem removes a line
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return s.touchCart(ctx, cartID)
}

// ClearCartItems removes every line in a cart
func (s *Store) ClearCartItems(ctx context.Context, cartID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return err
	}
	return s.touchCart(ctx, cartID)
}

func (s *Store) touchCart(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE carts SET updated_at = NOW() WHERE id = $1", cartID)
	return err
}

// AbandonedCandidate summarizes an idle cart with items
type AbandonedCandidate struct {
	CartID      int64 `db:"cart_id"`
	UserID      int64 `db:"user_id"`
	TotalAmount int64 `db:"total_amount"`
	ItemCount   int   `db:"item_count"`
}

// FindAbandonedCandidates finds carts with items that have been idle since
// before the threshold and have not been flagged yet
func (s *Store) FindAbandonedCandidates(ctx context.Context, threshold time.Time) ([]AbandonedCandidate, error) {
	query := `
		SELECT c.id AS cart_id, c.user_id,
		       COALESCE(SUM(COALESCE(NULLIF(v.price, 0), p.base_price) * ci.quantity), 0) AS total_amount,
		       COALESCE(SUM(ci.quantity), 0) AS item_count
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN variants v ON v.id = ci.variant_id
		WHERE c.updated_at < $1
		  AND NOT EXISTS (
		      SELECT 1 FROM abandoned_carts ac
		      WHERE ac.cart_id = c.id AND NOT ac.recovered
		  )
		GROUP BY c.id, c.user_id`

	var candidates []AbandonedCandidate
	err := s.db.SelectContext(ctx, &candidates, query, threshold)
	return candidates, err
}

// CreateAbandonedCart records an abandoned cart
func (s *Store) CreateAbandonedCart(ctx context.Context, cand AbandonedCandidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO abandoned_carts (cart_id, user_id, total_amount, item_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id) DO NOTHING`,
		cand.CartID, cand.UserID, cand.TotalAmount, cand.ItemCount)
	return err
}

// MarkAbandonedCartRecovered flags an abandoned cart as recovered after the
// user touches their cart again
func (s *Store) MarkAbandonedCartRecovered(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE abandoned_carts SET recovered = TRUE WHERE cart_id = $1 AND NOT recovered",
		cartID)
	return err
}

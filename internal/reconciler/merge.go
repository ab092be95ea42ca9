package reconciler

import (
	"storefront-service/internal/localstore"
	"storefront-service/internal/models"
)

// itemKey returns the (product, variant) identity of a cart line.
func itemKey(productID int64, variantID *int64) string {
	var vid int64
	if variantID != nil {
		vid = *variantID
	}
	return localstore.LineKey(productID, vid)
}

// Merge computes the display view from the server-authoritative cart and the
// locally pending lines. Server lines always win: a local line whose
// (product, variant) key already appears among the server lines is suppressed.
// Local-only lines are appended in order with synthetic negative IDs; lines
// missing display data or without a positive effective price are skipped.
func Merge(server models.Cart, local []localstore.PendingLine) models.Cart {
	items := make([]models.CartItem, 0, len(server.Items)+len(local))
	items = append(items, server.Items...)

	seen := make(map[string]bool, len(server.Items))
	for _, it := range server.Items {
		seen[itemKey(it.ProductID, it.VariantID)] = true
	}

	seq := int64(0)
	for _, l := range local {
		if seen[l.Key()] {
			continue
		}
		if l.ProductSlug == "" || l.ProductName == "" {
			continue
		}
		price := l.ProductPrice
		if l.VariantPrice > 0 {
			price = l.VariantPrice
		}
		if price <= 0 {
			continue
		}

		seq++
		item := models.CartItem{
			ID:        -seq,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Product: &models.CartItemProduct{
				ID:        l.ProductID,
				Slug:      l.ProductSlug,
				Name:      l.ProductName,
				BasePrice: l.ProductPrice,
				ImageURL:  l.ImageURL,
			},
		}
		if item.Product.BasePrice == 0 {
			item.Product.BasePrice = price
		}
		if l.VariantID != 0 {
			vid := l.VariantID
			item.VariantID = &vid
			if l.VariantPrice > 0 {
				item.Variant = &models.CartItemVariant{
					ID:    l.VariantID,
					Name:  l.VariantName,
					Price: l.VariantPrice,
				}
			}
		}
		items = append(items, item)
	}

	return models.Cart{ID: server.ID, Items: items}
}

// CartTotal sums effective price times quantity over the view. Lines whose
// effective price is not positive contribute nothing.
func CartTotal(items []models.CartItem) int64 {
	var total int64
	for _, it := range items {
		price := it.EffectiveUnitPrice()
		if price <= 0 {
			continue
		}
		total += price * int64(it.Quantity)
	}
	return total
}

// CartItemsCount sums quantities over the view, with no price filtering.
func CartItemsCount(items []models.CartItem) int {
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return count
}

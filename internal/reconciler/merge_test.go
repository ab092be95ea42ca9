package reconciler

import (
	"testing"

	"storefront-service/internal/localstore"
	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func serverLine(id, productID int64, variantID *int64, quantity int, basePrice int64) models.CartItem {
	item := models.CartItem{
		ID:        id,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		Product: &models.CartItemProduct{
			ID:        productID,
			Slug:      "slab",
			Name:      "Slab",
			BasePrice: basePrice,
		},
	}
	if variantID != nil {
		item.Variant = &models.CartItemVariant{ID: *variantID, Price: basePrice}
	}
	return item
}

func pendingLine(productID, variantID int64, quantity int, price int64) localstore.PendingLine {
	return localstore.PendingLine{
		ProductID:    productID,
		VariantID:    variantID,
		Quantity:     quantity,
		ProductSlug:  "slab",
		ProductName:  "Slab",
		ProductPrice: price,
	}
}

func TestMergeServerPrecedence(t *testing.T) {
	server := models.Cart{ID: 1, Items: []models.CartItem{
		serverLine(7, 42, nil, 2, 100),
	}}
	local := []localstore.PendingLine{
		pendingLine(42, 0, 5, 100),
	}

	merged := Merge(server, local)

	assert.Len(t, merged.Items, 1)
	assert.Equal(t, int64(7), merged.Items[0].ID)
	assert.Equal(t, 2, merged.Items[0].Quantity)
}

func TestMergeNoDuplicateKeys(t *testing.T) {
	vid := int64(3)
	server := models.Cart{ID: 1, Items: []models.CartItem{
		serverLine(7, 42, nil, 1, 100),
		serverLine(8, 42, &vid, 1, 150),
	}}
	local := []localstore.PendingLine{
		pendingLine(42, 0, 2, 100),
		pendingLine(42, 3, 2, 150),
		pendingLine(99, 0, 1, 200),
	}

	merged := Merge(server, local)

	seen := map[string]bool{}
	for _, it := range merged.Items {
		key := itemKey(it.ProductID, it.VariantID)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
	assert.Len(t, merged.Items, 3)
}

func TestMergeLocalLinesGetNegativeIDs(t *testing.T) {
	server := models.Cart{ID: 1}
	local := []localstore.PendingLine{
		pendingLine(42, 0, 1, 100),
		pendingLine(43, 0, 1, 100),
	}

	merged := Merge(server, local)

	assert.Len(t, merged.Items, 2)
	assert.Equal(t, int64(-1), merged.Items[0].ID)
	assert.Equal(t, int64(-2), merged.Items[1].ID)
}

func TestMergeSkipsLinesWithoutDisplayData(t *testing.T) {
	local := []localstore.PendingLine{
		{ProductID: 1, Quantity: 1, ProductPrice: 100}, // no slug/name
		pendingLine(2, 0, 1, 0),                        // no price
		pendingLine(3, 0, 1, 100),
	}

	merged := Merge(models.Cart{}, local)

	assert.Len(t, merged.Items, 1)
	assert.Equal(t, int64(3), merged.Items[0].ProductID)
}

func TestMergeVariantPriceWins(t *testing.T) {
	line := pendingLine(42, 3, 1, 100)
	line.VariantPrice = 250
	line.VariantName = "30mm"

	merged := Merge(models.Cart{}, []localstore.PendingLine{line})

	assert.Len(t, merged.Items, 1)
	item := merged.Items[0]
	assert.NotNil(t, item.Variant)
	assert.Equal(t, int64(250), item.EffectiveUnitPrice())
}

func TestCartTotalSkipsInvalidPrices(t *testing.T) {
	items := []models.CartItem{
		serverLine(1, 10, nil, 2, 100),
		serverLine(2, 11, nil, 3, 0),  // zero price: excluded from total
		serverLine(3, 12, nil, 1, -5), // negative price: excluded from total
	}

	assert.Equal(t, int64(200), CartTotal(items))
	assert.Equal(t, 6, CartItemsCount(items))
}

func TestCartTotalScenario(t *testing.T) {
	// One local line: product 42, quantity 3, price 100.
	merged := Merge(models.Cart{}, []localstore.PendingLine{pendingLine(42, 0, 3, 100)})

	assert.Equal(t, int64(300), CartTotal(merged.Items))
	assert.Equal(t, 3, CartItemsCount(merged.Items))
}

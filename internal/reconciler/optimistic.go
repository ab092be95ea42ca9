package reconciler

import "storefront-service/internal/models"

// optimisticTxn captures an immutable snapshot of the cart before a tentative
// mutation. On success the snapshot is discarded, on failure Rollback restores
// it verbatim.
type optimisticTxn struct {
	prev   models.Cart
	target *models.Cart
}

func beginOptimistic(target *models.Cart) optimisticTxn {
	return optimisticTxn{prev: copyCart(*target), target: target}
}

func (t optimisticTxn) Rollback() {
	*t.target = t.prev
}

// copyCart deep-copies a cart so rollback state cannot alias live items.
func copyCart(c models.Cart) models.Cart {
	out := c
	out.Items = make([]models.CartItem, len(c.Items))
	for i, it := range c.Items {
		out.Items[i] = copyItem(it)
	}
	return out
}

func copyItem(it models.CartItem) models.CartItem {
	out := it
	if it.VariantID != nil {
		vid := *it.VariantID
		out.VariantID = &vid
	}
	if it.Product != nil {
		p := *it.Product
		out.Product = &p
	}
	if it.Variant != nil {
		v := *it.Variant
		out.Variant = &v
	}
	return out
}

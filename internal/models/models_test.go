package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveUnitPrice(t *testing.T) {
	base := &CartItemProduct{ID: 1, Slug: "slab", Name: "Slab", BasePrice: 100}

	tests := []struct {
		name string
		item CartItem
		want int64
	}{
		{"variant price wins", CartItem{Product: base, Variant: &CartItemVariant{Price: 250}}, 250},
		{"zero variant price falls back", CartItem{Product: base, Variant: &CartItemVariant{Price: 0}}, 100},
		{"no variant uses base price", CartItem{Product: base}, 100},
		{"no product data", CartItem{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.EffectiveUnitPrice())
		})
	}
}

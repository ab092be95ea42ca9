package models

import "time"

// User is a storefront customer identified by their Telegram account
type User struct {
	ID         int64     `db:"id" json:"id"`
	TelegramID int64     `db:"telegram_id" json:"telegramId"`
	Username   string    `db:"username" json:"username,omitempty"`
	FirstName  string    `db:"first_name" json:"firstName,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Category groups products (marble slabs, granite tiles, ...)
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Product represents a catalog product. Price is in minor currency units.
type Product struct {
	ID         int64     `db:"id" json:"id"`
	CategoryID int64     `db:"category_id" json:"categoryId"`
	Slug       string    `db:"slug" json:"slug"`
	Name       string    `db:"name" json:"name"`
	BasePrice  int64     `db:"base_price" json:"basePrice"`
	ImageURL   string    `db:"image_url" json:"imageUrl,omitempty"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Variant is a sellable variation of a product (thickness, finish, batch)
type Variant struct {
	ID        int64  `db:"id" json:"id"`
	ProductID int64  `db:"product_id" json:"productId"`
	Name      string `db:"name" json:"name"`
	Price     int64  `db:"price" json:"price"`
	Stock     int    `db:"stock" json:"stock"`
	IsActive  bool   `db:"is_active" json:"isActive"`
}

// Cart is the server-authoritative cart for a user
type Cart struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"-"`
	Items     []CartItem `db:"-" json:"items"`
	CreatedAt time.Time  `db:"created_at" json:"-"`
	UpdatedAt time.Time  `db:"updated_at" json:"-"`
}

// CartItem is one server-confirmed cart line. IDs are positive for
// server-assigned lines; the sync client uses negative IDs for lines
// that only exist locally and have not been confirmed yet.
type CartItem struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"productId"`
	VariantID *int64           `json:"variantId,omitempty"`
	Quantity  int              `json:"quantity"`
	Product   *CartItemProduct `json:"product,omitempty"`
	Variant   *CartItemVariant `json:"variant,omitempty"`
}

// CartItemProduct carries denormalized product display data on a cart line
type CartItemProduct struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	BasePrice int64  `json:"basePrice"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// CartItemVariant carries denormalized variant display data on a cart line
type CartItemVariant struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Price int64  `json:"price"`
}

// AbandonedCart records a cart that went idle with items in it
type AbandonedCart struct {
	ID          int64     `db:"id" json:"id"`
	CartID      int64     `db:"cart_id" json:"cartId"`
	UserID      int64     `db:"user_id" json:"userId"`
	TotalAmount int64     `db:"total_amount" json:"totalAmount"`
	ItemCount   int       `db:"item_count" json:"itemCount"`
	Recovered   bool      `db:"recovered" json:"recovered"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// EffectiveUnitPrice resolves the price used for totals: variant price when a
// variant is selected and priced, otherwise the product base price, else zero.
func (i CartItem) EffectiveUnitPrice() int64 {
	if i.Variant != nil && i.Variant.Price > 0 {
		return i.Variant.Price
	}
	if i.Product != nil {
		return i.Product.BasePrice
	}
	return 0
}

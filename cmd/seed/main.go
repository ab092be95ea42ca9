// Command seed creates the storefront schema and loads the marble/granite
// catalog used for development and demos.
package main

import (
	"context"
	"log"

	"storefront-service/config"
	"storefront-service/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	telegram_id BIGINT NOT NULL UNIQUE,
	username    TEXT NOT NULL DEFAULT '',
	first_name  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS categories (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	category_id BIGINT NOT NULL REFERENCES categories(id),
	slug        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	base_price  BIGINT NOT NULL DEFAULT 0,
	image_url   TEXT NOT NULL DEFAULT '',
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS variants (
	id         BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id),
	name       TEXT NOT NULL,
	price      BIGINT NOT NULL DEFAULT 0,
	stock      INT NOT NULL DEFAULT 0,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS carts (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL UNIQUE REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS cart_items (
	id         BIGSERIAL PRIMARY KEY,
	cart_id    BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
	product_id BIGINT NOT NULL REFERENCES products(id),
	variant_id BIGINT REFERENCES variants(id),
	quantity   INT NOT NULL CHECK (quantity > 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS cart_items_line_key
	ON cart_items (cart_id, product_id, COALESCE(variant_id, 0));

CREATE TABLE IF NOT EXISTS abandoned_carts (
	id           BIGSERIAL PRIMARY KEY,
	cart_id      BIGINT NOT NULL UNIQUE REFERENCES carts(id) ON DELETE CASCADE,
	user_id      BIGINT NOT NULL REFERENCES users(id),
	total_amount BIGINT NOT NULL DEFAULT 0,
	item_count   INT NOT NULL DEFAULT 0,
	recovered    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type seedProduct struct {
	category  string
	slug      string
	name      string
	basePrice int64
	imageURL  string
	variants  []seedVariant
}

type seedVariant struct {
	name  string
	price int64
	stock int
}

var categories = map[string]string{
	"marble-slabs":  "Marble Slabs",
	"granite-slabs": "Granite Slabs",
	"granite-tiles": "Granite Tiles",
	"window-sills":  "Window Sills",
	"countertops":   "Countertops",
}

var products = []seedProduct{
	{
		category: "marble-slabs", slug: "carrara-white-slab", name: "Carrara White Slab",
		basePrice: 1250000, imageURL: "https://cdn.example.com/carrara-white.jpg",
		variants: []seedVariant{
			{name: "20mm polished", price: 1250000, stock: 40},
			{name: "30mm polished", price: 1680000, stock: 22},
		},
	},
	{
		category: "marble-slabs", slug: "emperador-dark-slab", name: "Emperador Dark Slab",
		basePrice: 1480000, imageURL: "https://cdn.example.com/emperador-dark.jpg",
		variants: []seedVariant{
			{name: "20mm polished", price: 1480000, stock: 15},
			{name: "20mm honed", price: 1395000, stock: 8},
		},
	},
	{
		category: "granite-slabs", slug: "absolute-black-slab", name: "Absolute Black Slab",
		basePrice: 980000, imageURL: "https://cdn.example.com/absolute-black.jpg",
		variants: []seedVariant{
			{name: "30mm flamed", price: 1120000, stock: 60},
			{name: "30mm polished", price: 980000, stock: 75},
		},
	},
	{
		category: "granite-tiles", slug: "kashina-gold-tile", name: "Kashina Gold Tile 600x300",
		basePrice: 185000, imageURL: "https://cdn.example.com/kashina-gold.jpg",
		variants: []seedVariant{
			{name: "600x300x20 polished", price: 185000, stock: 500},
			{name: "600x300x30 bush-hammered", price: 215000, stock: 320},
		},
	},
	{
		category: "window-sills", slug: "crystal-white-sill", name: "Crystal White Window Sill",
		basePrice: 420000, imageURL: "https://cdn.example.com/crystal-white-sill.jpg",
	},
	{
		category: "countertops", slug: "labrador-blue-countertop", name: "Labrador Blue Countertop",
		basePrice: 2350000, imageURL: "https://cdn.example.com/labrador-blue.jpg",
		variants: []seedVariant{
			{name: "30mm, per linear meter", price: 2350000, stock: 12},
		},
	},
}

func main() {
	cfg := config.Load()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	sqlDB := db.GetDB()

	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	log.Println("Schema ready")

	categoryIDs := make(map[string]int64)
	for slug, name := range categories {
		var id int64
		err := sqlDB.GetContext(ctx, &id, `
			INSERT INTO categories (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name, slug)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", slug, err)
		}
		categoryIDs[slug] = id
	}

	for _, p := range products {
		var productID int64
		err := sqlDB.GetContext(ctx, &productID, `
			INSERT INTO products (category_id, slug, name, base_price, image_url)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				base_price = EXCLUDED.base_price,
				image_url = EXCLUDED.image_url
			RETURNING id`,
			categoryIDs[p.category], p.slug, p.name, p.basePrice, p.imageURL)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.slug, err)
		}

		for _, v := range p.variants {
			_, err := sqlDB.ExecContext(ctx, `
				INSERT INTO variants (product_id, name, price, stock)
				SELECT $1, $2, $3, $4
				WHERE NOT EXISTS (
					SELECT 1 FROM variants WHERE product_id = $1 AND name = $2
				)`, productID, v.name, v.price, v.stock)
			if err != nil {
				log.Fatalf("Failed to seed variant %s/%s: %v", p.slug, v.name, err)
			}
		}
	}

	log.Printf("Seeded %d categories, %d products", len(categories), len(products))
}

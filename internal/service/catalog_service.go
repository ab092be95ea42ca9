package service

import (
	"context"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// CatalogService serves read-only catalog data for the storefront
type CatalogService struct {
	store    *store.Store
	redis    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, redis *redisclient.Client, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		store:    store,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListProducts returns active products, cached
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if cached, err := s.redis.GetCachedProducts(ctx); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.logger.Warn("Product cache read failed", zap.Error(err))
	}

	products, err := s.store.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.redis.CacheProducts(ctx, products, s.cacheTTL); err != nil {
		s.logger.Warn("Product cache write failed", zap.Error(err))
	}
	return products, nil
}

// ListCategories returns the catalog categories. The list is tiny and changes
// rarely, so it goes straight to the store.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListCategories")
	defer span.End()

	return s.store.GetCategories(ctx)
}

// ProductDetail is a product with its sellable variants
type ProductDetail struct {
	models.Product
	Variants []models.Variant `json:"variants"`
}

// GetProductBySlug returns one product with its variants
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*ProductDetail, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProductBySlug")
	defer span.End()

	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	variants, err := s.store.GetVariantsByProductID(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	return &ProductDetail{Product: *product, Variants: variants}, nil
}

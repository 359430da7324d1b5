package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/platform/cache"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
	"github.com/stackmesh/commerce-api/internal/store"
)

// ProductCache is the subset of the cache the product service uses.
type ProductCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// defaultCacheTTL bounds staleness of cached product reads when no TTL
// is configured. Writes invalidate eagerly; the TTL is the backstop for
// missed invalidations.
const defaultCacheTTL = 5 * time.Minute

// ProductService implements catalog management: product CRUD, stock
// adjustments, listings with price-range filtering and substring search,
// and the bulk operations.
type ProductService struct {
	db       *sql.DB
	products store.ProductStore
	cache    ProductCache
	cacheTTL time.Duration
	policy   ListingPolicy
	logger   *slog.Logger
}

// NewProductService creates a ProductService. The cache may be nil, in
// which case all reads go to the store.
func NewProductService(
	db *sql.DB,
	products store.ProductStore,
	productCache ProductCache,
	cacheTTL time.Duration,
	policy ListingPolicy,
	log *slog.Logger,
) *ProductService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &ProductService{
		db:       db,
		products: products,
		cache:    productCache,
		cacheTTL: cacheTTL,
		policy:   policy,
		logger:   log.With(slog.String("component", "product_service")),
	}
}

func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

// Create adds a new product to the catalog. The SKU is uppercased and
// checked for uniqueness.
func (s *ProductService) Create(ctx context.Context, name, description, sku string, price float64, stock int) (*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	product, err := domain.NewProduct(name, description, sku, price, stock)
	if err != nil {
		return nil, productValidationError(err)
	}

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, store.ErrSKUExists) {
			return nil, NewConflictError("SKU is already in use", err)
		}
		log.Error("failed to create product", "sku", product.SKU, "error", err)
		return nil, NewExternalError("failed to create product", err)
	}

	log.Info("product created", "product_id", product.ID, "sku", product.SKU)
	return product, nil
}

// GetByID returns a single product, read through the cache.
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if s.cache != nil {
		var cached domain.Product
		err := s.cache.Get(ctx, productCacheKey(id), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			// A broken cache must not take reads down with it.
			s.logger.Warn("product cache read failed", "product_id", id, "error", err)
		}
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("product", err)
		}
		return nil, NewExternalError("failed to get product", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, productCacheKey(id), product, s.cacheTTL); err != nil {
			s.logger.Warn("product cache write failed", "product_id", id, "error", err)
		}
	}
	return product, nil
}

// GetBySKU returns a single product by its SKU.
func (s *ProductService) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.products.GetBySKU(ctx, domain.NormalizeSKU(sku))
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("product", err)
		}
		return nil, NewExternalError("failed to get product", err)
	}
	return product, nil
}

// List returns one page of products. Price bounds are validated and
// translated into a range filter on the price column.
func (s *ProductService) List(ctx context.Context, opts ListOptions, priceMin, priceMax *float64) (store.PageResult[*domain.Product], error) {
	var zero store.PageResult[*domain.Product]

	if priceMin != nil && *priceMin < 0 {
		return zero, NewFieldError("price_min", "price_min must not be negative")
	}
	if priceMax != nil && *priceMax < 0 {
		return zero, NewFieldError("price_max", "price_max must not be negative")
	}
	if priceMin != nil && priceMax != nil && *priceMax < *priceMin {
		return zero, NewFieldError("price_max", "price_max must not be less than price_min")
	}

	if priceMin != nil || priceMax != nil {
		opts.Filters = opts.Filters.Clone()
		r := store.Range{}
		if priceMin != nil {
			r.From = *priceMin
		}
		if priceMax != nil {
			r.To = *priceMax
		}
		opts.Filters["price"] = r
	}

	q, err := buildListQuery(opts, s.policy, store.ProductSortFields, store.ProductFilterFields, store.ProductSearchFields)
	if err != nil {
		return zero, err
	}

	result, err := s.products.List(ctx, q)
	if err != nil {
		return zero, NewExternalError("failed to list products", err)
	}
	return result, nil
}

// Update applies a partial update and invalidates the cache entry.
func (s *ProductService) Update(ctx context.Context, patch store.ProductPatch) (*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if patch.Price != nil && *patch.Price <= 0 {
		return nil, NewFieldError("price", "price must be greater than zero")
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, NewFieldError("stock", "stock must not be negative")
	}

	product, err := s.products.Update(ctx, patch)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("product", err)
		}
		log.Error("failed to update product", "product_id", patch.ID, "error", err)
		return nil, NewExternalError("failed to update product", err)
	}

	s.invalidate(ctx, patch.ID)
	return product, nil
}

// AdjustStock changes a product's stock by delta. A delta that would
// drive stock negative is rejected as a business-rule violation.
func (s *ProductService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	if err := s.products.AdjustStock(ctx, id, delta); err != nil {
		if store.IsNotFoundError(err) {
			return NewNotFoundError("product", err)
		}
		if errors.Is(err, store.ErrInvalidEntity) {
			return NewBusinessRuleError("insufficient stock", err)
		}
		return NewExternalError("failed to adjust stock", err)
	}

	s.invalidate(ctx, id)
	return nil
}

// Delete soft-deletes a product by marking it inactive.
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if store.IsNotFoundError(err) {
			return NewNotFoundError("product", err)
		}
		return NewExternalError("failed to delete product", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("product deactivated", "product_id", id)
	return nil
}

// ProductInput is one entry of a bulk create request.
type ProductInput struct {
	Name        string
	Description string
	SKU         string
	Price       float64
	Stock       int
}

// CreateBatch creates multiple products atomically. All entries are
// validated first so a single bad entry fails the whole batch before any
// row is written; every invalid entry is reported, keyed by its index.
func (s *ProductService) CreateBatch(ctx context.Context, inputs []ProductInput) ([]*domain.Product, error) {
	if len(inputs) == 0 {
		return nil, NewFieldError("products", "at least one product is required")
	}

	products := make([]*domain.Product, 0, len(inputs))
	fields := make(map[string]string)
	for i, in := range inputs {
		p, err := domain.NewProduct(in.Name, in.Description, in.SKU, in.Price, in.Stock)
		if err != nil {
			fields[fmt.Sprintf("products[%d]", i)] = err.Error()
			continue
		}
		products = append(products, p)
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.products.WithTx(tx).CreateBatch(ctx, products)
	})
	if err != nil {
		if store.IsConflictError(err) {
			return nil, NewConflictError("one or more SKUs are already in use", err)
		}
		return nil, NewExternalError("failed to create products", err)
	}

	s.logger.Info("products created in batch", "count", len(products))
	return products, nil
}

// UpdateBatch applies the patches and returns the number of rows
// updated. Patches with a nil ID or for missing rows are skipped rather
// than failing the batch.
func (s *ProductService) UpdateBatch(ctx context.Context, patches []store.ProductPatch) (int, error) {
	if len(patches) == 0 {
		return 0, NewFieldError("products", "at least one patch is required")
	}

	var updated int
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		updated, err = s.products.WithTx(tx).UpdateBatch(ctx, patches)
		return err
	})
	if err != nil {
		return 0, NewExternalError("failed to update products", err)
	}

	for _, p := range patches {
		if p.ID != uuid.Nil {
			s.invalidate(ctx, p.ID)
		}
	}
	return updated, nil
}

// DeleteBatch soft-deletes the given products and returns the number of
// rows affected.
func (s *ProductService) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, NewFieldError("ids", "at least one id is required")
	}

	deleted, err := s.products.DeleteBatch(ctx, ids)
	if err != nil {
		return 0, NewExternalError("failed to delete products", err)
	}

	s.invalidate(ctx, ids...)
	return deleted, nil
}

func (s *ProductService) invalidate(ctx context.Context, ids ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productCacheKey(id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("product cache invalidation failed", "error", err)
	}
}

// productValidationError maps domain validation errors to service
// validation errors keyed by field.
func productValidationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyProductName):
		return NewFieldError("name", err.Error())
	case errors.Is(err, domain.ErrEmptySKU):
		return NewFieldError("sku", err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		return NewFieldError("price", err.Error())
	case errors.Is(err, domain.ErrInvalidStock):
		return NewFieldError("stock", err.Error())
	default:
		return NewFieldError("product", err.Error())
	}
}

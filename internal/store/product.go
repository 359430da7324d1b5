package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
)

// ProductSortFields is the allow-list of columns a product listing may sort by.
var ProductSortFields = []string{"name", "sku", "price", "stock", "created_at", "updated_at"}

// ProductFilterFields is the allow-list of columns a product listing may filter by.
var ProductFilterFields = []string{"name", "sku", "is_active", "price", "created_at"}

// ProductSearchFields are the columns a product substring search runs over.
var ProductSearchFields = []string{"name", "description", "sku"}

// ProductPatch describes a partial product update. Nil fields are left
// unchanged. Batch updates skip patches whose ID is uuid.Nil.
type ProductPatch struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Price       *float64
	Stock       *int
	IsActive    *bool
}

// ProductStore defines the interface for product data persistence.
type ProductStore interface {
	// Create saves a new product to the store.
	// Returns ErrSKUExists if the SKU is already taken.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique ID.
	// Returns ErrProductNotFound if the product does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// GetBySKU retrieves a product by its SKU.
	// Returns ErrProductNotFound if the product does not exist.
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)

	// List returns one page of products matching the query.
	// PriceMin/PriceMax range filters arrive as a Range value under the
	// "price" filter key.
	List(ctx context.Context, q ListQuery) (PageResult[*domain.Product], error)

	// Update applies the non-nil fields of the patch to an existing product.
	// Returns ErrProductNotFound if the product does not exist.
	Update(ctx context.Context, patch ProductPatch) (*domain.Product, error)

	// AdjustStock changes the product's stock level by delta (negative to
	// reserve, positive to restock). Returns ErrInvalidEntity if the
	// adjustment would drive stock below zero, and ErrProductNotFound if
	// the product does not exist.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error

	// Delete soft-deletes a product by marking it inactive.
	// Returns ErrProductNotFound if the product does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count returns the number of products matching the filters.
	Count(ctx context.Context, filters Filters) (int, error)

	// Exists reports whether a product with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// CreateBatch saves multiple products in one statement.
	// The operation is atomic when run inside a transaction.
	CreateBatch(ctx context.Context, products []*domain.Product) error

	// UpdateBatch applies each patch in turn. Patches whose ID is uuid.Nil
	// are skipped silently without affecting the other entries. Patches for
	// missing rows are also skipped; the returned count is the number of
	// rows actually updated.
	UpdateBatch(ctx context.Context, patches []ProductPatch) (int, error)

	// DeleteBatch soft-deletes all products in ids, returning the number of
	// rows affected.
	DeleteBatch(ctx context.Context, ids []uuid.UUID) (int, error)

	// WithTx returns a new ProductStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProductStore
}

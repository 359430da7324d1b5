package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
	"github.com/stackmesh/commerce-api/internal/store"
)

// ProductStore implements the store.ProductStore interface using a
// PostgreSQL database as the storage backend.
type ProductStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewProductStore creates a new PostgreSQL implementation of the
// ProductStore interface.
func NewProductStore(db store.DBTX, logger *slog.Logger) *ProductStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProductStore{
		db:     db,
		logger: logger.With(slog.String("component", "product_store")),
	}
}

// Ensure ProductStore implements store.ProductStore interface
var _ store.ProductStore = (*ProductStore)(nil)

const productColumns = "id, name, description, sku, price, stock, is_active, created_at, updated_at"

// Create implements store.ProductStore.Create
func (s *ProductStore) Create(ctx context.Context, product *domain.Product) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := product.Validate(); err != nil {
		log.Warn("product validation failed during create",
			slog.String("error", err.Error()),
			slog.String("product_id", product.ID.String()))
		return err
	}

	query := `
		INSERT INTO products (id, name, description, sku, price, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.SKU,
		product.Price,
		product.Stock,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		mapped := mapError(err, "product", "create")
		if errors.Is(mapped, store.ErrConflict) {
			log.Debug("duplicate SKU during product creation",
				slog.String("sku", product.SKU))
			return store.ErrSKUExists
		}
		log.Error("failed to create product",
			slog.String("error", err.Error()),
			slog.String("product_id", product.ID.String()))
		return mapped
	}

	log.Info("product created",
		slog.String("product_id", product.ID.String()),
		slog.String("sku", product.SKU))
	return nil
}

// GetByID implements store.ProductStore.GetByID
func (s *ProductStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1"
	return s.scanProduct(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetBySKU implements store.ProductStore.GetBySKU
func (s *ProductStore) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE sku = $1"
	return s.scanProduct(ctx, s.db.QueryRowContext(ctx, query, sku))
}

func (s *ProductStore) scanProduct(ctx context.Context, row *sql.Row) (*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var product domain.Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.SKU,
		&product.Price,
		&product.Stock,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		log.Error("failed to scan product row", slog.String("error", err.Error()))
		return nil, mapError(err, "product", "get")
	}
	return &product, nil
}

// List implements store.ProductStore.List
func (s *ProductStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.Product], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var empty store.PageResult[*domain.Product]

	b := &queryBuilder{}
	b.applyFilters(q.Filters, store.ProductFilterFields)
	b.applySearch(q.Search, q.SearchFields)
	where := b.whereClause()

	var total int
	countQuery := "SELECT COUNT(*) FROM products" + where
	if err := s.db.QueryRowContext(ctx, countQuery, b.args...).Scan(&total); err != nil {
		log.Error("failed to count products", slog.String("error", err.Error()))
		return empty, mapError(err, "product", "count")
	}

	listQuery := "SELECT " + productColumns + " FROM products" + where +
		orderClause(q.SortBy, q.SortDesc, store.ProductSortFields, "created_at") +
		b.limitOffset(q.Page)

	rows, err := s.db.QueryContext(ctx, listQuery, b.args...)
	if err != nil {
		log.Error("failed to list products", slog.String("error", err.Error()))
		return empty, mapError(err, "product", "list")
	}
	defer closeRows(rows, log)

	var products []*domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.SKU,
			&product.Price,
			&product.Stock,
			&product.IsActive,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			log.Error("failed to scan product row", slog.String("error", err.Error()))
			return empty, mapError(err, "product", "list")
		}
		products = append(products, &product)
	}
	if err := rows.Err(); err != nil {
		return empty, mapError(err, "product", "list")
	}

	return store.NewPageResult(products, total, q.Page), nil
}

// Update implements store.ProductStore.Update
// Only the non-nil fields of the patch are written.
func (s *ProductStore) Update(ctx context.Context, patch store.ProductPatch) (*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sets, args := patchAssignments(patch)
	if len(sets) == 1 {
		// Only updated_at would change; nothing to do beyond fetching.
		return s.GetByID(ctx, patch.ID)
	}

	args = append(args, patch.ID)
	query := fmt.Sprintf(
		"UPDATE products SET %s WHERE id = $%d RETURNING "+productColumns,
		strings.Join(sets, ", "),
		len(args),
	)

	product, err := s.scanProduct(ctx, s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, store.ErrProductNotFound
		}
		log.Error("failed to update product",
			slog.String("error", err.Error()),
			slog.String("product_id", patch.ID.String()))
		return nil, err
	}

	log.Info("product updated", slog.String("product_id", product.ID.String()))
	return product, nil
}

// patchAssignments renders the SET clauses for the non-nil patch fields.
// updated_at is always included.
func patchAssignments(patch store.ProductPatch) ([]string, []any) {
	var sets []string
	var args []any

	bind := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		bind("name", *patch.Name)
	}
	if patch.Description != nil {
		bind("description", *patch.Description)
	}
	if patch.Price != nil {
		bind("price", *patch.Price)
	}
	if patch.Stock != nil {
		bind("stock", *patch.Stock)
	}
	if patch.IsActive != nil {
		bind("is_active", *patch.IsActive)
	}
	bind("updated_at", time.Now().UTC())

	return sets, args
}

// AdjustStock implements store.ProductStore.AdjustStock
// The stock check and write happen in one statement so concurrent orders
// cannot oversell; the row's CHECK constraint is the final guard.
func (s *ProductStore) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE products
		SET stock = stock + $1, updated_at = $2
		WHERE id = $3 AND stock + $1 >= 0
	`
	result, err := s.db.ExecContext(ctx, query, delta, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to adjust stock",
			slog.String("error", err.Error()),
			slog.String("product_id", id.String()),
			slog.Int("delta", delta))
		return mapError(err, "product", "adjust_stock")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "product", "adjust_stock")
	}
	if rowsAffected == 0 {
		// Either the product is missing or the adjustment would go negative;
		// distinguish the two for the caller.
		exists, existsErr := s.Exists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return store.ErrProductNotFound
		}
		return fmt.Errorf("%w: insufficient stock for product %s", store.ErrInvalidEntity, id)
	}

	log.Debug("stock adjusted",
		slog.String("product_id", id.String()),
		slog.Int("delta", delta))
	return nil
}

// Delete implements store.ProductStore.Delete
// Products are soft-deleted: order items keep referencing them.
func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND is_active = TRUE"
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to delete product",
			slog.String("error", err.Error()),
			slog.String("product_id", id.String()))
		return mapError(err, "product", "delete")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "product", "delete")
	}
	if rowsAffected == 0 {
		return store.ErrProductNotFound
	}

	log.Info("product deactivated", slog.String("product_id", id.String()))
	return nil
}

// Count implements store.ProductStore.Count
func (s *ProductStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	b := &queryBuilder{}
	b.applyFilters(filters, store.ProductFilterFields)

	var total int
	query := "SELECT COUNT(*) FROM products" + b.whereClause()
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&total); err != nil {
		return 0, mapError(err, "product", "count")
	}
	return total, nil
}

// Exists implements store.ProductStore.Exists
func (s *ProductStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)"
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, mapError(err, "product", "exists")
	}
	return exists, nil
}

// CreateBatch implements store.ProductStore.CreateBatch
func (s *ProductStore) CreateBatch(ctx context.Context, products []*domain.Product) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(products) == 0 {
		return nil
	}

	for _, product := range products {
		if err := product.Validate(); err != nil {
			return err
		}
	}

	var args []any
	var rowsSQL []string
	for _, p := range products {
		base := len(args)
		args = append(args, p.ID, p.Name, p.Description, p.SKU, p.Price, p.Stock, p.IsActive, p.CreatedAt, p.UpdatedAt)
		rowsSQL = append(rowsSQL, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
	}

	query := `
		INSERT INTO products (id, name, description, sku, price, stock, is_active, created_at, updated_at)
		VALUES ` + strings.Join(rowsSQL, ", ")

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		mapped := mapError(err, "product", "create_batch")
		if errors.Is(mapped, store.ErrConflict) {
			return store.ErrSKUExists
		}
		log.Error("failed to create product batch",
			slog.String("error", err.Error()),
			slog.Int("count", len(products)))
		return mapped
	}

	log.Info("product batch created", slog.Int("count", len(products)))
	return nil
}

// UpdateBatch implements store.ProductStore.UpdateBatch
// Patches whose ID is uuid.Nil are skipped silently; patches targeting
// missing rows are skipped too. Returns the number of rows updated.
func (s *ProductStore) UpdateBatch(ctx context.Context, patches []store.ProductPatch) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	updated := 0
	skipped := 0
	for _, patch := range patches {
		if patch.ID == uuid.Nil {
			skipped++
			continue
		}
		if _, err := s.Update(ctx, patch); err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				skipped++
				continue
			}
			return updated, err
		}
		updated++
	}

	log.Info("product batch updated",
		slog.Int("updated", updated),
		slog.Int("skipped", skipped))
	return updated, nil
}

// DeleteBatch implements store.ProductStore.DeleteBatch
func (s *ProductStore) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(ids) == 0 {
		return 0, nil
	}

	var args []any
	placeholders := make([]string, 0, len(ids))
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := "UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id IN (" +
		strings.Join(placeholders, ", ") + ") AND is_active = TRUE"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete product batch",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return 0, mapError(err, "product", "delete_batch")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, mapError(err, "product", "delete_batch")
	}

	log.Info("product batch deactivated", slog.Int64("count", rowsAffected))
	return int(rowsAffected), nil
}

// WithTx implements store.ProductStore.WithTx
func (s *ProductStore) WithTx(tx *sql.Tx) store.ProductStore {
	return &ProductStore{
		db:     tx,
		logger: s.logger,
	}
}

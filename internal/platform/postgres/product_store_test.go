package postgres

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/store"
)

func newProductStoreTest(t *testing.T) (*ProductStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewProductStore(db, slog.Default()), mock
}

func productRows(products ...*domain.Product) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "sku", "price", "stock", "is_active", "created_at", "updated_at",
	})
	for _, p := range products {
		rows.AddRow(p.ID, p.Name, p.Description, p.SKU, p.Price, p.Stock, p.IsActive, p.CreatedAt, p.UpdatedAt)
	}
	return rows
}

func testProduct(t *testing.T) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct("Widget", "A widget", "wid-001", 9.99, 10)
	require.NoError(t, err)
	return p
}

func TestProductStoreCreate(t *testing.T) {
	s, mock := newProductStoreTest(t)
	p := testProduct(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs(p.ID, p.Name, p.Description, p.SKU, p.Price, p.Stock, p.IsActive, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductStoreCreateDuplicateSKU(t *testing.T) {
	s, mock := newProductStoreTest(t)
	p := testProduct(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_products_sku"})

	err := s.Create(context.Background(), p)
	assert.ErrorIs(t, err, store.ErrSKUExists)
	assert.True(t, store.IsConflictError(err))
}

func TestProductStoreGetByIDNotFound(t *testing.T) {
	s, mock := newProductStoreTest(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, sku, price, stock, is_active, created_at, updated_at FROM products WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(productRows())

	_, err := s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestProductStoreListWithPriceRange(t *testing.T) {
	s, mock := newProductStoreTest(t)
	p := testProduct(t)

	q := store.ListQuery{
		Filters: store.Filters{"price": store.Range{From: 5.0, To: 20.0}},
		Page:    store.PageRequest{Page: 1, Size: 20},
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products WHERE price >= $1 AND price <= $2")).
		WithArgs(5.0, 20.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE price >= $1 AND price <= $2 ORDER BY created_at ASC LIMIT $3 OFFSET $4")).
		WithArgs(5.0, 20.0, 20, 0).
		WillReturnRows(productRows(p))

	result, err := s.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Pages)
	require.Len(t, result.Items, 1)
	assert.Equal(t, p.SKU, result.Items[0].SKU)
}

func TestProductStoreListCountExceedsPage(t *testing.T) {
	s, mock := newProductStoreTest(t)

	q := store.ListQuery{Page: store.PageRequest{Page: 1, Size: 10}}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(35))

	mock.ExpectQuery(regexp.QuoteMeta("FROM products ORDER BY created_at ASC LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(productRows(testProduct(t)))

	result, err := s.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 35, result.Total)
	assert.Equal(t, 4, result.Pages)
}

func TestProductStoreUpdateNotFound(t *testing.T) {
	s, mock := newProductStoreTest(t)
	name := "Renamed"
	patch := store.ProductPatch{ID: uuid.New(), Name: &name}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET name = $1, updated_at = $2 WHERE id = $3 RETURNING")).
		WillReturnRows(productRows())

	_, err := s.Update(context.Background(), patch)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestProductStoreAdjustStockInsufficient(t *testing.T) {
	s, mock := newProductStoreTest(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(-5, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.AdjustStock(context.Background(), id, -5)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestProductStoreAdjustStockMissingProduct(t *testing.T) {
	s, mock := newProductStoreTest(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.AdjustStock(context.Background(), id, -1)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestProductStoreDeleteNotFound(t *testing.T) {
	s, mock := newProductStoreTest(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestProductStoreUpdateBatchSkipsNilIDs(t *testing.T) {
	s, mock := newProductStoreTest(t)
	name := "Renamed"
	existing := testProduct(t)
	existing.Name = name

	patches := []store.ProductPatch{
		{ID: uuid.Nil, Name: &name},
		{ID: existing.ID, Name: &name},
	}

	// Only the patch with a real ID reaches the database.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET name = $1, updated_at = $2 WHERE id = $3 RETURNING")).
		WithArgs(name, sqlmock.AnyArg(), existing.ID).
		WillReturnRows(productRows(existing))

	updated, err := s.UpdateBatch(context.Background(), patches)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductStoreDeleteBatch(t *testing.T) {
	s, mock := newProductStoreTest(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id IN ($2, $3)")).
		WithArgs(sqlmock.AnyArg(), ids[0], ids[1]).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := s.DeleteBatch(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestProductStoreQueryTimeout(t *testing.T) {
	s, mock := newProductStoreTest(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name")).
		WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: "57014"})

	_, err := s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrTimeout)
	assert.True(t, store.IsTransientError(err))
}

func TestProductStoreCreatedAtRangeFilter(t *testing.T) {
	s, mock := newProductStoreTest(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products WHERE created_at >= $1")).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	total, err := s.Count(context.Background(), store.Filters{"created_at": store.Range{From: from}})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

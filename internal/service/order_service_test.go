package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/task"
)

type orderServiceFixture struct {
	svc        *OrderService
	orders     *fakeOrderStore
	products   *fakeProductStore
	users      *fakeUserStore
	dispatcher *fakeDispatcher
	mock       sqlmock.Sqlmock
	user       *domain.User
}

func newOrderServiceTest(t *testing.T) *orderServiceFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orders := newFakeOrderStore()
	products := newFakeProductStore()
	users := newFakeUserStore()
	dispatcher := &fakeDispatcher{}

	user, err := domain.NewUser("buyer@example.com", "Password1", "Buyer One")
	require.NoError(t, err)
	user.HashedPassword = "hashed:Password1"
	user.Password = ""
	require.NoError(t, users.Create(context.Background(), user))

	svc := NewOrderService(db, orders, products, users, dispatcher,
		ListingPolicy{MaxPageSize: 100}, slog.Default())
	return &orderServiceFixture{
		svc: svc, orders: orders, products: products, users: users,
		dispatcher: dispatcher, mock: mock, user: user,
	}
}

func (f *orderServiceFixture) addProduct(t *testing.T, name, sku string, price float64, stock int) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(name, "", sku, price, stock)
	require.NoError(t, err)
	f.products.add(p)
	return p
}

func TestOrderServiceCreate(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	gadget := f.addProduct(t, "Gadget", "GAD-001", 24.50, 3)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	order, err := f.svc.Create(context.Background(), f.user.ID, []OrderItemInput{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: gadget.ID, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.InDelta(t, 2*9.99+24.50, order.TotalAmount, 0.001)
	require.Len(t, order.Items, 2)
	// Unit prices are captured at order time.
	assert.Equal(t, 9.99, order.Items[0].UnitPrice)

	// Stock was reserved.
	stored, err := f.products.GetByID(context.Background(), widget.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.Stock)

	// Confirmation and invoice tasks are persisted and enqueued.
	require.Len(t, f.dispatcher.submitted, 2)
	assert.Equal(t, task.TypeOrderConfirmation, f.dispatcher.submitted[0].Name)
	assert.Equal(t, task.TypeOrderInvoice, f.dispatcher.submitted[1].Name)
	assert.Equal(t, 2, f.dispatcher.enqueued)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderServiceCreateInsufficientStock(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 1)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), f.user.ID, []OrderItemInput{
		{ProductID: widget.ID, Quantity: 5},
	})

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBusinessRule, svcErr.Code)
	assert.Contains(t, svcErr.Message, "WID-001")

	// Nothing was persisted or enqueued.
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.dispatcher.submitted)
	stored, _ := f.products.GetByID(context.Background(), widget.ID)
	assert.Equal(t, 1, stored.Stock)
}

func TestOrderServiceCreateInactiveProduct(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	f.products.products[widget.ID].IsActive = false

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), f.user.ID, []OrderItemInput{
		{ProductID: widget.ID, Quantity: 1},
	})

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, svcErr.Code)
	assert.Contains(t, svcErr.Fields, "items[0].product_id")
}

func TestOrderServiceCreateUnknownProduct(t *testing.T) {
	f := newOrderServiceTest(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), f.user.ID, []OrderItemInput{
		{ProductID: uuid.New(), Quantity: 1},
	})

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, svcErr.Code)
	assert.Equal(t, "product not found", svcErr.Fields["items[0].product_id"])
}

func TestOrderServiceCreateValidatesItems(t *testing.T) {
	f := newOrderServiceTest(t)

	_, err := f.svc.Create(context.Background(), f.user.ID, nil)
	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Contains(t, svcErr.Fields, "items")

	_, err = f.svc.Create(context.Background(), f.user.ID, []OrderItemInput{
		{ProductID: uuid.Nil, Quantity: 0},
	})
	svcErr, ok = AsServiceError(err)
	require.True(t, ok)
	assert.Contains(t, svcErr.Fields, "items[0].product_id")
	assert.Contains(t, svcErr.Fields, "items[0].quantity")
}

func TestOrderServiceCreateUnknownUser(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)

	_, err := f.svc.Create(context.Background(), uuid.New(), []OrderItemInput{
		{ProductID: widget.ID, Quantity: 1},
	})

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, svcErr.Code)
}

func placeOrder(t *testing.T, f *orderServiceFixture, items []OrderItemInput) *domain.Order {
	t.Helper()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	order, err := f.svc.Create(context.Background(), f.user.ID, items)
	require.NoError(t, err)
	return order
}

func TestOrderServiceUpdateStatusHappyPath(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 1}})

	updated, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, domain.OrderStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, updated.Status)

	stored, err := f.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
}

func TestOrderServiceUpdateStatusInvalidTransition(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 1}})

	// pending cannot jump straight to delivered
	_, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, domain.OrderStatusDelivered)

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBusinessRule, svcErr.Code)
}

func TestOrderServiceCancelRestoresStock(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 4}})

	stored, _ := f.products.GetByID(context.Background(), widget.ID)
	require.Equal(t, 6, stored.Stock)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	cancelled, err := f.svc.Cancel(context.Background(), order.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	stored, _ = f.products.GetByID(context.Background(), widget.ID)
	assert.Equal(t, 10, stored.Stock)
}

func TestOrderServiceCancelShippedLeavesStockUntouched(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 4}})

	require.NoError(t, f.orders.UpdateStatus(context.Background(), order.ID, domain.OrderStatusShipped))

	_, err := f.svc.Cancel(context.Background(), order.ID, f.user.ID)

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBusinessRule, svcErr.Code)
	assert.Contains(t, svcErr.Message, "cannot be cancelled")

	// No restock happened and the order stays shipped.
	stored, _ := f.products.GetByID(context.Background(), widget.ID)
	assert.Equal(t, 6, stored.Stock)
	got, _ := f.orders.GetByID(context.Background(), order.ID)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
}

func TestOrderServiceUpdateStatusCancelledRoutesToCancel(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 2}})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	cancelled, err := f.svc.UpdateStatus(context.Background(), order.ID, f.user.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	stored, _ := f.products.GetByID(context.Background(), widget.ID)
	assert.Equal(t, 10, stored.Stock)
}

func TestOrderServiceListForUserScopesFilter(t *testing.T) {
	f := newOrderServiceTest(t)

	_, err := f.svc.ListForUser(context.Background(), f.user.ID, ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, f.user.ID, f.orders.lastQuery.Filters["user_id"])
}

func TestOrderServiceGetByIDNotFound(t *testing.T) {
	f := newOrderServiceTest(t)

	_, err := f.svc.GetByID(context.Background(), uuid.New(), f.user.ID)

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, svcErr.Code)
}

func TestOrderServiceGetByIDForbiddenForOtherUser(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 1}})

	_, err := f.svc.GetByID(context.Background(), order.ID, uuid.New())

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, svcErr.Code)
}

func TestOrderServiceCancelForbiddenForOtherUser(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 4}})

	_, err := f.svc.Cancel(context.Background(), order.ID, uuid.New())

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, svcErr.Code)

	// The order and its reserved stock are untouched.
	got, _ := f.orders.GetByID(context.Background(), order.ID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	stored, _ := f.products.GetByID(context.Background(), widget.ID)
	assert.Equal(t, 6, stored.Stock)
}

func TestOrderServiceUpdateStatusForbiddenForOtherUser(t *testing.T) {
	f := newOrderServiceTest(t)
	widget := f.addProduct(t, "Widget", "WID-001", 9.99, 10)
	order := placeOrder(t, f, []OrderItemInput{{ProductID: widget.ID, Quantity: 1}})

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, uuid.New(), domain.OrderStatusPaid)

	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, svcErr.Code)
	got, _ := f.orders.GetByID(context.Background(), order.ID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

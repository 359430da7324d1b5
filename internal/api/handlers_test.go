package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/service/auth"
	"github.com/stackmesh/commerce-api/internal/store"
	"github.com/stackmesh/commerce-api/internal/task"
)

// Minimal in-memory stores for wiring real services under httptest.

type memUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (m *memUserStore) Create(ctx context.Context, user *domain.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *memUserStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.User], error) {
	var items []*domain.User
	for _, u := range m.users {
		items = append(items, u)
	}
	return store.NewPageResult(items, len(items), q.Page), nil
}

func (m *memUserStore) Update(ctx context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return store.ErrUserNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return store.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUserStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	return len(m.users), nil
}

func (m *memUserStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.users[id]
	return ok, nil
}

func (m *memUserStore) WithTx(tx *sql.Tx) store.UserStore { return m }

type memProductStore struct {
	products  map[uuid.UUID]*domain.Product
	lastQuery store.ListQuery
}

func newMemProductStore() *memProductStore {
	return &memProductStore{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *memProductStore) Create(ctx context.Context, product *domain.Product) error {
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *memProductStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memProductStore) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			copied := *p
			return &copied, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func (m *memProductStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.Product], error) {
	m.lastQuery = q
	var items []*domain.Product
	for _, p := range m.products {
		items = append(items, p)
	}
	return store.NewPageResult(items, len(items), q.Page), nil
}

func (m *memProductStore) Update(ctx context.Context, patch store.ProductPatch) (*domain.Product, error) {
	p, ok := m.products[patch.ID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memProductStore) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	p, ok := m.products[id]
	if !ok {
		return store.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return store.ErrInvalidEntity
	}
	p.Stock += delta
	return nil
}

func (m *memProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	p, ok := m.products[id]
	if !ok {
		return store.ErrProductNotFound
	}
	p.IsActive = false
	return nil
}

func (m *memProductStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	return len(m.products), nil
}

func (m *memProductStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.products[id]
	return ok, nil
}

func (m *memProductStore) CreateBatch(ctx context.Context, products []*domain.Product) error {
	for _, p := range products {
		if err := m.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *memProductStore) UpdateBatch(ctx context.Context, patches []store.ProductPatch) (int, error) {
	return len(patches), nil
}

func (m *memProductStore) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	return len(ids), nil
}

func (m *memProductStore) WithTx(tx *sql.Tx) store.ProductStore { return m }

type memOrderStore struct {
	orders map[uuid.UUID]*domain.Order
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *memOrderStore) Create(ctx context.Context, order *domain.Order) error {
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *memOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memOrderStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.Order], error) {
	var items []*domain.Order
	for _, o := range m.orders {
		items = append(items, o)
	}
	return store.NewPageResult(items, len(items), q.Page), nil
}

func (m *memOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return store.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *memOrderStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	return len(m.orders), nil
}

func (m *memOrderStore) WithTx(tx *sql.Tx) store.OrderStore { return m }

// memTaskStore backs the dispatcher for task status endpoint tests.
type memTaskStore struct {
	records map[uuid.UUID]*task.Record
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{records: make(map[uuid.UUID]*task.Record)}
}

func (m *memTaskStore) Save(ctx context.Context, t task.Task) error {
	m.records[t.ID()] = &task.Record{
		ID:        t.ID(),
		Type:      t.Type(),
		Payload:   t.Payload(),
		Status:    t.Status(),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memTaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *memTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status task.Status, errorMsg string) error {
	rec, ok := m.records[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	rec.Status = status
	rec.ErrorMessage = errorMsg
	return nil
}

func (m *memTaskStore) SetResult(ctx context.Context, id uuid.UUID, result []byte) error {
	rec, ok := m.records[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	rec.Result = result
	return nil
}

func (m *memTaskStore) GetPending(ctx context.Context) ([]*task.Record, error) {
	return nil, nil
}

func (m *memTaskStore) GetProcessing(ctx context.Context, olderThan time.Duration) ([]*task.Record, error) {
	return nil, nil
}

func (m *memTaskStore) WithTx(tx *sql.Tx) task.Store { return m }

// noopTaskDispatcher satisfies service.TaskDispatcher without a runner.
type noopTaskDispatcher struct{}

func (noopTaskDispatcher) Submit(ctx context.Context, name string, payload any) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (noopTaskDispatcher) SubmitTx(ctx context.Context, tx *sql.Tx, name string, payload any) (uuid.UUID, func(), error) {
	return uuid.New(), func() {}, nil
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) shared.Response {
	t.Helper()
	var resp shared.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func newAuthHandlerTest(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	jwtService, err := auth.NewJWTService(auth.Config{
		Secret:               "0123456789abcdef0123456789abcdef",
		TokenLifetime:        time.Minute,
		RefreshTokenLifetime: time.Hour,
	})
	require.NoError(t, err)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	users := service.NewUserService(db, newMemUserStore(), hasher, hasher, jwtService,
		noopTaskDispatcher{}, service.ListingPolicy{}, slog.Default())
	return NewAuthHandler(users, slog.Default()), mock
}

func TestRegisterEndpoint(t *testing.T) {
	h, mock := newAuthHandlerTest(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	body := `{"email": "New.User@Example.com", "password": "Password1", "full_name": "New User"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewBufferString(body))
	h.Register(w, r)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new.user@example.com", data["email"])
	assert.Equal(t, "New User", data["full_name"])
	assert.NotContains(t, data, "password")
}

func TestRegisterEndpointValidation(t *testing.T) {
	h, _ := newAuthHandlerTest(t)

	body := `{"email": "not-an-email", "password": "Password1", "full_name": "New User"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewBufferString(body))
	h.Register(w, r)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, service.CodeValidation, resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "email")
}

func TestLoginEndpoint(t *testing.T) {
	h, mock := newAuthHandlerTest(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	register := httptest.NewRequest("POST", "/api/v1/auth/register",
		bytes.NewBufferString(`{"email": "buyer@example.com", "password": "Password1", "full_name": "Buyer"}`))
	w := httptest.NewRecorder()
	h.Register(w, register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	login := httptest.NewRequest("POST", "/api/v1/auth/login",
		bytes.NewBufferString(`{"email": "buyer@example.com", "password": "Password1"}`))
	h.Login(w, login)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
	assert.Equal(t, "Bearer", data["token_type"])
}

func newProductHandlerTest(t *testing.T) (*ProductHandler, *memProductStore) {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	products := newMemProductStore()
	svc := service.NewProductService(db, products, nil, 0, service.ListingPolicy{}, slog.Default())
	return NewProductHandler(svc, slog.Default()), products
}

func TestProductListEndpointPriceRange(t *testing.T) {
	h, products := newProductHandlerTest(t)
	for _, name := range []string{"Widget", "Gadget"} {
		p, err := domain.NewProduct(name, "", name+"-001", 9.99, 5)
		require.NoError(t, err)
		products.products[p.ID] = p
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/products?price_min=5&price_max=20", nil)
	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Pages)
	assert.Contains(t, products.lastQuery.Filters, "price")
}

func TestProductListEndpointRejectsBadPriceBound(t *testing.T) {
	h, _ := newProductHandlerTest(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/products?price_min=cheap", nil)
	h.List(w, r)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "price_min")
}

func newOrderHandlerTest(t *testing.T) (*chi.Mux, *memOrderStore) {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orders := newMemOrderStore()
	svc := service.NewOrderService(db, orders, newMemProductStore(), newMemUserStore(),
		noopTaskDispatcher{}, service.ListingPolicy{}, slog.Default())
	h := NewOrderHandler(svc, slog.Default())

	router := chi.NewRouter()
	router.Post("/orders/{id}/cancel", h.Cancel)
	router.Get("/orders/{id}", h.Get)
	return router, orders
}

func TestCancelShippedOrderEndpoint(t *testing.T) {
	router, orders := newOrderHandlerTest(t)

	order, err := domain.NewOrder(uuid.New(), []domain.OrderItem{
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: 9.99},
	})
	require.NoError(t, err)
	order.Status = domain.OrderStatusShipped
	require.NoError(t, orders.Create(context.Background(), order))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/orders/"+order.ID.String()+"/cancel", nil)
	r = r.WithContext(shared.WithUserID(r.Context(), order.UserID))
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, service.CodeBusinessRule, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "cannot be cancelled")

	stored, err := orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, stored.Status)
}

func TestOrderGetEndpointNotFound(t *testing.T) {
	router, _ := newOrderHandlerTest(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/orders/"+uuid.New().String(), nil)
	r = r.WithContext(shared.WithUserID(r.Context(), uuid.New()))
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderGetEndpointForbiddenForOtherUser(t *testing.T) {
	router, orders := newOrderHandlerTest(t)

	order, err := domain.NewOrder(uuid.New(), []domain.OrderItem{
		{ProductID: uuid.New(), Quantity: 1, UnitPrice: 9.99},
	})
	require.NoError(t, err)
	require.NoError(t, orders.Create(context.Background(), order))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/orders/"+order.ID.String(), nil)
	r = r.WithContext(shared.WithUserID(r.Context(), uuid.New()))
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, service.CodeForbidden, resp.Error.Code)
}

func newTaskHandlerTest(t *testing.T) (*chi.Mux, *memTaskStore) {
	t.Helper()

	tasks := newMemTaskStore()
	runner := task.NewRunner(tasks, nil, task.RunnerConfig{WorkerCount: 1, QueueSize: 1}, slog.Default())
	dispatcher := task.NewDispatcher(tasks, runner, slog.Default())
	h := NewTaskHandler(dispatcher, slog.Default())

	router := chi.NewRouter()
	router.Get("/tasks/{id}", h.Status)
	router.Post("/tasks/{id}/revoke", h.Revoke)
	return router, tasks
}

func TestTaskStatusEndpoint(t *testing.T) {
	router, tasks := newTaskHandlerTest(t)

	id := uuid.New()
	tasks.records[id] = &task.Record{ID: id, Type: "user_welcome_email", Status: task.StatusPending}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/tasks/"+id.String(), nil)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pending", data["status"])
}

func TestTaskStatusEndpointNotFound(t *testing.T) {
	router, _ := newTaskHandlerTest(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/tasks/"+uuid.New().String(), nil)
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, service.CodeNotFound, resp.Error.Code)
}

func TestTaskRevokeEndpoint(t *testing.T) {
	router, tasks := newTaskHandlerTest(t)

	id := uuid.New()
	tasks.records[id] = &task.Record{ID: id, Type: "user_welcome_email", Status: task.StatusPending}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/tasks/"+id.String()+"/revoke", nil)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, task.StatusRevoked, tasks.records[id].Status)
}

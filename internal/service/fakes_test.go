package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/store"
)

// fakeUserStore is an in-memory store.UserStore for service tests.
type fakeUserStore struct {
	users      map[uuid.UUID]*domain.User
	lastQuery  store.ListQuery
	createErr  error
	getErr     error
	listCalled bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeUserStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.User], error) {
	f.listCalled = true
	f.lastQuery = q
	var items []*domain.User
	for _, u := range f.users {
		items = append(items, u)
	}
	return store.NewPageResult(items, len(items), q.Page), nil
}

func (f *fakeUserStore) Update(ctx context.Context, user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return store.ErrUserNotFound
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	return len(f.users), nil
}

func (f *fakeUserStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUserStore) WithTx(tx *sql.Tx) store.UserStore { return f }

// fakeProductStore is an in-memory store.ProductStore for service tests.
type fakeProductStore struct {
	products  map[uuid.UUID]*domain.Product
	lastQuery store.ListQuery
	adjustErr error
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{products: make(map[uuid.UUID]*domain.Product)}
}

func (f *fakeProductStore) add(p *domain.Product) {
	copied := *p
	f.products[p.ID] = &copied
}

func (f *fakeProductStore) Create(ctx context.Context, product *domain.Product) error {
	for _, p := range f.products {
		if p.SKU == product.SKU {
			return store.ErrSKUExists
		}
	}
	f.add(product)
	return nil
}

func (f *fakeProductStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductStore) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.SKU == sku {
			copied := *p
			return &copied, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func (f *fakeProductStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.Product], error) {
	f.lastQuery = q
	var items []*domain.Product
	for _, p := range f.products {
		items = append(items, p)
	}
	return store.NewPageResult(items, len(items), q.Page), nil
}

func (f *fakeProductStore) Update(ctx context.Context, patch store.ProductPatch) (*domain.Product, error) {
	p, ok := f.products[patch.ID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductStore) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	if f.adjustErr != nil {
		return f.adjustErr
	}
	p, ok := f.products[id]
	if !ok {
		return store.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return store.ErrInvalidEntity
	}
	p.Stock += delta
	return nil
}

func (f *fakeProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	p, ok := f.products[id]
	if !ok {
		return store.ErrProductNotFound
	}
	p.IsActive = false
	return nil
}

func (f *fakeProductStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	return len(f.products), nil
}

func (f *fakeProductStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.products[id]
	return ok, nil
}

func (f *fakeProductStore) CreateBatch(ctx context.Context, products []*domain.Product) error {
	for _, p := range products {
		if err := f.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeProductStore) UpdateBatch(ctx context.Context, patches []store.ProductPatch) (int, error) {
	updated := 0
	for _, patch := range patches {
		if patch.ID == uuid.Nil {
			continue
		}
		if _, err := f.Update(ctx, patch); err != nil {
			continue
		}
		updated++
	}
	return updated, nil
}

func (f *fakeProductStore) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	deleted := 0
	for _, id := range ids {
		if f.Delete(ctx, id) == nil {
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeProductStore) WithTx(tx *sql.Tx) store.ProductStore { return f }

// fakeOrderStore is an in-memory store.OrderStore for service tests.
type fakeOrderStore struct {
	orders    map[uuid.UUID]*domain.Order
	lastQuery store.ListQuery
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*domain.Order)}
}

func (f *fakeOrderStore) add(o *domain.Order) {
	copied := *o
	copied.Items = append([]domain.OrderItem(nil), o.Items...)
	f.orders[o.ID] = &copied
}

func (f *fakeOrderStore) Create(ctx context.Context, order *domain.Order) error {
	f.add(order)
	return nil
}

func (f *fakeOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	copied := *o
	copied.Items = append([]domain.OrderItem(nil), o.Items...)
	return &copied, nil
}

func (f *fakeOrderStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.Order], error) {
	f.lastQuery = q
	var items []*domain.Order
	for _, o := range f.orders {
		items = append(items, o)
	}
	return store.NewPageResult(items, len(items), q.Page), nil
}

func (f *fakeOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return store.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrderStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	return len(f.orders), nil
}

func (f *fakeOrderStore) WithTx(tx *sql.Tx) store.OrderStore { return f }

// fakeDispatcher records submitted tasks without executing them.
type fakeDispatcher struct {
	submitted []submittedTask
	enqueued  int
}

type submittedTask struct {
	Name    string
	Payload []byte
}

func (f *fakeDispatcher) Submit(ctx context.Context, name string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	f.submitted = append(f.submitted, submittedTask{Name: name, Payload: data})
	return uuid.New(), nil
}

func (f *fakeDispatcher) SubmitTx(ctx context.Context, tx *sql.Tx, name string, payload any) (uuid.UUID, func(), error) {
	id, err := f.Submit(ctx, name, payload)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, func() { f.enqueued++ }, nil
}

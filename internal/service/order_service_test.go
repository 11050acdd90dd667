package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/metrics"
)

// Prometheus collectors register globally, so every test shares one set.
var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

func newTestMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.New()
	})
	return testMetrics
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// fakeOrderStore implements domain.OrderStore in memory. conflictsLeft makes
// Advance fail with ErrConflict that many times before succeeding.
type fakeOrderStore struct {
	orders        map[string]domain.Order
	conflictsLeft int
	advances      int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]domain.Order{}}
}

func (f *fakeOrderStore) Create(_ context.Context, o domain.Order) error {
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Advance(_ context.Context, id string) (domain.AdvanceResult, error) {
	f.advances++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return domain.AdvanceResult{}, domain.ErrConflict
	}

	o, ok := f.orders[id]
	if !ok {
		return domain.AdvanceResult{}, domain.ErrNotFound
	}

	next, err := domain.NextOrderStatus(o.Status)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	o.Status = next
	f.orders[id] = o

	var positions []domain.Position
	if next == domain.OrderStatusDelivered {
		positions, err = domain.MaterializePositions(o, o.Items, time.Now().UTC())
		if err != nil {
			return domain.AdvanceResult{}, err
		}
	}
	return domain.AdvanceResult{Order: o, Positions: positions}, nil
}

func (f *fakeOrderStore) ListDeliveredBefore(_ context.Context, _ time.Time) ([]domain.Order, error) {
	return nil, nil
}

type fakeProductStore struct {
	products map[string]domain.Product
}

func (f *fakeProductStore) GetByID(_ context.Context, id string) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

type fakeLimiter struct {
	allow bool
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return f.allow, nil
}

type fakeBus struct {
	published map[string]int
}

func newFakeBus() *fakeBus { return &fakeBus{published: map[string]int{}} }

func (f *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	f.published[channel]++
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAudit) ListBefore(_ context.Context, _ time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func newTestOrderService(t *testing.T, orders *fakeOrderStore) (*OrderService, *fakeBus, *fakeAudit) {
	t.Helper()
	products := &fakeProductStore{products: map[string]domain.Product{
		"gold-bar-100g": {ID: "gold-bar-100g", Name: "Gold Bar 100g", Metal: "gold", WeightGrams: 100, Price: 7800, Currency: "USD", InStock: true},
		"silver-coin":   {ID: "silver-coin", Name: "Silver Eagle 1oz", Metal: "silver", WeightGrams: 31.1, Price: 35, Currency: "USD", InStock: true},
		"plat-bar":      {ID: "plat-bar", Name: "Platinum Bar 50g", Metal: "platinum", WeightGrams: 50, Price: 1600, Currency: "USD", InStock: false},
	}}
	bus := newFakeBus()
	audit := &fakeAudit{}

	svc := NewOrderService(orders, products, &fakeLimiter{allow: true}, bus, audit,
		newTestMetrics(), testNode(t), 0.07, testLogger())
	return svc, bus, audit
}

func TestCreateOrder(t *testing.T) {
	orders := newFakeOrderStore()
	svc, bus, audit := newTestOrderService(t, orders)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1",
		Type:   domain.OrderTypeBuy,
		Items: []CreateOrderItem{
			{ProductID: "gold-bar-100g", Quantity: 2},
			{ProductID: "silver-coin", Quantity: 10},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "u1", order.UserID)
	assert.Regexp(t, `^GS-\d+$`, order.OrderNumber)
	require.Len(t, order.Items, 2)

	// Prices are snapshotted from the catalog.
	assert.Equal(t, 7800.0, order.Items[0].UnitPrice)
	assert.Equal(t, 15600.0, order.Items[0].TotalPrice)
	assert.Equal(t, 15950.0, order.Subtotal)
	assert.InDelta(t, 1116.5, order.Taxes, 0.001)
	assert.InDelta(t, order.Subtotal+order.Taxes, order.TotalAmount, 1e-6)

	// Persisted, published, audited.
	_, err = orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.published["orders"])
	assert.Contains(t, audit.events, "order_created")
}

func TestCreateOrder_RateLimited(t *testing.T) {
	orders := newFakeOrderStore()
	svc, _, _ := newTestOrderService(t, orders)
	svc.limiter = &fakeLimiter{allow: false}

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1",
		Type:   domain.OrderTypeBuy,
		Items:  []CreateOrderItem{{ProductID: "gold-bar-100g", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	svc, _, _ := newTestOrderService(t, newFakeOrderStore())

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1",
		Type:   domain.OrderTypeBuy,
		Items:  []CreateOrderItem{{ProductID: "nope", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCreateOrder_OutOfStock(t *testing.T) {
	svc, _, _ := newTestOrderService(t, newFakeOrderStore())

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1",
		Type:   domain.OrderTypeBuy,
		Items:  []CreateOrderItem{{ProductID: "plat-bar", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func seedOrder(orders *fakeOrderStore, status domain.OrderStatus) domain.Order {
	o := domain.Order{
		ID:     "o1",
		UserID: "u1",
		Type:   domain.OrderTypeBuy,
		Status: status,
		Items: []domain.OrderItem{
			{ID: "i1", OrderID: "o1", ProductID: "gold-bar-100g", Quantity: 1, UnitPrice: 7800, TotalPrice: 7800},
		},
	}
	orders.orders[o.ID] = o
	return o
}

var (
	ownerPrincipal = domain.Principal{ID: "u1", Role: domain.RoleUser}
	adminPrincipal = domain.Principal{ID: "root", Role: domain.RoleAdmin}
)

func TestAdvance(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusPending)
	svc, _, audit := newTestOrderService(t, orders)

	res, err := svc.Advance(context.Background(), ownerPrincipal, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, res.Order.Status)
	assert.Empty(t, res.Positions)
	assert.Contains(t, audit.events, "order_advanced")
}

func TestAdvance_RetriesConflictOnce(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusPending)
	orders.conflictsLeft = 1
	svc, _, _ := newTestOrderService(t, orders)

	res, err := svc.Advance(context.Background(), ownerPrincipal, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, res.Order.Status)
	assert.Equal(t, 2, orders.advances)
}

func TestAdvance_SecondConflictSurfaces(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusPending)
	orders.conflictsLeft = 2
	svc, _, _ := newTestOrderService(t, orders)

	_, err := svc.Advance(context.Background(), ownerPrincipal, "o1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 2, orders.advances)
}

func TestAdvance_TerminalRejected(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusDelivered)
	svc, _, _ := newTestOrderService(t, orders)

	_, err := svc.Advance(context.Background(), ownerPrincipal, "o1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAdvance_NotFound(t *testing.T) {
	svc, _, _ := newTestOrderService(t, newFakeOrderStore())

	_, err := svc.Advance(context.Background(), adminPrincipal, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdvance_DeliveryPublishesPositions(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusShipped)
	svc, bus, _ := newTestOrderService(t, orders)

	res, err := svc.Advance(context.Background(), ownerPrincipal, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, res.Order.Status)
	require.Len(t, res.Positions, 1)
	assert.Equal(t, 7800.0, res.Positions[0].PurchasePrice)
	assert.Equal(t, 1, bus.published["positions"])
	assert.Equal(t, 1, bus.published["orders"])
}

func TestAdvance_Ownership(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusPending)
	svc, _, _ := newTestOrderService(t, orders)

	// A stranger may not advance someone else's order.
	_, err := svc.Advance(context.Background(), domain.Principal{ID: "u2", Role: domain.RoleUser}, "o1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, orders.advances)

	// The owner may advance their own order.
	res, err := svc.Advance(context.Background(), ownerPrincipal, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, res.Order.Status)

	// Admins may advance any order.
	res, err = svc.Advance(context.Background(), adminPrincipal, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, res.Order.Status)
}

func TestGetOrder_Ownership(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusPending)
	svc, _, _ := newTestOrderService(t, orders)

	owner := domain.Principal{ID: "u1", Role: domain.RoleUser}
	stranger := domain.Principal{ID: "u2", Role: domain.RoleUser}
	admin := domain.Principal{ID: "root", Role: domain.RoleAdmin}

	_, err := svc.GetOrder(context.Background(), owner, "o1")
	assert.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), stranger, "o1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.GetOrder(context.Background(), admin, "o1")
	assert.NoError(t, err)
}

func TestListOrders_Ownership(t *testing.T) {
	orders := newFakeOrderStore()
	seedOrder(orders, domain.OrderStatusPending)
	svc, _, _ := newTestOrderService(t, orders)

	stranger := domain.Principal{ID: "u2", Role: domain.RoleUser}
	_, err := svc.ListOrders(context.Background(), stranger, "u1", domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := svc.ListOrders(context.Background(), domain.Principal{ID: "u1", Role: domain.RoleUser}, "u1", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

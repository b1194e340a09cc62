package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getCustomerFn       func(ctx context.Context, id int64) (database.Customer, error)
	getRestaurantFn     func(ctx context.Context, id int64) (database.Restaurant, error)
	getProductFn        func(ctx context.Context, id int64) (database.Product, error)
	getOrderFn          func(ctx context.Context, id int64) (database.Order, error)
	createOrderFn       func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn   func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	updateOrderStatusFn func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)

	ordersCreated int
	itemsCreated  int
}

func (m *mockOrderStore) GetCustomerByID(ctx context.Context, id int64) (database.Customer, error) {
	return m.getCustomerFn(ctx, id)
}
func (m *mockOrderStore) GetRestaurantByID(ctx context.Context, id int64) (database.Restaurant, error) {
	return m.getRestaurantFn(ctx, id)
}
func (m *mockOrderStore) GetProductByID(ctx context.Context, id int64) (database.Product, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockOrderStore) GetOrderByID(ctx context.Context, id int64) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.ordersCreated++
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	m.itemsCreated++
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, evt events.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

// --- Test helpers ---

const (
	testCustomerID   int64 = 1
	testRestaurantID int64 = 10
	otherRestaurant  int64 = 20
	pizzaID          int64 = 100
	sodaID           int64 = 101
	foreignID        int64 = 200
	offMenuID        int64 = 300
)

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

// newTestService creates an OrderService with mocked dependencies.
// store is the mock OrderStore that will be returned by the NewOrderStore factory.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx, *mockPublisher) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	pub := &mockPublisher{}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore, pub), tx, pub
}

// defaultStore returns a mockOrderStore with one active customer, one active
// restaurant (delivery fee 5.00) and a small catalog:
//
//	pizzaID   29.90 at testRestaurantID, available
//	sodaID     6.50 at testRestaurantID, available
//	foreignID 15.00 at otherRestaurant, available
//	offMenuID 12.00 at testRestaurantID, unavailable
func defaultStore() *mockOrderStore {
	products := map[int64]database.Product{
		pizzaID:   {ID: pizzaID, RestaurantID: testRestaurantID, Name: "Pizza Margherita", Price: makeNumeric("29.90"), IsAvailable: true},
		sodaID:    {ID: sodaID, RestaurantID: testRestaurantID, Name: "Soda", Price: makeNumeric("6.50"), IsAvailable: true},
		foreignID: {ID: foreignID, RestaurantID: otherRestaurant, Name: "Sushi Combo", Price: makeNumeric("15.00"), IsAvailable: true},
		offMenuID: {ID: offMenuID, RestaurantID: testRestaurantID, Name: "Calzone", Price: makeNumeric("12.00"), IsAvailable: false},
	}
	var nextItemID int64 = 1000

	return &mockOrderStore{
		getCustomerFn: func(ctx context.Context, id int64) (database.Customer, error) {
			if id == testCustomerID {
				return database.Customer{ID: id, Name: "Ana", IsActive: true}, nil
			}
			return database.Customer{}, pgx.ErrNoRows
		},
		getRestaurantFn: func(ctx context.Context, id int64) (database.Restaurant, error) {
			if id == testRestaurantID {
				return database.Restaurant{ID: id, Name: "Pizzaria", DeliveryFee: makeNumeric("5.00"), IsActive: true}, nil
			}
			return database.Restaurant{}, pgx.ErrNoRows
		},
		getProductFn: func(ctx context.Context, id int64) (database.Product, error) {
			if p, ok := products[id]; ok {
				return p, nil
			}
			return database.Product{}, pgx.ErrNoRows
		},
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:              500,
				CustomerID:      arg.CustomerID,
				RestaurantID:    arg.RestaurantID,
				Status:          arg.Status,
				DeliveryAddress: arg.DeliveryAddress,
				PostalCode:      arg.PostalCode,
				Notes:           arg.Notes,
				PaymentMethod:   arg.PaymentMethod,
				Subtotal:        arg.Subtotal,
				DeliveryFee:     arg.DeliveryFee,
				Total:           arg.Total,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			nextItemID++
			return database.OrderItem{
				ID:        nextItemID,
				OrderID:   arg.OrderID,
				ProductID: arg.ProductID,
				Quantity:  arg.Quantity,
				UnitPrice: arg.UnitPrice,
				Subtotal:  arg.Subtotal,
			}, nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			return database.Order{ID: arg.ID, Status: arg.Status, RestaurantID: testRestaurantID, Total: makeNumeric("64.80")}, nil
		},
	}
}

func basicReq(items ...OrderItemRequest) CreateOrderRequest {
	if len(items) == 0 {
		items = []OrderItemRequest{{ProductID: pizzaID, Quantity: 2}}
	}
	return CreateOrderRequest{
		CustomerID:      testCustomerID,
		RestaurantID:    testRestaurantID,
		DeliveryAddress: "Rua das Flores, 123",
		PostalCode:      "01234-567",
		PaymentMethod:   "PIX",
		Items:           items,
	}
}

func orderInStatus(status string) func(ctx context.Context, id int64) (database.Order, error) {
	return func(ctx context.Context, id int64) (database.Order, error) {
		return database.Order{ID: id, Status: status, RestaurantID: testRestaurantID}, nil
	}
}

// assertNothingPersisted fails if any insert ran or the tx committed.
func assertNothingPersisted(t *testing.T, store *mockOrderStore, tx *mockTx) {
	t.Helper()
	if store.ordersCreated != 0 || store.itemsCreated != 0 {
		t.Errorf("expected no inserts, got %d orders and %d items", store.ordersCreated, store.itemsCreated)
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

// =====================
// Input validation tests
// =====================

func TestCreateOrder_EmptyItems(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	req := basicReq()
	req.Items = nil
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_QuantityBounds(t *testing.T) {
	for _, qty := range []int32{0, -1, 51} {
		store := defaultStore()
		svc, _, _ := newTestService(store)

		_, err := svc.CreateOrder(context.Background(), basicReq(OrderItemRequest{ProductID: pizzaID, Quantity: qty}))
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("qty %d: expected ErrInvalidQuantity, got: %v", qty, err)
		}
	}
}

func TestCreateOrder_QuantityFiftyAllowed(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	result, err := svc.CreateOrder(context.Background(), basicReq(OrderItemRequest{ProductID: pizzaID, Quantity: 50}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(result.Order.Subtotal, "1495.00") {
		t.Errorf("subtotal: got %s, want 1495.00", numericToDecimal(result.Order.Subtotal))
	}
}

func TestCreateOrder_InvalidPaymentMethod(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	req := basicReq()
	req.PaymentMethod = "BITCOIN"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got: %v", err)
	}
}

func TestCreateOrder_BeginError(t *testing.T) {
	store := defaultStore()
	pool := &mockTxBeginner{err: errors.New("pool exhausted")}
	svc := NewOrderService(pool, func(db database.DBTX) OrderStore { return store }, nil)

	_, err := svc.CreateOrder(context.Background(), basicReq())
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin tx error, got: %v", err)
	}
}

// =====================
// Entity validation tests (fail fast, in order)
// =====================

func TestCreateOrder_CustomerNotFound(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	req := basicReq()
	req.CustomerID = 999
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got: %v", err)
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_CustomerInactive(t *testing.T) {
	store := defaultStore()
	store.getCustomerFn = func(ctx context.Context, id int64) (database.Customer, error) {
		return database.Customer{ID: id, IsActive: false}, nil
	}
	restaurantLooked := false
	store.getRestaurantFn = func(ctx context.Context, id int64) (database.Restaurant, error) {
		restaurantLooked = true
		return database.Restaurant{}, pgx.ErrNoRows
	}
	svc, tx, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicReq())
	if !errors.Is(err, ErrCustomerInactive) {
		t.Fatalf("expected ErrCustomerInactive, got: %v", err)
	}
	if restaurantLooked {
		t.Error("restaurant must not be looked up after customer check fails")
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_RestaurantNotFound(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	req := basicReq()
	req.RestaurantID = 999
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrRestaurantNotFound) {
		t.Fatalf("expected ErrRestaurantNotFound, got: %v", err)
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_RestaurantInactive(t *testing.T) {
	store := defaultStore()
	store.getRestaurantFn = func(ctx context.Context, id int64) (database.Restaurant, error) {
		return database.Restaurant{ID: id, DeliveryFee: makeNumeric("5.00"), IsActive: false}, nil
	}
	svc, tx, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicReq())
	if !errors.Is(err, ErrRestaurantUnavailable) {
		t.Fatalf("expected ErrRestaurantUnavailable, got: %v", err)
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicReq(
		OrderItemRequest{ProductID: pizzaID, Quantity: 1},
		OrderItemRequest{ProductID: 999, Quantity: 1},
	))
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should match")
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_ProductUnavailable(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicReq(
		OrderItemRequest{ProductID: pizzaID, Quantity: 1},
		OrderItemRequest{ProductID: offMenuID, Quantity: 1},
	))
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Calzone") {
		t.Errorf("error should name the product, got: %v", err)
	}
	if !IsConflict(err) {
		t.Error("IsConflict should match")
	}
	assertNothingPersisted(t, store, tx)
}

func TestCreateOrder_ProductFromOtherRestaurant(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicReq(OrderItemRequest{ProductID: foreignID, Quantity: 1}))
	if !errors.Is(err, ErrProductNotInRestaurant) {
		t.Fatalf("expected ErrProductNotInRestaurant, got: %v", err)
	}
	if !IsConflict(err) {
		t.Error("IsConflict should match")
	}
	assertNothingPersisted(t, store, tx)
}

// =====================
// Pricing tests
// =====================

func TestCreateOrder_BasicPrice(t *testing.T) {
	store := defaultStore()
	var captured database.CreateOrderParams
	orig := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return orig(ctx, arg)
	}
	svc, tx, _ := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}

	// 29.90 * 2 = 59.80; + 5.00 fee = 64.80
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if !numericEquals(item.Item.UnitPrice, "29.90") {
		t.Errorf("unit price: got %s, want 29.90", numericToDecimal(item.Item.UnitPrice))
	}
	if !numericEquals(item.Item.Subtotal, "59.80") {
		t.Errorf("item subtotal: got %s, want 59.80", numericToDecimal(item.Item.Subtotal))
	}
	if item.ProductName != "Pizza Margherita" {
		t.Errorf("product name: got %q", item.ProductName)
	}
	if !numericEquals(captured.Subtotal, "59.80") {
		t.Errorf("order subtotal: got %s, want 59.80", numericToDecimal(captured.Subtotal))
	}
	if !numericEquals(captured.DeliveryFee, "5.00") {
		t.Errorf("delivery fee: got %s, want 5.00", numericToDecimal(captured.DeliveryFee))
	}
	if !numericEquals(captured.Total, "64.80") {
		t.Errorf("total: got %s, want 64.80", numericToDecimal(captured.Total))
	}
	if captured.Status != "PENDING" {
		t.Errorf("status: got %s, want PENDING", captured.Status)
	}
	if item.Item.OrderID != result.Order.ID {
		t.Errorf("item order id: got %d, want %d", item.Item.OrderID, result.Order.ID)
	}
}

func TestCreateOrder_SameProductTwice(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	result, err := svc.CreateOrder(context.Background(), basicReq(
		OrderItemRequest{ProductID: pizzaID, Quantity: 2},
		OrderItemRequest{ProductID: pizzaID, Quantity: 1},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 59.80 + 29.90 = 89.70
	if !numericEquals(result.Order.Subtotal, "89.70") {
		t.Errorf("subtotal: got %s, want 89.70", numericToDecimal(result.Order.Subtotal))
	}
	if !numericEquals(result.Order.Total, "94.70") {
		t.Errorf("total: got %s, want 94.70", numericToDecimal(result.Order.Total))
	}
	if len(result.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(result.Items))
	}
}

func TestCreateOrder_TotalEqualsSubtotalPlusFee(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	result, err := svc.CreateOrder(context.Background(), basicReq(
		OrderItemRequest{ProductID: pizzaID, Quantity: 3},
		OrderItemRequest{ProductID: sodaID, Quantity: 4},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := decimal.Zero
	for _, it := range result.Items {
		line := numericToDecimal(it.Item.UnitPrice).Mul(decimal.NewFromInt32(it.Item.Quantity))
		if !numericToDecimal(it.Item.Subtotal).Equal(line) {
			t.Errorf("item %d: subtotal %s != unit*qty %s", it.Item.ProductID, numericToDecimal(it.Item.Subtotal), line)
		}
		sum = sum.Add(line)
	}
	o := result.Order
	if !numericToDecimal(o.Subtotal).Equal(sum) {
		t.Errorf("subtotal %s != sum of lines %s", numericToDecimal(o.Subtotal), sum)
	}
	if !numericToDecimal(o.Total).Equal(numericToDecimal(o.Subtotal).Add(numericToDecimal(o.DeliveryFee))) {
		t.Errorf("total %s != subtotal + fee", numericToDecimal(o.Total))
	}
	// 89.70 + 26.00 = 115.70; + 5.00
	if !numericEquals(o.Total, "120.70") {
		t.Errorf("total: got %s, want 120.70", numericToDecimal(o.Total))
	}
}

func TestCreateOrder_SnapshotPricing(t *testing.T) {
	store := defaultStore()
	price := "29.90"
	fee := "5.00"
	store.getProductFn = func(ctx context.Context, id int64) (database.Product, error) {
		return database.Product{ID: id, RestaurantID: testRestaurantID, Name: "Pizza", Price: makeNumeric(price), IsAvailable: true}, nil
	}
	store.getRestaurantFn = func(ctx context.Context, id int64) (database.Restaurant, error) {
		return database.Restaurant{ID: id, DeliveryFee: makeNumeric(fee), IsActive: true}, nil
	}
	svc, _, _ := newTestService(store)

	first, err := svc.CreateOrder(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Catalog changes after the order was placed.
	price = "39.90"
	fee = "9.00"

	second, err := svc.CreateOrder(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !numericEquals(first.Items[0].Item.UnitPrice, "29.90") {
		t.Errorf("first order unit price changed: %s", numericToDecimal(first.Items[0].Item.UnitPrice))
	}
	if !numericEquals(first.Order.DeliveryFee, "5.00") {
		t.Errorf("first order fee changed: %s", numericToDecimal(first.Order.DeliveryFee))
	}
	if !numericEquals(second.Items[0].Item.UnitPrice, "39.90") {
		t.Errorf("second order unit price: got %s, want 39.90", numericToDecimal(second.Items[0].Item.UnitPrice))
	}
	if !numericEquals(second.Order.Total, "88.80") {
		t.Errorf("second order total: got %s, want 88.80", numericToDecimal(second.Order.Total))
	}
}

func TestCreateOrder_NotesOptional(t *testing.T) {
	store := defaultStore()
	var captured database.CreateOrderParams
	orig := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return orig(ctx, arg)
	}
	svc, _, _ := newTestService(store)

	if _, err := svc.CreateOrder(context.Background(), basicReq()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Notes.Valid {
		t.Error("empty notes should be stored as NULL")
	}

	req := basicReq()
	req.Notes = "no onions"
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !captured.Notes.Valid || captured.Notes.String != "no onions" {
		t.Errorf("notes: got %+v", captured.Notes)
	}
}

func TestCreateOrder_ItemInsertFailureDoesNotCommit(t *testing.T) {
	store := defaultStore()
	store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		return database.OrderItem{}, errors.New("disk full")
	}
	svc, tx, pub := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicReq())
	if err == nil {
		t.Fatal("expected error")
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
	if len(pub.events) != 0 {
		t.Error("no event may be published for a rolled back order")
	}
}

func TestCreateOrder_CommitError(t *testing.T) {
	store := defaultStore()
	svc, tx, pub := newTestService(store)
	tx.commitErr = errors.New("connection reset")

	_, err := svc.CreateOrder(context.Background(), basicReq())
	if err == nil || !strings.Contains(err.Error(), "commit tx") {
		t.Fatalf("expected commit error, got: %v", err)
	}
	if len(pub.events) != 0 {
		t.Error("no event may be published when commit fails")
	}
}

func TestCreateOrder_PublishesCreatedEvent(t *testing.T) {
	svc, _, pub := newTestService(defaultStore())

	result, err := svc.CreateOrder(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != "order.created" {
		t.Errorf("type: got %s", evt.Type)
	}
	if evt.OrderID != result.Order.ID || evt.RestaurantID != testRestaurantID {
		t.Errorf("ids: got order %d restaurant %d", evt.OrderID, evt.RestaurantID)
	}
	if evt.Total != "64.80" {
		t.Errorf("total: got %s, want 64.80", evt.Total)
	}
}

func TestCreateOrder_PublishFailureIgnored(t *testing.T) {
	svc, _, pub := newTestService(defaultStore())
	pub.err = errors.New("broker down")

	if _, err := svc.CreateOrder(context.Background(), basicReq()); err != nil {
		t.Fatalf("publish failure must not fail the order: %v", err)
	}
}

// =====================
// Quote tests
// =====================

func TestQuote(t *testing.T) {
	store := defaultStore()
	svc, tx, _ := newTestService(store)

	q, err := svc.Quote(context.Background(), []OrderItemRequest{
		{ProductID: pizzaID, Quantity: 2},
		{ProductID: sodaID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Subtotal.Equal(decimal.RequireFromString("66.30")) {
		t.Errorf("subtotal: got %s, want 66.30", q.Subtotal)
	}
	if len(q.Lines) != 2 || !q.Lines[0].Subtotal.Equal(decimal.RequireFromString("59.80")) {
		t.Errorf("lines: %+v", q.Lines)
	}
	if tx.committed {
		t.Error("quote must not commit")
	}
	if store.ordersCreated != 0 {
		t.Error("quote must not persist")
	}
}

func TestQuote_UnknownProduct(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	_, err := svc.Quote(context.Background(), []OrderItemRequest{{ProductID: 999, Quantity: 1}})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestQuote_Empty(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	_, err := svc.Quote(context.Background(), nil)
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

// =====================
// Status transition tests
// =====================

func TestUpdateStatus_Valid(t *testing.T) {
	store := defaultStore()
	store.getOrderFn = orderInStatus("PENDING")
	var captured database.UpdateOrderStatusParams
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		captured = arg
		return database.Order{ID: arg.ID, Status: arg.Status, RestaurantID: testRestaurantID}, nil
	}
	svc, tx, pub := newTestService(store)

	order, err := svc.UpdateStatus(context.Background(), 500, "CONFIRMED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != "CONFIRMED" {
		t.Errorf("status: got %s", order.Status)
	}
	if captured.Status_2 != "PENDING" {
		t.Errorf("conditional update must match current status, got %q", captured.Status_2)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if len(pub.events) != 1 || pub.events[0].Type != "order.status_changed" || pub.events[0].PreviousStatus != "PENDING" {
		t.Errorf("events: %+v", pub.events)
	}
}

func TestUpdateStatus_PendingToPreparingRejected(t *testing.T) {
	store := defaultStore()
	store.getOrderFn = orderInStatus("PENDING")
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		t.Fatal("update must not run for an invalid transition")
		return database.Order{}, nil
	}
	svc, _, pub := newTestService(store)

	_, err := svc.UpdateStatus(context.Background(), 500, "PREPARING")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != "PENDING" || te.To != "PREPARING" {
		t.Errorf("expected TransitionError PENDING->PREPARING, got %#v", err)
	}
	if len(pub.events) != 0 {
		t.Error("no event expected")
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	_, err := svc.UpdateStatus(context.Background(), 500, "LOST")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestUpdateStatus_OrderNotFound(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	_, err := svc.UpdateStatus(context.Background(), 404, "CONFIRMED")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestUpdateStatus_ConcurrentChange(t *testing.T) {
	store := defaultStore()
	store.getOrderFn = orderInStatus("CONFIRMED")
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}
	svc, tx, _ := newTestService(store)

	_, err := svc.UpdateStatus(context.Background(), 500, "PREPARING")
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got: %v", err)
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestUpdateStatus_TerminalStates(t *testing.T) {
	for _, status := range []string{"DELIVERED", "CANCELED"} {
		store := defaultStore()
		store.getOrderFn = orderInStatus(status)
		svc, _, _ := newTestService(store)

		_, err := svc.UpdateStatus(context.Background(), 500, "PENDING")
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got: %v", status, err)
		}
		if err != nil && !strings.Contains(err.Error(), "terminal") {
			t.Errorf("%s: message should mention terminal state: %v", status, err)
		}
	}
}

// =====================
// Cancel tests
// =====================

func TestCancel_Allowed(t *testing.T) {
	for _, status := range []string{"PENDING", "CONFIRMED"} {
		store := defaultStore()
		store.getOrderFn = orderInStatus(status)
		svc, _, pub := newTestService(store)

		order, err := svc.Cancel(context.Background(), 500)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", status, err)
		}
		if order.Status != "CANCELED" {
			t.Errorf("%s: status got %s", status, order.Status)
		}
		if len(pub.events) != 1 || pub.events[0].Status != "CANCELED" {
			t.Errorf("%s: events %+v", status, pub.events)
		}
	}
}

func TestCancel_PreparingRejected(t *testing.T) {
	store := defaultStore()
	store.getOrderFn = orderInStatus("PREPARING")
	svc, _, _ := newTestService(store)

	_, err := svc.Cancel(context.Background(), 500)
	if !errors.Is(err, ErrCannotCancel) {
		t.Fatalf("expected ErrCannotCancel, got: %v", err)
	}
	var ce *CancelError
	if !errors.As(err, &ce) || ce.Status != "PREPARING" {
		t.Errorf("expected CancelError(PREPARING), got %#v", err)
	}
}

func TestCancel_NotFound(t *testing.T) {
	svc, _, _ := newTestService(defaultStore())

	_, err := svc.Cancel(context.Background(), 404)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	minItemQuantity = 1
	maxItemQuantity = 50

	publishTimeout = 5 * time.Second
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and advance orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetCustomerByID(ctx context.Context, id int64) (database.Customer, error)
	GetRestaurantByID(ctx context.Context, id int64) (database.Restaurant, error)
	GetProductByID(ctx context.Context, id int64) (database.Product, error)
	GetOrderByID(ctx context.Context, id int64) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// EventPublisher receives order events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.OrderEvent) error
}

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	CustomerID      int64
	RestaurantID    int64
	DeliveryAddress string
	PostalCode      string
	Notes           string
	PaymentMethod   string
	Items           []OrderItemRequest
}

// OrderItemRequest is a single (product, quantity) pair of an order or quote.
type OrderItemRequest struct {
	ProductID int64
	Quantity  int32
}

// CreateOrderResult is the created order with its priced items.
type CreateOrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is a persisted item together with the product name at
// the time of ordering.
type OrderItemResult struct {
	Item        database.OrderItem
	ProductName string
}

// QuoteLine is one priced line of a quote.
type QuoteLine struct {
	ProductID   int64
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// QuoteResult is the price of a prospective order. Nothing is persisted.
type QuoteResult struct {
	Lines    []QuoteLine
	Subtotal decimal.Decimal
}

// OrderService handles order business logic.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	publisher EventPublisher
	now       func() time.Time
}

// NewOrderService creates a new OrderService. A nil publisher discards events.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, publisher EventPublisher) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderService{pool: pool, newStore: newStore, publisher: publisher, now: time.Now}
}

// processedItem holds a validated, priced item awaiting insertion.
type processedItem struct {
	params      database.CreateOrderItemParams
	productName string
}

// CreateOrder validates every referenced entity, snapshots prices and the
// delivery fee, and persists the order with its items in one transaction.
// Validation fails fast; nothing is written unless every check passes.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if err := validateQuantities(req.Items); err != nil {
		return nil, err
	}
	if !enum.IsPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Customer ---
	customer, err := store.GetCustomerByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCustomerNotFound, req.CustomerID)
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if !customer.IsActive {
		return nil, ErrCustomerInactive
	}

	// --- Restaurant ---
	restaurant, err := store.GetRestaurantByID(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrRestaurantNotFound, req.RestaurantID)
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if !restaurant.IsActive {
		return nil, ErrRestaurantUnavailable
	}

	// --- Items: validate + snapshot price ---
	lines := make([]Line, 0, len(req.Items))
	items := make([]processedItem, 0, len(req.Items))
	for i, item := range req.Items {
		product, err := store.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w: id %d", i, ErrProductNotFound, item.ProductID)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		if !product.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
		}
		if product.RestaurantID != restaurant.ID {
			return nil, fmt.Errorf("%w: %s", ErrProductNotInRestaurant, product.Name)
		}

		unitPrice := numericToDecimal(product.Price)
		lines = append(lines, Line{UnitPrice: unitPrice, Quantity: item.Quantity})
		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: decimalToNumeric(unitPrice),
				Subtotal:  decimalToNumeric(LineSubtotal(unitPrice, item.Quantity)),
			},
			productName: product.Name,
		})
	}

	deliveryFee := numericToDecimal(restaurant.DeliveryFee)
	subtotal, total := Totals(lines, deliveryFee)

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerID:      customer.ID,
		RestaurantID:    restaurant.ID,
		Status:          enum.OrderStatusPending,
		DeliveryAddress: req.DeliveryAddress,
		PostalCode:      req.PostalCode,
		Notes:           notes,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        decimalToNumeric(subtotal),
		DeliveryFee:     decimalToNumeric(deliveryFee),
		Total:           decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	results := make([]OrderItemResult, 0, len(items))
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		results = append(results, OrderItemResult{Item: item, ProductName: pi.productName})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, enum.EventOrderCreated, order, "")

	return &CreateOrderResult{Order: order, Items: results}, nil
}

// Quote prices a list of items at current catalog prices without persisting
// anything. Unknown products fail with ErrProductNotFound.
func (s *OrderService) Quote(ctx context.Context, items []OrderItemRequest) (*QuoteResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	if err := validateQuantities(items); err != nil {
		return nil, err
	}

	// Read-only tx so every price comes from the same snapshot.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	result := &QuoteResult{Lines: make([]QuoteLine, 0, len(items))}
	lines := make([]Line, 0, len(items))
	for i, item := range items {
		product, err := store.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w: id %d", i, ErrProductNotFound, item.ProductID)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		unitPrice := numericToDecimal(product.Price)
		lines = append(lines, Line{UnitPrice: unitPrice, Quantity: item.Quantity})
		result.Lines = append(result.Lines, QuoteLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    LineSubtotal(unitPrice, item.Quantity),
		})
	}
	result.Subtotal, _ = Totals(lines, decimal.Zero)
	return result, nil
}

// UpdateStatus moves an order to next if the state machine allows it.
// The write is conditional on the status read in the same transaction; if
// another request changed it first, ErrStatusConflict is returned.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, next string) (database.Order, error) {
	if !enum.IsOrderStatus(next) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	return s.transition(ctx, orderID, next, func(current string) error {
		return ValidateTransition(current, next)
	})
}

// Cancel cancels an order that is still PENDING or CONFIRMED.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (database.Order, error) {
	return s.transition(ctx, orderID, enum.OrderStatusCanceled, func(current string) error {
		if !CanCancel(current) {
			return &CancelError{Status: current}
		}
		return nil
	})
}

func (s *OrderService) transition(ctx context.Context, orderID int64, next string, check func(current string) error) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := check(current.Status); err != nil {
		return database.Order{}, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:       orderID,
		Status:   next,
		Status_2: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, enum.EventOrderStatusChanged, updated, current.Status)
	return updated, nil
}

// publish runs after commit. Failures are logged and never returned.
func (s *OrderService) publish(ctx context.Context, eventType string, order database.Order, previous string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, events.OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		RestaurantID:   order.RestaurantID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          numericToDecimal(order.Total).StringFixed(2),
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		log.Printf("ERROR: publish %s for order %d: %v", eventType, order.ID, err)
	}
}

func validateQuantities(items []OrderItemRequest) error {
	for i, item := range items {
		if item.Quantity < minItemQuantity || item.Quantity > maxItemQuantity {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}
	return nil
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deliverytech/api/internal/auth"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/middleware"
	"github.com/deliverytech/api/internal/pix"
	"github.com/deliverytech/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	Quote(ctx context.Context, items []service.OrderItemRequest) (*service.QuoteResult, error)
	UpdateStatus(ctx context.Context, orderID int64, next string) (database.Order, error)
	Cancel(ctx context.Context, orderID int64) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrderByID(ctx context.Context, id int64) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.ListOrderItemsByOrderRow, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]database.Order, error)
	ListOrdersByRestaurant(ctx context.Context, arg database.ListOrdersByRestaurantParams) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	store    OrderStore
	merchant pix.Charge
	loc      *time.Location
}

// NewOrderHandler creates a new OrderHandler. merchant carries the PIX key,
// name and city used for every order's charge; loc is the business time
// zone for date filters.
func NewOrderHandler(svc OrderServicer, store OrderStore, merchant pix.Charge, loc *time.Location) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{svc: svc, store: store, merchant: merchant, loc: loc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders behind authentication.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.UserRoleCustomer, enum.UserRoleAdmin)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Get("/", h.List)
	r.Post("/quote", h.Quote)
	r.With(middleware.RequireRole(enum.UserRoleCustomer, enum.UserRoleAdmin)).Get("/customer/{cid}", h.ListByCustomer)
	r.With(middleware.RequireRestaurant).Get("/restaurant/{rid}", h.ListByRestaurant)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.With(middleware.RequireRole(enum.UserRoleCustomer, enum.UserRoleRestaurant, enum.UserRoleAdmin)).
			Delete("/", h.Cancel)
		r.With(middleware.RequireRole(enum.UserRoleRestaurant, enum.UserRoleCourier, enum.UserRoleAdmin)).
			Patch("/status", h.UpdateStatus)
		r.Get("/pix", h.Pix)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerID      int64              `json:"customer_id" validate:"required,gt=0"`
	RestaurantID    int64              `json:"restaurant_id" validate:"required,gt=0"`
	DeliveryAddress string             `json:"delivery_address" validate:"required,max=200"`
	PostalCode      string             `json:"postal_code" validate:"required,postal_code"`
	Notes           string             `json:"notes" validate:"max=500"`
	PaymentMethod   string             `json:"payment_method" validate:"required,oneof=CASH CREDIT_CARD DEBIT_CARD PIX"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity" validate:"required,gte=1,lte=50"`
}

type quoteRequest struct {
	Items []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	CustomerID      int64               `json:"customer_id"`
	RestaurantID    int64               `json:"restaurant_id"`
	Status          string              `json:"status"`
	DeliveryAddress string              `json:"delivery_address"`
	PostalCode      string              `json:"postal_code"`
	Notes           *string             `json:"notes"`
	PaymentMethod   string              `json:"payment_method"`
	Subtotal        string              `json:"subtotal"`
	DeliveryFee     string              `json:"delivery_fee"`
	Total           string              `json:"total"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type quoteLineResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type quoteResponse struct {
	Items    []quoteLineResponse `json:"items"`
	Subtotal string              `json:"subtotal"`
}

type pixPayloadResponse struct {
	OrderID int64  `json:"order_id"`
	Amount  string `json:"amount"`
	Payload string `json:"payload"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		RestaurantID:    o.RestaurantID,
		Status:          o.Status,
		DeliveryAddress: o.DeliveryAddress,
		PostalCode:      o.PostalCode,
		Notes:           textPtr(o.Notes),
		PaymentMethod:   o.PaymentMethod,
		Subtotal:        numericToString(o.Subtotal),
		DeliveryFee:     numericToString(o.DeliveryFee),
		Total:           numericToString(o.Total),
		CreatedAt:       o.CreatedAt.Time,
		UpdatedAt:       o.UpdatedAt.Time,
	}
}

func toOrderResponses(orders []database.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func toCreatedOrderResponse(result *service.CreateOrderResult) orderResponse {
	resp := toOrderResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = orderItemResponse{
			ID:          ir.Item.ID,
			ProductID:   ir.Item.ProductID,
			ProductName: ir.ProductName,
			Quantity:    ir.Item.Quantity,
			UnitPrice:   numericToString(ir.Item.UnitPrice),
			Subtotal:    numericToString(ir.Item.Subtotal),
		}
	}
	return resp
}

func toServiceItems(items []orderItemRequest) []service.OrderItemRequest {
	out := make([]service.OrderItemRequest, len(items))
	for i, it := range items {
		out[i] = service.OrderItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

// --- Handlers ---

// Create places an order. CUSTOMER users may only order for their own
// customer record.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if !canManageCustomer(middleware.ClaimsFromContext(r.Context()), req.CustomerID) {
		writeError(w, http.StatusForbidden, codeForbidden, "cannot place orders for another customer")
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerID:      req.CustomerID,
		RestaurantID:    req.RestaurantID,
		DeliveryAddress: req.DeliveryAddress,
		PostalCode:      req.PostalCode,
		Notes:           req.Notes,
		PaymentMethod:   req.PaymentMethod,
		Items:           toServiceItems(req.Items),
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCreatedOrderResponse(result))
}

// Quote prices a prospective order without creating it. The delivery fee
// is not included.
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.Quote(r.Context(), toServiceItems(req.Items))
	if err != nil {
		writeServiceError(w, "quote order", err)
		return
	}

	resp := quoteResponse{
		Items:    make([]quoteLineResponse, len(result.Lines)),
		Subtotal: result.Subtotal.StringFixed(2),
	}
	for i, l := range result.Lines {
		resp.Items[i] = quoteLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Subtotal:    l.Subtotal.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns an order with its items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	order, ok := h.loadVisibleOrder(w, r, id)
	if !ok {
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), id)
	if err != nil {
		writeInternalError(w, "list order items", err)
		return
	}

	resp := toOrderResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, it := range items {
		resp.Items[i] = orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   numericToString(it.UnitPrice),
			Subtotal:    numericToString(it.Subtotal),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns one page of orders filtered by status and an optional
// [dateFrom, dateTo] day range in the business time zone.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}

	status, ok := parseStatusFilter(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := parseDay(firstNonEmpty(q.Get("dateFrom"), q.Get("start_date")), h.loc)
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"dateFrom": "must be a date like 2024-01-31"})
		return
	}
	to, err := parseDay(firstNonEmpty(q.Get("dateTo"), q.Get("end_date")), h.loc)
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"dateTo": "must be a date like 2024-01-31"})
		return
	}

	var start, end pgtype.Timestamptz
	if !from.IsZero() {
		start = pgtype.Timestamptz{Time: from, Valid: true}
	}
	if !to.IsZero() {
		end = pgtype.Timestamptz{Time: to.AddDate(0, 0, 1), Valid: true}
	}
	if start.Valid && end.Valid && !start.Time.Before(end.Time) {
		writeValidationError(w, "invalid request", map[string]string{"dateFrom": "must not be after dateTo"})
		return
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Status:    status,
		StartDate: start,
		EndDate:   end,
		Limit:     int32(size),
		Offset:    int32(page * size),
	})
	if err != nil {
		writeInternalError(w, "list orders", err)
		return
	}

	total, err := h.store.CountOrders(r.Context(), database.CountOrdersParams{
		Status:    status,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeInternalError(w, "count orders", err)
		return
	}

	writeJSON(w, http.StatusOK, newPage(toOrderResponses(orders), page, size, total))
}

// ListByCustomer returns a customer's orders, newest first.
func (h *OrderHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	cid, ok := parseIDParam(w, r, "cid", "customer")
	if !ok {
		return
	}
	if !canManageCustomer(middleware.ClaimsFromContext(r.Context()), cid) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this customer")
		return
	}

	orders, err := h.store.ListOrdersByCustomer(r.Context(), cid)
	if err != nil {
		writeInternalError(w, "list orders by customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ListByRestaurant returns a restaurant's orders, optionally filtered by status.
func (h *OrderHandler) ListByRestaurant(w http.ResponseWriter, r *http.Request) {
	rid, ok := parseIDParam(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	status, ok := parseStatusFilter(w, r)
	if !ok {
		return
	}

	orders, err := h.store.ListOrdersByRestaurant(r.Context(), database.ListOrdersByRestaurantParams{
		RestaurantID: rid,
		Status:       status,
	})
	if err != nil {
		writeInternalError(w, "list orders by restaurant", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// UpdateStatus advances an order through the state machine. RESTAURANT
// users may only move orders of their own restaurant.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims != nil && claims.Role == enum.UserRoleRestaurant {
		order, ok := h.loadOrder(w, r, id)
		if !ok {
			return
		}
		if !middleware.OwnsRestaurant(claims, order.RestaurantID) {
			writeError(w, http.StatusForbidden, codeForbidden, "access denied for this restaurant")
			return
		}
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel cancels an order that has not started preparation. Customers
// may cancel their own orders and restaurant users their restaurant's.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	if _, ok := h.loadVisibleOrder(w, r, id); !ok {
		return
	}

	if _, err := h.svc.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Pix renders the PIX charge for an order paid by PIX as a PNG QR code.
// With ?format=json it returns the copy-and-paste payload instead.
func (h *OrderHandler) Pix(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	order, ok := h.loadVisibleOrder(w, r, id)
	if !ok {
		return
	}
	if order.PaymentMethod != enum.PaymentMethodPix {
		writeError(w, http.StatusConflict, codeConflict, "order is not paid by PIX")
		return
	}
	if order.Status == enum.OrderStatusCanceled {
		writeError(w, http.StatusConflict, codeConflict, "order is canceled")
		return
	}

	charge := h.merchant
	charge.Amount = numericToDecimal(order.Total)
	charge.TxID = fmt.Sprintf("ORDER%d", order.ID)

	if r.URL.Query().Get("format") == "json" {
		payload, err := charge.Payload()
		if err != nil {
			writePixError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pixPayloadResponse{
			OrderID: order.ID,
			Amount:  charge.Amount.StringFixed(2),
			Payload: payload,
		})
		return
	}

	png, err := charge.QRCode(pix.DefaultQRSize)
	if err != nil {
		writePixError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Printf("ERROR: write pix qr code: %v", err)
	}
}

// --- Helpers ---

func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request, id int64) (database.Order, bool) {
	order, err := h.store.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "order not found")
			return database.Order{}, false
		}
		writeInternalError(w, "get order", err)
		return database.Order{}, false
	}
	return order, true
}

// loadVisibleOrder loads an order and writes 403 when the caller may not
// see it.
func (h *OrderHandler) loadVisibleOrder(w http.ResponseWriter, r *http.Request, id int64) (database.Order, bool) {
	order, ok := h.loadOrder(w, r, id)
	if !ok {
		return database.Order{}, false
	}
	if !canSeeOrder(middleware.ClaimsFromContext(r.Context()), order) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this order")
		return database.Order{}, false
	}
	return order, true
}

// canSeeOrder allows admins and couriers every order, customers their own
// and restaurant users their restaurant's.
func canSeeOrder(claims *auth.Claims, order database.Order) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case enum.UserRoleAdmin, enum.UserRoleCourier:
		return true
	case enum.UserRoleCustomer:
		return canManageCustomer(claims, order.CustomerID)
	case enum.UserRoleRestaurant:
		return middleware.OwnsRestaurant(claims, order.RestaurantID)
	}
	return false
}

func writePixError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pix.ErrMissingKey):
		writeError(w, http.StatusServiceUnavailable, codeInternal, "pix payments are not configured")
	case errors.Is(err, pix.ErrInvalidAmount):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		writeInternalError(w, "build pix charge", err)
	}
}

// parseStatusFilter reads the optional status query parameter.
func parseStatusFilter(w http.ResponseWriter, r *http.Request) (pgtype.Text, bool) {
	s := r.URL.Query().Get("status")
	if s == "" {
		return pgtype.Text{}, true
	}
	if !enum.IsOrderStatus(s) {
		writeValidationError(w, "invalid request", map[string]string{"status": "unknown order status"})
		return pgtype.Text{}, false
	}
	return pgtype.Text{String: s, Valid: true}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

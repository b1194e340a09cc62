package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/deliverytech/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	defaultReportLimit = 10
	maxReportLimit     = 100
	defaultReportDays  = 30
	dateLayout         = "2006-01-02"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetSalesByRestaurant(ctx context.Context) ([]database.GetSalesByRestaurantRow, error)
	GetTopProducts(ctx context.Context, limit int32) ([]database.GetTopProductsRow, error)
	GetTopCustomers(ctx context.Context, limit int32) ([]database.GetTopCustomersRow, error)
	GetOrdersByPeriod(ctx context.Context, arg database.GetOrdersByPeriodParams) ([]database.GetOrdersByPeriodRow, error)
}

// ReportsHandler handles report endpoints. Canceled orders never count.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Days are bucketed in loc.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandler{store: store, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted behind RequireRole(ADMIN): /reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales-by-restaurant", h.SalesByRestaurant)
	r.Get("/top-products", h.TopProducts)
	r.Get("/top-customers", h.TopCustomers)
	r.Get("/orders-by-period", h.OrdersByPeriod)
}

// --- Response types ---

type restaurantSalesResponse struct {
	RestaurantID   int64  `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	OrderCount     int64  `json:"order_count"`
	TotalSales     string `json:"total_sales"`
}

type topProductResponse struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	QuantitySold int64  `json:"quantity_sold"`
	Revenue      string `json:"revenue"`
}

type topCustomerResponse struct {
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	OrderCount   int64  `json:"order_count"`
	TotalSpent   string `json:"total_spent"`
}

type periodSalesResponse struct {
	Date       string `json:"date"`
	OrderCount int64  `json:"order_count"`
	TotalSales string `json:"total_sales"`
}

// --- Handlers ---

// SalesByRestaurant returns order count and revenue per restaurant.
func (h *ReportsHandler) SalesByRestaurant(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.GetSalesByRestaurant(r.Context())
	if err != nil {
		writeInternalError(w, "get sales by restaurant", err)
		return
	}

	resp := make([]restaurantSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = restaurantSalesResponse{
			RestaurantID:   row.RestaurantID,
			RestaurantName: row.RestaurantName,
			OrderCount:     row.OrderCount,
			TotalSales:     numericToString(row.TotalSales),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopProducts returns the best selling products by quantity.
func (h *ReportsHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	rows, err := h.store.GetTopProducts(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "get top products", err)
		return
	}

	resp := make([]topProductResponse, len(rows))
	for i, row := range rows {
		resp[i] = topProductResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			Revenue:      numericToString(row.Revenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopCustomers returns the customers with the most orders.
func (h *ReportsHandler) TopCustomers(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	rows, err := h.store.GetTopCustomers(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "get top customers", err)
		return
	}

	resp := make([]topCustomerResponse, len(rows))
	for i, row := range rows {
		resp[i] = topCustomerResponse{
			CustomerID:   row.CustomerID,
			CustomerName: row.CustomerName,
			OrderCount:   row.OrderCount,
			TotalSpent:   numericToString(row.TotalSpent),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// OrdersByPeriod returns per-day order count and revenue between
// start_date and end_date inclusive. Defaults to the last 30 days.
func (h *ReportsHandler) OrdersByPeriod(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	rows, err := h.store.GetOrdersByPeriod(r.Context(), database.GetOrdersByPeriodParams{
		StartDate: pgtype.Timestamptz{Time: start, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: end, Valid: true},
		TimeZone:  h.loc.String(),
	})
	if err != nil {
		writeInternalError(w, "get orders by period", err)
		return
	}

	resp := make([]periodSalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.Day.Valid {
			date = row.Day.Time.Format(dateLayout)
		}
		resp[i] = periodSalesResponse{
			Date:       date,
			OrderCount: row.OrderCount,
			TotalSales: numericToString(row.TotalSales),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func parseLimit(w http.ResponseWriter, r *http.Request) (int32, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultReportLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxReportLimit {
		writeValidationError(w, "invalid request", map[string]string{"limit": fmt.Sprintf("must be between 1 and %d", maxReportLimit)})
		return 0, false
	}
	return int32(n), true
}

// parseDay parses a YYYY-MM-DD date as midnight in loc. An empty string
// yields the zero time.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}

// parseDateRange parses start_date and end_date query params in loc.
// Defaults to the last 30 days if not provided.
// Returns (startDate, endDate, error) where endDate is exclusive (next day midnight).
func parseDateRange(r *http.Request, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startDate := today.AddDate(0, 0, -defaultReportDays)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := parseDay(s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := parseDay(s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must not be after end_date")
	}

	return startDate, endDate, nil
}

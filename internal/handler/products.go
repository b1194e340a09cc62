package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deliverytech/api/internal/cache"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetProductByID(ctx context.Context, id int64) (database.Product, error)
	GetRestaurantByID(ctx context.Context, id int64) (database.Restaurant, error)
	ListProductsByCategory(ctx context.Context, category string) ([]database.Product, error)
	SearchProductsByName(ctx context.Context, name string) ([]database.Product, error)
	ListProductsByPriceRange(ctx context.Context, arg database.ListProductsByPriceRangeParams) ([]database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SetProductAvailability(ctx context.Context, arg database.SetProductAvailabilityParams) (database.Product, error)
	CountOrderItemsByProduct(ctx context.Context, productID int64) (int64, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)
}

// ProductHandler handles product CRUD endpoints. Single-product reads go
// through the cache; every write invalidates the product's entry.
type ProductHandler struct {
	store ProductStore
	cache *cache.ProductCache
}

// NewProductHandler creates a new ProductHandler. A nil cache reads straight
// from the store.
func NewProductHandler(store ProductStore, c *cache.ProductCache) *ProductHandler {
	return &ProductHandler{store: store, cache: c}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted at /products behind authentication.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	adminOrOwner := middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant)

	r.With(adminOrOwner).Post("/", h.Create)
	r.Get("/category/{category}", h.ListByCategory)
	r.Get("/search", h.Search)
	r.Get("/price-range", h.PriceRange)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.With(adminOrOwner).Put("/", h.Update)
		r.With(adminOrOwner).Delete("/", h.Delete)
		r.With(adminOrOwner).Patch("/availability", h.SetAvailability)
	})
}

// --- Request / Response types ---

type productRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"required,min=10,max=500"`
	Category    string `json:"category" validate:"required,max=50"`
	Price       string `json:"price" validate:"required,money=0.01:500.00"`
	ImageURL    string `json:"image_url" validate:"omitempty,image_url"`
}

type productResponse struct {
	ID           int64     `json:"id"`
	RestaurantID int64     `json:"restaurant_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Category     string    `json:"category"`
	Price        string    `json:"price"`
	IsAvailable  bool      `json:"is_available"`
	ImageURL     *string   `json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		RestaurantID: p.RestaurantID,
		Name:         p.Name,
		Description:  textPtr(p.Description),
		Category:     p.Category,
		Price:        numericToString(p.Price),
		IsAvailable:  p.IsAvailable,
		ImageURL:     textPtr(p.ImageUrl),
		CreatedAt:    p.CreatedAt.Time,
		UpdatedAt:    p.UpdatedAt.Time,
	}
}

func toProductResponses(ps []database.Product) []productResponse {
	resp := make([]productResponse, len(ps))
	for i, p := range ps {
		resp[i] = toProductResponse(p)
	}
	return resp
}

func parseMoney(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func numericToString(n pgtype.Numeric) string {
	return numericToDecimal(n).StringFixed(2)
}

// --- Handlers ---

// Get returns a single product.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "product")
	if !ok {
		return
	}

	product, err := h.cache.Get(r.Context(), h.store, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "product not found")
			return
		}
		writeInternalError(w, "get product", err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// ListByCategory returns available products in a category.
func (h *ProductHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProductsByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeInternalError(w, "list products by category", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// Search returns available products whose name contains the name query parameter.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeValidationError(w, "invalid request", map[string]string{"name": "is required"})
		return
	}

	products, err := h.store.SearchProductsByName(r.Context(), name)
	if err != nil {
		writeInternalError(w, "search products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// PriceRange returns available products priced within [min, max].
func (h *ProductHandler) PriceRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details := map[string]string{}

	minPrice, err := decimal.NewFromString(q.Get("min"))
	if err != nil || minPrice.IsNegative() {
		details["min"] = "must be a non-negative decimal"
	}
	maxPrice, err := decimal.NewFromString(q.Get("max"))
	if err != nil || maxPrice.IsNegative() {
		details["max"] = "must be a non-negative decimal"
	}
	if len(details) == 0 && minPrice.GreaterThan(maxPrice) {
		details["min"] = "must not exceed max"
	}
	if len(details) > 0 {
		writeValidationError(w, "invalid request", details)
		return
	}

	lo, _ := parseMoney(minPrice.String())
	hi, _ := parseMoney(maxPrice.String())
	products, err := h.store.ListProductsByPriceRange(r.Context(), database.ListProductsByPriceRangeParams{
		MinPrice: lo,
		MaxPrice: hi,
	})
	if err != nil {
		writeInternalError(w, "list products by price range", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// Create adds a product to the restaurant named by the restaurantId query
// parameter. RESTAURANT users may only add to their own restaurant.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := strconv.ParseInt(r.URL.Query().Get("restaurantId"), 10, 64)
	if err != nil || restaurantID <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid restaurant ID")
		return
	}

	if !canManageRestaurant(middleware.ClaimsFromContext(r.Context()), restaurantID) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this restaurant")
		return
	}

	var req productRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.store.GetRestaurantByID(r.Context(), restaurantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "restaurant not found")
			return
		}
		writeInternalError(w, "get restaurant", err)
		return
	}

	price, err := parseMoney(req.Price)
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"price": "must be a decimal amount"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Description:  textOrNull(req.Description),
		Category:     req.Category,
		Price:        price,
		ImageUrl:     textOrNull(req.ImageURL),
	})
	if err != nil {
		writeInternalError(w, "create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update replaces a product's details. Orders placed earlier keep the
// unit price they were created with.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedProductID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	price, err := parseMoney(req.Price)
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"price": "must be a decimal amount"})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:          id,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		Category:    req.Category,
		Price:       price,
		ImageUrl:    textOrNull(req.ImageURL),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "product not found")
			return
		}
		writeInternalError(w, "update product", err)
		return
	}
	h.cache.Invalidate(r.Context(), id)

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// SetAvailability sets is_available from the available query parameter.
func (h *ProductHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedProductID(w, r)
	if !ok {
		return
	}

	available, err := strconv.ParseBool(r.URL.Query().Get("available"))
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"available": "must be true or false"})
		return
	}

	product, err := h.store.SetProductAvailability(r.Context(), database.SetProductAvailabilityParams{
		ID:          id,
		IsAvailable: available,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "product not found")
			return
		}
		writeInternalError(w, "set product availability", err)
		return
	}
	h.cache.Invalidate(r.Context(), id)

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete hard-deletes a product that no order references. Products that
// appear in any order must be made unavailable instead.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedProductID(w, r)
	if !ok {
		return
	}

	count, err := h.store.CountOrderItemsByProduct(r.Context(), id)
	if err != nil {
		writeInternalError(w, "count order items", err)
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, codeConflict, "product is referenced by existing orders")
		return
	}

	n, err := h.store.DeleteProduct(r.Context(), id)
	if err != nil {
		// An order may reference the product between the count and the delete.
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusConflict, codeConflict, "product is referenced by existing orders")
			return
		}
		writeInternalError(w, "delete product", err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, codeNotFound, "product not found")
		return
	}
	h.cache.Invalidate(r.Context(), id)

	w.WriteHeader(http.StatusNoContent)
}

// ownedProductID parses {id}, loads the product and checks that the caller
// may manage its restaurant. On failure it writes the response.
func (h *ProductHandler) ownedProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseIDParam(w, r, "id", "product")
	if !ok {
		return 0, false
	}

	product, err := h.store.GetProductByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "product not found")
			return 0, false
		}
		writeInternalError(w, "get product", err)
		return 0, false
	}

	if !canManageRestaurant(middleware.ClaimsFromContext(r.Context()), product.RestaurantID) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this restaurant")
		return 0, false
	}
	return id, true
}

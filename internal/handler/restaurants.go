package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/deliverytech/api/internal/auth"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RestaurantStore defines the database methods needed by restaurant handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type RestaurantStore interface {
	CreateRestaurant(ctx context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error)
	GetRestaurantByID(ctx context.Context, id int64) (database.Restaurant, error)
	ListRestaurants(ctx context.Context, arg database.ListRestaurantsParams) ([]database.Restaurant, error)
	CountRestaurants(ctx context.Context, arg database.CountRestaurantsParams) (int64, error)
	ListAvailableRestaurants(ctx context.Context) ([]database.Restaurant, error)
	ListRestaurantsByCategory(ctx context.Context, category string) ([]database.Restaurant, error)
	UpdateRestaurant(ctx context.Context, arg database.UpdateRestaurantParams) (database.Restaurant, error)
	ToggleRestaurantActive(ctx context.Context, id int64) (database.Restaurant, error)
	ListProductsByRestaurant(ctx context.Context, restaurantID int64) ([]database.Product, error)
}

// RestaurantHandler handles restaurant endpoints.
type RestaurantHandler struct {
	store RestaurantStore
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(store RestaurantStore) *RestaurantHandler {
	return &RestaurantHandler{store: store}
}

// RegisterRoutes registers restaurant endpoints on the given Chi router.
// Expected to be mounted at /restaurants behind authentication.
func (h *RestaurantHandler) RegisterRoutes(r chi.Router) {
	adminOnly := middleware.RequireRole(enum.UserRoleAdmin)
	adminOrOwner := middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant)

	r.Get("/", h.List)
	r.With(adminOnly).Post("/", h.Create)
	r.Get("/available", h.ListAvailable)
	r.Get("/category/{category}", h.ListByCategory)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.With(adminOrOwner).Put("/", h.Update)
		r.With(adminOnly).Patch("/status", h.ToggleActive)
		r.Get("/products", h.Products)
	})
}

// --- Request / Response types ---

type restaurantRequest struct {
	Name                string `json:"name" validate:"required,min=2,max=100"`
	Category            string `json:"category" validate:"required,max=50"`
	Address             string `json:"address" validate:"required,max=200"`
	Phone               string `json:"phone" validate:"required,phone"`
	OpeningHours        string `json:"opening_hours" validate:"required,max=100"`
	DeliveryFee         string `json:"delivery_fee" validate:"required,money=>0:50.00"`
	DeliveryTimeMinutes int32  `json:"delivery_time_minutes" validate:"required,gte=10,lte=120"`
	Rating              string `json:"rating" validate:"omitempty,money=0:5"`
}

type restaurantResponse struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Category            string    `json:"category"`
	Address             *string   `json:"address"`
	Phone               *string   `json:"phone"`
	OpeningHours        *string   `json:"opening_hours"`
	Rating              *string   `json:"rating"`
	DeliveryFee         string    `json:"delivery_fee"`
	DeliveryTimeMinutes int32     `json:"delivery_time_minutes"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toRestaurantResponse(rs database.Restaurant) restaurantResponse {
	resp := restaurantResponse{
		ID:                  rs.ID,
		Name:                rs.Name,
		Category:            rs.Category,
		Address:             textPtr(rs.Address),
		Phone:               textPtr(rs.Phone),
		OpeningHours:        textPtr(rs.OpeningHours),
		DeliveryFee:         numericToString(rs.DeliveryFee),
		DeliveryTimeMinutes: rs.DeliveryTimeMinutes,
		IsActive:            rs.IsActive,
		CreatedAt:           rs.CreatedAt.Time,
		UpdatedAt:           rs.UpdatedAt.Time,
	}
	if rs.Rating.Valid {
		s := numericToDecimal(rs.Rating).StringFixed(1)
		resp.Rating = &s
	}
	return resp
}

func toRestaurantResponses(rs []database.Restaurant) []restaurantResponse {
	resp := make([]restaurantResponse, len(rs))
	for i, r := range rs {
		resp[i] = toRestaurantResponse(r)
	}
	return resp
}

// --- Handlers ---

// List returns one page of restaurants, optionally filtered by category and
// active flag.
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}

	var category pgtype.Text
	if s := r.URL.Query().Get("category"); s != "" {
		category = pgtype.Text{String: s, Valid: true}
	}
	var active pgtype.Bool
	if s := r.URL.Query().Get("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeValidationError(w, "invalid request", map[string]string{"active": "must be true or false"})
			return
		}
		active = pgtype.Bool{Bool: v, Valid: true}
	}

	restaurants, err := h.store.ListRestaurants(r.Context(), database.ListRestaurantsParams{
		Category: category,
		IsActive: active,
		Limit:    int32(size),
		Offset:   int32(page * size),
	})
	if err != nil {
		writeInternalError(w, "list restaurants", err)
		return
	}

	total, err := h.store.CountRestaurants(r.Context(), database.CountRestaurantsParams{
		Category: category,
		IsActive: active,
	})
	if err != nil {
		writeInternalError(w, "count restaurants", err)
		return
	}

	writeJSON(w, http.StatusOK, newPage(toRestaurantResponses(restaurants), page, size, total))
}

// ListAvailable returns all active restaurants.
func (h *RestaurantHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.store.ListAvailableRestaurants(r.Context())
	if err != nil {
		writeInternalError(w, "list available restaurants", err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponses(restaurants))
}

// ListByCategory returns active restaurants in a category.
func (h *RestaurantHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.store.ListRestaurantsByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeInternalError(w, "list restaurants by category", err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponses(restaurants))
}

// Get returns a single restaurant.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "restaurant")
	if !ok {
		return
	}

	restaurant, err := h.store.GetRestaurantByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "restaurant not found")
			return
		}
		writeInternalError(w, "get restaurant", err)
		return
	}

	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// Products returns every product of a restaurant, available or not.
func (h *RestaurantHandler) Products(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "restaurant")
	if !ok {
		return
	}

	if _, err := h.store.GetRestaurantByID(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "restaurant not found")
			return
		}
		writeInternalError(w, "get restaurant", err)
		return
	}

	products, err := h.store.ListProductsByRestaurant(r.Context(), id)
	if err != nil {
		writeInternalError(w, "list restaurant products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// Create adds a new restaurant. New restaurants start active.
func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req restaurantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fee, err := parseMoney(req.DeliveryFee)
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"delivery_fee": "must be a decimal amount"})
		return
	}
	var rating pgtype.Numeric
	if req.Rating != "" {
		if rating, err = parseMoney(req.Rating); err != nil {
			writeValidationError(w, "invalid request", map[string]string{"rating": "must be a decimal"})
			return
		}
	}

	restaurant, err := h.store.CreateRestaurant(r.Context(), database.CreateRestaurantParams{
		Name:                req.Name,
		Category:            req.Category,
		Address:             textOrNull(req.Address),
		Phone:               textOrNull(req.Phone),
		OpeningHours:        textOrNull(req.OpeningHours),
		Rating:              rating,
		DeliveryFee:         fee,
		DeliveryTimeMinutes: req.DeliveryTimeMinutes,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, codeConflict, "restaurant name already exists")
			return
		}
		writeInternalError(w, "create restaurant", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRestaurantResponse(restaurant))
}

// Update replaces a restaurant's details. RESTAURANT users may only edit
// their own restaurant. Existing orders keep the delivery fee they were
// created with.
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "restaurant")
	if !ok {
		return
	}

	if !canManageRestaurant(middleware.ClaimsFromContext(r.Context()), id) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this restaurant")
		return
	}

	var req restaurantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fee, err := parseMoney(req.DeliveryFee)
	if err != nil {
		writeValidationError(w, "invalid request", map[string]string{"delivery_fee": "must be a decimal amount"})
		return
	}

	restaurant, err := h.store.UpdateRestaurant(r.Context(), database.UpdateRestaurantParams{
		ID:                  id,
		Name:                req.Name,
		Category:            req.Category,
		Address:             textOrNull(req.Address),
		Phone:               textOrNull(req.Phone),
		OpeningHours:        textOrNull(req.OpeningHours),
		DeliveryFee:         fee,
		DeliveryTimeMinutes: req.DeliveryTimeMinutes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "restaurant not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, codeConflict, "restaurant name already exists")
			return
		}
		writeInternalError(w, "update restaurant", err)
		return
	}

	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// ToggleActive flips a restaurant's active flag.
func (h *RestaurantHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "restaurant")
	if !ok {
		return
	}

	restaurant, err := h.store.ToggleRestaurantActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "restaurant not found")
			return
		}
		writeInternalError(w, "toggle restaurant", err)
		return
	}

	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// canManageRestaurant reports whether claims belong to an ADMIN or to the
// RESTAURANT user of restaurantID.
func canManageRestaurant(claims *auth.Claims, restaurantID int64) bool {
	if claims == nil {
		return false
	}
	return claims.Role == enum.UserRoleAdmin || middleware.OwnsRestaurant(claims, restaurantID)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/deliverytech/api/internal/auth"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// CustomerStore defines the database methods needed by customer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (database.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (database.Customer, error)
	ListActiveCustomers(ctx context.Context) ([]database.Customer, error)
	SearchCustomersByName(ctx context.Context, name string) ([]database.Customer, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	ToggleCustomerActive(ctx context.Context, id int64) (database.Customer, error)
}

// CustomerHandler handles customer CRUD endpoints.
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer CRUD endpoints on the given Chi router.
// Expected to be mounted at /customers behind authentication.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/search", h.Search)
	r.Get("/email/{email}", h.GetByEmail)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/status", h.ToggleActive)
	})
}

// --- Request / Response types ---

type customerRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,phone"`
	Address string `json:"address" validate:"required,max=200"`
}

type customerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     textPtr(c.Phone),
		Address:   textPtr(c.Address),
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt.Time,
		UpdatedAt: c.UpdatedAt.Time,
	}
}

func toCustomerResponses(cs []database.Customer) []customerResponse {
	resp := make([]customerResponse, len(cs))
	for i, c := range cs {
		resp[i] = toCustomerResponse(c)
	}
	return resp
}

// --- Handlers ---

// List returns all active customers.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.store.ListActiveCustomers(r.Context())
	if err != nil {
		writeInternalError(w, "list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponses(customers))
}

// Search returns customers whose name contains the name query parameter.
func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeValidationError(w, "invalid request", map[string]string{"name": "is required"})
		return
	}

	customers, err := h.store.SearchCustomersByName(r.Context(), name)
	if err != nil {
		writeInternalError(w, "search customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponses(customers))
}

// Get returns a single customer by ID.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "customer")
	if !ok {
		return
	}

	customer, err := h.store.GetCustomerByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "customer not found")
			return
		}
		writeInternalError(w, "get customer", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// GetByEmail returns a single customer by email address.
func (h *CustomerHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	customer, err := h.store.GetCustomerByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "customer not found")
			return
		}
		writeInternalError(w, "get customer by email", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Create registers a new customer.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	customer, err := h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   textOrNull(req.Phone),
		Address: textOrNull(req.Address),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, codeConflict, "email already registered")
			return
		}
		writeInternalError(w, "create customer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

// Update replaces a customer's details. CUSTOMER users may only edit their
// own record.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "customer")
	if !ok {
		return
	}

	if !canManageCustomer(middleware.ClaimsFromContext(r.Context()), id) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this customer")
		return
	}

	var req customerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	customer, err := h.store.UpdateCustomer(r.Context(), database.UpdateCustomerParams{
		ID:      id,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   textOrNull(req.Phone),
		Address: textOrNull(req.Address),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "customer not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, codeConflict, "email already registered")
			return
		}
		writeInternalError(w, "update customer", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// ToggleActive flips a customer's active flag.
func (h *CustomerHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "customer")
	if !ok {
		return
	}

	if !canManageCustomer(middleware.ClaimsFromContext(r.Context()), id) {
		writeError(w, http.StatusForbidden, codeForbidden, "access denied for this customer")
		return
	}

	customer, err := h.store.ToggleCustomerActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "customer not found")
			return
		}
		writeInternalError(w, "toggle customer", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func canManageCustomer(claims *auth.Claims, customerID int64) bool {
	if claims == nil {
		return false
	}
	if claims.Role == enum.UserRoleAdmin {
		return true
	}
	return claims.Role == enum.UserRoleCustomer && claims.CustomerID != nil && *claims.CustomerID == customerID
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/deliverytech/api/internal/auth"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	GetUserByID(ctx context.Context, id int64) (database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	RegisterCustomerUser(ctx context.Context, arg database.RegisterCustomerUserParams) (database.User, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterRoutes registers the public auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

// RegisterProtectedRoutes registers auth endpoints that need a valid access token.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
}

// --- Request / Response types ---

// registerRequest is the public sign-up body. Links to existing
// restaurant or customer records are only set through /users.
type registerRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	Role         string `json:"role" validate:"required,oneof=CUSTOMER COURIER"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	Address      string `json:"address" validate:"max=200"`
	RestaurantID *int64 `json:"restaurant_id"`
	CustomerID   *int64 `json:"customer_id"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	RestaurantID *int64    `json:"restaurant_id"`
	CustomerID   *int64    `json:"customer_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUserResponse(u database.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		RestaurantID: int8Ptr(u.RestaurantID),
		CustomerID:   int8Ptr(u.CustomerID),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.Time,
	}
}

// --- Handlers ---

// Register creates a CUSTOMER or COURIER account. A CUSTOMER account gets
// a fresh customer record of its own. The caller logs in afterwards.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.RestaurantID != nil || req.CustomerID != nil {
		details := map[string]string{}
		if req.RestaurantID != nil {
			details["restaurant_id"] = "cannot be set on registration"
		}
		if req.CustomerID != nil {
			details["customer_id"] = "cannot be set on registration"
		}
		writeValidationError(w, "invalid request", details)
		return
	}

	params, ok := newUserParams(w, req.Name, req.Email, req.Password, req.Role, nil, nil)
	if !ok {
		return
	}

	var (
		user database.User
		err  error
	)
	if req.Role == enum.UserRoleCustomer {
		user, err = h.store.RegisterCustomerUser(r.Context(), database.RegisterCustomerUserParams{
			Name:           params.Name,
			Email:          params.Email,
			HashedPassword: params.HashedPassword,
			Phone:          textOrNull(req.Phone),
			Address:        textOrNull(req.Address),
		})
	} else {
		user, err = h.store.CreateUser(r.Context(), params)
	}
	if err != nil {
		writeCreateUserError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles email + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
			return
		}
		writeInternalError(w, "get user by email", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
		return
	}

	h.respondWithTokens(w, user)
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid refresh token")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "user not found")
			return
		}
		writeInternalError(w, "get user by id", err)
		return
	}

	h.respondWithTokens(w, user)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "user not found")
			return
		}
		writeInternalError(w, "get user by id", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- Helpers ---

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, user database.User) {
	accessToken, err := auth.GenerateToken(h.jwtSecret, auth.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		RestaurantID: int8Ptr(user.RestaurantID),
		CustomerID:   int8Ptr(user.CustomerID),
	})
	if err != nil {
		writeInternalError(w, "generate access token", err)
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, user.ID)
	if err != nil {
		writeInternalError(w, "generate refresh token", err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(auth.AccessTokenTTL.Seconds()),
		User:         toUserResponse(user),
	})
}

// newUserParams hashes the password and checks the role-specific links.
// RESTAURANT accounts must name their restaurant; only CUSTOMER accounts
// may link a customer record.
func newUserParams(w http.ResponseWriter, name, email, password, role string, restaurantID, customerID *int64) (database.CreateUserParams, bool) {
	if role == enum.UserRoleRestaurant && restaurantID == nil {
		writeValidationError(w, "invalid request", map[string]string{"restaurant_id": "is required for role RESTAURANT"})
		return database.CreateUserParams{}, false
	}
	if role != enum.UserRoleRestaurant && restaurantID != nil {
		writeValidationError(w, "invalid request", map[string]string{"restaurant_id": "is only allowed for role RESTAURANT"})
		return database.CreateUserParams{}, false
	}
	if role != enum.UserRoleCustomer && customerID != nil {
		writeValidationError(w, "invalid request", map[string]string{"customer_id": "is only allowed for role CUSTOMER"})
		return database.CreateUserParams{}, false
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		writeInternalError(w, "hash password", err)
		return database.CreateUserParams{}, false
	}

	return database.CreateUserParams{
		Name:           name,
		Email:          email,
		HashedPassword: string(hash),
		Role:           role,
		RestaurantID:   int8OrNull(restaurantID),
		CustomerID:     int8OrNull(customerID),
	}, true
}

func writeCreateUserError(w http.ResponseWriter, err error) {
	switch {
	case isUniqueViolation(err):
		writeError(w, http.StatusConflict, codeConflict, "email already registered")
	case isForeignKeyViolation(err):
		writeError(w, http.StatusNotFound, codeNotFound, "linked restaurant or customer not found")
	default:
		writeInternalError(w, "create user", err)
	}
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func int8OrNull(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

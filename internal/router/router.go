package router

import (
	"log"
	"net/http"

	"github.com/deliverytech/api/internal/cache"
	"github.com/deliverytech/api/internal/config"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/enum"
	"github.com/deliverytech/api/internal/events"
	"github.com/deliverytech/api/internal/handler"
	mw "github.com/deliverytech/api/internal/middleware"
	"github.com/deliverytech/api/internal/pix"
	"github.com/deliverytech/api/internal/service"
	"github.com/deliverytech/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed. publisher
// receives order events after commit; productCache may wrap a nil Redis
// client, in which case product reads go straight to the database.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, publisher events.Publisher, productCache *cache.ProductCache) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"UP","service":"delivery-api"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	if publisher == nil {
		publisher = events.Nop{}
	}
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, publisher)
	merchant := pix.Charge{Key: cfg.PixKey, MerchantName: cfg.PixMerchant, MerchantCity: cfg.PixCity}

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			reportsHandler := handler.NewReportsHandler(queries, cfg.Location)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})

		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		restaurantHandler := handler.NewRestaurantHandler(queries)
		r.Route("/restaurants", restaurantHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(queries, productCache)
		r.Route("/products", productHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(orderService, queries, merchant, cfg.Location)
		r.Route("/orders", orderHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}

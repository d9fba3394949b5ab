package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/restaurant-ops/internal/config"
	"github.com/kiwari-pos/restaurant-ops/internal/handler"
	mw "github.com/kiwari-pos/restaurant-ops/internal/middleware"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
	"github.com/kiwari-pos/restaurant-ops/internal/ws"
	"github.com/rs/zerolog"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, restaurant scoping, and role-based middleware as needed.
func New(cfg *config.Config, svc *service.Orchestrator, hub *ws.Hub, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Method(http.MethodGet, "/ws/restaurants/{rid}/events", ws.NewHandler(hub, cfg.JWTSecret, cfg.AllowedOrigins))

	// Restaurant-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			orderHandler := handler.NewOrderHandler(svc)
			paymentHandler := handler.NewPaymentHandler(svc)
			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)

				// Payments (nested under orders)
				r.Route("/{id}/payments", paymentHandler.RegisterRoutes)
			})

			tableHandler := handler.NewTableHandler(svc)
			r.Route("/tables", tableHandler.RegisterRoutes)

			menuHandler := handler.NewMenuHandler(svc)
			menuHandler.RegisterRoutes(r)
		})
	})

	logger.Debug().Msg("router initialized with all handlers")
	return r
}

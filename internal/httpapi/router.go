package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/internal/observability"
)

// NewRouter wires the purchase API routes. limiter and metrics may be nil.
func NewRouter(handler *Handler, limiter *Limiter, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Correlation)

	r.Get("/healthz", handler.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", observability.Handler(metrics))
	}

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter))
		r.Post("/purchase", handler.PlacePurchase)
	})

	r.Get("/orders/{transactionId}", handler.GetOrder)
	r.Get("/ws/orders", handler.OrdersFeed)

	return r
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// API groups the handlers mounted by NewRouter. Limiter may be nil.
type API struct {
	Health  *HealthHandler
	Quote   *QuoteHandler
	Price   *PriceHandler
	Limiter *RateLimiter
	Log     zerolog.Logger
}

func NewRouter(api API) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(api.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(CORS)

	// Routes
	r.Get("/health", api.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if api.Limiter != nil {
			r.Use(api.Limiter.Handler)
		}
		r.Get("/route", api.Quote.GetRoute)
		r.Get("/quote", api.Quote.GetQuote)
		r.Post("/swap", api.Quote.Swap)
		r.Get("/price/{token}", api.Price.GetPrice)
	})

	return r
}

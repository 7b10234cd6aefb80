package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semflow/seminar-registrations/internal/idempotency"
	"github.com/semflow/seminar-registrations/internal/observability"
	"github.com/semflow/seminar-registrations/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Get("/v1/sessions", h.ListSessions)
	r.Get("/v1/orders/{id}", h.GetOrder)
	r.Get("/v1/participants/{id}/ticket", h.IssueTicket)
	r.Post("/v1/checkin", h.CheckIn)
	r.Post("/v1/payments/callback", h.PaymentCallback)

	r.Group(func(r chi.Router) {
		r.Use(IdempotencyMiddleware(idemp))
		r.Post("/v1/checkout", h.CreateCheckout)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/coupons", h.CreateCoupon)
		r.Delete("/coupons/{code}", h.DeleteCoupon)
	})

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

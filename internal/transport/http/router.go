package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eduledger/internal/platform/middleware"
)

// NewRouter wires all public endpoints with middleware.
// The transaction endpoint requires an authenticated caller when a validator
// is provided; QuickVerify and health stay public.
func NewRouter(h *Handler, validator middleware.TokenValidator, logger *slog.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", h.handleHealth)
	r.Post("/v1/verify/quick", h.handleQuickVerify)

	r.Group(func(r chi.Router) {
		if validator != nil {
			r.Use(middleware.RequireCaller(validator, logger))
		}
		r.Post("/v1/transactions", h.handleSubmit)
		r.Get("/v1/operations", h.handleOperations)
	})

	return r
}

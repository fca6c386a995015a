// Package httpapi exposes the validation service over a JSON HTTP API,
// together with health and Prometheus endpoints.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/metrics"
)

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc *guard.Service) http.Handler {
	h := &Handlers{svc: svc}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/output", h.ValidateOutput)
		r.Post("/input", h.ValidateInput)
		r.Post("/command", h.ValidateCommand)

		r.Post("/learn", h.Learn)
		r.Get("/stats", h.Stats)

		r.Get("/rules", h.ExportRules)
		r.Put("/rules", h.ImportRules)
		r.Delete("/rules", h.ResetRules)

		r.Get("/execlog", h.ExecutionLog)
		r.Delete("/execlog", h.ClearExecutionLog)

		r.Get("/approvals", h.ListApprovals)
		r.Get("/approvals/{id}", h.GetApproval)
		r.Post("/approvals/{id}/approve", h.Approve)
		r.Post("/approvals/{id}/deny", h.Deny)
	})

	return r
}

// NewServer wraps the router in an http.Server with conservative timeouts.
func NewServer(addr string, svc *guard.Service) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

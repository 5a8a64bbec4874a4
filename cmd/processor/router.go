package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter creates the operational HTTP surface. The processor exposes no
// business endpoints; this router carries only liveness and readiness.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	r.Get("/readyz", app.handleReadiness)

	return r
}

// readinessResponse reports the state of each downstream dependency.
type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReadiness probes the database, the queue broker, and the ledger
// authority. Any failing dependency flips the response to 503.
func (app *application) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"queue":    "ok",
		"ledger":   "ok",
	}
	healthy := true

	if err := app.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := app.redisClient.Ping(ctx).Err(); err != nil {
		checks["queue"] = err.Error()
		healthy = false
	}
	if err := app.ledgerClient.Ping(ctx); err != nil {
		checks["ledger"] = err.Error()
		healthy = false
	}

	resp := readinessResponse{Status: "ready", Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		app.logger.Error("Failed to write readiness response", "error", err)
	}
}

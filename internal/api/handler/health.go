package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/docsense/docsense/internal/api/response"
	"github.com/docsense/docsense/internal/cache"
	"github.com/docsense/docsense/internal/store"
	"github.com/docsense/docsense/pkg/models"
)

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// Reports the database and cache as individual checks; any failure turns
// the whole response 503.
func NewHealthHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}
		healthy := true

		if err := st.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := ca.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more dependencies are unhealthy", checks)
			return
		}
		response.JSON(w, map[string]any{
			"status": "ok",
			"checks": checks,
		})
	}
}

// NewEngineHealthHandler returns an http.HandlerFunc for GET /api/v1/ai/health.
// Probes the summarization engine itself, including model availability.
func NewEngineHealthHandler(engine models.AIEngine, model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		body := map[string]any{
			"provider": engine.Name(),
			"model":    model,
		}

		if err := engine.HealthCheck(ctx); err != nil {
			body["status"] = "unavailable"
			body["error"] = err.Error()
			response.Error(w, http.StatusServiceUnavailable, "AI_ENGINE_UNAVAILABLE",
				"The AI engine is not available", body)
			return
		}

		body["status"] = "ok"
		response.JSON(w, body)
	}
}

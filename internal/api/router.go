package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/profitpulse/backend/internal/api/handlers"
	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, store *artifact.Store, hub *Hub, log *logger.Logger) http.Handler {
	artifactsHandler := handlers.NewArtifactsHandler(store, log)
	alertsHandler := handlers.NewAlertsHandler(store, log)
	adminHandler := handlers.NewAdminHandler(store, func(snap *artifact.Snapshot) {
		hub.Broadcast(ReloadEvent{Event: "artifacts_reloaded", GeneratedAt: snap.Manifest.GeneratedAt})
	}, log)

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(store)).Methods("GET")

	// Reload notifications
	r.HandleFunc("/ws", hub.ServeWS)

	// API
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/meta", artifactsHandler.GetMeta).Methods("GET")
	api.HandleFunc("/screener", artifactsHandler.GetScreener).Methods("GET")
	api.HandleFunc("/company/{id}", artifactsHandler.GetCompany).Methods("GET")
	api.HandleFunc("/compare", artifactsHandler.Compare).Methods("POST")
	api.HandleFunc("/summary", artifactsHandler.GetSummary).Methods("GET")
	api.HandleFunc("/about", artifactsHandler.GetAbout).Methods("GET")

	api.HandleFunc("/alerts", alertsHandler.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/top-risk", alertsHandler.GetTopRisk).Methods("GET")

	api.HandleFunc("/admin/reload", adminHandler.Reload).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(rateLimitMiddleware(cfg))

	return r
}

// healthCheckHandler reports server health and artifact availability
func healthCheckHandler(store *artifact.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		var generatedAt interface{}
		snap, err := store.Snapshot()
		if err != nil {
			status = "degraded"
		} else {
			generatedAt = snap.Manifest.GeneratedAt
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       status,
			"service":      "profitpulse-api",
			"generated_at": generatedAt,
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware applies a global token-bucket limit to inbound
// requests
func rateLimitMiddleware(cfg *config.Config) mux.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

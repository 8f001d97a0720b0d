// internal/handlers/router.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
)

// RouterDeps carries everything the router needs to serve traffic.
type RouterDeps struct {
	Emergency *EmergencyHandler
	DB        *sql.DB
	Redis     *redis.Client
	Logger    logger.Logger
}

// NewRouter wires the public API, health probes and the metrics endpoint.
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogging(deps.Logger))

	api := r.PathPrefix("/api/v1/emergency").Subrouter()
	api.HandleFunc("/trigger", deps.Emergency.Trigger).Methods(http.MethodPost)
	api.HandleFunc("/auto-trigger", deps.Emergency.AutoTrigger).Methods(http.MethodPost)
	api.HandleFunc("/history", deps.Emergency.History).Methods(http.MethodGet)
	api.HandleFunc("/{id}/cancel", deps.Emergency.Cancel).Methods(http.MethodPut)
	api.HandleFunc("/{id}/resolve", deps.Emergency.Resolve).Methods(http.MethodPut)
	api.HandleFunc("/{id}/acknowledge", deps.Emergency.Acknowledge).Methods(http.MethodPost)
	api.HandleFunc("/{id}", deps.Emergency.Get).Methods(http.MethodGet)

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", readyHandler(deps)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// readyHandler reports ready only when the backing stores answer.
func readyHandler(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		state := "ready"
		checks := map[string]string{}

		if deps.DB != nil {
			if err := deps.DB.PingContext(r.Context()); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
				state = "degraded"
			} else {
				checks["postgres"] = "ok"
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
				state = "degraded"
			} else {
				checks["redis"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": state,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func requestLogging(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Info("Request handled", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

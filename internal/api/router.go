package api

import (
	"encoding/json"
	"net/http"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/wonny/energia/backend/internal/api/handlers"
	"github.com/wonny/energia/backend/internal/telemetry"
	"github.com/wonny/energia/backend/pkg/logger"
)

// Handlers groups the endpoint handlers mounted by the router.
// A nil handler leaves its routes unmounted.
type Handlers struct {
	Metrics   *handlers.MetricsHandler
	Pipeline  *handlers.PipelineHandler
	Scheduler *handlers.SchedulerHandler
}

// NewRouter creates and configures the HTTP router. Browsers may read
// the API from corsOrigins ("*" for any).
// ⭐ SSOT: routing is configured in this function only
func NewRouter(h Handlers, corsOrigins []string, metrics *telemetry.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	if h.Metrics != nil {
		api.HandleFunc("/metrics", h.Metrics.List).Methods("GET")
		api.HandleFunc("/metrics/latest", h.Metrics.Latest).Methods("GET")
		api.HandleFunc("/metrics/catalog", h.Metrics.Catalog).Methods("GET")
		api.HandleFunc("/metrics/count", h.Metrics.Count).Methods("GET")
	}

	if h.Pipeline != nil {
		api.HandleFunc("/ingest", h.Pipeline.Ingest).Methods("POST")
		api.HandleFunc("/autocorrect", h.Pipeline.AutoCorrect).Methods("POST")
	}

	if h.Scheduler != nil {
		api.HandleFunc("/scheduler/jobs", h.Scheduler.Jobs).Methods("GET")
		api.HandleFunc("/scheduler/jobs/{name}/run", h.Scheduler.Run).Methods("POST")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(metricsMiddleware(metrics))
	r.Use(recoveryMiddleware(log))

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(corsOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return gorillahandlers.CompressHandler(cors(r))
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "energia-api",
	})
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

// metricsMiddleware counts requests by route template, so path
// variables do not explode label cardinality
func metricsMiddleware(metrics *telemetry.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.WrapHandler(route, next).ServeHTTP(w, r)
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

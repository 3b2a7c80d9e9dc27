package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/metricsconfig"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/redis"
)

const (
	defaultLimit = 1000
	maxLimit     = 10000
	latestTTL    = 10 * time.Minute
)

// MetricsHandler serves the read side of the metric store
// ⭐ SSOT: metric read endpoints live in this handler only
type MetricsHandler struct {
	store   contracts.MetricStore
	catalog *metricsconfig.Catalog
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewMetricsHandler creates a new metrics handler. cache may wrap a
// disabled client.
func NewMetricsHandler(store contracts.MetricStore, catalog *metricsconfig.Catalog, cache *redis.Cache, log *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		store:   store,
		catalog: catalog,
		cache:   cache,
		logger:  log.Module("api.metrics"),
	}
}

// List returns stored rows matching the query
// GET /api/metrics?metrica=Gene&entidad=Recurso&recurso=X&from=2026-01-01&to=2026-01-31&limit=100
func (h *MetricsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := contracts.Filter{
		Metrica: q.Get("metrica"),
		Entidad: q.Get("entidad"),
		Recurso: q.Get("recurso"),
		Limit:   defaultLimit,
	}

	var err error
	if filter.From, err = parseDate(r, "from"); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
		return
	}
	if filter.To, err = parseDate(r, "to"); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
		return
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		respondError(w, http.StatusBadRequest, "'to' must not be before 'from'")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit'")
			return
		}
		filter.Limit = min(n, maxLimit)
	}

	rows, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query metrics")
		respondError(w, http.StatusInternalServerError, "Failed to query metrics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}

// LatestResponse is the freshness of one metric/entity
type LatestResponse struct {
	Metrica string `json:"metrica"`
	Entidad string `json:"entidad"`
	Fecha   string `json:"fecha,omitempty"`
	Found   bool   `json:"found"`
}

// Latest returns the newest stored date for each catalog metric, or for
// the one named by metrica/entidad
// GET /api/metrics/latest
func (h *MetricsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metrica, entidad := r.URL.Query().Get("metrica"), r.URL.Query().Get("entidad")

	specs := h.catalog.All()
	if metrica != "" || entidad != "" {
		specs = h.catalog.Select(metrica, entidad)
		if len(specs) == 0 {
			respondError(w, http.StatusNotFound, "Unknown metric")
			return
		}
	}

	out := make([]LatestResponse, 0, len(specs))
	for _, spec := range specs {
		resp, err := h.latest(ctx, spec.Metric, spec.Entity)
		if err != nil {
			h.logger.WithError(err).WithField("metric", spec.ID()).Error("Failed to read latest date")
			respondError(w, http.StatusInternalServerError, "Failed to read latest date")
			return
		}
		out = append(out, resp)
	}

	respondJSON(w, http.StatusOK, out)
}

func (h *MetricsHandler) latest(ctx context.Context, metrica, entidad string) (LatestResponse, error) {
	key := redis.LatestKey(metrica, entidad)

	var cached LatestResponse
	if ok, err := h.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	resp := LatestResponse{Metrica: metrica, Entidad: entidad}
	day, found, err := h.store.LatestDate(ctx, metrica, entidad)
	if err != nil {
		return resp, err
	}
	if found {
		resp.Found = true
		resp.Fecha = day.Format(contracts.DateLayout)
	}

	if err := h.cache.Set(ctx, key, resp, latestTTL); err != nil {
		h.logger.WithError(err).Debug("Failed to cache latest date")
	}
	return resp, nil
}

// Catalog returns the configured metric catalog
// GET /api/metrics/catalog
func (h *MetricsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.All())
}

// Count returns the number of stored rows
// GET /api/metrics/count
func (h *MetricsHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count metrics")
		respondError(w, http.StatusInternalServerError, "Failed to count metrics")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

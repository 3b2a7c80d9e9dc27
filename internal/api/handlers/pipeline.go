package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/internal/data/collector"
	"github.com/wonny/energia/backend/internal/external/xm"
	"github.com/wonny/energia/backend/pkg/logger"
)

// Ingester runs ingestion (*collector.Collector)
type Ingester interface {
	Run(ctx context.Context, opts collector.Options) (*collector.RunResult, error)
}

// Corrector runs the correction passes (*autocorrect.Corrector)
type Corrector interface {
	Run(ctx context.Context, dryRun bool) (*autocorrect.Stats, error)
}

// PipelineHandler triggers ingestion and auto-correction on demand
type PipelineHandler struct {
	ingester  Ingester
	corrector Corrector
	logger    *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(ingester Ingester, corrector Corrector, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		ingester:  ingester,
		corrector: corrector,
		logger:    log.Module("api.pipeline"),
	}
}

// IngestRequest represents an ingestion request
type IngestRequest struct {
	Mode      string   `json:"mode"` // incremental, full, range
	From      string   `json:"from"` // range mode (YYYY-MM-DD)
	To        string   `json:"to"`
	Resources []string `json:"resources,omitempty"`
}

// Ingest runs one ingestion synchronously and returns its result.
// A partial run answers 200; a fatal run answers 502/500 with the
// partial result attached.
// POST /api/ingest
func (h *PipelineHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Mode == "" {
		req.Mode = string(collector.ModeIncremental)
	}
	mode, err := collector.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := collector.Options{Mode: mode, Resources: req.Resources}
	if mode == collector.ModeRange {
		if opts.From, err = parseDateString(req.From); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return
		}
		if opts.To, err = parseDateString(req.To); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"mode": mode,
		"from": req.From,
		"to":   req.To,
	}).Info("Ingestion triggered")

	result, err := h.ingester.Run(r.Context(), opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, xm.ErrUnavailable) {
			status = http.StatusBadGateway
		}
		respondJSON(w, status, map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// AutoCorrect runs the correction passes
// POST /api/autocorrect?dry_run=true
func (h *PipelineHandler) AutoCorrect(w http.ResponseWriter, r *http.Request) {
	dryRun, err := parseBool(r, "dry_run")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'dry_run'")
		return
	}

	stats, err := h.corrector.Run(r.Context(), dryRun)
	if err != nil {
		h.logger.WithError(err).Error("Auto-correction failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"stats": stats,
		})
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

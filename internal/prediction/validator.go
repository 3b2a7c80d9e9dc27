// Package prediction checks stored generation forecasts against the real
// generation that arrived later.
package prediction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/pkg/logger"
)

// MinObservations is the smallest matched sample a source is scored on
const MinObservations = 5

// DefaultMAPEThreshold raises an alert above 15% MAPE
const DefaultMAPEThreshold = 0.15

// FuenteTipo maps forecast sources to ListadoRecursos tipos
var FuenteTipo = map[string]string{
	"Hidráulica": "HIDRAULICA",
	"Térmica":    "TERMICA",
	"Eólica":     "EOLICA",
	"Solar":      "SOLAR",
	"Biomasa":    "COGENERADOR",
}

// SourceMetrics scores one forecast source
type SourceMetrics struct {
	Fuente        string  `json:"fuente"`
	MAPE          float64 `json:"mape"`
	MAE           float64 `json:"mae"`
	RMSE          float64 `json:"rmse"`
	Coverage      float64 `json:"cobertura_ic95"`
	Observations  int     `json:"n_observaciones"`
	MeanReal      float64 `json:"promedio_real"`
	MeanPredicted float64 `json:"promedio_predicho"`
	Bias          float64 `json:"sesgo"`
}

// Alert flags a source over the MAPE threshold
type Alert struct {
	Fuente    string  `json:"fuente"`
	MAPE      float64 `json:"mape"`
	Threshold float64 `json:"umbral"`
	Message   string  `json:"mensaje"`
}

// Report is one validation run
type Report struct {
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Sources []SourceMetrics `json:"sources"`
	Alerts  []Alert         `json:"alerts,omitempty"`
	Skipped []string        `json:"skipped,omitempty"` // sources with too few matches
}

// Passed reports whether no source crossed the threshold
func (r *Report) Passed() bool {
	return len(r.Alerts) == 0
}

// Validator compares predictions with observations
type Validator struct {
	repo      contracts.PredictionRepository
	threshold float64
	logger    *logger.Logger
	now       func() time.Time
}

// NewValidator creates a validator; threshold <= 0 uses the default
func NewValidator(repo contracts.PredictionRepository, threshold float64, log *logger.Logger) *Validator {
	if threshold <= 0 {
		threshold = DefaultMAPEThreshold
	}
	return &Validator{
		repo:      repo,
		threshold: threshold,
		logger:    log.Module("prediction"),
		now:       time.Now,
	}
}

// Validate scores the predictions of the last days days
func (v *Validator) Validate(ctx context.Context, days int) (*Report, error) {
	to := contracts.Day(v.now())
	from := to.AddDate(0, 0, -days)
	report := &Report{From: from, To: to}

	fuentes := make([]string, 0, len(FuenteTipo))
	for f := range FuenteTipo {
		fuentes = append(fuentes, f)
	}
	sort.Strings(fuentes)

	for _, fuente := range fuentes {
		preds, err := v.repo.Predictions(ctx, fuente, from, to)
		if err != nil {
			return nil, fmt.Errorf("predictions %s: %w", fuente, err)
		}
		if len(preds) == 0 {
			continue
		}

		obs, err := v.repo.Observations(ctx, FuenteTipo[fuente], from, to)
		if err != nil {
			return nil, fmt.Errorf("observations %s: %w", fuente, err)
		}

		m, ok := Score(fuente, preds, obs)
		if !ok {
			report.Skipped = append(report.Skipped, fuente)
			continue
		}
		report.Sources = append(report.Sources, m)

		if m.MAPE > v.threshold {
			alert := Alert{
				Fuente:    fuente,
				MAPE:      m.MAPE,
				Threshold: v.threshold,
				Message:   fmt.Sprintf("%s accuracy below threshold: %.1f%% > %.1f%%", fuente, m.MAPE*100, v.threshold*100),
			}
			report.Alerts = append(report.Alerts, alert)
			v.logger.WithFields(map[string]interface{}{
				"fuente": fuente,
				"mape":   m.MAPE,
			}).Warn("Prediction accuracy alert")
		}
	}

	v.logger.WithFields(map[string]interface{}{
		"sources": len(report.Sources),
		"alerts":  len(report.Alerts),
	}).Info("Prediction validation completed")

	return report, nil
}

// Score matches predictions with observations by date. ok is false when
// fewer than MinObservations pairs matched.
func Score(fuente string, preds []contracts.Prediction, obs []contracts.Observation) (SourceMetrics, bool) {
	actual := make(map[time.Time]float64, len(obs))
	for _, o := range obs {
		actual[contracts.Day(o.Fecha)] = o.Valor
	}

	var (
		n                             int
		sumAPE, sumAE, sumSE          float64
		sumReal, sumPred              float64
		covered, withInterval, apeCnt int
	)
	for _, p := range preds {
		y, ok := actual[contracts.Day(p.FechaPrediccion)]
		if !ok {
			continue
		}
		n++
		diff := p.ValorGWhPredicho - y
		sumAE += math.Abs(diff)
		sumSE += diff * diff
		sumReal += y
		sumPred += p.ValorGWhPredicho
		if y != 0 {
			sumAPE += math.Abs(diff / y)
			apeCnt++
		}
		if p.IntervaloInferior != nil && p.IntervaloSuperior != nil {
			withInterval++
			if p.Contains(y) {
				covered++
			}
		}
	}

	if n < MinObservations {
		return SourceMetrics{Fuente: fuente, Observations: n}, false
	}

	m := SourceMetrics{
		Fuente:        fuente,
		MAE:           sumAE / float64(n),
		RMSE:          math.Sqrt(sumSE / float64(n)),
		Observations:  n,
		MeanReal:      sumReal / float64(n),
		MeanPredicted: sumPred / float64(n),
	}
	if apeCnt > 0 {
		m.MAPE = sumAPE / float64(apeCnt)
	}
	if withInterval > 0 {
		m.Coverage = float64(covered) / float64(withInterval)
	}
	if m.MeanReal > 0 {
		m.Bias = (m.MeanPredicted - m.MeanReal) / m.MeanReal
	}
	return m, true
}

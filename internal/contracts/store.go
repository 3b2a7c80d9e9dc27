package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: repository interfaces are defined here only

// MetricStore is the metrics table. The ingestion side only inserts;
// every update or delete of existing rows goes through WithTx.
type MetricStore interface {
	Insert(ctx context.Context, rows []Metric) (int64, error)
	Query(ctx context.Context, f Filter) ([]Metric, error)
	LatestDate(ctx context.Context, metrica, entidad string) (time.Time, bool, error)
	Count(ctx context.Context) (int64, error)

	// WithTx runs fn in one short transaction. A non-nil error from fn
	// rolls back everything fn did.
	WithTx(ctx context.Context, fn func(tx MetricTx) error) error
}

// MetricTx is the corrective surface of the store, valid inside WithTx
type MetricTx interface {
	Find(ctx context.Context, s Selector) ([]Metric, error)
	DuplicateGroups(ctx context.Context) ([]DuplicateGroup, error)
	DeleteIDs(ctx context.Context, ids []int64) (int64, error)
	SetRecurso(ctx context.Context, ids []int64, recurso string) (int64, error)
}

// CatalogRepository stores resource listings
type CatalogRepository interface {
	Upsert(ctx context.Context, resources []Resource) (int64, error)
	List(ctx context.Context, catalogo string) ([]Resource, error)
}

// PredictionRepository reads forecasts and the realized values they target
type PredictionRepository interface {
	Predictions(ctx context.Context, fuente string, from, to time.Time) ([]Prediction, error)
	Observations(ctx context.Context, tipo string, from, to time.Time) ([]Observation, error)
	Save(ctx context.Context, p []Prediction) (int64, error)
}

package xm

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means no XM source could be built (disabled, or the
	// health probe failed)
	ErrUnavailable = errors.New("xm data source unavailable")

	// ErrEmptyResponse means the call succeeded but carried no rows
	ErrEmptyResponse = errors.New("xm returned no data")
)

// RawRow is one flattened record of an XM payload. Hourly payloads carry
// Values_Hour01..Values_Hour24; daily payloads carry Values_Value.
type RawRow map[string]interface{}

// Request identifies one fetch: a metric for an entity, optionally narrowed
// to a single resource code, over [From, To]
type Request struct {
	Metric   string
	Entity   string
	Resource string // empty = every resource of the entity
	From     time.Time
	To       time.Time
	Hourly   bool
}

// Source is the data source contract consumed by ingestion. Every call is
// independent: it either returns rows or fails without side effects.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]RawRow, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, req Request) ([]RawRow, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context, req Request) ([]RawRow, error) {
	return f(ctx, req)
}

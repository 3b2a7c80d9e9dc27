package contracts

import (
	"errors"
	"strings"
	"time"
)

// SistemaSentinel is the canonical recurso of system-wide rows
const SistemaSentinel = "_SISTEMA_"

// DefaultUnit is the unit of energy metrics
const DefaultUnit = "GWh"

// DateLayout is the civil date format used for fecha
const DateLayout = "2006-01-02"

// ErrStore marks failures of the metric store itself (connection,
// transaction). Only these abort an ingestion run.
var ErrStore = errors.New("metric store failure")

// Metric is one observation row of the metrics table
type Metric struct {
	ID                 int64     `json:"id"`
	Fecha              time.Time `json:"fecha"`
	Metrica            string    `json:"metrica"`
	Entidad            string    `json:"entidad"`
	Recurso            string    `json:"recurso"`
	ValorGWh           float64   `json:"valor_gwh"`
	Unidad             string    `json:"unidad"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}

// Key returns the logical identity of the row
func (m Metric) Key() Key {
	return Key{
		Metrica: m.Metrica,
		Entidad: m.Entidad,
		Recurso: m.Recurso,
		Fecha:   m.Fecha.Format(DateLayout),
	}
}

// Key is the logical identity (metrica, entidad, recurso, fecha).
// At most one live row per Key exists after a correction run.
type Key struct {
	Metrica string
	Entidad string
	Recurso string
	Fecha   string // YYYY-MM-DD
}

// IsSistemaVariant reports whether recurso spells "sistema" in some case
// other than the canonical sentinel
func IsSistemaVariant(recurso string) bool {
	return recurso != SistemaSentinel && strings.EqualFold(recurso, "sistema")
}

// Day truncates t to a civil date in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filter is the read-side query used by dashboards and reports
type Filter struct {
	Metrica string
	Entidad string
	Recurso string
	From    time.Time // inclusive, zero = unbounded
	To      time.Time // inclusive, zero = unbounded
	Limit   int
}

// Selector picks candidate rows for a correction pass.
// Zero-valued fields do not constrain the selection.
type Selector struct {
	FechaAfter  *time.Time // fecha > value
	FechaFrom   *time.Time // fecha >= value
	FechaTo     *time.Time // fecha <= value
	ValueBelow  *float64   // valor_gwh < value
	ValueAbove  *float64   // valor_gwh > value
	Metrica     string
	Recurso     string // exact match
	RecursoFold string // case-insensitive match
}

// Matches evaluates the selector against one row
func (s Selector) Matches(m Metric) bool {
	fecha := Day(m.Fecha)
	if s.FechaAfter != nil && !fecha.After(Day(*s.FechaAfter)) {
		return false
	}
	if s.FechaFrom != nil && fecha.Before(Day(*s.FechaFrom)) {
		return false
	}
	if s.FechaTo != nil && fecha.After(Day(*s.FechaTo)) {
		return false
	}
	if s.ValueBelow != nil && !(m.ValorGWh < *s.ValueBelow) {
		return false
	}
	if s.ValueAbove != nil && !(m.ValorGWh > *s.ValueAbove) {
		return false
	}
	if s.Metrica != "" && m.Metrica != s.Metrica {
		return false
	}
	if s.Recurso != "" && m.Recurso != s.Recurso {
		return false
	}
	if s.RecursoFold != "" && !strings.EqualFold(m.Recurso, s.RecursoFold) {
		return false
	}
	return true
}

// DuplicateGroup is a logical key held by more than one row.
// IDs are sorted ascending.
type DuplicateGroup struct {
	Key Key
	IDs []int64
}

// Keep returns the surviving id: the highest surrogate id
func (g DuplicateGroup) Keep() int64 {
	return g.IDs[len(g.IDs)-1]
}

// Losers returns every id except Keep
func (g DuplicateGroup) Losers() []int64 {
	return g.IDs[:len(g.IDs)-1]
}

package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestIsSistemaVariant(t *testing.T) {
	tests := []struct {
		recurso string
		want    bool
	}{
		{"sistema", true},
		{"Sistema", true},
		{"SISTEMA", true},
		{SistemaSentinel, false},
		{"sistemas", false},
		{"PLANTA1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.recurso, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSistemaVariant(tt.recurso))
		})
	}
}

func TestSelector_Matches(t *testing.T) {
	row := Metric{
		Fecha:    time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
		Metrica:  "Gene",
		Recurso:  "Sistema",
		ValorGWh: 15000,
	}
	jan5 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	jan4 := jan5.AddDate(0, 0, -1)

	tests := []struct {
		name string
		sel  Selector
		want bool
	}{
		{"empty selects all", Selector{}, true},
		{"after is strict", Selector{FechaAfter: &jan5}, false},
		{"after previous day", Selector{FechaAfter: &jan4}, true},
		{"from is inclusive", Selector{FechaFrom: &jan5}, true},
		{"to is inclusive", Selector{FechaTo: &jan5}, true},
		{"to excludes later", Selector{FechaTo: &jan4}, false},
		{"above ceiling", Selector{Metrica: "Gene", ValueAbove: ptr(10000.0)}, true},
		{"above is strict", Selector{ValueAbove: ptr(15000.0)}, false},
		{"below zero", Selector{ValueBelow: ptr(0.0)}, false},
		{"other metric", Selector{Metrica: "DemaCome"}, false},
		{"exact recurso", Selector{Recurso: "sistema"}, false},
		{"folded recurso", Selector{RecursoFold: "sistema"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Matches(row))
		})
	}
}

func TestDuplicateGroup_KeepsHighestID(t *testing.T) {
	g := DuplicateGroup{IDs: []int64{10, 11, 12}}
	assert.Equal(t, int64(12), g.Keep())
	assert.Equal(t, []int64{10, 11}, g.Losers())
}

func TestMetric_KeyIgnoresTimeOfDay(t *testing.T) {
	a := Metric{Fecha: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Metrica: "Gene", Entidad: "Sistema", Recurso: SistemaSentinel}
	b := a
	b.Fecha = b.Fecha.Add(13 * time.Hour)
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "2026-01-05", a.Key().Fecha)
}

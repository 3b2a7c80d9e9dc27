// Package normalizer maps raw XM rows onto canonical metric rows.
package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/external/xm"
	"github.com/wonny/energia/backend/internal/metricsconfig"
)

const (
	hoursPerDay = 24
	kiloToGiga  = 1_000_000
	kiloToMega  = 1_000
)

var (
	// ErrMissingField marks a row without a date, value or resource
	ErrMissingField = errors.New("missing required field")
	// ErrOutOfRange marks a value outside the configured plausible range
	ErrOutOfRange = errors.New("value out of range")
)

// Input is the request context a payload is normalized against
type Input struct {
	Spec     metricsconfig.MetricSpec
	Resource string               // requested resource; empty = read from payload
	Range    *metricsconfig.Range // optional plausibility bounds
	Now      time.Time            // stamped as fecha_actualizacion
}

// RowError explains why one raw row was dropped
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

// Result is the outcome of one payload
type Result struct {
	Rows     []contracts.Metric
	Skipped  []RowError
	Rejected int // subset of Skipped failing the range check
}

// Normalize converts every raw row it can. A bad row is recorded in
// Skipped and never affects its siblings.
func Normalize(in Input, raw []xm.RawRow) Result {
	var res Result
	unit := metricsconfig.UnitFor(in.Spec)

	for i, row := range raw {
		m, err := normalizeRow(in, unit, row)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Index: i, Err: err})
			if errors.Is(err, ErrOutOfRange) {
				res.Rejected++
			}
			continue
		}
		res.Rows = append(res.Rows, m)
	}

	return res
}

func normalizeRow(in Input, unit string, row xm.RawRow) (contracts.Metric, error) {
	fecha, err := rowDate(row)
	if err != nil {
		return contracts.Metric{}, err
	}

	value, err := rowValue(in.Spec.Conversion, row)
	if err != nil {
		return contracts.Metric{}, err
	}

	recurso, err := resolveResource(in, row)
	if err != nil {
		return contracts.Metric{}, err
	}

	if in.Range != nil && !in.Range.Contains(value) {
		return contracts.Metric{}, fmt.Errorf("%w: %s=%.3f not in [%g, %g]",
			ErrOutOfRange, in.Spec.ID(), value, in.Range.Min, in.Range.Max)
	}

	return contracts.Metric{
		Fecha:              fecha,
		Metrica:            in.Spec.Metric,
		Entidad:            in.Spec.Entity,
		Recurso:            recurso,
		ValorGWh:           value,
		Unidad:             unit,
		FechaActualizacion: in.Now,
	}, nil
}

func rowDate(row xm.RawRow) (time.Time, error) {
	s, ok := xm.String(row, "Date")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: Date", ErrMissingField)
	}

	for _, layout := range []string{contracts.DateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable Date %q", ErrMissingField, s)
}

// HourColumn returns the column name of hour h (1-based)
func HourColumn(h int) string {
	return fmt.Sprintf("Values_Hour%02d", h)
}

// hourValues returns the present hour cells, skipping NULL ones
func hourValues(row xm.RawRow) []float64 {
	values := make([]float64, 0, hoursPerDay)
	for h := 1; h <= hoursPerDay; h++ {
		if v, ok := xm.Float(row, HourColumn(h)); ok {
			values = append(values, v)
		}
	}
	return values
}

func rowValue(conv metricsconfig.Conversion, row xm.RawRow) (float64, error) {
	if conv.Hourly() {
		hours := hourValues(row)
		if len(hours) == 0 {
			return 0, fmt.Errorf("%w: hour columns", ErrMissingField)
		}

		var sum float64
		for _, v := range hours {
			sum += v
		}

		switch conv {
		case metricsconfig.HoursToDaily:
			return sum / kiloToGiga, nil
		case metricsconfig.HoursSum:
			return sum, nil
		case metricsconfig.HoursMean:
			return sum / float64(len(hours)), nil
		case metricsconfig.HoursMeanMW:
			return sum / float64(len(hours)) / kiloToMega, nil
		}
	}

	v, ok := xm.Float(row, "Values_Value")
	if !ok {
		v, ok = xm.Float(row, "Value")
	}
	if !ok {
		return 0, fmt.Errorf("%w: Value", ErrMissingField)
	}

	if conv == metricsconfig.KWhToGWh {
		return v / kiloToGiga, nil
	}
	return v, nil
}

// resolveResource prefers the requested resource and otherwise reads the
// payload in the order Values_code, Values_Name, Name, Id
func resolveResource(in Input, row xm.RawRow) (string, error) {
	if strings.EqualFold(in.Spec.Entity, "Sistema") {
		return contracts.SistemaSentinel, nil
	}

	if in.Resource != "" {
		return canonical(in.Resource), nil
	}

	for _, key := range []string{"Values_code", "Values_Code", "Values_Name", "Name", "Id"} {
		if s, ok := xm.String(row, key); ok {
			return canonical(s), nil
		}
	}
	return "", fmt.Errorf("%w: recurso", ErrMissingField)
}

func canonical(recurso string) string {
	if contracts.IsSistemaVariant(recurso) {
		return contracts.SistemaSentinel
	}
	return recurso
}

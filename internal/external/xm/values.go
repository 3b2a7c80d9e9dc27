package xm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Float reads a numeric cell. XM sends numbers as JSON numbers or as
// strings; null, empty and NaN cells are reported as missing.
func Float(row RawRow, key string) (float64, bool) {
	return toFloat(row[key])
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String reads a text cell
func String(row RawRow, key string) (string, bool) {
	s, ok := row[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// placeholders are the tokens upstreams use for "no value".
var placeholders = map[string]bool{
	"-":    true,
	"N/A":  true,
	"":     true,
	"null": true,
	"None": true,
}

// CoerceFloat converts a loosely typed payload value to float64. Numbers pass
// through; strings may carry thousands separators. Placeholders, unparseable
// strings, non-finite values and any other type yield def.
func CoerceFloat(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return def
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return def
		}
		f = p
	case string:
		s, ok := cleanNumeric(x)
		if !ok {
			return def
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = p
	default:
		return def
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// CoerceInt converts a loosely typed payload value to int64. Fractional
// numbers are truncated toward zero.
func CoerceInt(v any, def int64) int64 {
	switch x := v.(type) {
	case nil:
		return def
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case string:
		s, ok := cleanNumeric(x)
		if !ok {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}

	f := CoerceFloat(v, math.NaN())
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return def
	}
	return int64(f)
}

func cleanNumeric(s string) (string, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if placeholders[s] {
		return "", false
	}
	return s, true
}

package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// asNumber reports v as a float64 when it is a Go or JSON number.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asNumeric is asNumber plus strings holding a finite decimal number.
// Devices with naive firmware sometimes send "23.5" instead of 23.5.
func asNumeric(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// roundTenth rounds to one decimal place.
func roundTenth(f float64) float64 {
	return math.Round(f*10) / 10
}

package telemetry

import (
	"encoding/json"
	"time"
)

// MetricStats summarises one numeric metric.
type MetricStats struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	// Average is rounded to one decimal place.
	Average float64 `json:"average"`
	// Count is the number of readings that carried the metric.
	Count int `json:"count"`
}

// Statistics is the aggregate view over the whole history.
type Statistics struct {
	Metrics    map[string]MetricStats
	DataPoints int
	LastUpdate time.Time
}

// MarshalJSON renders metrics at the top level next to dataPoints and lastUpdate:
//
//	{"temperature":{"current":30,"min":25,"max":30,"average":27.5,"count":3},"dataPoints":3,"lastUpdate":"..."}
func (s Statistics) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Metrics)+2)
	for name, m := range s.Metrics {
		out[name] = m
	}
	out["dataPoints"] = s.DataPoints
	out["lastUpdate"] = s.LastUpdate.Format(time.RFC3339Nano)
	return json.Marshal(out)
}

type accumulator struct {
	current, min, max, sum float64
	count                  int
}

// computeStatistics walks h oldest to newest. Readings missing a metric are
// left out of that metric's aggregate. h must be non-empty.
func computeStatistics(h *History) Statistics {
	accs := make(map[string]*accumulator)

	for i := 0; i < h.Len(); i++ {
		r := h.at(i)
		for name, raw := range r.fields {
			// Names that would collide with the summary keys are skipped.
			if name == "dataPoints" || name == "lastUpdate" {
				continue
			}
			v, ok := asNumeric(raw)
			if !ok {
				continue
			}
			acc, seen := accs[name]
			if !seen {
				accs[name] = &accumulator{current: v, min: v, max: v, sum: v, count: 1}
				continue
			}
			acc.current = v
			acc.min = min(acc.min, v)
			acc.max = max(acc.max, v)
			acc.sum += v
			acc.count++
		}
	}

	metrics := make(map[string]MetricStats, len(accs))
	for name, acc := range accs {
		metrics[name] = MetricStats{
			Current: acc.current,
			Min:     acc.min,
			Max:     acc.max,
			Average: roundTenth(acc.sum / float64(acc.count)),
			Count:   acc.count,
		}
	}

	latest, _ := h.Latest()
	return Statistics{
		Metrics:    metrics,
		DataPoints: h.Len(),
		LastUpdate: latest.Timestamp(),
	}
}

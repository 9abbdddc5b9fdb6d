package telemetry

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatistics_AverageCorrectness(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	for _, p := range []string{`{"temperature":25.0}`, `{"temperature":27.5}`, `{"temperature":30.0}`} {
		mustIngest(t, s, p)
	}

	stats, err := s.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	temp, ok := stats.Metrics["temperature"]
	if !ok {
		t.Fatal("temperature metric missing")
	}
	want := MetricStats{Current: 30, Min: 25, Max: 30, Average: 27.5, Count: 3}
	if temp != want {
		t.Errorf("temperature = %+v, want %+v", temp, want)
	}
	if stats.DataPoints != 3 {
		t.Errorf("DataPoints = %d, want 3", stats.DataPoints)
	}
}

func TestStatistics_MissingMetricExcluded(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	mustIngest(t, s, `{"humidity":60,"temperature":20}`)
	mustIngest(t, s, `{"temperature":22}`)
	mustIngest(t, s, `{"humidity":70}`)

	stats, err := s.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	hum := stats.Metrics["humidity"]
	if hum.Average != 65 || hum.Count != 2 {
		t.Errorf("humidity = %+v, want average 65 over 2 readings", hum)
	}
	temp := stats.Metrics["temperature"]
	if temp.Current != 22 {
		t.Errorf("temperature current = %v, want 22 (last reading carrying it)", temp.Current)
	}
}

func TestStatistics_NumericStringsAndRounding(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	mustIngest(t, s, `{"moisture":"10"}`)
	mustIngest(t, s, `{"moisture":10}`)
	mustIngest(t, s, `{"moisture":"11","label":"bed-3","pumpState":true}`)

	stats, err := s.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	m := stats.Metrics["moisture"]
	// 31 / 3 = 10.333...
	if m.Average != 10.3 {
		t.Errorf("average = %v, want 10.3", m.Average)
	}
	if _, ok := stats.Metrics["label"]; ok {
		t.Error("non-numeric field should not produce a metric")
	}
	if _, ok := stats.Metrics["pumpState"]; ok {
		t.Error("boolean field should not produce a metric")
	}
}

func TestStatistics_LastUpdateAndJSON(t *testing.T) {
	s, clock := newTestStore(t, Options{})
	mustIngest(t, s, `{"temperature":20}`)
	clock.Advance(time.Minute)
	mustIngest(t, s, `{"temperature":21}`)

	stats, err := s.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if !stats.LastUpdate.Equal(clock.Now()) {
		t.Errorf("LastUpdate = %v, want %v", stats.LastUpdate, clock.Now())
	}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["dataPoints"] != float64(2) {
		t.Errorf("dataPoints = %v", got["dataPoints"])
	}
	temp, ok := got["temperature"].(map[string]any)
	if !ok {
		t.Fatalf("temperature not an object: %v", got["temperature"])
	}
	if temp["average"] != 20.5 || temp["current"] != float64(21) {
		t.Errorf("temperature = %v", temp)
	}
}

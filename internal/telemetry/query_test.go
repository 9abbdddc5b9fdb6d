package telemetry

import (
	"errors"
	"testing"
	"time"
)

func TestParseRangeBounds(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "RFC3339",
			start:     "2025-03-01T00:00:00Z",
			end:       "2025-03-01T06:00:00Z",
			wantStart: day,
			wantEnd:   day.Add(6 * time.Hour),
		},
		{
			name:      "RFC3339 with offset and millis",
			start:     "2025-03-01T02:00:00.000+02:00",
			end:       "2025-03-01T01:00:00.500Z",
			wantStart: day,
			wantEnd:   day.Add(time.Hour + 500*time.Millisecond),
		},
		{
			name:      "zone-less datetime is UTC",
			start:     "2025-03-01T00:00:00",
			end:       "2025-03-01T12:30:00",
			wantStart: day,
			wantEnd:   day.Add(12*time.Hour + 30*time.Minute),
		},
		{
			name:      "date only",
			start:     "2025-03-01",
			end:       "2025-03-02",
			wantStart: day,
			wantEnd:   day.Add(24 * time.Hour),
		},
		{
			name:      "unix seconds",
			start:     "1740787200",
			end:       "1740787260",
			wantStart: day,
			wantEnd:   day.Add(time.Minute),
		},
		{
			name:      "equal bounds",
			start:     "2025-03-01",
			end:       "2025-03-01",
			wantStart: day,
			wantEnd:   day,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ParseRangeBounds(tt.start, tt.end)
			if err != nil {
				t.Fatalf("ParseRangeBounds() error = %v", err)
			}
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestParseRangeBounds_Errors(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"missing start", "", "2025-03-01"},
		{"missing end", "2025-03-01", ""},
		{"blank", "  ", "  "},
		{"garbage", "yesterday", "2025-03-01"},
		{"end before start", "2025-03-02", "2025-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRangeBounds(tt.start, tt.end)
			if !errors.Is(err, ErrInvalidRange) {
				t.Errorf("error = %v, want ErrInvalidRange", err)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"25", 25, false},
		{" 7 ", 7, false},
		{"0", 0, false},
		{"-3", -3, false},
		{"ten", 0, true},
		{"2.5", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLimit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAsNumeric(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{int(3), 3, true},
		{"4.25", 4.25, true},
		{" 5 ", 5, true},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"wet", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := asNumeric(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("asNumeric(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

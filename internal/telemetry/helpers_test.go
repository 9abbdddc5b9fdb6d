package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic timestamps.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts Options) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	s, err := NewStore(opts)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s, clock
}

func mustIngest(t *testing.T, s *Store, payload string) Reading {
	t.Helper()
	r, _, err := s.IngestSensorData([]byte(payload))
	if err != nil {
		t.Fatalf("IngestSensorData(%s) error = %v", payload, err)
	}
	return r
}

func moisturePayload(v int) string {
	return fmt.Sprintf(`{"moisture":%d}`, v)
}

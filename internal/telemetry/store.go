package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the number of readings returned when no limit is given.
const DefaultWindow = 100

// Options configures a Store. Zero values select the defaults.
type Options struct {
	// Capacity is the history ring size (default 1000).
	Capacity int

	// DefaultWindow is used by Window when limit <= 0 (default 100).
	DefaultWindow int

	// StatusDefaults overrides entries of the initial status snapshot.
	StatusDefaults map[string]any

	// Now returns the ingestion clock. Defaults to time.Now.
	Now func() time.Time

	// OnSizeChange, if set, receives the history length after every append
	// and clear. It runs under the write lock and must not call the Store.
	OnSizeChange func(n int)
}

// Store is the gateway's single owned state object: history plus status.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Writes hold the write lock for the whole append and merge, so readers
//     never see a reading without its status mirror or a partial merge.
type Store struct {
	mu      sync.RWMutex
	history *History
	status  StatusSnapshot
	lastSeq uint64

	defaultWindow int
	now           func() time.Time
	onSizeChange  func(n int)
}

// NewStore creates a Store. It fails when StatusDefaults carries a known key
// with the wrong type.
func NewStore(opts Options) (*Store, error) {
	status := DefaultStatus()
	if len(opts.StatusDefaults) > 0 {
		overrides, err := normalizeUpdate(opts.StatusDefaults)
		if err != nil {
			return nil, fmt.Errorf("status defaults: %w", err)
		}
		for k, v := range overrides {
			status[k] = v
		}
	}

	window := opts.DefaultWindow
	if window <= 0 {
		window = DefaultWindow
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		history:       NewHistory(opts.Capacity),
		status:        status,
		defaultWindow: window,
		now:           now,
		onSizeChange:  opts.OnSizeChange,
	}, nil
}

// IngestSensorData parses payload, appends a Reading and mirrors moisture,
// pumpState and lightState into the status, all under one write lock.
// It returns the stored reading and the resulting status.
func (s *Store) IngestSensorData(payload []byte) (Reading, StatusSnapshot, error) {
	fields, err := ParseSensorData(payload)
	if err != nil {
		return Reading{}, nil, err
	}
	mirror := sensorStatusMirror(fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.lastSeq++
	r := NewReading(s.lastSeq, now, fields)
	s.history.Append(r)
	s.status.merge(mirror, now)
	s.reportSize()

	return r, s.status.Clone(), nil
}

// IngestStatus merges a device status document into the snapshot.
func (s *Store) IngestStatus(payload []byte) (StatusSnapshot, error) {
	update, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}
	return s.ApplyMerge(update)
}

// ApplyMerge overwrites exactly the keys present in update and stamps
// lastUpdate with the ingestion time. A known key with the wrong type
// rejects the whole update with ErrMalformedMessage.
func (s *Store) ApplyMerge(update map[string]any) (StatusSnapshot, error) {
	normalized, err := normalizeUpdate(update)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.merge(normalized, s.now().UTC())
	return s.status.Clone(), nil
}

// Status returns a copy of the current snapshot.
func (s *Store) Status() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Clone()
}

// Latest returns the most recent reading, or ErrNotFound.
func (s *Store) Latest() (Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.history.Latest()
	if !ok {
		return Reading{}, ErrNotFound
	}
	return r, nil
}

// Window returns up to limit most recent readings in arrival order, plus the
// total held at that instant. limit <= 0 selects the default window; limits
// above the capacity are capped.
func (s *Store) Window(limit int) (readings []Reading, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.history.Window(s.clampLimit(limit)), s.history.Len()
}

func (s *Store) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.defaultWindow
	}
	if limit > s.history.Cap() {
		limit = s.history.Cap()
	}
	return limit
}

// Snapshot returns the whole history in arrival order.
func (s *Store) Snapshot() []Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Snapshot()
}

// Range returns readings with start <= timestamp <= end.
func (s *Store) Range(start, end time.Time) ([]Reading, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Range(start, end), nil
}

// Statistics aggregates every numeric metric over the full history.
func (s *Store) Statistics() (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.history.Len() == 0 {
		return Statistics{}, ErrNotFound
	}
	return computeStatistics(s.history), nil
}

// Clear drops all history and returns the number of readings removed.
// Status and the sequence counter are untouched.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.history.Clear()
	s.reportSize()
	return n
}

// reportSize must be called with the write lock held.
func (s *Store) reportSize() {
	if s.onSizeChange != nil {
		s.onSizeChange(s.history.Len())
	}
}

// Len returns the number of readings held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len()
}

// Capacity returns the history capacity.
func (s *Store) Capacity() int {
	return s.history.Cap()
}

// DefaultWindowSize returns the window used when no limit is given.
func (s *Store) DefaultWindowSize() int {
	return s.defaultWindow
}

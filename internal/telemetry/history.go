package telemetry

import "time"

// DefaultCapacity is the number of readings retained when no capacity is configured.
const DefaultCapacity = 1000

// History is a fixed-capacity FIFO ring of readings, oldest first.
//
// History is not safe for concurrent use on its own; Store guards it.
type History struct {
	buf  []Reading
	head int
	size int
}

// NewHistory returns an empty ring. capacity < 1 selects DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]Reading, capacity)}
}

// Append adds r, evicting the oldest reading when full. It reports whether
// an eviction happened.
func (h *History) Append(r Reading) bool {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = r
		h.size++
		return false
	}
	h.buf[h.head] = r
	h.head = (h.head + 1) % len(h.buf)
	return true
}

func (h *History) at(i int) Reading {
	return h.buf[(h.head+i)%len(h.buf)]
}

// Len returns the number of readings held.
func (h *History) Len() int { return h.size }

// Cap returns the ring capacity.
func (h *History) Cap() int { return len(h.buf) }

// Snapshot returns every reading in arrival order.
func (h *History) Snapshot() []Reading {
	return h.Window(h.size)
}

// Latest returns the most recent reading.
func (h *History) Latest() (Reading, bool) {
	if h.size == 0 {
		return Reading{}, false
	}
	return h.at(h.size - 1), true
}

// Window returns up to n most recent readings in arrival order.
func (h *History) Window(n int) []Reading {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return []Reading{}
	}
	out := make([]Reading, n)
	offset := h.size - n
	for i := range out {
		out[i] = h.at(offset + i)
	}
	return out
}

// Range returns readings whose timestamp lies within [start, end], inclusive,
// in arrival order.
func (h *History) Range(start, end time.Time) []Reading {
	out := []Reading{}
	for i := 0; i < h.size; i++ {
		r := h.at(i)
		ts := r.Timestamp()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Clear drops every reading and returns how many were held.
func (h *History) Clear() int {
	n := h.size
	clear(h.buf)
	h.head = 0
	h.size = 0
	return n
}

package server

import (
	"sync/atomic"
	"time"
)

// RequestMetrics counts file requests by outcome. It is the only state the
// server mutates after startup and it is kept apart from the index.
type RequestMetrics struct {
	total    atomic.Int64
	found    atomic.Int64
	notFound atomic.Int64
	bytes    atomic.Int64
	last     atomic.Int64 // unix nanos
}

// MetricsSnapshot is a point-in-time copy of RequestMetrics
type MetricsSnapshot struct {
	Total         int64     `json:"total"`
	Found         int64     `json:"found"`
	NotFound      int64     `json:"not_found"`
	BytesServed   int64     `json:"bytes_served"`
	LastRequestAt time.Time `json:"last_request_at,omitzero"`
}

func (m *RequestMetrics) record(found bool, written int64) {
	m.total.Add(1)
	if found {
		m.found.Add(1)
		m.bytes.Add(written)
	} else {
		m.notFound.Add(1)
	}
	m.last.Store(time.Now().UnixNano())
}

// Snapshot returns the current counters
func (m *RequestMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Total:       m.total.Load(),
		Found:       m.found.Load(),
		NotFound:    m.notFound.Load(),
		BytesServed: m.bytes.Load(),
	}
	if last := m.last.Load(); last != 0 {
		s.LastRequestAt = time.Unix(0, last)
	}
	return s
}

package metrics

import (
	"sync"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// Set fans control ticks out to a group of metrics. It is safe to read
// Values while the loop is feeding it.
type Set struct {
	mu      sync.Mutex
	metrics []dynamo.Metric
}

var _ dynamo.Observer = (*Set)(nil)

func NewSet(ms ...dynamo.Metric) *Set {
	return &Set{metrics: ms}
}

// DefaultSet is the set recorded with every run.
func DefaultSet() *Set {
	return NewSet(
		NewControlEffort(),
		NewTrackingError(),
		NewDeviation(0.05),
		NewControlRate(),
	)
}

func (s *Set) OnControlTick(rec dynamo.TickRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Observe(rec)
	}
}

func (s *Set) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Reset()
	}
}

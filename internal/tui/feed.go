package tui

import (
	"sync"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// Feed keeps the latest control tick and a short history of the first
// encoder for display. The loop writes it, the UI polls it.
type Feed struct {
	mu      sync.Mutex
	last    dynamo.TickRecord
	have    bool
	history []float64
	size    int
}

var _ dynamo.Observer = (*Feed)(nil)

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 60
	}
	return &Feed{size: size, history: make([]float64, 0, size)}
}

func (f *Feed) OnControlTick(rec dynamo.TickRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = rec
	f.have = true
	if len(rec.Encoders) > 0 {
		f.history = append(f.history, rec.Encoders[0])
		if len(f.history) > f.size {
			f.history = f.history[1:]
		}
	}
}

// Last returns a copy of the latest tick, if any.
func (f *Feed) Last() (dynamo.TickRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.last
	rec.Encoders = append([]float64(nil), rec.Encoders...)
	rec.Torques = append([]float64(nil), rec.Torques...)
	rec.Commands = append([]float64(nil), rec.Commands...)
	return rec, f.have
}

func (f *Feed) History() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.history...)
}

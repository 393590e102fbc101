package metrics

import (
	"math"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// TrackingError is the RMS difference between commanded and measured joint
// positions. Only position-mode ticks whose command vector lines up with the
// encoders are counted.
type TrackingError struct {
	name    string
	sumSq   float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{name: "tracking_error"}
}

func (m *TrackingError) Name() string { return m.name }

func (m *TrackingError) Observe(rec dynamo.TickRecord) {
	if !rec.Actuated || rec.Mode != dynamo.PositionControl {
		return
	}
	if len(rec.Commands) == 0 || len(rec.Commands) != len(rec.Encoders) {
		return
	}
	for i, cmd := range rec.Commands {
		d := cmd - rec.Encoders[i]
		m.sumSq += d * d
		m.samples++
	}
}

func (m *TrackingError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingError) Reset() {
	m.sumSq = 0
	m.samples = 0
}

// Deviation is the fraction of control ticks where some joint strays from
// its command by more than threshold.
type Deviation struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewDeviation(threshold float64) *Deviation {
	return &Deviation{
		name:      "deviation",
		threshold: threshold,
	}
}

func (d *Deviation) Name() string { return d.name }

func (d *Deviation) Observe(rec dynamo.TickRecord) {
	if !rec.Actuated || rec.Mode != dynamo.PositionControl || len(rec.Commands) != len(rec.Encoders) {
		return
	}
	d.samples++
	for i, cmd := range rec.Commands {
		if math.Abs(cmd-rec.Encoders[i]) > d.threshold {
			d.violations++
			return
		}
	}
}

func (d *Deviation) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return float64(d.violations) / float64(d.samples)
}

func (d *Deviation) Reset() {
	d.violations = 0
	d.samples = 0
}

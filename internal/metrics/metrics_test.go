package metrics

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/simbridge/internal/dynamo"
)

func tick(iter uint64, enc, cmd []float64) dynamo.TickRecord {
	return dynamo.TickRecord{
		Iteration: iter,
		Encoders:  enc,
		Commands:  cmd,
		Mode:      dynamo.PositionControl,
		Actuated:  cmd != nil,
	}
}

func TestControlEffort(t *testing.T) {
	g := NewWithT(t)
	m := NewControlEffort()

	m.Observe(tick(0, []float64{0, 0}, []float64{1, -3}))
	m.Observe(tick(2, []float64{0, 0}, []float64{0, 0}))
	m.Observe(tick(4, []float64{0, 0}, nil))

	g.Expect(m.Name()).To(Equal("control_effort"))
	g.Expect(m.Value()).To(BeNumerically("~", 1.0, 1e-12))

	m.Reset()
	g.Expect(m.Value()).To(BeZero())
}

func TestTrackingError(t *testing.T) {
	g := NewWithT(t)
	m := NewTrackingError()

	m.Observe(tick(0, []float64{0, 0}, []float64{3, 4}))
	g.Expect(m.Value()).To(BeNumerically("~", math.Sqrt(12.5), 1e-12))

	// mismatched lengths and other modes are ignored
	m.Observe(tick(2, []float64{0}, []float64{100, 100}))
	torque := tick(4, []float64{0, 0}, []float64{100, 100})
	torque.Mode = dynamo.TorqueControl
	m.Observe(torque)
	g.Expect(m.Value()).To(BeNumerically("~", math.Sqrt(12.5), 1e-12))
}

func TestDeviation(t *testing.T) {
	g := NewWithT(t)
	m := NewDeviation(0.1)

	m.Observe(tick(0, []float64{0, 0}, []float64{0.05, 0}))
	m.Observe(tick(1, []float64{0, 0}, []float64{0.5, 0.5}))
	m.Observe(tick(2, []float64{1, 1}, []float64{1, 1}))
	m.Observe(tick(3, []float64{1, 1}, []float64{1, 2}))

	g.Expect(m.Value()).To(BeNumerically("~", 0.5, 1e-12))
}

func TestControlRate(t *testing.T) {
	g := NewWithT(t)
	m := NewControlRate()

	g.Expect(m.Value()).To(BeZero())
	for i := uint64(0); i <= 20; i += 5 {
		m.Observe(tick(i, nil, nil))
	}
	g.Expect(m.Value()).To(BeNumerically("~", 0.2, 1e-12))

	m.Reset()
	m.Observe(tick(7, nil, nil))
	g.Expect(m.Value()).To(BeZero())
}

func TestSetObservesAll(t *testing.T) {
	g := NewWithT(t)
	s := DefaultSet()

	s.OnControlTick(tick(0, []float64{0}, []float64{1}))
	s.OnControlTick(tick(2, []float64{1}, []float64{1}))

	v := s.Values()
	g.Expect(v).To(HaveKey("control_effort"))
	g.Expect(v).To(HaveKey("tracking_error"))
	g.Expect(v).To(HaveKey("deviation"))
	g.Expect(v["control_rate"]).To(BeNumerically("~", 0.5, 1e-12))
	g.Expect(v["control_effort"]).To(BeNumerically("~", 1.0, 1e-12))

	s.Reset()
	g.Expect(s.Values()["control_effort"]).To(BeZero())
}

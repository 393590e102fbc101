package metrics

import "github.com/san-kum/simbridge/internal/dynamo"

// ControlRate is control ticks per raw simulation step, measured from the
// iteration numbers of consecutive ticks. A steady loop reports 1/frameskip.
type ControlRate struct {
	name  string
	ticks int
	first uint64
	last  uint64
}

func NewControlRate() *ControlRate {
	return &ControlRate{name: "control_rate"}
}

func (c *ControlRate) Name() string { return c.name }

func (c *ControlRate) Observe(rec dynamo.TickRecord) {
	if c.ticks == 0 {
		c.first = rec.Iteration
	}
	c.last = rec.Iteration
	c.ticks++
}

func (c *ControlRate) Value() float64 {
	if c.ticks < 2 || c.last == c.first {
		return 0
	}
	return float64(c.ticks-1) / float64(c.last-c.first)
}

func (c *ControlRate) Reset() {
	c.ticks = 0
	c.first = 0
	c.last = 0
}

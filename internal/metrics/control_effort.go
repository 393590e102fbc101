package metrics

import (
	"math"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// ControlEffort is the mean absolute command per actuated control tick.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(rec dynamo.TickRecord) {
	if !rec.Actuated || len(rec.Commands) == 0 {
		return
	}
	var s float64
	for _, val := range rec.Commands {
		s += math.Abs(val)
	}
	c.sum += s / float64(len(rec.Commands))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

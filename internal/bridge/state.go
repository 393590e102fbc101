package bridge

import "fmt"

// State is the loop lifecycle.
type State int32

const (
	Bootstrapping State = iota
	Running
	StepPaused
	Stopped
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Running:
		return "running"
	case StepPaused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a point-in-time view of the loop counters. Drift counters count
// every event even when the warnings are throttled.
type Stats struct {
	State              State
	Frameskip          int
	Iteration          uint64
	ControlTicks       uint64
	Actuations         uint64
	MissedSteps        uint64
	ConcurrentAdvances uint64
	SimTime            float64
}

// ControlRate is the fraction of raw iterations that were control ticks.
func (s Stats) ControlRate() float64 {
	if s.Iteration == 0 {
		return 0
	}
	return float64(s.ControlTicks) / float64(s.Iteration)
}

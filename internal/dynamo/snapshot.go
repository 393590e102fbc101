package dynamo

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ActuationMode selects which joint quantity is pushed to the simulator.
type ActuationMode int

const (
	PositionControl ActuationMode = iota
	VelocityControl
	TorqueControl
)

func (m ActuationMode) String() string {
	switch m {
	case VelocityControl:
		return "velocity"
	case TorqueControl:
		return "torque"
	default:
		return "position"
	}
}

// JointTarget is one actuation command keyed by simulator joint name.
type JointTarget struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type ForceReading struct {
	Force  r3.Vector
	Torque r3.Vector
}

// Snapshot is the simulator state pulled on a control tick. Joint arrays are
// flattened across bound robots in binding order.
type Snapshot struct {
	SimTime        float64
	JointPositions []float64
	JointTorques   []float64
	ForceSensors   map[string]ForceReading
	Accelerometer  r3.Vector
	Gyrometer      r3.Vector
	BasePoses      []Pose
	BaseVelocities []Twist
}

// Check verifies the snapshot covers totalJoints joints and robots bases.
func (s *Snapshot) Check(totalJoints, robots int) error {
	if len(s.JointPositions) != totalJoints || len(s.JointTorques) != totalJoints {
		return errors.Wrapf(ErrDimensionMismatch, "joints: want %d, got %d positions and %d torques",
			totalJoints, len(s.JointPositions), len(s.JointTorques))
	}
	if len(s.BasePoses) != robots || len(s.BaseVelocities) != robots {
		return errors.Wrapf(ErrDimensionMismatch, "bases: want %d, got %d poses and %d velocities",
			robots, len(s.BasePoses), len(s.BaseVelocities))
	}
	return nil
}

// TickRecord summarizes one control tick for observers.
type TickRecord struct {
	Iteration uint64        `json:"iteration"`
	SimTime   float64       `json:"sim_time"`
	Encoders  []float64     `json:"encoders"`
	Torques   []float64     `json:"torques"`
	Commands  []float64     `json:"commands,omitempty"`
	Mode      ActuationMode `json:"mode"`
	Actuated  bool          `json:"actuated"`
}

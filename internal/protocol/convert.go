package protocol

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/simbridge/internal/dynamo"
)

func vec(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

func arr(v r3.Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Snapshot converts a wire state into the domain snapshot.
func (s *StateResult) Snapshot() *dynamo.Snapshot {
	snap := &dynamo.Snapshot{
		SimTime:        s.Time,
		JointPositions: s.JointPositions,
		JointTorques:   s.JointTorques,
		ForceSensors:   make(map[string]dynamo.ForceReading, len(s.ForceSensors)),
		Accelerometer:  vec(s.Accelerometer),
		Gyrometer:      vec(s.Gyrometer),
	}
	for name, r := range s.ForceSensors {
		snap.ForceSensors[name] = dynamo.ForceReading{Force: vec(r.Force), Torque: vec(r.Torque)}
	}
	for _, p := range s.BasePoses {
		o := p.Orientation
		snap.BasePoses = append(snap.BasePoses, dynamo.Pose{
			Translation: vec(p.Position),
			Rotation:    quat.Number{Real: o[0], Imag: o[1], Jmag: o[2], Kmag: o[3]},
		}.Normalized())
	}
	for _, v := range s.BaseVelocities {
		snap.BaseVelocities = append(snap.BaseVelocities, dynamo.Twist{Angular: vec(v.Angular), Linear: vec(v.Linear)})
	}
	return snap
}

// FromSnapshot is the inverse of Snapshot.
func FromSnapshot(snap *dynamo.Snapshot, valid bool) *StateResult {
	s := &StateResult{
		Valid:          valid,
		Time:           snap.SimTime,
		JointPositions: snap.JointPositions,
		JointTorques:   snap.JointTorques,
		ForceSensors:   make(map[string]SensorReading, len(snap.ForceSensors)),
		Accelerometer:  arr(snap.Accelerometer),
		Gyrometer:      arr(snap.Gyrometer),
	}
	for name, r := range snap.ForceSensors {
		s.ForceSensors[name] = SensorReading{Force: arr(r.Force), Torque: arr(r.Torque)}
	}
	for _, p := range snap.BasePoses {
		q := p.Rotation
		s.BasePoses = append(s.BasePoses, PoseMsg{
			Position:    arr(p.Translation),
			Orientation: [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
		})
	}
	for _, v := range snap.BaseVelocities {
		s.BaseVelocities = append(s.BaseVelocities, TwistMsg{Angular: arr(v.Angular), Linear: arr(v.Linear)})
	}
	return s
}

func WrenchArray(w dynamo.Wrench) [6]float64 {
	var out [6]float64
	copy(out[:], w.Slice())
	return out
}

func ArrayWrench(a [6]float64) dynamo.Wrench {
	w, _ := dynamo.WrenchFromSlice(a[:])
	return w
}

// ParseMode maps a wire mode name back to an actuation mode.
func ParseMode(s string) (dynamo.ActuationMode, bool) {
	for _, m := range []dynamo.ActuationMode{dynamo.PositionControl, dynamo.VelocityControl, dynamo.TorqueControl} {
		if m.String() == s {
			return m, true
		}
	}
	return dynamo.PositionControl, false
}

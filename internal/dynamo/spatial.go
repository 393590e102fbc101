package dynamo

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Wrench is a spatial force: a couple and a linear force.
type Wrench struct {
	Torque r3.Vector
	Force  r3.Vector
}

// WrenchFromSlice reads [tx ty tz fx fy fz].
func WrenchFromSlice(v []float64) (Wrench, error) {
	if len(v) != 6 {
		return Wrench{}, errors.Wrapf(ErrInvalidVector, "got %d components", len(v))
	}
	return Wrench{
		Torque: r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		Force:  r3.Vector{X: v[3], Y: v[4], Z: v[5]},
	}, nil
}

func (w Wrench) Scale(f float64) Wrench {
	return Wrench{Torque: w.Torque.Mul(f), Force: w.Force.Mul(f)}
}

func (w Wrench) Add(o Wrench) Wrench {
	return Wrench{Torque: w.Torque.Add(o.Torque), Force: w.Force.Add(o.Force)}
}

func (w Wrench) Slice() []float64 {
	return []float64{w.Torque.X, w.Torque.Y, w.Torque.Z, w.Force.X, w.Force.Y, w.Force.Z}
}

func (w Wrench) IsZero() bool {
	return w.Torque == (r3.Vector{}) && w.Force == (r3.Vector{})
}

// Twist is a spatial velocity: angular then linear.
type Twist struct {
	Angular r3.Vector
	Linear  r3.Vector
}

func (t Twist) Slice() []float64 {
	return []float64{t.Angular.X, t.Angular.Y, t.Angular.Z, t.Linear.X, t.Linear.Y, t.Linear.Z}
}

// Pose is a rigid transform in the world frame.
type Pose struct {
	Translation r3.Vector
	Rotation    quat.Number
}

// IdentityPose has zero translation and unit rotation.
func IdentityPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// Normalized returns the pose with a unit rotation quaternion. A zero quaternion
// becomes the identity rotation.
func (p Pose) Normalized() Pose {
	n := quat.Abs(p.Rotation)
	if n == 0 {
		p.Rotation = quat.Number{Real: 1}
		return p
	}
	p.Rotation = quat.Scale(1/n, p.Rotation)
	return p
}

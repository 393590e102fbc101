// Package translate maps controller-side robots onto the simulator's flat,
// suffixed naming and back.
package translate

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/robot"
)

// ErrNoActuatedJoint is returned when the primary robot has no 1-DOF joint.
var ErrNoActuatedJoint = errors.New("no 1-dof joints in the main robot")

// BaseResolver looks up the model base body owning a simulator joint.
type BaseResolver interface {
	ModelBase(ctx context.Context, joint string) (string, error)
}

// Target is a controller robot to bind, with its shadow copy.
type Target struct {
	Index  int
	Suffix string
	Robot  *robot.Robot
	Shadow *robot.Robot
}

// Binding ties one controller robot to its simulator instance. It is built
// once at start and never changes afterwards.
type Binding struct {
	Index  int
	Suffix string
	Base   string
	// Joints are suffixed simulator names in reference joint order.
	Joints []string
	// ForceSensors maps suffixed simulator names to controller sensor names.
	ForceSensors map[string]string
	// Offset is where this robot's joints start in the flattened snapshot arrays.
	Offset   int
	Actuated bool

	Robot  *robot.Robot
	Shadow *robot.Robot
}

// Resolve builds the bindings in target order. Target 0 is the primary robot.
func Resolve(ctx context.Context, resolver BaseResolver, targets []Target, logger logging.Logger) ([]*Binding, error) {
	bindings := make([]*Binding, 0, len(targets))
	offset := 0
	for i, t := range targets {
		if t.Robot == nil {
			return nil, errors.Errorf("robot index %d is not loaded by the controller", t.Index)
		}
		b := &Binding{
			Index:        t.Index,
			Suffix:       t.Suffix,
			ForceSensors: make(map[string]string, len(t.Robot.ForceSensors())),
			Offset:       offset,
			Robot:        t.Robot,
			Shadow:       t.Shadow,
		}
		if b.Shadow == nil {
			b.Shadow = t.Robot.Copy()
		}

		joint, ok := t.Robot.FirstSingleDofJoint()
		switch {
		case !ok && i == 0:
			return nil, errors.Wrapf(ErrNoActuatedJoint, "robot %s", t.Robot.Name())
		case !ok:
			b.Base = fixedBase(t.Robot)
			logger.Warnw("extra robot cannot be controlled, will only track the base position",
				"index", t.Index, "base", b.Base)
		default:
			base, err := resolver.ModelBase(ctx, joint+t.Suffix)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve base of %s", joint+t.Suffix)
			}
			b.Base = base
			b.Actuated = true
		}

		for _, fs := range t.Robot.ForceSensors() {
			b.ForceSensors[fs.Name+t.Suffix] = fs.Name
		}
		for _, j := range t.Robot.RefJointOrder() {
			b.Joints = append(b.Joints, j+t.Suffix)
		}
		offset += len(b.Joints)
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func fixedBase(r *robot.Robot) string {
	bodies := r.Bodies()
	switch {
	case len(bodies) > 1 && bodies[0].Name == "base_link":
		return bodies[1].Name
	case len(bodies) > 0:
		return bodies[0].Name
	default:
		return r.Name()
	}
}

// Names flattens the bindings into the lists passed when starting the simulation.
func Names(bindings []*Binding) (bases, joints, sensors []string) {
	for _, b := range bindings {
		bases = append(bases, b.Base)
		joints = append(joints, b.Joints...)
		for name := range b.ForceSensors {
			sensors = append(sensors, name)
		}
	}
	sort.Strings(sensors)
	return bases, joints, sensors
}

// TotalJoints is the length of the flattened joint arrays.
func TotalJoints(bindings []*Binding) int {
	n := 0
	for _, b := range bindings {
		n += len(b.Joints)
	}
	return n
}

// Slice returns this robot's window of a flattened joint array.
func (b *Binding) Slice(flat []float64) []float64 {
	return append([]float64(nil), flat[b.Offset:b.Offset+len(b.Joints)]...)
}

// Wrenches picks this robot's readings out of the sensor map, keyed by the
// unsuffixed sensor name.
func (b *Binding) Wrenches(readings map[string]dynamo.ForceReading) map[string]dynamo.Wrench {
	out := make(map[string]dynamo.Wrench, len(b.ForceSensors))
	for simName, name := range b.ForceSensors {
		if r, ok := readings[simName]; ok {
			out[name] = dynamo.Wrench{Torque: r.Torque, Force: r.Force}
		}
	}
	return out
}

// Targets reads the commanded value of every 1-DOF joint for the given mode.
func (b *Binding) Targets(mode dynamo.ActuationMode) []dynamo.JointTarget {
	r := b.Robot
	var targets []dynamo.JointTarget
	for i, j := range r.Joints() {
		if j.Dof() != 1 {
			continue
		}
		var v float64
		switch mode {
		case dynamo.TorqueControl:
			v = r.Tau[i][0]
		case dynamo.VelocityControl:
			v = r.Alpha[i][0]
		default:
			v = r.Q[i][0]
		}
		targets = append(targets, dynamo.JointTarget{Name: j.Name + b.Suffix, Value: v})
	}
	return targets
}

// RespondableBodies lists the simulator bodies that accept forces: every
// body with mass.
func RespondableBodies(r *robot.Robot) []string {
	var out []string
	for _, body := range r.Bodies() {
		if body.Mass > 0 {
			out = append(out, body.Name+"_respondable")
		}
	}
	return out
}

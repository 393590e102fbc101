// Package robot holds the controller-side kinematic description of a robot
// and its mutable sensor and command state.
package robot

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/simbridge/internal/dynamo"
)

type JointType int

const (
	Fixed JointType = iota
	Revolute
	Prismatic
	Free
)

var jointTypeNames = map[JointType]string{
	Fixed:     "fixed",
	Revolute:  "revolute",
	Prismatic: "prismatic",
	Free:      "free",
}

func (t JointType) String() string {
	if s, ok := jointTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("JointType(%d)", int(t))
}

// Dof is the number of velocity degrees of freedom.
func (t JointType) Dof() int {
	switch t {
	case Revolute, Prismatic:
		return 1
	case Free:
		return 6
	default:
		return 0
	}
}

// params is the length of the generalized position vector.
func (t JointType) params() int {
	if t == Free {
		return 7
	}
	return t.Dof()
}

func ParseJointType(s string) (JointType, error) {
	for t, name := range jointTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return Fixed, errors.Errorf("unknown joint type %q", s)
}

func (t *JointType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseJointType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t JointType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

type Joint struct {
	Name string    `yaml:"name"`
	Type JointType `yaml:"type"`
}

func (j Joint) Dof() int { return j.Type.Dof() }

type Body struct {
	Name string  `yaml:"name"`
	Mass float64 `yaml:"mass"`
}

type ForceSensor struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
}

// Spec describes a robot. Joints[i] connects Bodies[i] to its parent, so
// Joints[0] is the root joint (Free for floating-base robots).
type Spec struct {
	Name          string        `yaml:"name"`
	Joints        []Joint       `yaml:"joints"`
	Bodies        []Body        `yaml:"bodies"`
	ForceSensors  []ForceSensor `yaml:"force_sensors"`
	RefJointOrder []string      `yaml:"ref_joint_order"`
}

// BodySensor is the floating-base estimate written from simulator data.
type BodySensor struct {
	Position        r3.Vector
	Orientation     quat.Number
	LinearVelocity  r3.Vector
	AngularVelocity r3.Vector
}

// Robot is a live robot model. It is not safe for concurrent use; the
// controller runtime owns it and the bridge writes to it between runs.
type Robot struct {
	spec       Spec
	jointIndex map[string]int

	encoders []float64
	torques  []float64

	BodySensor BodySensor
	PosW       dynamo.Pose

	// Q, Alpha and Tau are indexed by joint. Q[i] has the joint's position
	// parameters, Alpha[i] and Tau[i] have Dof entries.
	Q     [][]float64
	Alpha [][]float64
	Tau   [][]float64
}

// New validates spec and builds a robot at the zero configuration.
func New(spec Spec) (*Robot, error) {
	if spec.Name == "" {
		return nil, errors.New("robot name is required")
	}
	idx := make(map[string]int, len(spec.Joints))
	for i, j := range spec.Joints {
		if j.Name == "" {
			return nil, errors.Errorf("robot %s: joint %d has no name", spec.Name, i)
		}
		if _, dup := idx[j.Name]; dup {
			return nil, errors.Errorf("robot %s: duplicate joint %q", spec.Name, j.Name)
		}
		idx[j.Name] = i
	}
	if len(spec.RefJointOrder) == 0 {
		for _, j := range spec.Joints {
			if j.Dof() == 1 {
				spec.RefJointOrder = append(spec.RefJointOrder, j.Name)
			}
		}
	}

	r := &Robot{
		spec:       spec,
		jointIndex: idx,
		PosW:       dynamo.IdentityPose(),
		Q:          make([][]float64, len(spec.Joints)),
		Alpha:      make([][]float64, len(spec.Joints)),
		Tau:        make([][]float64, len(spec.Joints)),
	}
	r.BodySensor.Orientation = quat.Number{Real: 1}
	for i, j := range spec.Joints {
		r.Q[i] = make([]float64, j.Type.params())
		if j.Type == Free {
			r.Q[i][0] = 1
		}
		r.Alpha[i] = make([]float64, j.Dof())
		r.Tau[i] = make([]float64, j.Dof())
	}
	return r, nil
}

func (r *Robot) Name() string                { return r.spec.Name }
func (r *Robot) Joints() []Joint             { return r.spec.Joints }
func (r *Robot) Bodies() []Body              { return r.spec.Bodies }
func (r *Robot) ForceSensors() []ForceSensor { return r.spec.ForceSensors }
func (r *Robot) RefJointOrder() []string     { return r.spec.RefJointOrder }
func (r *Robot) Spec() Spec                  { return r.spec }

func (r *Robot) HasJoint(name string) bool {
	_, ok := r.jointIndex[name]
	return ok
}

func (r *Robot) JointIndexByName(name string) (int, bool) {
	i, ok := r.jointIndex[name]
	return i, ok
}

// FirstSingleDofJoint returns the first revolute or prismatic joint.
func (r *Robot) FirstSingleDofJoint() (string, bool) {
	for _, j := range r.spec.Joints {
		if j.Dof() == 1 {
			return j.Name, true
		}
	}
	return "", false
}

// EncoderValues returns a copy of the last encoder reading, in reference
// joint order. It is empty until the first reading.
func (r *Robot) EncoderValues() []float64 {
	return append([]float64(nil), r.encoders...)
}

func (r *Robot) SetEncoderValues(v []float64) {
	r.encoders = append(r.encoders[:0], v...)
}

func (r *Robot) JointTorques() []float64 {
	return append([]float64(nil), r.torques...)
}

func (r *Robot) SetJointTorques(v []float64) {
	r.torques = append(r.torques[:0], v...)
}

// Copy returns a deep copy sharing only the immutable spec.
func (r *Robot) Copy() *Robot {
	c := &Robot{
		spec:       r.spec,
		jointIndex: r.jointIndex,
		encoders:   append([]float64(nil), r.encoders...),
		torques:    append([]float64(nil), r.torques...),
		BodySensor: r.BodySensor,
		PosW:       r.PosW,
		Q:          cloneRows(r.Q),
		Alpha:      cloneRows(r.Alpha),
		Tau:        cloneRows(r.Tau),
	}
	return c
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

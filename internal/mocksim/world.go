package mocksim

import (
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/integrators"
)

const (
	gravity          = 9.81
	respondableTrail = "_respondable"
)

var (
	ErrNotStarted  = errors.New("simulation not started")
	ErrUnknownName = errors.New("unknown name")
)

// Gains shape the joint response to each actuation mode.
type Gains struct {
	Kp       float64 `yaml:"kp"`
	Kd       float64 `yaml:"kd"`
	Kv       float64 `yaml:"kv"`
	Damping  float64 `yaml:"damping"`
	Inertia  float64 `yaml:"inertia"`
	Rotation float64 `yaml:"rotation"`
}

type Options struct {
	Timestep   float64
	Integrator string
	// ValidAfter is how many steps after start the state stays invalid.
	ValidAfter int
	Gains      Gains
}

func DefaultOptions() Options {
	return Options{
		Timestep:   0.005,
		Integrator: "rk4",
		ValidAfter: 1,
		Gains: Gains{
			Kp:       400,
			Kd:       40,
			Kv:       50,
			Damping:  0.5,
			Inertia:  1,
			Rotation: 1,
		},
	}
}

// jointSystem is the stacked joint state [q..., qd...] driven by one
// command per joint.
type jointSystem struct {
	mode dynamo.ActuationMode
	g    Gains
	n    int
}

func (s *jointSystem) StateDim() int   { return 2 * s.n }
func (s *jointSystem) ControlDim() int { return s.n }

func (s *jointSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, 2*s.n)
	for i := 0; i < s.n; i++ {
		dx[i] = x[s.n+i]
		dx[s.n+i] = s.accel(x[i], x[s.n+i], u[i])
	}
	return dx
}

func (s *jointSystem) accel(q, qd, u float64) float64 {
	switch s.mode {
	case dynamo.VelocityControl:
		return s.g.Kv * (u - qd)
	case dynamo.TorqueControl:
		return (u - s.g.Damping*qd) / s.g.Inertia
	default:
		return s.g.Kp*(u-q) - s.g.Kd*qd
	}
}

// pointMass is [p, v] with the specific force as control.
type pointMass struct{}

func (pointMass) StateDim() int   { return 6 }
func (pointMass) ControlDim() int { return 3 }

func (pointMass) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[3], x[4], x[5], u[0], u[1], u[2]}
}

type base struct {
	name  string
	mass  float64
	pos   r3.Vector
	vel   r3.Vector
	omega r3.Vector
	rot   quat.Number
}

// World holds the simulated scene. Time only moves on Step.
type World struct {
	opts      Options
	jointInt  dynamo.Integrator
	baseInt   dynamo.Integrator
	mu        sync.Mutex
	time      float64
	started   bool
	steps     int
	sys       jointSystem
	joints    map[string]int
	jointBase map[string]string
	x         dynamo.State
	targets   []float64
	torques   []float64
	bases     []*base
	baseIdx   map[string]int
	// owner maps every body to the index of its model base.
	owner   map[string]int
	sensors map[string]string
	applied map[string]dynamo.Wrench
	last    map[string]dynamo.Wrench
	accel   r3.Vector
}

func NewWorld(sc Scene, opts Options) (*World, error) {
	if opts.Timestep <= 0 {
		return nil, errors.Errorf("invalid timestep %v", opts.Timestep)
	}
	if opts.Gains.Inertia <= 0 {
		opts.Gains.Inertia = 1
	}
	if opts.Gains.Rotation <= 0 {
		opts.Gains.Rotation = 1
	}
	jointInt, err := integrators.New(opts.Integrator)
	if err != nil {
		return nil, err
	}
	baseInt, err := integrators.New(opts.Integrator)
	if err != nil {
		return nil, err
	}

	w := &World{
		opts:      opts,
		jointInt:  jointInt,
		baseInt:   baseInt,
		joints:    make(map[string]int),
		jointBase: make(map[string]string),
		baseIdx:   make(map[string]int),
		owner:     make(map[string]int),
		sensors:   make(map[string]string),
		applied:   make(map[string]dynamo.Wrench),
		last:      make(map[string]dynamo.Wrench),
	}
	for _, m := range sc.Models {
		if _, dup := w.baseIdx[m.Base]; dup {
			return nil, errors.Errorf("duplicate model base %q", m.Base)
		}
		bi := w.addBase(m.Base, m.Mass)
		for _, b := range m.Bodies {
			w.owner[b] = bi
		}
		for _, j := range m.Joints {
			if _, dup := w.joints[j]; dup {
				return nil, errors.Errorf("duplicate joint %q", j)
			}
			w.joints[j] = len(w.joints)
			w.jointBase[j] = m.Base
		}
		for s, parent := range m.ForceSensors {
			w.sensors[s] = parent
		}
	}

	n := len(w.joints)
	w.sys = jointSystem{g: opts.Gains, n: n}
	w.x = make(dynamo.State, 2*n)
	w.targets = make([]float64, n)
	w.torques = make([]float64, n)
	return w, nil
}

func (w *World) addBase(name string, mass float64) int {
	i := len(w.bases)
	w.bases = append(w.bases, &base{name: name, mass: mass, rot: quat.Number{Real: 1}})
	w.baseIdx[name] = i
	w.owner[name] = i
	return i
}

func (w *World) Timestep() float64 { return w.opts.Timestep }

func (w *World) Time() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.time
}

func (w *World) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// ModelBase returns the base of the model owning joint.
func (w *World) ModelBase(joint string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.jointBase[joint]
	if !ok {
		return "", errors.Wrapf(ErrUnknownName, "joint %q", joint)
	}
	return b, nil
}

// Start begins streaming. Bases the scene does not know are added as static
// bodies; unknown joints or sensors are rejected.
func (w *World) Start(bases, joints, sensors []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkNames(joints, sensors); err != nil {
		return err
	}
	for _, b := range bases {
		if _, ok := w.baseIdx[b]; !ok {
			w.addBase(b, 0)
		}
	}
	w.started = true
	w.steps = 0
	return nil
}

func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = false
}

func (w *World) checkNames(joints, sensors []string) error {
	for _, j := range joints {
		if _, ok := w.joints[j]; !ok {
			return errors.Wrapf(ErrUnknownName, "joint %q", j)
		}
	}
	for _, s := range sensors {
		if _, ok := w.sensors[s]; !ok {
			return errors.Wrapf(ErrUnknownName, "force sensor %q", s)
		}
	}
	return nil
}

// State samples the requested names. The snapshot is valid once the world
// has stepped ValidAfter times since start.
func (w *World) State(bases, joints, sensors []string) (*dynamo.Snapshot, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkNames(joints, sensors); err != nil {
		return nil, false, err
	}

	snap := &dynamo.Snapshot{
		SimTime:        w.time,
		JointPositions: make([]float64, 0, len(joints)),
		JointTorques:   make([]float64, 0, len(joints)),
		ForceSensors:   make(map[string]dynamo.ForceReading, len(sensors)),
		Accelerometer:  w.accel.Add(r3.Vector{Z: gravity}),
	}
	for _, j := range joints {
		i := w.joints[j]
		snap.JointPositions = append(snap.JointPositions, w.x[i])
		snap.JointTorques = append(snap.JointTorques, w.torques[i])
	}
	for _, s := range sensors {
		wr := w.last[w.sensors[s]]
		snap.ForceSensors[s] = dynamo.ForceReading{Force: wr.Force, Torque: wr.Torque}
	}
	for _, name := range bases {
		i, ok := w.baseIdx[name]
		if !ok {
			return nil, false, errors.Wrapf(ErrUnknownName, "base %q", name)
		}
		b := w.bases[i]
		snap.BasePoses = append(snap.BasePoses, dynamo.Pose{Translation: b.pos, Rotation: b.rot})
		snap.BaseVelocities = append(snap.BaseVelocities, dynamo.Twist{Angular: b.omega, Linear: b.vel})
	}
	if len(w.bases) > 0 {
		snap.Gyrometer = w.bases[0].omega
	}
	return snap, w.started && w.steps >= w.opts.ValidAfter, nil
}

// AddForce applies a wrench to body during the next step only. Body may be
// a model base, any body of a model, or a body with the respondable suffix.
func (w *World) AddForce(body string, wr dynamo.Wrench) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrNotStarted
	}
	name := strings.TrimSuffix(body, respondableTrail)
	if _, ok := w.owner[name]; !ok {
		return errors.Wrapf(ErrUnknownName, "body %q", body)
	}
	w.applied[name] = w.applied[name].Add(wr)
	return nil
}

// SetTargets switches the actuation mode and updates the named commands.
// Joints not named keep their previous command.
func (w *World) SetTargets(mode dynamo.ActuationMode, targets []dynamo.JointTarget) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrNotStarted
	}
	for _, t := range targets {
		if _, ok := w.joints[t.Name]; !ok {
			return errors.Wrapf(ErrUnknownName, "joint %q", t.Name)
		}
	}
	if mode != w.sys.mode {
		// a fresh mode starts from a command that holds the current motion
		n := w.sys.n
		for i := 0; i < n; i++ {
			switch mode {
			case dynamo.VelocityControl:
				w.targets[i] = w.x[n+i]
			case dynamo.TorqueControl:
				w.targets[i] = 0
			default:
				w.targets[i] = w.x[i]
			}
		}
		w.sys.mode = mode
	}
	for _, t := range targets {
		w.targets[w.joints[t.Name]] = t.Value
	}
	return nil
}

// Step advances the world by one timestep.
func (w *World) Step() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrNotStarted
	}
	dt := w.opts.Timestep

	if w.sys.n > 0 {
		w.x = w.jointInt.Step(&w.sys, w.x, w.targets, w.time, dt)
		n := w.sys.n
		for i := 0; i < n; i++ {
			w.torques[i] = w.opts.Gains.Inertia * w.sys.accel(w.x[i], w.x[n+i], w.targets[i])
		}
	}

	perBase := make([]dynamo.Wrench, len(w.bases))
	for body, wr := range w.applied {
		perBase[w.owner[body]] = perBase[w.owner[body]].Add(wr)
	}
	for i, b := range w.bases {
		if b.mass <= 0 {
			continue
		}
		f := perBase[i].Force.Mul(1 / b.mass)
		x := dynamo.State{b.pos.X, b.pos.Y, b.pos.Z, b.vel.X, b.vel.Y, b.vel.Z}
		x = w.baseInt.Step(pointMass{}, x, dynamo.Control{f.X, f.Y, f.Z}, w.time, dt)
		b.pos = r3.Vector{X: x[0], Y: x[1], Z: x[2]}
		b.vel = r3.Vector{X: x[3], Y: x[4], Z: x[5]}

		b.omega = b.omega.Add(perBase[i].Torque.Mul(dt / (w.opts.Gains.Rotation * b.mass)))
		b.rot = integrateRotation(b.rot, b.omega, dt)
		if i == 0 {
			w.accel = f
		}
	}

	w.last, w.applied = w.applied, make(map[string]dynamo.Wrench)
	w.time += dt
	w.steps++
	return nil
}

// integrateRotation applies a world-frame angular velocity for dt.
func integrateRotation(q quat.Number, omega r3.Vector, dt float64) quat.Number {
	if omega.Norm() == 0 {
		return q
	}
	h := omega.Mul(0.5 * dt)
	dq := quat.Exp(quat.Number{Imag: h.X, Jmag: h.Y, Kmag: h.Z})
	q = quat.Mul(dq, q)
	return quat.Scale(1/quat.Abs(q), q)
}

// JointPosition and BasePosition expose the world for inspection.
func (w *World) JointPosition(name string) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.joints[name]
	if !ok {
		return 0, false
	}
	return w.x[i], true
}

func (w *World) BasePosition(name string) (r3.Vector, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.baseIdx[name]
	if !ok {
		return r3.Vector{}, false
	}
	return w.bases[i].pos, true
}

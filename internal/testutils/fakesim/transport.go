// Package fakesim provides in-memory stand-ins for the simulator transport
// and the controller runtime.
package fakesim

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/transport"
)

// ForceCall is one AddForce call. Step is the raw step count when it was made.
type ForceCall struct {
	Body   string
	Wrench dynamo.Wrench
	Step   int
}

type TargetCall struct {
	Mode    dynamo.ActuationMode
	Targets []dynamo.JointTarget
	Step    int
}

type StartCall struct {
	Bases, Joints, ForceSensors []string
}

// Transport is a scripted simulator. Time advances by Timestep per Step.
// Joint data come from Positions and Torques, indexed by raw step count.
type Transport struct {
	mu sync.Mutex

	Timestep float64
	// Bases maps suffixed joint names to their model base.
	Bases map[string]string
	// InvalidStates is how many State calls report no data before a valid one.
	InvalidStates int
	Positions     func(step int) []float64
	Torques       func(step int) []float64
	Snapshot      func(step int) *dynamo.Snapshot
	// SkipSteps adds one extra timestep of simulated time at these steps.
	SkipSteps map[int]bool
	// StateDrift is added to the clock on every State call.
	StateDrift float64
	// Errors makes the named method fail.
	Errors map[string]error
	// OnStep runs after every Step, outside the lock.
	OnStep func(step int)

	steps      int
	offset     float64
	methods    []string
	forces     []ForceCall
	targets    []TargetCall
	started    *StartCall
	stateCalls int
	stopped    bool
	closed     bool
}

var _ transport.Transport = (*Transport)(nil)

func New(timestep float64) *Transport {
	return &Transport{Timestep: timestep, Bases: map[string]string{}}
}

func (t *Transport) record(method string) error {
	t.methods = append(t.methods, method)
	if err, ok := t.Errors[method]; ok {
		return err
	}
	if t.closed {
		return errors.New("fakesim: closed")
	}
	return nil
}

func (t *Transport) now() float64 {
	return float64(t.steps)*t.Timestep + t.offset
}

func (t *Transport) SimulationTime(ctx context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("SimulationTime"); err != nil {
		return 0, err
	}
	return t.now(), nil
}

func (t *Transport) ModelBase(ctx context.Context, joint string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("ModelBase"); err != nil {
		return "", err
	}
	base, ok := t.Bases[joint]
	if !ok {
		return "", errors.Errorf("fakesim: no joint %s", joint)
	}
	return base, nil
}

func (t *Transport) StartSimulation(ctx context.Context, bases, joints, forceSensors []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("StartSimulation"); err != nil {
		return err
	}
	t.started = &StartCall{Bases: bases, Joints: joints, ForceSensors: forceSensors}
	return nil
}

func (t *Transport) State(ctx context.Context, req transport.StateRequest) (*dynamo.Snapshot, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("State"); err != nil {
		return nil, false, err
	}
	t.stateCalls++
	t.offset += t.StateDrift
	if t.stateCalls <= t.InvalidStates {
		return nil, false, nil
	}
	return t.snapshot(req), true, nil
}

func (t *Transport) snapshot(req transport.StateRequest) *dynamo.Snapshot {
	var snap *dynamo.Snapshot
	if t.Snapshot != nil {
		snap = t.Snapshot(t.steps)
	} else {
		snap = &dynamo.Snapshot{ForceSensors: map[string]dynamo.ForceReading{}}
	}
	snap.SimTime = t.now()
	n := len(req.Joints)
	if t.Positions != nil {
		snap.JointPositions = t.Positions(t.steps)
	} else if snap.JointPositions == nil {
		snap.JointPositions = make([]float64, n)
	}
	if t.Torques != nil {
		snap.JointTorques = t.Torques(t.steps)
	} else if snap.JointTorques == nil {
		snap.JointTorques = make([]float64, n)
	}
	for len(snap.BasePoses) < len(req.Bases) {
		snap.BasePoses = append(snap.BasePoses, dynamo.IdentityPose())
	}
	for len(snap.BaseVelocities) < len(req.Bases) {
		snap.BaseVelocities = append(snap.BaseVelocities, dynamo.Twist{})
	}
	return snap
}

func (t *Transport) Step(ctx context.Context) error {
	t.mu.Lock()
	if err := t.record("Step"); err != nil {
		t.mu.Unlock()
		return err
	}
	t.steps++
	if t.SkipSteps[t.steps] {
		t.offset += t.Timestep
	}
	step, hook := t.steps, t.OnStep
	t.mu.Unlock()
	if hook != nil {
		hook(step)
	}
	return nil
}

func (t *Transport) AddForce(ctx context.Context, body string, w dynamo.Wrench) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("AddForce"); err != nil {
		return err
	}
	t.forces = append(t.forces, ForceCall{Body: body, Wrench: w, Step: t.steps})
	return nil
}

func (t *Transport) SetJointTargets(ctx context.Context, mode dynamo.ActuationMode, targets []dynamo.JointTarget) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("SetJointTargets"); err != nil {
		return err
	}
	t.targets = append(t.targets, TargetCall{
		Mode:    mode,
		Targets: append([]dynamo.JointTarget(nil), targets...),
		Step:    t.steps,
	})
	return nil
}

func (t *Transport) StopSimulation(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("StopSimulation"); err != nil {
		return err
	}
	t.stopped = true
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Steps is the number of raw steps taken.
func (t *Transport) Steps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steps
}

// Methods returns the call log.
func (t *Transport) Methods() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.methods...)
}

// Count returns how many times method was called.
func (t *Transport) Count(method string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.methods {
		if m == method {
			n++
		}
	}
	return n
}

func (t *Transport) Forces() []ForceCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ForceCall(nil), t.forces...)
}

func (t *Transport) Targets() []TargetCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TargetCall(nil), t.targets...)
}

func (t *Transport) Started() *StartCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *Transport) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

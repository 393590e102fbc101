package control

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/robot"
)

// velocityGain converts a position error into a velocity command, in 1/s.
const velocityGain = 10.0

type jointLoop struct {
	index  int
	target float64
	pid    *PID
}

// HoldPose keeps every actuated joint of every robot at the position it had
// at Init. It fills position, velocity and torque commands on each run, so
// any actuation mode can be used.
type HoldPose struct {
	mu sync.Mutex

	dt      float64
	robots  []*robot.Robot
	real    []*robot.Robot
	loops   [][]jointLoop
	running bool
	t       float64

	wrenches map[string]map[string]dynamo.Wrench
	accel    r3.Vector
}

var _ Runtime = (*HoldPose)(nil)

func NewHoldPose(dt, kp, kd float64, specs []robot.Spec) (*HoldPose, error) {
	if dt <= 0 {
		return nil, errors.Errorf("controller timestep must be positive, got %g", dt)
	}
	if len(specs) == 0 {
		return nil, errors.New("at least one robot is required")
	}
	h := &HoldPose{dt: dt, wrenches: make(map[string]map[string]dynamo.Wrench)}
	for _, spec := range specs {
		r, err := robot.New(spec)
		if err != nil {
			return nil, err
		}
		var loops []jointLoop
		for _, name := range r.RefJointOrder() {
			idx, ok := r.JointIndexByName(name)
			if !ok || r.Joints()[idx].Dof() != 1 {
				return nil, errors.Errorf("robot %s: reference joint %q is not a 1-dof joint of the model", r.Name(), name)
			}
			loops = append(loops, jointLoop{index: idx, pid: NewPID(kp, 0, kd)})
		}
		h.robots = append(h.robots, r)
		h.real = append(h.real, r.Copy())
		h.loops = append(h.loops, loops)
	}
	return h, nil
}

func (h *HoldPose) Timestep() float64           { return h.dt }
func (h *HoldPose) Robots() []*robot.Robot     { return h.robots }
func (h *HoldPose) RealRobots() []*robot.Robot { return h.real }
func (h *HoldPose) Version() string            { return Version }

// Init holds the main robot at encoders and every other robot at its last
// encoder reading.
func (h *HoldPose) Init(encoders []float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.robots {
		enc := r.EncoderValues()
		if i == 0 {
			enc = encoders
		}
		if len(enc) != len(h.loops[i]) {
			return errors.Wrapf(dynamo.ErrDimensionMismatch, "robot %s: %d encoders for %d joints",
				r.Name(), len(enc), len(h.loops[i]))
		}
		for j := range h.loops[i] {
			l := &h.loops[i][j]
			l.target = enc[j]
			l.pid.Reset()
			r.Q[l.index][0] = enc[j]
		}
	}
	h.t = 0
	return nil
}

// Run returns false while not running or when a robot has no encoder data.
func (h *HoldPose) Run() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return false
	}
	h.t += h.dt
	for i, r := range h.robots {
		enc := r.EncoderValues()
		if len(enc) != len(h.loops[i]) {
			return false
		}
		for j, l := range h.loops[i] {
			r.Q[l.index][0] = l.target
			r.Alpha[l.index][0] = velocityGain * (l.target - enc[j])
			r.Tau[l.index][0] = l.pid.Update(l.target, enc[j], h.t)
		}
	}
	return true
}

func (h *HoldPose) SetRunning(running bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = running
}

func (h *HoldPose) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SetTarget moves the hold position of one joint.
func (h *HoldPose) SetTarget(robotIndex int, joint string, value float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if robotIndex < 0 || robotIndex >= len(h.robots) {
		return errors.Errorf("no robot with index %d", robotIndex)
	}
	r := h.robots[robotIndex]
	for j, name := range r.RefJointOrder() {
		if name == joint {
			h.loops[robotIndex][j].target = value
			return nil
		}
	}
	return errors.Errorf("robot %s has no joint %q", r.Name(), joint)
}

func (h *HoldPose) SetWrenches(robotName string, wrenches map[string]dynamo.Wrench) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wrenches[robotName] = wrenches
}

// Wrenches returns the last readings pushed for robotName.
func (h *HoldPose) Wrenches(robotName string) map[string]dynamo.Wrench {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]dynamo.Wrench, len(h.wrenches[robotName]))
	for k, v := range h.wrenches[robotName] {
		out[k] = v
	}
	return out
}

func (h *HoldPose) SetSensorLinearAcceleration(acc r3.Vector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.accel = acc
}

func (h *HoldPose) LinearAcceleration() r3.Vector {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accel
}

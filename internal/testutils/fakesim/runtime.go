package fakesim

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/san-kum/simbridge/internal/control"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/robot"
)

// Runtime records what the bridge feeds the controller. Run reports
// RunResult and writes Command into every actuated joint.
type Runtime struct {
	mu sync.Mutex

	Dt        float64
	RunResult bool
	Command   float64
	Ver       string
	// OnRun is called at the end of every Run.
	OnRun func(r *Runtime)

	robots  []*robot.Robot
	real    []*robot.Robot
	running bool

	initEncoders []float64
	runEncoders  [][]float64
	runRunning   []bool
	wrenches     map[string]map[string]dynamo.Wrench
	accel        r3.Vector
	accelCalls   int
}

var _ control.Runtime = (*Runtime)(nil)

// NewRuntime builds robots from specs. It panics on invalid specs.
func NewRuntime(dt float64, specs ...robot.Spec) *Runtime {
	rt := &Runtime{Dt: dt, RunResult: true, Ver: control.Version, wrenches: map[string]map[string]dynamo.Wrench{}}
	for _, s := range specs {
		r, err := robot.New(s)
		if err != nil {
			panic(err)
		}
		rt.robots = append(rt.robots, r)
		rt.real = append(rt.real, r.Copy())
	}
	return rt
}

func (rt *Runtime) Timestep() float64           { return rt.Dt }
func (rt *Runtime) Robots() []*robot.Robot     { return rt.robots }
func (rt *Runtime) RealRobots() []*robot.Robot { return rt.real }
func (rt *Runtime) Version() string            { return rt.Ver }

func (rt *Runtime) Init(encoders []float64) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.initEncoders = append([]float64(nil), encoders...)
	return nil
}

func (rt *Runtime) Run() bool {
	rt.mu.Lock()
	rt.runEncoders = append(rt.runEncoders, rt.robots[0].EncoderValues())
	rt.runRunning = append(rt.runRunning, rt.running)
	for _, r := range rt.robots {
		for i, j := range r.Joints() {
			if j.Dof() == 1 {
				r.Q[i][0] = rt.Command
				r.Alpha[i][0] = rt.Command
				r.Tau[i][0] = rt.Command
			}
		}
	}
	result, hook := rt.RunResult, rt.OnRun
	rt.mu.Unlock()
	if hook != nil {
		hook(rt)
	}
	return result
}

func (rt *Runtime) SetRunning(running bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.running = running
}

func (rt *Runtime) SetWrenches(robotName string, wrenches map[string]dynamo.Wrench) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.wrenches[robotName] = wrenches
}

func (rt *Runtime) SetSensorLinearAcceleration(acc r3.Vector) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.accel = acc
	rt.accelCalls++
}

func (rt *Runtime) Running() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.running
}

// Runs is the number of Run calls.
func (rt *Runtime) Runs() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.runEncoders)
}

// RunEncoders are the main robot encoders seen by each Run.
func (rt *Runtime) RunEncoders() [][]float64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([][]float64(nil), rt.runEncoders...)
}

// RunRunning is the running flag seen by each Run.
func (rt *Runtime) RunRunning() []bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]bool(nil), rt.runRunning...)
}

func (rt *Runtime) InitEncoders() []float64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.initEncoders
}

func (rt *Runtime) Wrenches(robotName string) map[string]dynamo.Wrench {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.wrenches[robotName]
}

func (rt *Runtime) Acceleration() (r3.Vector, int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.accel, rt.accelCalls
}

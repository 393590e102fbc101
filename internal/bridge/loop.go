package bridge

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/control"
	"github.com/san-kum/simbridge/internal/disturbance"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/translate"
	"github.com/san-kum/simbridge/internal/transport"
)

// Version is the controller runtime API this bridge was built against.
const Version = control.Version

var (
	// ErrBootstrapTimeout is returned when the simulator never reports a valid state.
	ErrBootstrapTimeout = errors.New("simulator did not provide a valid state before the bootstrap timeout")

	// ErrNotStarted is returned by NextStep before Start succeeded.
	ErrNotStarted = errors.New("simulation not started")

	// ErrInvalidFrameskip is returned when the timesteps give a frameskip below 1.
	ErrInvalidFrameskip = errors.New("frameskip must be at least 1")
)

// Driver is the interactive side of the loop.
type Driver interface {
	Done() bool
	StepByStep() bool
	// Next consumes a pending advance request.
	Next() bool
	// Play drops any pending advance request.
	Play()
}

// Options configure a Loop. Zero values take the config package defaults.
type Options struct {
	SimulationTimestep float64
	Mode               dynamo.ActuationMode
	Extras             []config.ExtraRobot
	SettleSteps        int
	BootstrapTimeout   time.Duration
	PausePoll          time.Duration
	DriftTolerance     float64
	Clock              clock.Clock
}

// OptionsFromConfig maps the simulator section onto loop options.
func OptionsFromConfig(s config.SimulatorConfig) Options {
	return Options{
		SimulationTimestep: s.SimulationTimestep,
		Mode:               s.Mode(),
		Extras:             s.Extras,
		SettleSteps:        s.SettleSteps,
		BootstrapTimeout:   s.BootstrapTimeout,
		PausePoll:          s.PausePoll,
		DriftTolerance:     s.DriftTolerance,
	}
}

// Loop drives one simulation. NextStep, Start and Run must be called from a
// single goroutine. The disturbance methods and Stats may be called from any
// goroutine.
type Loop struct {
	opts      Options
	tr        transport.Transport
	rt        control.Runtime
	logger    logging.Logger
	clock     clock.Clock
	injector  *disturbance.Injector
	frameskip int
	simDt     float64

	bindings     []*translate.Binding
	req          transport.StateRequest
	snap         *dynamo.Snapshot
	prevEncoders [][]float64
	prevT        float64
	havePrevT    bool
	started      bool
	// simStarted is set once the simulator accepted the start request, so
	// Stop still reaches it when bootstrap fails.
	simStarted   bool

	iter               atomic.Uint64
	state              atomic.Int32
	controlTicks       atomic.Uint64
	actuations         atomic.Uint64
	missedSteps        atomic.Uint64
	concurrentAdvances atomic.Uint64
	simTime            atomic.Float64

	driftLog rate.Sometimes

	obsMu     sync.Mutex
	observers []dynamo.Observer
}

// NewFromConfig validates cfg before building the loop, so a rejected
// configuration never reaches the transport.
func NewFromConfig(cfg *config.Config, tr transport.Transport, rt control.Runtime, logger logging.Logger) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(OptionsFromConfig(cfg.Simulator), tr, rt, logger)
}

func New(opts Options, tr transport.Transport, rt control.Runtime, logger logging.Logger) (*Loop, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.PausePoll <= 0 {
		opts.PausePoll = config.DefaultPausePoll
	}
	if opts.DriftTolerance <= 0 {
		opts.DriftTolerance = config.DefaultDriftTolerance
	}
	if opts.SettleSteps < 0 {
		return nil, errors.Errorf("settle steps must not be negative, got %d", opts.SettleSteps)
	}
	ctlDt := rt.Timestep()
	simDt := opts.SimulationTimestep
	if simDt <= 0 {
		simDt = ctlDt
	}
	fs, err := config.Frameskip(ctlDt, simDt)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFrameskip, err.Error())
	}
	if v := rt.Version(); v != Version {
		logger.Warnw("controller runtime version differs from the one simbridge was built against",
			"runtime", v, "simbridge", Version)
	}
	logger.Infow("frameskip", "frameskip", fs, "controller_dt", ctlDt, "simulation_dt", simDt)

	l := &Loop{
		opts:      opts,
		tr:        tr,
		rt:        rt,
		logger:    logger,
		clock:     opts.Clock,
		injector:  disturbance.New(ctlDt),
		frameskip: fs,
		simDt:     simDt,
		driftLog:  rate.Sometimes{First: 10, Interval: 5 * time.Second},
	}
	l.state.Store(int32(Bootstrapping))
	return l, nil
}

func (l *Loop) Frameskip() int { return l.frameskip }

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// Bindings are available after Start.
func (l *Loop) Bindings() []*translate.Binding { return l.bindings }

func (l *Loop) Stats() Stats {
	return Stats{
		State:              l.State(),
		Frameskip:          l.frameskip,
		Iteration:          l.iter.Load(),
		ControlTicks:       l.controlTicks.Load(),
		Actuations:         l.actuations.Load(),
		MissedSteps:        l.missedSteps.Load(),
		ConcurrentAdvances: l.concurrentAdvances.Load(),
		SimTime:            l.simTime.Load(),
	}
}

// AddObserver registers o to receive a record after every control tick.
func (l *Loop) AddObserver(o dynamo.Observer) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	l.observers = append(l.observers, o)
}

// SetExternalForce keeps w applied on body until removed.
func (l *Loop) SetExternalForce(body string, w dynamo.Wrench) bool {
	return l.injector.SetForce(body, w)
}

func (l *Loop) RemoveExternalForce(body string) bool {
	return l.injector.RemoveForce(body)
}

// ApplyImpact applies impulse on body over the next control tick.
func (l *Loop) ApplyImpact(body string, impulse dynamo.Wrench) bool {
	return l.injector.ApplyImpact(body, impulse)
}

func (l *Loop) Disturbances() *disturbance.Injector { return l.injector }

// NextStep advances the simulator by one physics step, running the
// controller first when the step is a control tick.
func (l *Loop) NextStep(ctx context.Context) error {
	if !l.started {
		return ErrNotStarted
	}
	iter := l.iter.Load()
	wrap := func(err error, t float64) error {
		return &dynamo.TickError{Iteration: iter, SimTime: t, Wrapped: err}
	}

	startT, err := l.tr.SimulationTime(ctx)
	if err != nil {
		return wrap(errors.Wrap(err, "read simulation time"), l.prevT)
	}
	if !l.havePrevT {
		l.prevT = startT - l.simDt
		l.havePrevT = true
	}
	if math.Abs(startT-l.prevT-l.simDt) > l.opts.DriftTolerance {
		l.missedSteps.Inc()
		prev := l.prevT
		l.driftLog.Do(func() {
			l.logger.Warnw("missed a simulation step", "start", startT, "prev", prev, "expected_dt", l.simDt)
		})
	}
	l.prevT = startT
	l.simTime.Store(startT)

	if iter%uint64(l.frameskip) == 0 {
		if err := l.controlTick(ctx, iter); err != nil {
			return wrap(err, startT)
		}
	}
	l.iter.Inc()

	endT, err := l.tr.SimulationTime(ctx)
	if err != nil {
		return wrap(errors.Wrap(err, "read simulation time"), startT)
	}
	if endT != startT {
		l.concurrentAdvances.Inc()
		l.driftLog.Do(func() {
			l.logger.Warnw("simulation advanced while the controller was running", "start", startT, "end", endT)
		})
	}

	if err := l.tr.Step(ctx); err != nil {
		return wrap(errors.Wrap(err, "step simulation"), startT)
	}
	return nil
}

func (l *Loop) controlTick(ctx context.Context, iter uint64) error {
	snap, err := l.pullState(ctx)
	if err != nil {
		return err
	}
	if err := l.injector.Flush(ctx, l.tr); err != nil {
		return err
	}
	l.updateData(snap)
	l.controlTicks.Inc()

	rec := dynamo.TickRecord{
		Iteration: iter,
		SimTime:   snap.SimTime,
		Encoders:  l.bindings[0].Slice(snap.JointPositions),
		Torques:   l.bindings[0].Slice(snap.JointTorques),
		Mode:      l.opts.Mode,
	}
	if l.rt.Run() {
		for _, b := range l.bindings {
			if !b.Actuated {
				continue
			}
			targets := b.Targets(l.opts.Mode)
			if err := l.tr.SetJointTargets(ctx, l.opts.Mode, targets); err != nil {
				return errors.Wrapf(err, "push %s targets for %s", l.opts.Mode, b.Robot.Name())
			}
			if b.Index == 0 {
				rec.Commands = make([]float64, len(targets))
				for i, t := range targets {
					rec.Commands[i] = t.Value
				}
			}
		}
		rec.Actuated = true
		l.actuations.Inc()
	}
	l.notify(rec)
	return nil
}

// pullState fetches a snapshot and checks it covers every bound joint.
func (l *Loop) pullState(ctx context.Context) (*dynamo.Snapshot, error) {
	snap, ok, err := l.tr.State(ctx, l.req)
	if err != nil {
		return nil, errors.Wrap(err, "pull simulation state")
	}
	if !ok {
		// Keep the last valid state, as the simulator does for its outputs.
		if l.snap == nil {
			return nil, errors.New("simulator returned no valid state")
		}
		return l.snap, nil
	}
	if err := snap.Check(translate.TotalJoints(l.bindings), len(l.bindings)); err != nil {
		return nil, err
	}
	l.snap = snap
	return snap, nil
}

func (l *Loop) notify(rec dynamo.TickRecord) {
	l.obsMu.Lock()
	obs := append([]dynamo.Observer(nil), l.observers...)
	l.obsMu.Unlock()
	for _, o := range obs {
		o.OnControlTick(rec)
	}
}

// UpdateGUI lets the controller refresh its outputs without advancing the
// simulation.
func (l *Loop) UpdateGUI() {
	l.rt.SetRunning(false)
	l.rt.Run()
	l.rt.SetRunning(true)
}

// Run advances the simulation until drv reports done or ctx ends, then stops
// the simulation. With step-by-step on, it waits for drv.Next before each
// control tick.
func (l *Loop) Run(ctx context.Context, drv Driver) error {
	for !drv.Done() && ctx.Err() == nil {
		if err := l.NextStep(ctx); err != nil {
			return multierr.Append(err, l.Stop(context.WithoutCancel(ctx)))
		}
		if drv.StepByStep() && l.iter.Load()%uint64(l.frameskip) == 0 {
			l.setState(StepPaused)
			for drv.StepByStep() && !drv.Next() && !drv.Done() && ctx.Err() == nil {
				l.UpdateGUI()
				l.clock.Sleep(l.opts.PausePoll)
			}
			l.setState(Running)
		}
		drv.Play()
	}
	return l.Stop(context.WithoutCancel(ctx))
}

// Stop asks the simulator to stop. Later calls do nothing.
func (l *Loop) Stop(ctx context.Context) error {
	if l.State() == Stopped {
		return nil
	}
	l.setState(Stopped)
	if !l.simStarted {
		return nil
	}
	l.logger.Infow("stopping simulation", "iterations", l.iter.Load())
	return errors.Wrap(l.tr.StopSimulation(ctx), "stop simulation")
}

// Close stops the simulation and closes the transport.
func (l *Loop) Close(ctx context.Context) error {
	return multierr.Append(l.Stop(ctx), l.tr.Close())
}

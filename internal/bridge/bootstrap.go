package bridge

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/translate"
	"github.com/san-kum/simbridge/internal/transport"
)

// Start binds the robots, starts the simulation and seeds the controller
// from the first valid simulator state.
func (l *Loop) Start(ctx context.Context) error {
	if l.started {
		return errors.New("simulation already started")
	}
	if l.State() == Stopped {
		return errors.New("loop is stopped")
	}

	targets, err := l.targets()
	if err != nil {
		return err
	}
	bindings, err := translate.Resolve(ctx, l.tr, targets, l.logger)
	if err != nil {
		return err
	}
	l.bindings = bindings
	l.prevEncoders = make([][]float64, len(bindings))

	bases, joints, sensors := translate.Names(bindings)
	l.req = transport.StateRequest{Bases: bases, Joints: joints, ForceSensors: sensors}
	if err := l.tr.StartSimulation(ctx, bases, joints, sensors); err != nil {
		return errors.Wrap(err, "start simulation")
	}
	l.simStarted = true
	if err := l.bootstrap(ctx); err != nil {
		return multierr.Append(err, l.Stop(context.WithoutCancel(ctx)))
	}
	return nil
}

// bootstrap waits for the first valid state, lets the simulation settle and
// seeds the controller.
func (l *Loop) bootstrap(ctx context.Context) error {
	snap, err := l.waitForState(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < l.opts.SettleSteps; i++ {
		if err := l.tr.Step(ctx); err != nil {
			return errors.Wrap(err, "settle simulation")
		}
	}

	l.rt.SetRunning(true)
	for i, b := range l.bindings {
		b.Robot.PosW = snap.BasePoses[i]
	}
	l.updateData(snap)
	// snap predates the settle steps, so it must not seed the first difference.
	for i := range l.prevEncoders {
		l.prevEncoders[i] = nil
	}
	if err := l.rt.Init(l.bindings[0].Robot.EncoderValues()); err != nil {
		return errors.Wrap(err, "init controller")
	}

	l.started = true
	l.setState(Running)
	l.logger.Infow("simulation started", "robots", len(l.bindings), "joints", translate.TotalJoints(l.bindings), "sim_time", snap.SimTime)
	return nil
}

func (l *Loop) targets() ([]translate.Target, error) {
	robots := l.rt.Robots()
	real := l.rt.RealRobots()
	if len(robots) == 0 {
		return nil, errors.New("controller has no robots")
	}
	target := func(index int, suffix string) translate.Target {
		t := translate.Target{Index: index, Suffix: suffix, Robot: robots[index]}
		if index < len(real) {
			t.Shadow = real[index]
		}
		return t
	}
	targets := []translate.Target{target(0, "")}
	for _, e := range l.opts.Extras {
		if e.Index <= 0 || e.Index >= len(robots) {
			return nil, errors.Errorf("extra robot index %d is out of range, the controller has %d robots", e.Index, len(robots))
		}
		targets = append(targets, target(e.Index, e.Suffix))
	}
	return targets, nil
}

// waitForState steps the simulator until it reports a valid state or the
// bootstrap timeout elapses.
func (l *Loop) waitForState(ctx context.Context) (*dynamo.Snapshot, error) {
	timeout := l.opts.BootstrapTimeout
	deadline := l.clock.Now().Add(timeout)
	for polls := 0; ; polls++ {
		snap, ok, err := l.tr.State(ctx, l.req)
		if err != nil {
			return nil, errors.Wrap(err, "pull simulation state")
		}
		if ok {
			if err := snap.Check(translate.TotalJoints(l.bindings), len(l.bindings)); err != nil {
				return nil, err
			}
			l.logger.Debugw("first valid state", "polls", polls)
			l.snap = snap
			return snap, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if timeout > 0 && !l.clock.Now().Before(deadline) {
			return nil, errors.Wrapf(ErrBootstrapTimeout, "no valid state after %d polls in %s", polls+1, timeout)
		}
		if err := l.tr.Step(ctx); err != nil {
			return nil, errors.Wrap(err, "step simulation")
		}
	}
}

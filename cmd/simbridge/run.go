package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/control"
	"github.com/san-kum/simbridge/internal/driver"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/metrics"
	"github.com/san-kum/simbridge/internal/storage"
	"github.com/san-kum/simbridge/internal/translate"
	"github.com/san-kum/simbridge/internal/transport"
	"github.com/san-kum/simbridge/internal/tui"
)

const shutdownTimeout = 5 * time.Second

var errNoRobots = errors.New("no robots configured, pass --config (see configs/arm.yaml)")

// loadConfig reads the config file (or the defaults), overlays the preset and
// then any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
	}
	if preset != "" && !config.Apply(cfg, preset) {
		return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	flags := cmd.Flags()
	if flags.Lookup("host") != nil {
		if flags.Changed("host") {
			cfg.Simulator.Host = host
		}
		if flags.Changed("port") {
			cfg.Simulator.Port = port
		}
		if flags.Changed("step-by-step") {
			cfg.Simulator.StepByStep = stepByStep
		}
		if flags.Changed("velocity") {
			cfg.Simulator.VelocityControl = velocity
		}
		if flags.Changed("torque") {
			cfg.Simulator.TorqueControl = torque
		}
		if flags.Changed("sim-dt") {
			cfg.Simulator.SimulationTimestep = simDt
		}
		if flags.Changed("dt") {
			cfg.Controller.Timestep = ctlDt
		}
		if flags.Changed("kp") {
			cfg.Controller.Kp = kp
		}
		if flags.Changed("kd") {
			cfg.Controller.Kd = kd
		}
		if flags.Changed("record") {
			cfg.Recording.Enabled = record
		}
		if flags.Changed("name") {
			cfg.Recording.Name = runName
		}
	}
	if dataDir != "" {
		cfg.Recording.Dir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Controller.Robots) == 0 {
		return nil, errNoRobots
	}
	cfg.Resolve()
	return cfg, nil
}

func transportOptions(s config.SimulatorConfig) transport.Options {
	return transport.Options{
		Host:               s.Host,
		Port:               s.Port,
		Timeout:            s.TimeoutDuration(),
		WaitUntilConnected: s.WaitUntilConnected,
		DoNotReconnect:     s.DoNotReconnect,
		CommThreadCycle:    time.Duration(s.CommThreadCycleInMs) * time.Millisecond,
	}
}

func runBridge(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger("simbridge", debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rt, err := control.NewHoldPose(cfg.Controller.Timestep, cfg.Controller.Kp, cfg.Controller.Kd, cfg.Controller.Robots)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("connecting to simulator", "addr", cfg.Simulator.Address(), "wait", cfg.Simulator.WaitUntilConnected)
	client, err := transport.Dial(ctx, transportOptions(cfg.Simulator), logger.Named("transport"))
	if err != nil {
		return err
	}

	loop, err := bridge.NewFromConfig(cfg, client, rt, logger.Named("bridge"))
	if err != nil {
		return multierr.Append(err, client.Close())
	}
	closeCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	}
	defer func() {
		cctx, cancel := closeCtx()
		defer cancel()
		err = multierr.Append(err, loop.Close(cctx))
	}()

	if err := loop.Start(ctx); err != nil {
		return err
	}

	set := metrics.DefaultSet()
	loop.AddObserver(set)
	feed := tui.NewFeed(256)
	loop.AddObserver(feed)

	var rec *storage.Recorder
	if cfg.Recording.Enabled {
		st := storage.New(cfg.Recording.Dir)
		if err := st.Init(); err != nil {
			return err
		}
		rec, err = st.Create(storage.RunMetadata{
			Name:               cfg.Recording.Name,
			Simulator:          client.Simulator(),
			SimulationTimestep: cfg.Simulator.SimulationTimestep,
			ControllerTimestep: cfg.Controller.Timestep,
			Frameskip:          loop.Frameskip(),
			Mode:               cfg.Simulator.Mode().String(),
			Robots:             len(loop.Bindings()),
		})
		if err != nil {
			return err
		}
		loop.AddObserver(rec)
		logger.Infow("recording", "run", rec.ID(), "dir", rec.Dir())
	}

	flags := driver.NewFlags(cfg.Simulator.StepByStep)
	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return loop.Run(gctx, flags)
	})
	g.Go(func() error {
		if useTUI {
			var bodies []string
			if b := loop.Bindings(); len(b) > 0 {
				bodies = translate.RespondableBodies(b[0].Robot)
			}
			return tui.Run(gctx, flags, loop, feed, bodies)
		}
		fmt.Println("type help for commands")
		return driver.NewConsole(flags, loop, os.Stdout, logger.Named("console")).Run(gctx, os.Stdin)
	})
	runErr := g.Wait()

	if rec != nil {
		stats := loop.Stats()
		values := set.Values()
		runErr = multierr.Append(runErr, rec.Close(func(m *storage.RunMetadata) {
			m.Iterations = stats.Iteration
			m.ControlTicks = stats.ControlTicks
			m.Actuations = stats.Actuations
			m.MissedSteps = stats.MissedSteps
			m.ConcurrentAdvances = stats.ConcurrentAdvances
			m.SimTime = stats.SimTime
			m.Metrics = values
		}))
		fmt.Printf("run id: %s\n", rec.ID())
	}

	printSummary(loop.Stats(), set.Values())
	return runErr
}

func printSummary(st bridge.Stats, values map[string]float64) {
	fmt.Printf("iterations: %d (control ticks %d, frameskip %d)\n", st.Iteration, st.ControlTicks, st.Frameskip)
	fmt.Printf("sim time: %.3fs\n", st.SimTime)
	if st.MissedSteps > 0 || st.ConcurrentAdvances > 0 {
		fmt.Printf("missed steps: %d, concurrent advances: %d\n", st.MissedSteps, st.ConcurrentAdvances)
	}
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(values) {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fs, err := config.Frameskip(cfg.Controller.Timestep, cfg.Simulator.SimulationTimestep)
	if err != nil {
		return err
	}
	fmt.Printf("simulator: %s\n", cfg.Simulator.Address())
	fmt.Printf("controller timestep: %g\n", cfg.Controller.Timestep)
	fmt.Printf("simulation timestep: %g\n", cfg.Simulator.SimulationTimestep)
	fmt.Printf("frameskip: %d\n", fs)
	fmt.Printf("mode: %s\n", cfg.Simulator.Mode())
	fmt.Printf("robots: %d (extras %d)\n", len(cfg.Controller.Robots), len(cfg.Simulator.Extras))
	return nil
}

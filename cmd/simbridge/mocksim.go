package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/mocksim"
)

func runMockSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger("mocksim", debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := mocksim.DefaultOptions()
	opts.Integrator = integrator
	opts.Timestep = cfg.Simulator.SimulationTimestep
	if mockDt > 0 {
		opts.Timestep = mockDt
	}

	scene := mocksim.SceneFromConfig(cfg)
	world, err := mocksim.NewWorld(scene, opts)
	if err != nil {
		return err
	}
	logger.Infow("scene loaded", "models", len(scene.Models), "integrator", opts.Integrator)

	addr := listenAddr
	if addr == "" {
		addr = cfg.Simulator.Address()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mocksim.NewServer(world, logger).ListenAndServe(ctx, addr)
}

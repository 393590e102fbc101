package main

import (
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/config"
)

func runFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "")
	cmd.Flags().BoolVar(&stepByStep, "step-by-step", false, "")
	cmd.Flags().BoolVar(&velocity, "velocity", false, "")
	cmd.Flags().BoolVar(&torque, "torque", false, "")
	cmd.Flags().Float64Var(&simDt, "sim-dt", -1, "")
	cmd.Flags().Float64Var(&ctlDt, "dt", config.DefaultControllerTimestep, "")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "")
	cmd.Flags().BoolVar(&record, "record", false, "")
	cmd.Flags().StringVar(&runName, "name", "", "")
	return cmd
}

func TestLoadConfigRequiresRobots(t *testing.T) {
	g := NewWithT(t)
	configFile, preset, dataDir = "", "", ""

	_, err := loadConfig(runFlagsCmd())
	g.Expect(err).To(MatchError(errNoRobots))
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	g := NewWithT(t)
	configFile, preset, dataDir = filepath.Join("..", "..", "configs", "arm.yaml"), "", ""
	t.Cleanup(func() { configFile = "" })

	cmd := runFlagsCmd()
	g.Expect(cmd.Flags().Parse([]string{"--port", "20001", "--torque"})).To(Succeed())

	cfg, err := loadConfig(cmd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Simulator.Port).To(Equal(20001))
	g.Expect(cfg.Simulator.TorqueControl).To(BeTrue())
	g.Expect(cfg.Simulator.SimulationTimestep).To(Equal(0.001))
	g.Expect(cfg.Controller.Robots[0].Name).To(Equal("arm"))
}

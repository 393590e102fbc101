package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/robot"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Simulator.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Simulator.Port)
	}
	if cfg.Controller.Timestep <= 0 {
		t.Error("controller timestep should be positive")
	}
	if cfg.Simulator.SimulationTimestep >= 0 {
		t.Error("simulation timestep should default to unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestResolveSimulationTimestep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controller.Timestep = 0.01
	cfg.Resolve()
	if cfg.Simulator.SimulationTimestep != 0.01 {
		t.Errorf("expected simulation timestep to follow controller, got %g", cfg.Simulator.SimulationTimestep)
	}

	cfg.Simulator.SimulationTimestep = 0.002
	cfg.Resolve()
	if cfg.Simulator.SimulationTimestep != 0.002 {
		t.Errorf("explicit timestep overwritten: %g", cfg.Simulator.SimulationTimestep)
	}
}

func TestValidateRejectsTorqueAndVelocity(t *testing.T) {
	g := NewWithT(t)

	cfg := DefaultConfig()
	cfg.Simulator.TorqueControl = true
	cfg.Simulator.VelocityControl = true
	g.Expect(cfg.Validate()).To(MatchError(ErrConflictingActuation))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"torque only", func(c *Config) { c.Simulator.TorqueControl = true }, true},
		{"velocity only", func(c *Config) { c.Simulator.VelocityControl = true }, true},
		{"zero controller dt", func(c *Config) { c.Controller.Timestep = 0 }, false},
		{"coarse physics", func(c *Config) { c.Simulator.SimulationTimestep = 0.05 }, false},
		{"negative settle", func(c *Config) { c.Simulator.SettleSteps = -1 }, false},
		{"extra index zero", func(c *Config) { c.Simulator.Extras = []ExtraRobot{{Index: 0}} }, false},
		{"duplicate extras", func(c *Config) {
			c.Simulator.Extras = []ExtraRobot{{Index: 1, Suffix: "#0"}, {Index: 1, Suffix: "#1"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestFrameskip(t *testing.T) {
	tests := []struct {
		ctl, sim float64
		expected int
	}{
		{0.01, 0.005, 2},
		{0.005, 0.005, 1},
		{0.005, 0.001, 5},
		{0.01, 0.003, 3},
		{0.005, 0.0075, 1},
	}

	for _, tt := range tests {
		got, err := Frameskip(tt.ctl, tt.sim)
		if err != nil {
			t.Errorf("Frameskip(%g, %g): %v", tt.ctl, tt.sim, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("Frameskip(%g, %g) = %d, want %d", tt.ctl, tt.sim, got, tt.expected)
		}
	}

	if _, err := Frameskip(0.005, 0.011); err == nil {
		t.Error("expected error for frameskip < 1")
	}
}

func TestMode(t *testing.T) {
	g := NewWithT(t)

	s := SimulatorConfig{}
	g.Expect(s.Mode()).To(Equal(dynamo.PositionControl))
	s.VelocityControl = true
	g.Expect(s.Mode()).To(Equal(dynamo.VelocityControl))
	s = SimulatorConfig{TorqueControl: true}
	g.Expect(s.Mode()).To(Equal(dynamo.TorqueControl))
}

func TestParse(t *testing.T) {
	g := NewWithT(t)

	doc := `
simulator:
  host: sim.local
  port: 20000
  simulation_timestep: 0.001
  step_by_step: true
  bootstrap_timeout: 5s
  extras:
    - {index: 1, suffix: "#0"}
    - {index: 2}
controller:
  timestep: 0.005
  robots:
    - name: arm
      joints:
        - {name: shoulder, type: revolute}
        - {name: elbow, type: revolute}
`
	cfg, err := Parse([]byte(doc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Simulator.Address()).To(Equal("sim.local:20000"))
	g.Expect(cfg.Simulator.StepByStep).To(BeTrue())
	g.Expect(cfg.Simulator.BootstrapTimeout).To(Equal(5 * time.Second))
	g.Expect(cfg.Simulator.SettleSteps).To(Equal(DefaultSettleSteps))
	g.Expect(cfg.Simulator.Extras).To(Equal([]ExtraRobot{{Index: 1, Suffix: "#0"}, {Index: 2}}))
	g.Expect(cfg.Controller.Robots).To(HaveLen(1))
	g.Expect(cfg.Controller.Robots[0].Joints[1].Type).To(Equal(robot.Revolute))
}

func TestParseSchemaErrors(t *testing.T) {
	docs := map[string]string{
		"unknown key":   "simulator:\n  hostname: x\n",
		"bad port":      "simulator:\n  port: 0\n",
		"port string":   "simulator:\n  port: \"abc\"\n",
		"bad duration":  "simulator:\n  pause_poll: soon\n",
		"joint type":    "controller:\n  robots:\n    - name: a\n      joints: [{name: j, type: hinge}]\n",
		"extra no index": "simulator:\n  extras: [{suffix: x}]\n",
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected schema error, got nil")
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	g := NewWithT(t)

	cfg := DefaultConfig()
	cfg.Simulator.TorqueControl = true
	cfg.Controller.Robots = []robot.Spec{{
		Name:   "arm",
		Joints: []robot.Joint{{Name: "j1", Type: robot.Revolute}},
		Bodies: []robot.Body{{Name: "link", Mass: 1}},
	}}

	path := filepath.Join(t.TempDir(), "simbridge.yaml")
	g.Expect(Save(path, cfg)).To(Succeed())

	_, err := os.Stat(path)
	g.Expect(err).NotTo(HaveOccurred())

	loaded, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(loaded.Simulator.TorqueControl).To(BeTrue())
	g.Expect(loaded.Simulator.PausePoll).To(Equal(DefaultPausePoll))
	g.Expect(loaded.Controller.Robots[0].Joints[0].Type).To(Equal(robot.Revolute))
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("fine-physics")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	fs, err := Frameskip(cfg.Controller.Timestep, cfg.Simulator.SimulationTimestep)
	if err != nil || fs != 5 {
		t.Errorf("expected frameskip 5, got %d (%v)", fs, err)
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for _, name := range presets {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s does not validate: %v", name, err)
		}
	}
}

func TestExampleConfig(t *testing.T) {
	g := NewWithT(t)

	cfg, err := Load(filepath.Join("..", "..", "configs", "arm.yaml"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Validate()).To(Succeed())
	cfg.Resolve()

	fs, err := Frameskip(cfg.Controller.Timestep, cfg.Simulator.SimulationTimestep)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(fs).To(Equal(5))
	g.Expect(cfg.Simulator.BootstrapTimeout).To(Equal(30 * time.Second))

	g.Expect(cfg.Controller.Robots).To(HaveLen(1))
	r, err := robot.New(cfg.Controller.Robots[0])
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(r.RefJointOrder()).To(Equal([]string{"arm_shoulder", "arm_elbow", "arm_wrist"}))
	g.Expect(r.ForceSensors()).To(ConsistOf(robot.ForceSensor{Name: "wrist_ft", Parent: "arm_fore"}))
}

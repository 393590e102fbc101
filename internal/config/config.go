package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/robot"
)

const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 19997
	DefaultTimeoutMs          = 3000
	DefaultCommThreadCycleMs  = 5
	DefaultControllerTimestep = 0.005
	DefaultSettleSteps        = 10
	DefaultBootstrapTimeout   = 30 * time.Second
	DefaultPausePoll          = time.Millisecond
	DefaultDriftTolerance     = 1e-4
	DefaultKp                 = 200.0
	DefaultKd                 = 10.0
)

var (
	// ErrConflictingActuation is returned when both torque and velocity control are requested.
	ErrConflictingActuation = errors.New("only one of VelocityControl or TorqueControl must be true")

	// ErrInvalidTimestep is returned when the timesteps do not yield a frameskip of at least 1.
	ErrInvalidTimestep = errors.New("invalid timestep")
)

type Config struct {
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Controller ControllerConfig `yaml:"controller"`
	Recording  RecordingConfig  `yaml:"recording"`
}

// SimulatorConfig configures the transport and the synchronization loop.
type SimulatorConfig struct {
	Host                string       `yaml:"host"`
	Port                int          `yaml:"port"`
	Timeout             int          `yaml:"timeout"`
	WaitUntilConnected  bool         `yaml:"wait_until_connected"`
	DoNotReconnect      bool         `yaml:"do_not_reconnect"`
	CommThreadCycleInMs int          `yaml:"comm_thread_cycle_in_ms"`
	SimulationTimestep  float64      `yaml:"simulation_timestep"`
	StepByStep          bool         `yaml:"step_by_step"`
	VelocityControl     bool         `yaml:"velocity_control"`
	TorqueControl       bool         `yaml:"torque_control"`
	Extras              []ExtraRobot `yaml:"extras"`

	BootstrapTimeout time.Duration `yaml:"bootstrap_timeout"`
	SettleSteps      int           `yaml:"settle_steps"`
	PausePoll        time.Duration `yaml:"pause_poll"`
	DriftTolerance   float64       `yaml:"drift_tolerance"`
}

// ExtraRobot identifies an additional simulated robot instance.
type ExtraRobot struct {
	Index  int    `yaml:"index"`
	Suffix string `yaml:"suffix"`
}

type ControllerConfig struct {
	Timestep float64      `yaml:"timestep"`
	Kp       float64      `yaml:"kp"`
	Kd       float64      `yaml:"kd"`
	Robots   []robot.Spec `yaml:"robots"`
}

type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Name    string `yaml:"name"`
}

func DefaultConfig() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			Host:                DefaultHost,
			Port:                DefaultPort,
			Timeout:             DefaultTimeoutMs,
			WaitUntilConnected:  true,
			CommThreadCycleInMs: DefaultCommThreadCycleMs,
			SimulationTimestep:  -1,
			BootstrapTimeout:    DefaultBootstrapTimeout,
			SettleSteps:         DefaultSettleSteps,
			PausePoll:           DefaultPausePoll,
			DriftTolerance:      DefaultDriftTolerance,
		},
		Controller: ControllerConfig{
			Timestep: DefaultControllerTimestep,
			Kp:       DefaultKp,
			Kd:       DefaultKd,
		},
		Recording: RecordingConfig{
			Dir:  ".simbridge",
			Name: "run",
		},
	}
}

// Load reads a YAML config, checks it against the embedded schema and
// overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve fills the simulation timestep from the controller timestep when it
// is absent or negative.
func (c *Config) Resolve() {
	if c.Simulator.SimulationTimestep <= 0 {
		c.Simulator.SimulationTimestep = c.Controller.Timestep
	}
}

// Validate rejects configurations that must stop startup.
func (c *Config) Validate() error {
	s := c.Simulator
	if s.VelocityControl && s.TorqueControl {
		return ErrConflictingActuation
	}
	if c.Controller.Timestep <= 0 {
		return errors.Wrapf(ErrInvalidTimestep, "controller timestep must be positive, got %g", c.Controller.Timestep)
	}
	simDt := s.SimulationTimestep
	if simDt <= 0 {
		simDt = c.Controller.Timestep
	}
	if _, err := Frameskip(c.Controller.Timestep, simDt); err != nil {
		return err
	}
	if s.SettleSteps < 0 {
		return errors.Errorf("settle_steps must not be negative, got %d", s.SettleSteps)
	}
	seen := make(map[int]bool, len(s.Extras))
	for _, e := range s.Extras {
		if e.Index <= 0 {
			return errors.Errorf("extra robot index must be positive, got %d", e.Index)
		}
		if seen[e.Index] {
			return errors.Errorf("extra robot index %d listed twice", e.Index)
		}
		seen[e.Index] = true
	}
	return nil
}

// Mode returns the actuation mode selected by the flags.
func (s SimulatorConfig) Mode() dynamo.ActuationMode {
	switch {
	case s.TorqueControl:
		return dynamo.TorqueControl
	case s.VelocityControl:
		return dynamo.VelocityControl
	default:
		return dynamo.PositionControl
	}
}

func (s SimulatorConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s SimulatorConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}

// Frameskip is round(controllerDt / simulationDt); it must be at least 1.
func Frameskip(controllerDt, simulationDt float64) (int, error) {
	if controllerDt <= 0 || simulationDt <= 0 {
		return 0, errors.Wrapf(ErrInvalidTimestep, "timesteps must be positive (controller %g, simulation %g)",
			controllerDt, simulationDt)
	}
	fs := int(math.Round(controllerDt / simulationDt))
	if fs < 1 {
		return 0, errors.Wrap(ErrInvalidTimestep,
			fmt.Sprintf("simulation timestep %g is too coarse for controller timestep %g", simulationDt, controllerDt))
	}
	return fs, nil
}

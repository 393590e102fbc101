package config

import "sort"

// Presets are named simulator setups. They are applied over DefaultConfig.
var Presets = map[string]func(c *Config){
	"default": func(c *Config) {},
	"fine-physics": func(c *Config) {
		c.Controller.Timestep = 0.005
		c.Simulator.SimulationTimestep = 0.001
	},
	"debug-step": func(c *Config) {
		c.Simulator.StepByStep = true
		c.Simulator.WaitUntilConnected = true
	},
	"velocity": func(c *Config) {
		c.Simulator.VelocityControl = true
		c.Simulator.TorqueControl = false
	},
	"torque": func(c *Config) {
		c.Simulator.TorqueControl = true
		c.Simulator.VelocityControl = false
		c.Simulator.SimulationTimestep = 0.001
	},
}

// GetPreset returns a fresh config with the preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

// Apply overlays the named preset on cfg and reports whether it exists.
func Apply(cfg *Config, name string) bool {
	apply, ok := Presets[name]
	if ok {
		apply(cfg)
	}
	return ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package mocksim is an in-process physics simulator speaking the bridge
// protocol. Joints are second-order systems tracking the last actuation
// command; model bases are free point masses pushed by applied forces.
package mocksim

import (
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/robot"
)

// Model is one simulated robot instance.
type Model struct {
	Base   string
	Mass   float64
	Bodies []string
	Joints []string
	// ForceSensors maps sensor names to the body they measure.
	ForceSensors map[string]string
}

type Scene struct {
	Models []Model
}

// SceneFromConfig instantiates the controller robots the way the bridge
// will bind them: robot 0 unsuffixed, then every extra with its suffix.
func SceneFromConfig(cfg *config.Config) Scene {
	var sc Scene
	specs := cfg.Controller.Robots
	if len(specs) == 0 {
		return sc
	}
	sc.Models = append(sc.Models, modelFromSpec(specs[0], ""))
	for _, e := range cfg.Simulator.Extras {
		if e.Index < 0 || e.Index >= len(specs) {
			continue
		}
		sc.Models = append(sc.Models, modelFromSpec(specs[e.Index], e.Suffix))
	}
	return sc
}

func modelFromSpec(spec robot.Spec, suffix string) Model {
	m := Model{Base: spec.Name + suffix, ForceSensors: make(map[string]string)}
	switch {
	case len(spec.Bodies) > 1 && spec.Bodies[0].Name == "base_link":
		m.Base = spec.Bodies[1].Name + suffix
	case len(spec.Bodies) > 0:
		m.Base = spec.Bodies[0].Name + suffix
	}
	for _, b := range spec.Bodies {
		m.Mass += b.Mass
		m.Bodies = append(m.Bodies, b.Name+suffix)
	}
	for _, j := range spec.Joints {
		if j.Dof() == 1 {
			m.Joints = append(m.Joints, j.Name+suffix)
		}
	}
	for _, fs := range spec.ForceSensors {
		m.ForceSensors[fs.Name+suffix] = fs.Parent + suffix
	}
	return m
}

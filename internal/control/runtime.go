package control

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/robot"
)

// Version of the controller runtime API implemented here.
const Version = "1.0"

// Runtime is the controller as seen by the bridge. Robots()[0] is the main
// robot. RealRobots() holds the estimation copies, one per robot.
type Runtime interface {
	Timestep() float64
	Robots() []*robot.Robot
	RealRobots() []*robot.Robot

	// Init seeds the controller from the main robot encoders.
	Init(encoders []float64) error
	// Run computes one control step and reports whether new output is ready.
	Run() bool
	SetRunning(running bool)

	SetWrenches(robotName string, wrenches map[string]dynamo.Wrench)
	SetSensorLinearAcceleration(acc r3.Vector)

	Version() string
}

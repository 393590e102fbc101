// Package bridge runs a controller against a remote simulator.
//
// A [Loop] owns the phase relation between the simulator, which advances
// one physics step per call to [Loop.NextStep], and the controller, which
// runs once every frameskip steps. On those control ticks the loop pulls the
// simulator state, applies queued disturbances, writes the sensor data into
// the controller robots, runs the controller and pushes its joint commands
// back in the configured actuation mode.
//
// [Loop.Start] resolves the robot bindings, starts the simulation and waits
// for the first valid state. [Loop.Run] advances until the driver reports
// done, pausing on control ticks while step-by-step mode is on.
package bridge

// Package control defines the controller runtime driven by the bridge and
// ships a joint-space hold-pose runtime built on PID loops.
//
// The bridge only sees [Runtime]:
//
//	rt, _ := control.NewHoldPose(0.005, 200, 10, specs)
//	loop := bridge.New(cfg, tr, rt, logger)
//
// A runtime owns its robots. The bridge writes sensor data into them
// between calls to Run and reads the commanded joint values afterwards.
package control

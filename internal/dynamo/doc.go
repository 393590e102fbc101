// Package dynamo provides the shared primitives of the simulator bridge.
//
// The package defines the value types that cross component boundaries:
//
//   - [Wrench], [Twist], [Pose]: spatial quantities exchanged with the simulator
//   - [Snapshot]: one pull of simulator sensor state
//   - [JointTarget], [ActuationMode]: actuation commands pushed to the simulator
//   - [TickRecord], [Observer], [Metric]: per control tick observation hooks
//   - [State], [System], [Integrator]: ODE primitives used by the mock simulator
//
// # Conventions
//
// Six-vectors are couple first: a wrench is [tx ty tz fx fy fz] and a twist is
// [wx wy wz vx vy vz]. Every user-facing surface (console, TUI, wire) uses this
// order.
//
// # Thread Safety
//
// Values are plain data. A [Snapshot] is owned by the goroutine that pulled it.
package dynamo

// Package transport is the client side of the simulator remote API.
package transport

import (
	"context"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// StateRequest names the simulator objects a state pull covers.
type StateRequest struct {
	Bases        []string
	Joints       []string
	ForceSensors []string
}

// Transport is a synchronous simulator connection. Calls are not made
// concurrently by the bridge.
type Transport interface {
	SimulationTime(ctx context.Context) (float64, error)
	ModelBase(ctx context.Context, joint string) (string, error)
	StartSimulation(ctx context.Context, bases, joints, forceSensors []string) error
	// State returns false until the simulator has data for every requested name.
	State(ctx context.Context, req StateRequest) (*dynamo.Snapshot, bool, error)
	Step(ctx context.Context) error
	AddForce(ctx context.Context, body string, w dynamo.Wrench) error
	SetJointTargets(ctx context.Context, mode dynamo.ActuationMode, targets []dynamo.JointTarget) error
	StopSimulation(ctx context.Context) error
	Close() error
}

package integrators

import "github.com/san-kum/simbridge/internal/dynamo"

// Euler is the explicit first-order method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	result := make(dynamo.State, len(x))
	axpy(result, x, dt, dyn.Derive(x, u, t))
	return result
}

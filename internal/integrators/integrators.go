// Package integrators advances dynamo.System states by one fixed timestep.
package integrators

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler":  func() dynamo.Integrator { return NewEuler() },
	"rk4":    func() dynamo.Integrator { return NewRK4() },
	"verlet": func() dynamo.Integrator { return NewVerlet() },
}

// New returns a fresh integrator by name. Integrators keep scratch buffers,
// so each caller gets its own.
func New(name string) (dynamo.Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown integrator %q (want one of %v)", name, Names())
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// axpy returns x + a*y into dst.
func axpy(dst, x dynamo.State, a float64, y dynamo.State) {
	for i := range x {
		dst[i] = x[i] + a*y[i]
	}
}

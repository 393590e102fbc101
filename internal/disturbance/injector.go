// Package disturbance queues external forces and impacts for the simulator.
package disturbance

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// ForceApplier applies a wrench to a simulator body for one step.
type ForceApplier interface {
	AddForce(ctx context.Context, body string, w dynamo.Wrench) error
}

// Entry is a queued wrench on a body.
type Entry struct {
	Body   string
	Wrench dynamo.Wrench
}

// Injector holds persistent forces and one-shot impacts. It is safe for
// concurrent use: handlers write while the loop flushes.
type Injector struct {
	mu         sync.Mutex
	timestep   float64
	persistent map[string]dynamo.Wrench
	impacts    map[string]dynamo.Wrench
}

// New returns an injector converting impulses with the controller timestep.
func New(controllerTimestep float64) *Injector {
	return &Injector{
		timestep:   controllerTimestep,
		persistent: make(map[string]dynamo.Wrench),
		impacts:    make(map[string]dynamo.Wrench),
	}
}

// SetForce applies w to body on every control tick until removed.
func (in *Injector) SetForce(body string, w dynamo.Wrench) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.persistent[body] = w
	return true
}

// RemoveForce reports whether body had a persistent force.
func (in *Injector) RemoveForce(body string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.persistent[body]; !ok {
		return false
	}
	delete(in.persistent, body)
	return true
}

// ApplyImpact queues impulse/timestep on body for the next flush, replacing
// any impact still pending for it.
func (in *Injector) ApplyImpact(body string, impulse dynamo.Wrench) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.impacts[body] = impulse.Scale(1 / in.timestep)
	return true
}

// Forces lists the persistent forces sorted by body.
func (in *Injector) Forces() []Entry {
	in.mu.Lock()
	defer in.mu.Unlock()
	return sorted(in.persistent)
}

// PendingImpacts lists impacts not yet flushed.
func (in *Injector) PendingImpacts() []Entry {
	in.mu.Lock()
	defer in.mu.Unlock()
	return sorted(in.impacts)
}

// Flush sends every persistent force, then every impact, and drops the
// impacts. Impacts are dropped even when a send fails.
func (in *Injector) Flush(ctx context.Context, dst ForceApplier) error {
	in.mu.Lock()
	forces := sorted(in.persistent)
	impacts := sorted(in.impacts)
	in.impacts = make(map[string]dynamo.Wrench)
	in.mu.Unlock()

	for _, e := range append(forces, impacts...) {
		if err := dst.AddForce(ctx, e.Body, e.Wrench); err != nil {
			return errors.Wrapf(err, "add force on %s", e.Body)
		}
	}
	return nil
}

func sorted(m map[string]dynamo.Wrench) []Entry {
	out := make([]Entry, 0, len(m))
	for body, w := range m {
		out = append(out, Entry{Body: body, Wrench: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Body < out[j].Body })
	return out
}

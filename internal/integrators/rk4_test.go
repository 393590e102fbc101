package integrators

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// oscillator is x'' = -x.
type oscillator struct{}

func (oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (oscillator) StateDim() int   { return 2 }
func (oscillator) ControlDim() int { return 0 }

// drive is x'' = u[0].
type drive struct{}

func (drive) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], u[0]}
}

func (drive) StateDim() int   { return 2 }
func (drive) ControlDim() int { return 1 }

func integrate(in dynamo.Integrator, dyn dynamo.System, x dynamo.State, u dynamo.Control, dt float64, steps int) dynamo.State {
	for i := 0; i < steps; i++ {
		x = in.Step(dyn, x, u, float64(i)*dt, dt)
	}
	return x
}

func TestIntegratorAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tol  float64
	}{
		{"euler", 1e-2},
		{"rk4", 1e-8},
		{"verlet", 1e-4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := New(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			x := integrate(in, oscillator{}, dynamo.State{1, 0}, nil, 0.001, 1000)

			if math.Abs(x[0]-math.Cos(1)) > tt.tol {
				t.Errorf("position error too large: got %.8f, expected %.8f", x[0], math.Cos(1))
			}
			if math.Abs(x[1]+math.Sin(1)) > tt.tol {
				t.Errorf("velocity error too large: got %.8f, expected %.8f", x[1], -math.Sin(1))
			}
		})
	}
}

func TestConstantAcceleration(t *testing.T) {
	g := NewWithT(t)
	// exact for constant acceleration
	for _, name := range []string{"rk4", "verlet"} {
		in, err := New(name)
		g.Expect(err).NotTo(HaveOccurred())
		x := integrate(in, drive{}, dynamo.State{0, 0}, dynamo.Control{2}, 0.01, 100)
		g.Expect(x[0]).To(BeNumerically("~", 1.0, 1e-9), name)
		g.Expect(x[1]).To(BeNumerically("~", 2.0, 1e-9), name)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	g := NewWithT(t)
	x := dynamo.State{1, 0}
	_ = NewRK4().Step(oscillator{}, x, nil, 0, 0.1)
	g.Expect(x).To(Equal(dynamo.State{1, 0}))
}

func TestUnknownIntegrator(t *testing.T) {
	g := NewWithT(t)
	_, err := New("rk45")
	g.Expect(err).To(MatchError(ContainSubstring("unknown integrator")))
	g.Expect(Names()).To(Equal([]string{"euler", "rk4", "verlet"}))
}

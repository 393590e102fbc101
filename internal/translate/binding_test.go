package translate

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang/geo/r3"
	. "github.com/onsi/gomega"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/robot"
)

type baseMap map[string]string

func (m baseMap) ModelBase(_ context.Context, joint string) (string, error) {
	if b, ok := m[joint]; ok {
		return b, nil
	}
	return "", fmt.Errorf("unknown joint %s", joint)
}

func arm(t *testing.T, name string, n int) *robot.Robot {
	t.Helper()
	spec := robot.Spec{Name: name, Joints: []robot.Joint{{Name: "root", Type: robot.Fixed}}}
	for i := 0; i < n; i++ {
		spec.Joints = append(spec.Joints, robot.Joint{Name: fmt.Sprintf("j%d", i), Type: robot.Revolute})
	}
	spec.Bodies = []robot.Body{{Name: "base", Mass: 0}, {Name: "link", Mass: 1.5}}
	spec.ForceSensors = []robot.ForceSensor{{Name: "wrist", Parent: "link"}}
	r, err := robot.New(spec)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveSuffixesAndOffsets(t *testing.T) {
	g := NewWithT(t)

	primary := arm(t, "big", 6)
	extra := arm(t, "small", 3)
	resolver := baseMap{"j0": "big_base", "j0#1": "small_base"}

	bindings, err := Resolve(context.Background(), resolver, []Target{
		{Index: 0, Robot: primary},
		{Index: 1, Suffix: "#1", Robot: extra},
	}, logging.NewTestLogger(t))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(bindings).To(HaveLen(2))

	g.Expect(bindings[0].Base).To(Equal("big_base"))
	g.Expect(bindings[0].Offset).To(Equal(0))
	g.Expect(bindings[0].Actuated).To(BeTrue())
	g.Expect(bindings[1].Base).To(Equal("small_base"))
	g.Expect(bindings[1].Offset).To(Equal(6))
	g.Expect(bindings[1].Joints).To(Equal([]string{"j0#1", "j1#1", "j2#1"}))
	g.Expect(bindings[1].ForceSensors).To(HaveKeyWithValue("wrist#1", "wrist"))
	g.Expect(bindings[1].Shadow).NotTo(BeNil())

	bases, joints, sensors := Names(bindings)
	g.Expect(bases).To(Equal([]string{"big_base", "small_base"}))
	g.Expect(joints).To(HaveLen(9))
	g.Expect(sensors).To(Equal([]string{"wrist", "wrist#1"}))
	g.Expect(TotalJoints(bindings)).To(Equal(9))
}

func TestSliceDoesNotOverlap(t *testing.T) {
	g := NewWithT(t)

	bindings, err := Resolve(context.Background(), baseMap{"j0": "a", "j0#1": "b"}, []Target{
		{Robot: arm(t, "a", 6)},
		{Index: 1, Suffix: "#1", Robot: arm(t, "b", 3)},
	}, logging.NewNop())
	g.Expect(err).NotTo(HaveOccurred())

	flat := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	g.Expect(bindings[0].Slice(flat)).To(Equal([]float64{0, 1, 2, 3, 4, 5}))
	g.Expect(bindings[1].Slice(flat)).To(Equal([]float64{6, 7, 8}))

	s := bindings[1].Slice(flat)
	s[0] = 100
	g.Expect(flat[6]).To(Equal(6.0))
}

func TestResolvePrimaryWithoutJoints(t *testing.T) {
	g := NewWithT(t)

	fixed, err := robot.New(robot.Spec{Name: "box", Bodies: []robot.Body{{Name: "box"}}})
	g.Expect(err).NotTo(HaveOccurred())

	_, err = Resolve(context.Background(), baseMap{}, []Target{{Robot: fixed}}, logging.NewNop())
	g.Expect(err).To(MatchError(ErrNoActuatedJoint))
}

func TestResolveFixedExtra(t *testing.T) {
	tests := []struct {
		bodies []robot.Body
		base   string
	}{
		{[]robot.Body{{Name: "base_link"}, {Name: "table"}}, "table"},
		{[]robot.Body{{Name: "base_link"}}, "base_link"},
		{[]robot.Body{{Name: "ground"}, {Name: "wall"}}, "ground"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			g := NewWithT(t)
			logger, logs := logging.NewObservedTestLogger(t)

			fixed, err := robot.New(robot.Spec{Name: "env", Bodies: tt.bodies})
			g.Expect(err).NotTo(HaveOccurred())

			bindings, err := Resolve(context.Background(), baseMap{"j0": "arm_base"}, []Target{
				{Robot: arm(t, "arm", 2)},
				{Index: 1, Suffix: "#0", Robot: fixed},
			}, logger)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(bindings[1].Base).To(Equal(tt.base))
			g.Expect(bindings[1].Actuated).To(BeFalse())
			g.Expect(bindings[1].Joints).To(BeEmpty())
			g.Expect(logs.FilterMessageSnippet("cannot be controlled").Len()).To(Equal(1))
		})
	}
}

func TestWrenchesMatchSuffix(t *testing.T) {
	g := NewWithT(t)

	b := &Binding{Suffix: "#1", ForceSensors: map[string]string{"wrist#1": "wrist"}}
	readings := map[string]dynamo.ForceReading{
		"wrist":   {Force: r3.Vector{X: 1}},
		"wrist#1": {Force: r3.Vector{Z: 9}, Torque: r3.Vector{Y: 2}},
	}

	w := b.Wrenches(readings)
	g.Expect(w).To(HaveLen(1))
	g.Expect(w["wrist"].Slice()).To(Equal([]float64{0, 2, 0, 0, 0, 9}))
}

func TestTargets(t *testing.T) {
	g := NewWithT(t)

	r := arm(t, "arm", 2)
	r.Q[1][0], r.Q[2][0] = 0.1, 0.2
	r.Alpha[1][0] = 1
	r.Tau[2][0] = -3
	b := &Binding{Suffix: "#2", Robot: r}

	g.Expect(b.Targets(dynamo.PositionControl)).To(Equal([]dynamo.JointTarget{
		{Name: "j0#2", Value: 0.1}, {Name: "j1#2", Value: 0.2},
	}))
	g.Expect(b.Targets(dynamo.VelocityControl)[0].Value).To(Equal(1.0))
	g.Expect(b.Targets(dynamo.TorqueControl)[1].Value).To(Equal(-3.0))
}

func TestRespondableBodies(t *testing.T) {
	g := NewWithT(t)
	g.Expect(RespondableBodies(arm(t, "arm", 1))).To(Equal([]string{"link_respondable"}))
}

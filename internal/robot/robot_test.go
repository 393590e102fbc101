package robot

import (
	"testing"

	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

func humanoidSpec() Spec {
	return Spec{
		Name: "hrp",
		Joints: []Joint{
			{Name: "Root", Type: Free},
			{Name: "HIP", Type: Revolute},
			{Name: "KNEE", Type: Revolute},
			{Name: "GRIP", Type: Fixed},
		},
		Bodies: []Body{
			{Name: "base_link", Mass: 0},
			{Name: "waist", Mass: 10},
			{Name: "thigh", Mass: 3},
			{Name: "hand", Mass: 0.5},
		},
		ForceSensors: []ForceSensor{{Name: "LeftFootForceSensor", Parent: "thigh"}},
	}
}

func TestNewDefaultsRefJointOrder(t *testing.T) {
	g := NewWithT(t)

	r, err := New(humanoidSpec())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(r.RefJointOrder()).To(Equal([]string{"HIP", "KNEE"}))
	g.Expect(r.Q[0]).To(Equal([]float64{1, 0, 0, 0, 0, 0, 0}))
	g.Expect(r.Alpha[0]).To(HaveLen(6))
	g.Expect(r.Alpha[3]).To(BeEmpty())

	name, ok := r.FirstSingleDofJoint()
	g.Expect(ok).To(BeTrue())
	g.Expect(name).To(Equal("HIP"))
}

func TestNewRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"no name", Spec{}},
		{"unnamed joint", Spec{Name: "r", Joints: []Joint{{Type: Revolute}}}},
		{"duplicate joint", Spec{Name: "r", Joints: []Joint{{Name: "a"}, {Name: "a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.spec); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCopyIsIndependent(t *testing.T) {
	g := NewWithT(t)

	r, err := New(humanoidSpec())
	g.Expect(err).NotTo(HaveOccurred())
	r.SetEncoderValues([]float64{0.1, 0.2})

	c := r.Copy()
	c.Q[1][0] = 3
	c.SetEncoderValues([]float64{9, 9})

	g.Expect(r.Q[1][0]).To(BeZero())
	g.Expect(r.EncoderValues()).To(Equal([]float64{0.1, 0.2}))
}

func TestJointTypeYAML(t *testing.T) {
	g := NewWithT(t)

	var spec Spec
	err := yaml.Unmarshal([]byte("name: arm\njoints:\n  - {name: j1, type: revolute}\n  - {name: j2, type: Prismatic}\n"), &spec)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(spec.Joints[0].Type).To(Equal(Revolute))
	g.Expect(spec.Joints[1].Type).To(Equal(Prismatic))

	err = yaml.Unmarshal([]byte("name: arm\njoints:\n  - {name: j1, type: hinge}\n"), &spec)
	g.Expect(err).To(HaveOccurred())
}

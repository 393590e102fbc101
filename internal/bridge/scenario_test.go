package bridge_test

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/robot"
	"github.com/san-kum/simbridge/internal/testutils/fakesim"
)

func revoluteRobot(name string, n int) robot.Spec {
	spec := robot.Spec{
		Name:         name,
		Bodies:       []robot.Body{{Name: name + "_base", Mass: 5}},
		ForceSensors: []robot.ForceSensor{{Name: "ankle", Parent: name + "_base"}},
	}
	for i := 0; i < n; i++ {
		spec.Joints = append(spec.Joints, robot.Joint{Name: fmt.Sprintf("%s_j%d", name, i), Type: robot.Revolute})
	}
	return spec
}

var _ = Describe("Loop", func() {
	var (
		ctx context.Context
		tr  *fakesim.Transport
		rt  *fakesim.Runtime
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.DefaultConfig()
		cfg.Simulator.SettleSteps = 10
	})

	Context("with one robot and no extras", func() {
		BeforeEach(func() {
			cfg.Controller.Timestep = 0.01
			cfg.Simulator.SimulationTimestep = 0.005
			tr = fakesim.New(0.005)
			tr.Bases["hrp_j0"] = "hrp_base"
			tr.Positions = func(step int) []float64 {
				q := float64(step) * 0.001
				return []float64{q, q, q}
			}
			rt = fakesim.NewRuntime(cfg.Controller.Timestep, revoluteRobot("hrp", 3))
		})

		It("runs the controller once per frameskip raw steps on fresh data", func() {
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logging.NewTestLogger(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(Succeed())
			Expect(loop.Frameskip()).To(Equal(2))

			for i := 0; i < 100; i++ {
				Expect(loop.NextStep(ctx)).To(Succeed())
			}
			Expect(rt.Runs()).To(Equal(100 / loop.Frameskip()))

			encoders := rt.RunEncoders()
			for i := 1; i < len(encoders); i++ {
				Expect(encoders[i][0]).To(BeNumerically(">", encoders[i-1][0]))
			}
			stats := loop.Stats()
			Expect(stats.Iteration).To(Equal(uint64(100)))
			Expect(stats.ControlTicks).To(Equal(uint64(50)))
			Expect(stats.MissedSteps).To(BeZero())
		})

		It("feeds the controller the state pulled on the same tick", func() {
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logging.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(Succeed())

			before := tr.Steps()
			Expect(loop.NextStep(ctx)).To(Succeed())
			Expect(rt.RunEncoders()[0]).To(Equal([]float64{
				float64(before) * 0.001, float64(before) * 0.001, float64(before) * 0.001,
			}))
		})
	})

	Context("with extra robots", func() {
		BeforeEach(func() {
			cfg.Controller.Timestep = 0.005
			cfg.Simulator.Extras = []config.ExtraRobot{{Index: 1, Suffix: "#1"}, {Index: 2, Suffix: "#2"}}
			tr = fakesim.New(0.005)
			tr.Bases["big_j0"] = "big_base"
			tr.Bases["small_j0#1"] = "small_base#1"
			tr.Positions = func(int) []float64 { return []float64{0, 1, 2, 3, 4, 5, 6, 7, 8} }
			tr.Torques = func(int) []float64 { return []float64{10, 11, 12, 13, 14, 15, 16, 17, 18} }
			tr.Snapshot = func(int) *dynamo.Snapshot {
				return &dynamo.Snapshot{ForceSensors: map[string]dynamo.ForceReading{
					"ankle":   {Force: r3.Vector{Z: 100}},
					"ankle#1": {Force: r3.Vector{Z: 30}, Torque: r3.Vector{X: 1}},
				}}
			}
			table := robot.Spec{Name: "table", Bodies: []robot.Body{{Name: "base_link"}, {Name: "table_top"}}}
			rt = fakesim.NewRuntime(0.005, revoluteRobot("big", 6), revoluteRobot("small", 3), table)
		})

		It("slices the joint arrays per robot and tracks fixed robots by their base", func() {
			logger, logs := logging.NewObservedTestLogger(GinkgoT())
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(Succeed())

			Expect(tr.Started().Bases).To(Equal([]string{"big_base", "small_base#1", "table_top"}))
			Expect(logs.FilterMessageSnippet("cannot be controlled").Len()).To(Equal(1))

			robots := rt.Robots()
			Expect(robots[0].EncoderValues()).To(Equal([]float64{0, 1, 2, 3, 4, 5}))
			Expect(robots[1].EncoderValues()).To(Equal([]float64{6, 7, 8}))
			Expect(robots[1].JointTorques()).To(Equal([]float64{16, 17, 18}))
			Expect(rt.RealRobots()[1].EncoderValues()).To(Equal([]float64{6, 7, 8}))
		})

		It("pushes wrenches under the unsuffixed sensor name", func() {
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logging.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(Succeed())

			Expect(rt.Wrenches("big")).To(HaveKeyWithValue("ankle", dynamo.Wrench{Force: r3.Vector{Z: 100}}))
			Expect(rt.Wrenches("small")).To(HaveKeyWithValue("ankle", dynamo.Wrench{Torque: r3.Vector{X: 1}, Force: r3.Vector{Z: 30}}))
		})

		It("actuates only robots with controllable joints", func() {
			cfg.Simulator.TorqueControl = true
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logging.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(Succeed())
			Expect(loop.NextStep(ctx)).To(Succeed())

			calls := tr.Targets()
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].Mode).To(Equal(dynamo.TorqueControl))
			Expect(calls[0].Targets).To(HaveLen(6))
			Expect(calls[1].Targets[0].Name).To(Equal("small_j0#1"))
		})

		It("rejects an extra index the controller does not have", func() {
			cfg.Simulator.Extras = append(cfg.Simulator.Extras, config.ExtraRobot{Index: 7})
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logging.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(MatchError(ContainSubstring("out of range")))
			Expect(tr.Count("StartSimulation")).To(BeZero())
		})
	})

	Context("when the main robot has no actuated joint", func() {
		It("fails before starting the simulation", func() {
			tr = fakesim.New(0.005)
			rt = fakesim.NewRuntime(0.005, robot.Spec{Name: "rock", Bodies: []robot.Body{{Name: "rock"}}})
			loop, err := bridge.NewFromConfig(cfg, tr, rt, logging.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Start(ctx)).To(MatchError(ContainSubstring("no 1-dof joints")))
			Expect(tr.Methods()).To(BeEmpty())
		})
	})
})

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/integrators"
)

var (
	dataDir string
	debug   bool

	configFile string
	preset     string
	useTUI     bool
	record     bool
	runName    string
	host       string
	port       int
	stepByStep bool
	velocity   bool
	torque     bool
	simDt      float64
	ctlDt      float64
	kp         float64
	kd         float64

	listenAddr string
	integrator string
	mockDt     float64

	plotJoints int
)

// main registers the simbridge commands and exits with status 1 when the
// selected command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:          "simbridge",
		Short:        "bridge between a robot controller and a physics simulator",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "recording directory (default from config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "connect to the simulator and run the controller",
		Args:  cobra.NoArgs,
		RunE:  runBridge,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml), e.g. configs/arm.yaml")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "terminal monitor instead of the console")
	runCmd.Flags().BoolVar(&record, "record", false, "record control ticks")
	runCmd.Flags().StringVar(&runName, "name", "", "run name for the recording")
	runCmd.Flags().StringVar(&host, "host", config.DefaultHost, "simulator host")
	runCmd.Flags().IntVar(&port, "port", config.DefaultPort, "simulator port")
	runCmd.Flags().BoolVar(&stepByStep, "step-by-step", false, "wait for a step request between iterations")
	runCmd.Flags().BoolVar(&velocity, "velocity", false, "velocity control")
	runCmd.Flags().BoolVar(&torque, "torque", false, "torque control")
	runCmd.Flags().Float64Var(&simDt, "sim-dt", -1, "simulation timestep (default: controller timestep)")
	runCmd.Flags().Float64Var(&ctlDt, "dt", config.DefaultControllerTimestep, "controller timestep")
	runCmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "hold pose stiffness")
	runCmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "hold pose damping")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check a config file and print the resolved timing",
		Args:  cobra.NoArgs,
		RunE:  validateConfig,
	}
	validateCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml), e.g. configs/arm.yaml")
	validateCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	mockCmd := &cobra.Command{
		Use:   "mock-sim",
		Short: "serve a kinematic mock simulator for the robots in a config",
		Args:  cobra.NoArgs,
		RunE:  runMockSim,
	}
	mockCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml), e.g. configs/arm.yaml")
	mockCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default from config)")
	mockCmd.Flags().StringVar(&integrator, "integrator", "rk4", fmt.Sprintf("integrator %v", integrators.Names()))
	mockCmd.Flags().Float64Var(&mockDt, "timestep", 0, "physics timestep (default from config)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot encoders of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotJoints, "joints", 4, "number of joints to plot")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run ticks to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and ticks to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	rootCmd.AddCommand(runCmd, validateCmd, presetsCmd, mockCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/storage"
)

func openStore() *storage.Store {
	dir := dataDir
	if dir == "" {
		dir = config.DefaultConfig().Recording.Dir
	}
	return storage.New(dir)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := openStore()
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIMULATOR\tTIME\tSIM TIME\tDT\tFRAMESKIP\tMODE\tTICKS\tMISSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%s\t%d\t%d\n",
			run.ID,
			run.Simulator,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.SimTime,
			run.ControllerTimestep,
			run.Frameskip,
			run.Mode,
			run.ControlTicks,
			run.MissedSteps,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := openStore()
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	ticks, err := st.LoadTicks(runID)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("simulator: %s (%s control)\n", meta.Simulator, meta.Mode)
	fmt.Printf("samples: %d\n\n", len(ticks))

	n := len(ticks[0].Encoders)
	if plotJoints > 0 && n > plotJoints {
		n = plotJoints
	}
	for j := 0; j < n; j++ {
		data, err := storage.Series(ticks, j)
		if err != nil {
			return err
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("q%d vs control tick", j)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if len(meta.Metrics) > 0 {
		fmt.Println("metrics:")
		for _, name := range sortedKeys(meta.Metrics) {
			fmt.Printf("  %s: %.6f\n", name, meta.Metrics[name])
		}
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	ticks, err := openStore().LoadTicks(args[0])
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		return errors.New("no data to export")
	}
	return storage.ExportCSV(os.Stdout, ticks)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := openStore()
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	ticks, err := st.LoadTicks(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, ticks)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/simbridge/internal/dynamo"
)

func sampleTicks() []dynamo.TickRecord {
	return []dynamo.TickRecord{
		{Iteration: 0, SimTime: 0, Encoders: []float64{0, 0.1}, Torques: []float64{1, 2}, Mode: dynamo.PositionControl},
		{Iteration: 5, SimTime: 0.005, Encoders: []float64{0.2, 0.3}, Torques: []float64{1, 2}, Commands: []float64{0.5, 0.5}, Actuated: true},
	}
}

func record(t *testing.T, st *Store, name string, ticks []dynamo.TickRecord) string {
	t.Helper()
	rec, err := st.Create(RunMetadata{Name: name, Frameskip: 5})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, tk := range ticks {
		rec.OnControlTick(tk)
	}
	err = rec.Close(func(m *RunMetadata) {
		m.Iterations = 10
		m.Metrics = map[string]float64{"control_effort": 0.5}
	})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	return rec.ID()
}

func TestRecorderRoundTrip(t *testing.T) {
	g := NewWithT(t)
	st := New(t.TempDir())
	g.Expect(st.Init()).To(Succeed())

	runID := record(t, st, "hold", sampleTicks())
	g.Expect(runID).To(HavePrefix("hold_"))
	g.Expect(runID).To(HaveLen(len("hold_") + 8))

	meta, err := st.Load(runID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(meta.Frameskip).To(Equal(5))
	g.Expect(meta.Iterations).To(Equal(uint64(10)))
	g.Expect(meta.ControlTicks).To(Equal(uint64(2)))
	g.Expect(meta.Metrics).To(HaveKeyWithValue("control_effort", 0.5))

	ticks, err := st.LoadTicks(runID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ticks).To(Equal(sampleTicks()))
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	runID := record(t, st, "layout", sampleTicks())

	for _, name := range []string{"metadata.json", "ticks.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestStoreList(t *testing.T) {
	g := NewWithT(t)
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(runs).To(BeEmpty())

	g.Expect(st.Init()).To(Succeed())
	a := record(t, st, "a", nil)
	b := record(t, st, "b", sampleTicks())
	// stray files and directories without metadata are skipped
	g.Expect(os.WriteFile(filepath.Join(st.Dir(), "notes.txt"), nil, 0o644)).To(Succeed())
	g.Expect(os.Mkdir(filepath.Join(st.Dir(), "partial"), 0o755)).To(Succeed())

	runs, err = st.List()
	g.Expect(err).NotTo(HaveOccurred())
	ids := []string{}
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	g.Expect(ids).To(ConsistOf(a, b))
}

func TestRecorderIgnoresTicksAfterClose(t *testing.T) {
	g := NewWithT(t)
	st := New(t.TempDir())
	rec, err := st.Create(RunMetadata{ID: "fixed"})
	g.Expect(err).NotTo(HaveOccurred())

	rec.OnControlTick(sampleTicks()[0])
	g.Expect(rec.Close(nil)).To(Succeed())
	rec.OnControlTick(sampleTicks()[1])
	g.Expect(rec.Close(nil)).To(Succeed())

	g.Expect(rec.Ticks()).To(Equal(1))
	g.Expect(rec.Err()).NotTo(HaveOccurred())
	ticks, err := st.LoadTicks("fixed")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ticks).To(HaveLen(1))
}

func TestExportCSV(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer
	g.Expect(ExportCSV(&buf, sampleTicks())).To(Succeed())

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rows).To(HaveLen(3))
	g.Expect(rows[0]).To(Equal([]string{"iteration", "time", "actuated", "q0", "q1", "tau0", "tau1", "u0", "u1"}))
	g.Expect(rows[1][6:]).To(Equal([]string{"2.000000", "", ""}))
	g.Expect(rows[2][:4]).To(Equal([]string{"5", "0.005000", "true", "0.200000"}))
}

func TestExportJSON(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer
	g.Expect(ExportJSON(&buf, RunMetadata{ID: "x"}, sampleTicks())).To(Succeed())

	var data ExportData
	g.Expect(json.Unmarshal(buf.Bytes(), &data)).To(Succeed())
	g.Expect(data.Run.ID).To(Equal("x"))
	g.Expect(data.Ticks).To(HaveLen(2))
}

func TestSeries(t *testing.T) {
	g := NewWithT(t)
	s, err := Series(sampleTicks(), 1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(s).To(Equal([]float64{0.1, 0.3}))

	_, err = Series(sampleTicks(), 2)
	g.Expect(err).To(MatchError(ContainSubstring("out of range")))
}

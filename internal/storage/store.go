// Package storage records control ticks of a bridge run to disk and reads
// them back for inspection.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	ticksFile    = "ticks.jsonl.zst"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Timestamp          time.Time          `json:"timestamp"`
	Simulator          string             `json:"simulator"`
	SimulationTimestep float64            `json:"simulation_timestep"`
	ControllerTimestep float64            `json:"controller_timestep"`
	Frameskip          int                `json:"frameskip"`
	Mode               string             `json:"mode"`
	Robots             int                `json:"robots"`
	Iterations         uint64             `json:"iterations"`
	ControlTicks       uint64             `json:"control_ticks"`
	Actuations         uint64             `json:"actuations"`
	MissedSteps        uint64             `json:"missed_steps"`
	ConcurrentAdvances uint64             `json:"concurrent_advances"`
	SimTime            float64            `json:"sim_time"`
	Metrics            map[string]float64 `json:"metrics"`
}

// NewRunID returns "<name>_<first 8 hex chars of a uuid>".
func NewRunID(name string) string {
	return fmt.Sprintf("%s_%s", name, uuid.NewString()[:8])
}

// Create opens a new run directory and returns a recorder writing into it.
// The metadata is written once when the recorder is closed.
func (s *Store) Create(meta RunMetadata) (*Recorder, error) {
	if meta.Name == "" {
		meta.Name = "run"
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Name)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create run directory")
	}

	f, err := os.Create(filepath.Join(runDir, ticksFile))
	if err != nil {
		return nil, errors.Wrap(err, "create tick log")
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "create tick encoder")
	}
	return &Recorder{
		dir:  runDir,
		meta: meta,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decode metadata of %s", runID)
	}
	return &meta, nil
}

// LoadTicks decodes every tick record of a run in recorded order.
func (s *Store) LoadTicks(runID string) ([]dynamo.TickRecord, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, ticksFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "open tick decoder")
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	ticks := make([]dynamo.TickRecord, 0)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec dynamo.TickRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, errors.Wrapf(err, "%s line %d", runID, line)
		}
		ticks = append(ticks, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read ticks of %s", runID)
	}
	return ticks, nil
}

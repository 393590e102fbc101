package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// Recorder appends one JSON line per control tick to a zstd stream.
// Observers cannot fail, so the first write error is kept and reported by
// Err and Close; later ticks are dropped.
type Recorder struct {
	dir string

	mu     sync.Mutex
	meta   RunMetadata
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	ticks  int
	err    error
	closed bool
}

var _ dynamo.Observer = (*Recorder)(nil)

func (r *Recorder) ID() string  { return r.meta.ID }
func (r *Recorder) Dir() string { return r.dir }

func (r *Recorder) OnControlTick(rec dynamo.TickRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		r.err = errors.Wrap(err, "encode tick")
		return
	}
	if _, err := r.w.Write(b); err != nil {
		r.err = errors.Wrap(err, "write tick")
		return
	}
	if err := r.w.WriteByte('\n'); err != nil {
		r.err = errors.Wrap(err, "write tick")
		return
	}
	r.ticks++
}

func (r *Recorder) Ticks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes the tick stream and writes metadata.json. update, if not
// nil, fills in the end-of-run counters first.
func (r *Recorder) Close(update func(*RunMetadata)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.err
	err = multierr.Append(err, r.w.Flush())
	err = multierr.Append(err, r.enc.Close())
	err = multierr.Append(err, r.f.Close())

	if update != nil {
		update(&r.meta)
	}
	if r.meta.ControlTicks == 0 {
		r.meta.ControlTicks = uint64(r.ticks)
	}
	return multierr.Append(err, writeMetadata(filepath.Join(r.dir, metadataFile), r.meta))
}

func writeMetadata(path string, meta RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create metadata")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(meta), "write metadata")
}

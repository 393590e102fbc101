// Package driver carries the interactive controls of a running simulation:
// the flags shared with the loop and a line-based console.
package driver

import "go.uber.org/atomic"

// Flags are the only state shared between the loop and its front-ends.
type Flags struct {
	done          atomic.Bool
	stepByStep    atomic.Bool
	nextRequested atomic.Bool
	requested     atomic.Uint64
}

func NewFlags(stepByStep bool) *Flags {
	f := &Flags{}
	f.stepByStep.Store(stepByStep)
	return f
}

func (f *Flags) Done() bool { return f.done.Load() }

// Stop makes Done report true. The loop finishes its current step first.
func (f *Flags) Stop() { f.done.Store(true) }

func (f *Flags) StepByStep() bool { return f.stepByStep.Load() }

func (f *Flags) SetStepByStep(on bool) { f.stepByStep.Store(on) }

// ToggleStepByStep flips the mode and returns the new value.
func (f *Flags) ToggleStepByStep() bool {
	for {
		old := f.stepByStep.Load()
		if f.stepByStep.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// NextStep requests one advance while paused.
func (f *Flags) NextStep() {
	f.requested.Inc()
	f.nextRequested.Store(true)
}

// Next consumes a pending advance request.
func (f *Flags) Next() bool {
	return f.nextRequested.CompareAndSwap(true, false)
}

// Play drops a pending advance request.
func (f *Flags) Play() {
	f.nextRequested.Store(false)
}

// Requested counts every NextStep call so far.
func (f *Flags) Requested() uint64 { return f.requested.Load() }

// Package testutil provides shared test infrastructure for the engine
// packages: a sleeping work item for scheduler tests.
package testutil

import (
	"sync/atomic"
	"time"
)

// Work is the payload of a test job. Function sleeps for ProcessingTime and
// then marks the work done; Destructor counts its invocations.
type Work struct {
	ProcessingTime time.Duration

	done            atomic.Bool
	runs            atomic.Int32
	destructorCalls atomic.Int32
}

// NewWork creates a Work item that sleeps for d when run.
func NewWork(d time.Duration) *Work {
	return &Work{ProcessingTime: d}
}

// Done reports whether the job function has finished.
func (w *Work) Done() bool { return w.done.Load() }

// Runs returns how many times the job function was entered.
func (w *Work) Runs() int { return int(w.runs.Load()) }

// DestructorCalls returns how many times the destructor ran.
func (w *Work) DestructorCalls() int { return int(w.destructorCalls.Load()) }

// DoWork is a job function taking a *Work.
func DoWork(data any) {
	w := data.(*Work)
	w.runs.Add(1)
	time.Sleep(w.ProcessingTime)
	w.done.Store(true)
}

// Destructor is a job destructor taking a *Work.
func Destructor(data any) {
	data.(*Work).destructorCalls.Add(1)
}

// Package trace provides job lifecycle tracing for scheduler analysis.
// It has no dependencies on the other sim packages; the job manager records into it.
package trace

import "time"

// EventKind names a job lifecycle transition.
type EventKind string

const (
	KindCreated   EventKind = "created"
	KindStarted   EventKind = "started"
	KindCompleted EventKind = "completed"
	KindRemoved   EventKind = "removed"
)

// MainWorker is the Worker value of records produced by the goroutine that
// owns the job manager rather than by a worker.
const MainWorker = -1

// JobRecord captures a single job lifecycle transition.
type JobRecord struct {
	Seq    int64 // assigned by JobTrace.Record, strictly increasing
	JobID  int   // job slot index; reused after removal
	Name   string
	Kind   EventKind
	Worker int // worker index, or MainWorker
	At     time.Time
}

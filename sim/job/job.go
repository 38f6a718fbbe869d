package job

import "fmt"

// ID identifies a job. It is the index of the job's slot and is reused once
// the job is removed, so an ID must not be used after RemoveJob.
type ID int

// Status is the lifecycle state of a job: Queued → Active → Completed.
type Status int

const (
	// Queued jobs wait in the pending queue for a worker.
	Queued Status = iota
	// Active jobs are being executed by a worker.
	Active
	// Completed jobs have returned from their function.
	Completed
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "queued"
	case Active:
		return "active"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// JobConfig describes a unit of work.
type JobConfig struct {
	Name       string         // shown in logs and traces
	Function   func(data any) // runs once on a worker, without the manager lock
	Destructor func(data any) // optional; runs when the job is removed
	Data       any            // passed to Function and Destructor
}

type job struct {
	status Status
	config JobConfig
}

// slot is one entry of the job array. Slots are reused after RemoveJob.
type slot struct {
	inUse bool
	job   job
}

// Package job implements the worker pool that runs the per-tick jobs of the
// engine subsystems.
//
// A Manager is a monitor: all of its state sits behind one coarse lock.
// The goroutine that creates a Manager owns the lock on return and must
// release it before workers can pick up jobs. The usual tick looks like
//
//	id := m.CreateJob(job.JobConfig{Name: "physics", Function: step, Data: world})
//	...
//	m.WaitForJobs(id) // releases the lock while blocked
//	m.RemoveJob(id)
//
// Contract violations (unknown ids, removing unfinished jobs, calling into
// the manager without its lock) panic. A panicking job function is not
// recovered.
package job

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/konstrukt-sim/konstrukt/sim/profiler"
	"github.com/konstrukt-sim/konstrukt/sim/trace"
)

// Config configures a Manager.
type Config struct {
	// WorkerThreads is the number of worker goroutines spawned by
	// NewManager. With zero workers jobs are never executed.
	WorkerThreads int

	// Trace, when enabled, receives every job lifecycle transition.
	Trace *trace.JobTrace

	// Counters receives the "job count" counter. May be nil.
	Counters *profiler.Registry
}

// Manager schedules jobs on a fixed set of worker goroutines.
type Manager struct {
	config Config

	mu       sync.Mutex
	update   *sync.Cond // notifies workers about new jobs and shutdown
	stopping bool
	workers  sync.WaitGroup

	jobs        []slot
	completions []*sync.Cond // indices map to job ids
	queue       []ID         // newest job first; workers take from the end

	jobCount *profiler.Counter
}

// NewManager spawns the workers and returns the manager locked by the
// calling goroutine.
func NewManager(config Config) *Manager {
	if config.WorkerThreads < 0 {
		logrus.Panicf("job manager: invalid worker count %d", config.WorkerThreads)
	}
	if config.WorkerThreads == 0 {
		logrus.Warn("job manager: no worker threads, jobs will never run")
	}

	m := &Manager{
		config:   config,
		jobs:     make([]slot, 0),
		queue:    make([]ID, 0),
		jobCount: config.Counters.Define("job count"),
	}
	m.update = sync.NewCond(&m.mu)

	m.mu.Lock()
	for i := range config.WorkerThreads {
		m.workers.Add(1)
		go m.work(i)
	}
	logrus.Debugf("job manager: started %d workers", config.WorkerThreads)
	return m
}

// Destroy stops the workers and releases all remaining jobs, running their
// destructors. It must be called with the lock held and leaves the manager
// unlocked and unusable.
//
// Workers drain the queue before they look at the stop flag, so jobs still
// queued are executed before the workers exit. Without workers they are
// discarded unrun.
func (m *Manager) Destroy() {
	m.assertLocked("Destroy")

	m.stopping = true
	m.update.Broadcast()
	m.mu.Unlock()

	m.workers.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		logrus.Warnf("job manager: discarding %d queued jobs", len(m.queue))
	}
	for i := range m.jobs {
		if m.jobs[i].inUse {
			m.release(ID(i))
		}
	}
	m.jobs = nil
	m.completions = nil
	m.queue = nil
	logrus.Debug("job manager: destroyed")
}

// Lock acquires the manager lock.
func (m *Manager) Lock() {
	m.mu.Lock()
}

// Unlock releases the manager lock.
func (m *Manager) Unlock() {
	m.mu.Unlock()
}

// Workers returns the number of worker goroutines.
func (m *Manager) Workers() int {
	return m.config.WorkerThreads
}

// CreateJob queues a job and wakes one idle worker. It never blocks.
func (m *Manager) CreateJob(config JobConfig) ID {
	m.assertLocked("CreateJob")
	if config.Function == nil {
		logrus.Panicf("job manager: job %q has no function", config.Name)
	}

	id := m.allocate()
	m.jobs[id] = slot{inUse: true, job: job{status: Queued, config: config}}

	// Ensure that a completion condition is available:
	for i := len(m.completions); i <= int(id); i++ {
		m.completions = append(m.completions, sync.NewCond(&m.mu))
	}

	// Insert at the front; workers dequeue from the back.
	m.queue = append(m.queue, 0)
	copy(m.queue[1:], m.queue)
	m.queue[0] = id

	m.jobCount.Increase(1)
	m.record(id, trace.KindCreated, trace.MainWorker)
	logrus.Debugf("job manager: queued job %d (%s)", id, config.Name)

	m.update.Signal()
	return id
}

// allocate returns the first free job slot, growing the array if all slots
// are taken. The scan is linear in the number of slots.
func (m *Manager) allocate() ID {
	for i := range m.jobs {
		if !m.jobs[i].inUse {
			return ID(i)
		}
	}
	m.jobs = append(m.jobs, slot{})
	return ID(len(m.jobs) - 1)
}

// RemoveJob runs the job's destructor and frees its slot. The job must be
// completed.
func (m *Manager) RemoveJob(id ID) {
	m.assertLocked("RemoveJob")
	j := m.get(id)
	if j.status != Completed {
		logrus.Panicf("job manager: can't remove job %d (%s): it is %s", id, j.config.Name, j.status)
	}
	m.release(id)
}

func (m *Manager) release(id ID) {
	s := &m.jobs[id]
	if s.job.config.Destructor != nil {
		s.job.config.Destructor(s.job.config.Data)
	}
	m.record(id, trace.KindRemoved, trace.MainWorker)
	*s = slot{}
	m.jobCount.Decrease(1)
}

// GetJobStatus returns the status of a job.
func (m *Manager) GetJobStatus(id ID) Status {
	m.assertLocked("GetJobStatus")
	return m.get(id).status
}

// GetJobData returns the data the job was created with. Only read it
// after the job completed; until then a worker may be using it.
func (m *Manager) GetJobData(id ID) any {
	m.assertLocked("GetJobData")
	return m.get(id).config.Data
}

// WaitForJobs blocks until all given jobs are completed. The lock is
// released while waiting and held again when WaitForJobs returns.
func (m *Manager) WaitForJobs(ids ...ID) {
	m.assertLocked("WaitForJobs")
	for _, id := range ids {
		for m.get(id).status != Completed {
			m.completions[id].Wait()
		}
	}
}

func (m *Manager) get(id ID) *job {
	if id < 0 || int(id) >= len(m.jobs) || !m.jobs[id].inUse {
		logrus.Panicf("job manager: invalid job id %d", id)
	}
	return &m.jobs[id].job
}

// assertLocked catches calls made while nobody holds the lock. It cannot
// tell which goroutine holds it.
func (m *Manager) assertLocked(op string) {
	if m.mu.TryLock() {
		m.mu.Unlock()
		logrus.Panicf("job manager: %s called without holding the lock", op)
	}
}

func (m *Manager) record(id ID, kind trace.EventKind, worker int) {
	if !m.config.Trace.Enabled() {
		return
	}
	m.config.Trace.Record(trace.JobRecord{
		JobID:  int(id),
		Name:   m.jobs[id].job.config.Name,
		Kind:   kind,
		Worker: worker,
	})
}

package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/konstrukt-sim/konstrukt/sim/job"
)

// Simulation is a subsystem updated once per tick by the fork/join
// pattern: BeginUpdate creates the subsystem's job, CompleteUpdate waits
// for it. Both are called with the job manager lock held.
type Simulation interface {
	BeginUpdate(jm *job.Manager, duration float64)
	CompleteUpdate(jm *job.Manager)
}

// JobSimulation adapts a plain update function (audio mixing, script VM
// step, render list build) to the Simulation interface. Each tick the
// function runs as one job on a worker.
type JobSimulation struct {
	name   string
	update func(duration float64)

	duration float64
	jobID    job.ID
	pending  bool
	updates  int
}

// NewJobSimulation creates an adapter running update as the job name.
func NewJobSimulation(name string, update func(duration float64)) *JobSimulation {
	if update == nil {
		logrus.Panicf("simulation %q has no update function", name)
	}
	return &JobSimulation{name: name, update: update}
}

// Name returns the job name.
func (s *JobSimulation) Name() string { return s.name }

// Updates returns how many updates completed. Read it only between ticks.
func (s *JobSimulation) Updates() int { return s.updates }

// BeginUpdate creates the update job.
func (s *JobSimulation) BeginUpdate(jm *job.Manager, duration float64) {
	if s.pending {
		logrus.Panicf("simulation %q: update already running", s.name)
	}
	s.duration = duration
	s.jobID = jm.CreateJob(job.JobConfig{
		Name:     s.name,
		Function: runJobSimulation,
		Data:     s,
	})
	s.pending = true
}

// CompleteUpdate waits for the update job and removes it.
func (s *JobSimulation) CompleteUpdate(jm *job.Manager) {
	if !s.pending {
		logrus.Panicf("simulation %q: no update running", s.name)
	}
	jm.WaitForJobs(s.jobID)
	jm.RemoveJob(s.jobID)
	s.pending = false
}

func runJobSimulation(data any) {
	s := data.(*JobSimulation)
	s.update(s.duration)
	s.updates++
}

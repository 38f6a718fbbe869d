// Package sim drives the per-tick update of the engine subsystems.
//
// # Reading Guide
//
// Start with these files to understand the tick core:
//   - simulation.go: the Simulation interface (BeginUpdate forks a job,
//     CompleteUpdate joins it) and JobSimulation, the generic adapter
//   - group.go: Group, which scales time and updates all registered
//     simulations once per tick
//   - config.go: EngineConfig, loaded from YAML
//
// # Architecture
//
// The primitives live in sub-packages:
//   - sim/job/: the worker pool (Manager) that executes jobs
//   - sim/object/: the generational id table used for every handle type
//   - sim/physics/: the physics world (solids, forces) built on both
//   - sim/profiler/: diagnostic counters
//   - sim/trace/: job lifecycle tracing and its SQLite store
//
// # Threading
//
// The goroutine that owns the job manager holds its lock for the whole
// tick. Workers only get to run while that goroutine is blocked in
// job.Manager.WaitForJobs. Object tables are not synchronized: between
// BeginUpdate and CompleteUpdate a table belongs to the job that updates
// it, and nothing else may touch it.
package sim

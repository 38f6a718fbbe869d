package job

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konstrukt-sim/konstrukt/sim/internal/testutil"
	"github.com/konstrukt-sim/konstrukt/sim/profiler"
	"github.com/konstrukt-sim/konstrukt/sim/trace"
)

// timeUnit scales the sleeping test jobs.
const timeUnit = 20 * time.Millisecond

func workJob(name string, w *testutil.Work) JobConfig {
	return JobConfig{Name: name, Function: testutil.DoWork, Destructor: testutil.Destructor, Data: w}
}

// statusOf reads a job status from outside the lock-owning goroutine flow.
func statusOf(m *Manager, id ID) Status {
	m.Lock()
	defer m.Unlock()
	return m.GetJobStatus(id)
}

func TestManager_SingleJob_RunsOnceAndCompletes(t *testing.T) {
	// GIVEN a manager with three workers
	m := NewManager(Config{WorkerThreads: 3})
	w := testutil.NewWork(timeUnit)

	// WHEN one job is created while the lock is held
	id := m.CreateJob(workJob("worker", w))

	// THEN it stays queued: no worker can take it before the lock is released
	assert.Equal(t, Queued, m.GetJobStatus(id))
	assert.Same(t, w, m.GetJobData(id))

	// WHEN waiting for it
	m.WaitForJobs(id)

	// THEN it ran exactly once and reports completed
	assert.True(t, w.Done())
	assert.Equal(t, 1, w.Runs())
	assert.Equal(t, Completed, m.GetJobStatus(id))
	assert.Same(t, w, m.GetJobData(id))
	assert.Equal(t, 0, w.DestructorCalls())

	// AND destroying the manager releases the job
	m.Destroy()
	assert.Equal(t, 1, w.DestructorCalls())
}

func TestManager_RemoveJob_CallsDestructorAndFreesSlot(t *testing.T) {
	// GIVEN a completed job
	m := NewManager(Config{WorkerThreads: 3})
	w := testutil.NewWork(0)
	id := m.CreateJob(workJob("worker", w))
	m.WaitForJobs(id)

	// WHEN it is removed
	m.RemoveJob(id)

	// THEN the destructor ran once and the slot is handed out again
	assert.Equal(t, 1, w.DestructorCalls())
	assert.Panics(t, func() { m.GetJobStatus(id) })
	next := m.CreateJob(workJob("next", testutil.NewWork(0)))
	assert.Equal(t, id, next)

	m.WaitForJobs(next)
	m.Destroy()
	assert.Equal(t, 1, w.DestructorCalls(), "removed job must not be released twice")
}

func TestManager_RemoveJob_NotCompleted_IsFatal(t *testing.T) {
	// GIVEN a job that cannot have started (lock held)
	m := NewManager(Config{WorkerThreads: 1})
	id := m.CreateJob(workJob("worker", testutil.NewWork(0)))

	// WHEN removing it early THEN the manager panics
	assert.Panics(t, func() { m.RemoveJob(id) })

	m.WaitForJobs(id)
	m.RemoveJob(id)
	m.Destroy()
}

func TestManager_InvalidJobID_IsFatal(t *testing.T) {
	m := NewManager(Config{WorkerThreads: 1})
	defer m.Destroy()

	assert.Panics(t, func() { m.GetJobStatus(0) })
	assert.Panics(t, func() { m.GetJobData(-1) })
	assert.Panics(t, func() { m.WaitForJobs(42) })
}

func TestManager_CreateJob_WithoutFunction_IsFatal(t *testing.T) {
	m := NewManager(Config{WorkerThreads: 1})
	defer m.Destroy()

	assert.Panics(t, func() { m.CreateJob(JobConfig{Name: "empty"}) })
}

func TestManager_CallsWithoutLock_AreFatal(t *testing.T) {
	// GIVEN a manager whose lock was released; without workers nobody
	// else can be holding it
	m := NewManager(Config{WorkerThreads: 0})
	m.Unlock()

	// THEN lock-requiring operations panic
	assert.Panics(t, func() { m.CreateJob(workJob("worker", testutil.NewWork(0))) })
	assert.Panics(t, func() { m.WaitForJobs() })

	m.Lock()
	m.Destroy()
}

func TestManager_NegativeWorkers_IsFatal(t *testing.T) {
	assert.Panics(t, func() { NewManager(Config{WorkerThreads: -1}) })
}

func TestManager_QueueJobWhileAnotherIsRunning(t *testing.T) {
	// GIVEN a single worker busy with job A (3 units)
	m := NewManager(Config{WorkerThreads: 1})
	workA := testutil.NewWork(3 * timeUnit)
	jobA := m.CreateJob(workJob("worker A", workA))

	m.Unlock()
	require.Eventually(t, func() bool { return statusOf(m, jobA) == Active }, time.Second, time.Millisecond)
	m.Lock()

	// WHEN job B is created
	workB := testutil.NewWork(timeUnit)
	jobB := m.CreateJob(workJob("worker B", workB))

	m.Unlock()
	time.Sleep(timeUnit)
	m.Lock()

	// THEN B stays queued while A is active
	assert.Equal(t, Active, m.GetJobStatus(jobA))
	assert.Equal(t, Queued, m.GetJobStatus(jobB))
	assert.Same(t, workB, m.GetJobData(jobB))

	// WHEN A finishes
	m.WaitForJobs(jobA)

	// THEN A is completed and B is next
	assert.True(t, workA.Done())
	assert.NotEqual(t, Completed, m.GetJobStatus(jobB))

	m.WaitForJobs(jobB)
	assert.Equal(t, Completed, m.GetJobStatus(jobB))
	assert.True(t, workB.Done())
	assert.Equal(t, 0, workA.DestructorCalls())

	m.Destroy()
	assert.Equal(t, 1, workA.DestructorCalls())
	assert.Equal(t, 1, workB.DestructorCalls())
}

func TestManager_FIFO_OldestJobDequeuedFirst(t *testing.T) {
	// GIVEN one worker blocked on a gate job
	jt := trace.NewJobTrace(trace.Config{Level: trace.LevelJobs})
	m := NewManager(Config{WorkerThreads: 1, Trace: jt})

	gate := make(chan struct{})
	var mu sync.Mutex
	var order []string
	run := func(data any) {
		mu.Lock()
		order = append(order, data.(string))
		mu.Unlock()
	}

	blocker := m.CreateJob(JobConfig{Name: "gate", Function: func(any) { <-gate }})
	m.Unlock()
	require.Eventually(t, func() bool { return statusOf(m, blocker) == Active }, time.Second, time.Millisecond)
	m.Lock()

	// WHEN A, B and C are created while the worker is busy
	ids := []ID{
		m.CreateJob(JobConfig{Name: "A", Function: run, Data: "A"}),
		m.CreateJob(JobConfig{Name: "B", Function: run, Data: "B"}),
		m.CreateJob(JobConfig{Name: "C", Function: run, Data: "C"}),
	}
	close(gate)
	m.WaitForJobs(append([]ID{blocker}, ids...)...)

	// THEN they run in creation order
	mu.Lock()
	assert.Equal(t, []string{"A", "B", "C"}, order)
	mu.Unlock()

	// AND the trace shows the same start order
	var started []string
	for _, r := range jt.Filter(trace.KindStarted) {
		started = append(started, r.Name)
	}
	assert.Equal(t, []string{"gate", "A", "B", "C"}, started)

	m.Destroy()
}

func TestManager_ManyJobs_RunInParallel(t *testing.T) {
	// GIVEN three workers and 100 one-unit jobs
	const jobCount = 100
	const workerThreads = 3
	const unit = 10 * time.Millisecond
	m := NewManager(Config{WorkerThreads: workerThreads})

	work := make([]*testutil.Work, jobCount)
	ids := make([]ID, jobCount)
	start := time.Now()
	for i := range jobCount {
		work[i] = testutil.NewWork(unit)
		ids[i] = m.CreateJob(workJob("worker", work[i]))
		require.Equal(t, Queued, m.GetJobStatus(ids[i]))
		require.Same(t, work[i], m.GetJobData(ids[i]))
	}

	// WHEN waiting for all of them
	m.WaitForJobs(ids...)
	elapsed := time.Since(start)

	// THEN all ran exactly once and completed
	for i := range jobCount {
		require.True(t, work[i].Done(), "job %d", i)
		require.Equal(t, 1, work[i].Runs(), "job %d", i)
		require.Equal(t, Completed, m.GetJobStatus(ids[i]))
	}

	// AND the wall time reflects ceil(100/3) rounds, not 100
	rounds := (jobCount + workerThreads - 1) / workerThreads
	assert.GreaterOrEqual(t, elapsed, time.Duration(rounds-1)*unit)
	assert.LessOrEqual(t, elapsed, time.Duration(jobCount)*unit*3/4)

	m.Destroy()
}

func TestManager_JobCanCallBackIntoManager(t *testing.T) {
	// GIVEN a job that creates a follow-up job from its worker
	m := NewManager(Config{WorkerThreads: 2})
	child := make(chan ID, 1)
	childWork := testutil.NewWork(0)

	parent := m.CreateJob(JobConfig{Name: "parent", Function: func(any) {
		m.Lock()
		child <- m.CreateJob(workJob("child", childWork))
		m.Unlock()
	}})

	// WHEN both are waited for
	m.WaitForJobs(parent)
	childID := <-child
	m.WaitForJobs(childID)

	// THEN the child ran too
	assert.True(t, childWork.Done())
	m.Destroy()
}

func TestManager_Destroy_DrainsQueuedJobs(t *testing.T) {
	// GIVEN queued jobs that were never waited for
	m := NewManager(Config{WorkerThreads: 1})
	var work []*testutil.Work
	for range 5 {
		w := testutil.NewWork(time.Millisecond)
		work = append(work, w)
		m.CreateJob(workJob("worker", w))
	}

	// WHEN the manager is destroyed
	m.Destroy()

	// THEN every job ran exactly once and was released
	for i, w := range work {
		assert.Equal(t, 1, w.Runs(), "job %d", i)
		assert.Equal(t, 1, w.DestructorCalls(), "job %d", i)
	}
}

func TestManager_ZeroWorkers_DiscardsJobsOnDestroy(t *testing.T) {
	m := NewManager(Config{WorkerThreads: 0})
	w := testutil.NewWork(0)
	id := m.CreateJob(workJob("never", w))
	assert.Equal(t, Queued, m.GetJobStatus(id))
	assert.Equal(t, 0, m.Workers())

	m.Destroy()

	assert.Equal(t, 0, w.Runs())
	assert.Equal(t, 1, w.DestructorCalls())
}

func TestManager_PublishesJobCount(t *testing.T) {
	counters := profiler.NewRegistry()
	m := NewManager(Config{WorkerThreads: 1, Counters: counters})
	count := counters.Define("job count")

	a := m.CreateJob(workJob("a", testutil.NewWork(0)))
	b := m.CreateJob(workJob("b", testutil.NewWork(0)))
	assert.Equal(t, int64(2), count.Value())

	m.WaitForJobs(a, b)
	m.RemoveJob(a)
	assert.Equal(t, int64(1), count.Value())

	m.Destroy()
	assert.Equal(t, int64(0), count.Value())
}

func TestManager_Trace_RecordsLifecycle(t *testing.T) {
	jt := trace.NewJobTrace(trace.Config{Level: trace.LevelJobs})
	m := NewManager(Config{WorkerThreads: 2, Trace: jt})

	id := m.CreateJob(workJob("traced", testutil.NewWork(0)))
	m.WaitForJobs(id)
	m.RemoveJob(id)
	m.Destroy()

	var kinds []trace.EventKind
	for _, r := range jt.Records {
		assert.Equal(t, int(id), r.JobID)
		assert.Equal(t, "traced", r.Name)
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []trace.EventKind{trace.KindCreated, trace.KindStarted, trace.KindCompleted, trace.KindRemoved}, kinds)
	assert.Equal(t, trace.MainWorker, jt.Records[0].Worker)
	assert.GreaterOrEqual(t, jt.Records[1].Worker, 0)

	summary := trace.Summarize(jt)
	assert.Equal(t, 1, summary.Completed)
}

func TestManager_ConcurrentCreators_AllJobsRun(t *testing.T) {
	// GIVEN several goroutines sharing the manager lock
	m := NewManager(Config{WorkerThreads: 4})
	m.Unlock()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			defer m.Unlock()
			ids := make([]ID, 0, 10)
			for range 10 {
				ids = append(ids, m.CreateJob(JobConfig{Name: "inc", Function: func(any) { ran.Add(1) }}))
			}
			m.WaitForJobs(ids...)
			for _, id := range ids {
				m.RemoveJob(id)
			}
		}()
	}
	wg.Wait()

	// THEN every job ran exactly once
	assert.Equal(t, int32(80), ran.Load())

	m.Lock()
	m.Destroy()
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "queued", Queued.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "Status(7)", Status(7).String())
}

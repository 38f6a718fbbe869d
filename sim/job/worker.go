package job

import (
	"github.com/sirupsen/logrus"

	"github.com/konstrukt-sim/konstrukt/sim/trace"
)

// work is run by each worker goroutine. The lock is held except while a
// job function runs, so jobs may call back into the manager.
func (m *Manager) work(worker int) {
	defer m.workers.Done()
	logrus.Debugf("job manager: worker %d running", worker)

	m.mu.Lock()
	for {
		id, ok := m.dequeue(worker)
		for !ok && !m.stopping {
			m.update.Wait()
			id, ok = m.dequeue(worker)
		}
		if !ok {
			break
		}

		config := m.jobs[id].job.config
		m.mu.Unlock()

		config.Function(config.Data)

		m.mu.Lock()
		m.complete(id, worker)
	}
	m.mu.Unlock()

	logrus.Debugf("job manager: worker %d stopped", worker)
}

// dequeue takes the oldest queued job and marks it active.
func (m *Manager) dequeue(worker int) (ID, bool) {
	n := len(m.queue)
	if n == 0 {
		return 0, false
	}
	id := m.queue[n-1]
	j := m.get(id)
	if j.status != Queued {
		logrus.Panicf("job manager: queued job %d (%s) is %s", id, j.config.Name, j.status)
	}
	m.queue = m.queue[:n-1]

	j.status = Active
	m.record(id, trace.KindStarted, worker)
	return id, true
}

func (m *Manager) complete(id ID, worker int) {
	j := m.get(id)
	if j.status != Active {
		logrus.Panicf("job manager: finished job %d (%s) is %s", id, j.config.Name, j.status)
	}
	j.status = Completed
	m.record(id, trace.KindCompleted, worker)
	m.completions[id].Broadcast()
}

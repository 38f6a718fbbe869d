package trace

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DurationStats summarizes a set of durations.
type DurationStats struct {
	Count int
	Mean  time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Summary aggregates statistics from a JobTrace.
type Summary struct {
	RunID      string
	Created    int
	Started    int
	Completed  int
	Removed    int
	QueueWait  DurationStats // created → started
	RunTime    DurationStats // started → completed
	WorkerJobs map[int]int   // worker index → jobs started
}

// jobSpan follows one job through its slot. Slots are reused only after
// removal, so at most one span per slot is open at a time.
type jobSpan struct {
	created time.Time
	started time.Time
}

// Summarize computes aggregate statistics from a JobTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(jt *JobTrace) *Summary {
	summary := &Summary{
		WorkerJobs: make(map[int]int),
	}
	if jt == nil {
		return summary
	}
	summary.RunID = jt.RunID

	open := make(map[int]*jobSpan)
	var waits, runs []float64
	for _, r := range jt.Records {
		switch r.Kind {
		case KindCreated:
			summary.Created++
			open[r.JobID] = &jobSpan{created: r.At}
		case KindStarted:
			summary.Started++
			summary.WorkerJobs[r.Worker]++
			if span, ok := open[r.JobID]; ok {
				span.started = r.At
				waits = append(waits, float64(r.At.Sub(span.created)))
			}
		case KindCompleted:
			summary.Completed++
			if span, ok := open[r.JobID]; ok && !span.started.IsZero() {
				runs = append(runs, float64(r.At.Sub(span.started)))
			}
		case KindRemoved:
			summary.Removed++
			delete(open, r.JobID)
		}
	}

	summary.QueueWait = durationStats(waits)
	summary.RunTime = durationStats(runs)
	return summary
}

func durationStats(values []float64) DurationStats {
	if len(values) == 0 {
		return DurationStats{}
	}
	sort.Float64s(values)
	return DurationStats{
		Count: len(values),
		Mean:  time.Duration(stat.Mean(values, nil)),
		P99:   time.Duration(stat.Quantile(0.99, stat.Empirical, values, nil)),
		Max:   time.Duration(values[len(values)-1]),
	}
}

// WriteReport prints the summary in the CLI report format.
func (s *Summary) WriteReport(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("=== Job Trace Summary ===\n")
	writeLine(&sb, "Run ID", s.RunID)
	writeLine(&sb, "Jobs Created", s.Created)
	writeLine(&sb, "Jobs Started", s.Started)
	writeLine(&sb, "Jobs Completed", s.Completed)
	writeLine(&sb, "Jobs Removed", s.Removed)
	writeLine(&sb, "Queue Wait", s.QueueWait)
	writeLine(&sb, "Run Time", s.RunTime)

	workers := make([]int, 0, len(s.WorkerJobs))
	for worker := range s.WorkerJobs {
		workers = append(workers, worker)
	}
	sort.Ints(workers)
	sb.WriteString("Jobs per Worker:\n")
	for _, worker := range workers {
		writeLine(&sb, fmt.Sprintf("  worker %d", worker), s.WorkerJobs[worker])
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeLine(sb *strings.Builder, label string, value any) {
	fmt.Fprintf(sb, "%-18s : %v\n", label, value)
}

// String renders the stats on one report line.
func (ds DurationStats) String() string {
	return fmt.Sprintf("mean=%v p99=%v max=%v (n=%d)", ds.Mean, ds.P99, ds.Max, ds.Count)
}

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/konstrukt-sim/konstrukt/sim/job"
	"github.com/konstrukt-sim/konstrukt/sim/profiler"
)

var (
	benchWorkers     int           // Worker threads
	benchJobs        int           // Jobs queued at once
	benchJobDuration time.Duration // Time each job sleeps
)

// benchCmd queues many sleeping jobs at once and compares the wall-clock
// time against running them one after another
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure job manager throughput with many queued jobs",
	Run: func(cmd *cobra.Command, args []string) {
		if benchJobs <= 0 {
			logrus.Fatalf("--jobs must be positive, got %d", benchJobs)
		}
		if benchWorkers <= 0 {
			logrus.Fatalf("--workers must be positive, got %d", benchWorkers)
		}
		res := runBench(benchWorkers, benchJobs, benchJobDuration)
		if err := res.WriteReport(cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Writing report: %v", err)
		}
	},
}

type benchResult struct {
	Workers int
	Jobs    int
	Wall    time.Duration
	Serial  time.Duration
	PeakJob int64 // highest "job count" seen
}

// Speedup is the serial time divided by the wall-clock time.
func (r benchResult) Speedup() float64 {
	if r.Wall <= 0 {
		return 0
	}
	return float64(r.Serial) / float64(r.Wall)
}

func runBench(workers, jobs int, d time.Duration) benchResult {
	counters := profiler.NewRegistry()
	jm := job.NewManager(job.Config{WorkerThreads: workers, Counters: counters})
	defer jm.Destroy()

	sleep := func(data any) { time.Sleep(data.(time.Duration)) }

	start := time.Now()
	ids := make([]job.ID, jobs)
	for i := range ids {
		ids[i] = jm.CreateJob(job.JobConfig{Name: "bench", Function: sleep, Data: d})
	}
	peak := counters.Define("job count").Value()
	jm.WaitForJobs(ids...)
	wall := time.Since(start)

	for _, id := range ids {
		jm.RemoveJob(id)
	}
	return benchResult{
		Workers: workers,
		Jobs:    jobs,
		Wall:    wall,
		Serial:  time.Duration(jobs) * d,
		PeakJob: peak,
	}
}

func (r benchResult) WriteReport(w io.Writer) error {
	_, err := fmt.Fprintf(w, "=== Job Bench ===\n"+
		"%-18s : %d\n%-18s : %d\n%-18s : %d\n%-18s : %v\n%-18s : %v\n%-18s : %.2fx\n",
		"Workers", r.Workers,
		"Jobs", r.Jobs,
		"Peak Job Count", r.PeakJob,
		"Wall Time", r.Wall.Round(time.Microsecond),
		"Serial Time", r.Serial,
		"Speedup", r.Speedup())
	return err
}

func init() {
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 3, "Number of job worker threads")
	benchCmd.Flags().IntVar(&benchJobs, "jobs", 100, "Number of jobs queued at once")
	benchCmd.Flags().DurationVar(&benchJobDuration, "job-duration", 10*time.Millisecond, "Time each job takes")
}

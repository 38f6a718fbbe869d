package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	sim "github.com/konstrukt-sim/konstrukt/sim"
	"github.com/konstrukt-sim/konstrukt/sim/job"
	"github.com/konstrukt-sim/konstrukt/sim/physics"
	"github.com/konstrukt-sim/konstrukt/sim/profiler"
	"github.com/konstrukt-sim/konstrukt/sim/trace"
)

var runFlags engineFlags

// runCmd runs the engine tick loop headless
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine tick loop: physics plus audio, script and render jobs",
	Run: func(cmd *cobra.Command, args []string) {
		runFlags.set = cmd.Flags().Changed
		cfg, err := resolveEngineConfig(runFlags)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		logrus.Infof("Starting engine: workers=%d ticks=%d tick=%.4fs solids=%d",
			cfg.WorkerThreads, cfg.Ticks, cfg.TickDuration, cfg.Solids)
		result := runEngine(ctx, cfg)
		if err := result.WriteReport(cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Writing report: %v", err)
		}

		if cfg.TraceDB != "" && result.Trace.Enabled() {
			if err := saveTrace(ctx, cfg.TraceDB, result.Trace); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Saved job trace %s to %s", result.Trace.RunID, cfg.TraceDB)
		}
	},
}

// subsystems updated as plain jobs next to the physics world
var jobSubsystems = []string{"UpdateAudio", "UpdateScripts", "UpdateRenderList"}

// engineResult describes a finished run.
type engineResult struct {
	Ticks         int
	SimulatedTime float64
	Wall          time.Duration
	Steps         int
	Collisions    int
	Kicks         int
	Updates       map[string]int
	Counters      []profiler.Sample // sampled before teardown
	Trace         *trace.JobTrace
}

// runEngine builds the subsystems, runs cfg.Ticks ticks and tears
// everything down again. It stops early when ctx is cancelled.
func runEngine(ctx context.Context, cfg *sim.EngineConfig) *engineResult {
	counters := profiler.NewRegistry()
	jt := trace.NewJobTrace(trace.Config{Level: trace.Level(cfg.TraceLevel)})
	jm := job.NewManager(job.Config{WorkerThreads: cfg.WorkerThreads, Trace: jt, Counters: counters})

	world := physics.NewWorld(counters)
	world.SetGravity(r3.Vec{X: cfg.Gravity[0], Y: cfg.Gravity[1], Z: cfg.Gravity[2]})
	result := &engineResult{Updates: make(map[string]int), Trace: jt}
	world.SetCollisionCallback(func(*physics.World, physics.Collision) {
		result.Collisions++
	})
	rng := sim.NewRNG(cfg.Seed)
	solids := populateWorld(world, cfg.Solids, rng.For(sim.SubsystemScene))
	kicks := rng.For(sim.SubsystemImpulses)

	group := sim.NewGroup(counters)
	group.SetTimeFactor(cfg.TimeFactor)
	group.AddSimulation(world)
	jobSims := make([]*sim.JobSimulation, 0, len(jobSubsystems))
	for _, name := range jobSubsystems {
		s := sim.NewJobSimulation(name, func(float64) {})
		jobSims = append(jobSims, s)
		group.AddSimulation(s)
	}

	start := time.Now()
	for result.Ticks < cfg.Ticks && ctx.Err() == nil {
		if result.Ticks > 0 && result.Ticks%kickInterval == 0 && len(solids) > 1 {
			kick(world, solids[1+kicks.Intn(len(solids)-1)], kicks)
			result.Kicks++
		}
		group.BeginUpdate(jm, cfg.TickDuration)
		group.CompleteUpdate()
		result.Ticks++
	}
	result.Wall = time.Since(start)
	result.SimulatedTime = group.TotalTime()
	result.Steps = world.Steps()
	for _, s := range jobSims {
		result.Updates[s.Name()] = s.Updates()
	}
	result.Counters = counters.Snapshot()
	counters.Log()

	group.Destroy()
	for _, id := range solids {
		world.ReleaseSolid(id)
	}
	world.Destroy()
	jm.Destroy()
	return result
}

// kickInterval is the number of ticks between two random impulses.
const kickInterval = 60

// kick throws a ball upwards with a random sideways component.
func kick(world *physics.World, id physics.SolidID, src *rand.Rand) {
	impulse := r3.Vec{X: src.Float64()*2 - 1, Y: src.Float64()*2 - 1, Z: 3 + src.Float64()*2}
	world.ApplySolidImpulse(id, impulse, r3.Vec{}, false)
}

// populateWorld adds a static ground sphere and drops n balls above it. The
// first returned id is the ground.
func populateWorld(world *physics.World, n int, src *rand.Rand) []physics.SolidID {
	ground := world.CreateSolid(
		physics.SolidProperties{Friction: 0.8, Restitution: 0.5, CollisionThreshold: physics.InfiniteCollisionThreshold},
		physics.SolidMotionState{Position: r3.Vec{Z: -100}},
		physics.NewSphereShape(100),
	)
	world.ReferenceSolid(ground)
	ids := []physics.SolidID{ground}

	ball := physics.NewSphereShape(0.5)
	props := physics.SolidProperties{
		Mass:               1,
		Restitution:        0.6,
		Friction:           0.5,
		CollisionThreshold: 1,
		AffectedByGravity:  true,
	}
	for i := range n {
		jitter := r3.Vec{X: src.Float64()*0.2 - 0.1, Y: src.Float64()*0.2 - 0.1}
		pos := r3.Add(r3.Vec{X: float64(i%4) * 1.5, Y: float64(i/4%4) * 1.5, Z: 2 + float64(i/16)*1.5}, jitter)
		id := world.CreateSolid(props, physics.SolidMotionState{Position: pos}, ball)
		world.ReferenceSolid(id)
		ids = append(ids, id)
	}
	return ids
}

func saveTrace(ctx context.Context, path string, jt *trace.JobTrace) error {
	store, err := trace.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveTrace(ctx, jt)
}

// WriteReport prints the run summary, followed by the job trace summary
// when tracing was enabled.
func (r *engineResult) WriteReport(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("=== Engine Run ===\n")
	fmt.Fprintf(&sb, "%-18s : %d\n", "Ticks", r.Ticks)
	fmt.Fprintf(&sb, "%-18s : %.3fs\n", "Simulated Time", r.SimulatedTime)
	fmt.Fprintf(&sb, "%-18s : %v\n", "Wall Time", r.Wall.Round(time.Microsecond))
	fmt.Fprintf(&sb, "%-18s : %d\n", "Physics Steps", r.Steps)
	fmt.Fprintf(&sb, "%-18s : %d\n", "Collisions", r.Collisions)
	fmt.Fprintf(&sb, "%-18s : %d\n", "Impulses", r.Kicks)
	for _, name := range jobSubsystems {
		fmt.Fprintf(&sb, "%-18s : %d\n", name, r.Updates[name])
	}
	sb.WriteString("Counters:\n")
	for _, c := range r.Counters {
		fmt.Fprintf(&sb, "  %-16s : %d\n", c.Name, c.Value)
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	if !r.Trace.Enabled() {
		return nil
	}
	return trace.Summarize(r.Trace).WriteReport(w)
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.configPath, "config", "", "Engine config YAML file")
	f.IntVar(&runFlags.workers, "workers", 3, "Number of job worker threads")
	f.IntVar(&runFlags.ticks, "ticks", 60, "Number of ticks to run")
	f.Float64Var(&runFlags.tickDuration, "tick-duration", 1.0/60.0, "Duration of one tick (seconds)")
	f.Float64Var(&runFlags.timeFactor, "time-factor", 1.0, "Simulation time scale (0 pauses)")
	f.Float64SliceVar(&runFlags.gravity, "gravity", []float64{0, 0, -9.81}, "Comma-separated gravity vector")
	f.IntVar(&runFlags.solids, "solids", 8, "Number of balls dropped into the physics world")
	f.Int64Var(&runFlags.seed, "seed", 42, "Seed for solid placement and impulses")
	f.StringVar(&runFlags.traceLevel, "trace-level", "none", "Job trace level (none, jobs)")
	f.StringVar(&runFlags.traceDB, "trace-db", "", "SQLite file the job trace is saved to")
}

package trace

import (
	"time"

	"github.com/google/uuid"
)

// Level controls the verbosity of job tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelJobs captures every job lifecycle transition.
	LevelJobs Level = "jobs"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone: true,
	LevelJobs: true,
	"":        true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// Config controls trace collection behavior.
type Config struct {
	Level Level
}

// JobTrace collects job lifecycle records during one engine run.
//
// JobTrace does no locking of its own. The job manager records into it
// while holding the manager lock; read it only under that lock or after the
// manager is destroyed.
type JobTrace struct {
	Config  Config
	RunID   string
	Started time.Time
	Records []JobRecord

	nextSeq int64
}

// NewJobTrace creates a JobTrace with a fresh time-ordered run id.
func NewJobTrace(config Config) *JobTrace {
	return &JobTrace{
		Config:  config,
		RunID:   uuid.Must(uuid.NewV7()).String(),
		Started: time.Now(),
		Records: make([]JobRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on nil.
func (jt *JobTrace) Enabled() bool {
	return jt != nil && jt.Config.Level == LevelJobs
}

// Record appends a record, assigning its sequence number and, when unset,
// its timestamp. No-op when tracing is disabled.
func (jt *JobTrace) Record(rec JobRecord) {
	if !jt.Enabled() {
		return
	}
	jt.nextSeq++
	rec.Seq = jt.nextSeq
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	jt.Records = append(jt.Records, rec)
}

// Filter returns the records of the given kind in sequence order.
func (jt *JobTrace) Filter(kind EventKind) []JobRecord {
	if jt == nil {
		return nil
	}
	var out []JobRecord
	for _, r := range jt.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

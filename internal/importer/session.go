package importer

import (
	"log/slog"
	"time"
)

// Phase indicates where an import currently is in its lifecycle.
type Phase string

const (
	PhaseStreaming   Phase = "streaming"
	PhaseValidating  Phase = "validating"
	PhaseCommitting  Phase = "committing"
	PhaseRollingBack Phase = "rolling_back"
	PhaseComplete    Phase = "complete"
	PhaseAborted     Phase = "aborted"
)

// Options configures a single import session. Policy flags are inspected
// once by the orchestrator; callbacks are invoked synchronously from within
// the processing of the affected chunk.
type Options struct {
	// ChunkSize is the number of rows committed or rolled back as one unit.
	// Must be positive; a value at or above the total row count degenerates
	// to one all-or-nothing transaction.
	ChunkSize int

	// SkipOnFailure persists the valid rows of a chunk and routes that
	// chunk's validation failures to OnFailure instead of aborting.
	SkipOnFailure bool

	// SkipOnError routes persistence errors to OnError and continues with
	// the remaining rows of the chunk instead of rolling it back.
	SkipOnError bool

	// UseHeadingRow derives attribute names from the first input row.
	UseHeadingRow bool

	// FailFast aborts at the first chunk with validation failures. When
	// false, subsequent chunks are still validated, so the aggregate error
	// reports every failure, but no further chunk is committed.
	FailFast bool

	// DryRun validates the whole input against an in-memory sink; the
	// configured sink is never touched.
	DryRun bool

	// Rules maps column references ("email", "1", "*.email") to
	// pipe-separated rule expressions.
	Rules map[string]string

	// CustomMessages overrides failure messages, keyed "<attribute>.<kind>".
	CustomMessages map[string]string

	// CustomAttributes overrides attribute display names in messages.
	CustomAttributes map[string]string

	// OnFailure receives one chunk's validation failures when SkipOnFailure
	// is set. Never called otherwise.
	OnFailure func(chunk int, failures []Failure)

	// OnError receives persistence errors when SkipOnError is set.
	OnError func(err error)

	// OnProgress, when set, is called at every phase transition.
	OnProgress func(p Progress)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Progress is a point-in-time snapshot of a running import.
type Progress struct {
	ImportID  string
	Phase     Phase
	Chunk     int // 0-based chunk index, -1 outside chunk processing
	Rows      int
	Persisted int
	Skipped   int
}

// Result summarizes a finished import.
type Result struct {
	ImportID   string    `json:"importId"`
	State      Phase     `json:"state"` // complete or aborted
	Rows       int       `json:"rows"`
	Persisted  int       `json:"persisted"`
	Skipped    int       `json:"skipped"`
	Chunks     int       `json:"chunks"`
	Committed  int       `json:"committed"`
	RolledBack int       `json:"rolledBack"`
	Failures   []Failure `json:"failures,omitempty"`
	DurationMs int64     `json:"durationMs"`

	Duration time.Duration `json:"-"`
}

func (r *Result) finish(start time.Time, state Phase) {
	r.State = state
	r.Duration = time.Since(start)
	r.DurationMs = r.Duration.Milliseconds()
}

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Importer drives one import: streaming, chunk accumulation, validation,
// per-chunk transactions, and the skip/abort policies. Build with New, run
// once with Run; an Importer may be reused for further runs with the same
// configuration.
type Importer struct {
	sink  Sink
	opts  Options
	rules *RuleSet
	log   *slog.Logger
}

// New validates the session options and parses the rule set. The sink may
// be nil only for dry runs.
func New(sink Sink, opts Options) (*Importer, error) {
	if opts.ChunkSize <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("chunk size must be positive, got %d", opts.ChunkSize)}
	}

	rules, err := ParseRules(opts.Rules)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		// Dry runs validate the full input but never touch the real store.
		sink = NewMemorySink()
	}
	if sink == nil {
		return nil, &ConfigurationError{Reason: "no sink configured"}
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Importer{sink: sink, opts: opts, rules: rules, log: log}, nil
}

// chunkMsg carries one completed chunk, or the error that ended streaming,
// from the producer goroutine to the orchestration loop.
type chunkMsg struct {
	chunk Chunk
	err   error
}

// Run executes the import against the given source. It returns the result
// summary together with the terminal error, if any: an aggregate
// *ValidationError when failures were collected without skip-on-failure, or
// the fatal error that aborted the import. Chunks committed before an abort
// stay committed; the aborting chunk's effects are rolled back.
func (imp *Importer) Run(ctx context.Context, src RowSource) (*Result, error) {
	importID := uuid.New().String()
	log := imp.log.With("import_id", importID)
	start := time.Now()
	res := &Result{ImportID: importID, State: PhaseStreaming}

	log.Info("import started",
		"chunk_size", imp.opts.ChunkSize,
		"skip_on_failure", imp.opts.SkipOnFailure,
		"skip_on_error", imp.opts.SkipOnError,
		"fail_fast", imp.opts.FailFast,
		"dry_run", imp.opts.DryRun,
	)

	attrs := IdentityAttributes()
	if imp.opts.UseHeadingRow {
		heading, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Empty input: nothing to validate or persist.
				res.finish(start, PhaseComplete)
				return res, nil
			}
			res.finish(start, PhaseAborted)
			return res, asSourceError(err)
		}
		attrs, err = BuildAttributeMap(heading)
		if err != nil {
			res.finish(start, PhaseAborted)
			return res, err
		}
	}

	eval, err := NewEvaluator(imp.rules, attrs, imp.opts.CustomMessages, imp.opts.CustomAttributes)
	if err != nil {
		res.finish(start, PhaseAborted)
		return res, err
	}

	// Pipelined read-ahead: the producer pulls rows and accumulates the next
	// chunk while this goroutine finalizes the current chunk. Commit and
	// rollback decisions happen only here, in chunk order.
	prodCtx, stopProducer := context.WithCancel(ctx)
	defer stopProducer()
	chunks := make(chan chunkMsg, 1)
	go produceChunks(prodCtx, src, imp.opts.ChunkSize, chunks)

	var collector Collector

	for msg := range chunks {
		if msg.err != nil {
			res.finish(start, PhaseAborted)
			log.Error("import aborted while streaming", "error", msg.err)
			return res, msg.err
		}

		chunk := msg.chunk
		res.Rows += len(chunk.Rows)
		res.Chunks++
		imp.progress(res, PhaseValidating, chunk.Index)

		failures := eval.EvaluateChunk(chunk)

		switch {
		case len(failures) == 0:
			if !imp.opts.SkipOnFailure && !collector.Empty() {
				// An earlier chunk already failed: keep validating so the
				// aggregate error is complete, but stop committing.
				res.Skipped += len(chunk.Rows)
				continue
			}
			if err := imp.commitChunk(ctx, chunk, nil, attrs, res, log); err != nil {
				return imp.abort(res, start, chunks, stopProducer, log, err)
			}

		case imp.opts.SkipOnFailure:
			if imp.opts.OnFailure != nil {
				imp.opts.OnFailure(chunk.Index, failures)
			}
			exclude := failingPositions(failures)
			res.Skipped += len(exclude)
			log.Warn("persisting chunk without its failing rows",
				"chunk", chunk.Index, "failing_rows", len(exclude))
			if err := imp.commitChunk(ctx, chunk, exclude, attrs, res, log); err != nil {
				return imp.abort(res, start, chunks, stopProducer, log, err)
			}

		default:
			collector.Record(failures)
			res.Skipped += len(chunk.Rows)
			res.RolledBack++
			imp.progress(res, PhaseRollingBack, chunk.Index)
			log.Warn("chunk failed validation", "chunk", chunk.Index, "failures", len(failures))
			if imp.opts.FailFast {
				res.Failures = collector.Failures()
				return imp.abort(res, start, chunks, stopProducer, log, &ValidationError{Failures: res.Failures})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		res.finish(start, PhaseAborted)
		return res, err
	}

	res.finish(start, PhaseComplete)
	if !imp.opts.SkipOnFailure && !collector.Empty() {
		res.Failures = collector.Failures()
		imp.progress(res, PhaseComplete, -1)
		log.Warn("import complete with validation failures",
			"rows", res.Rows, "persisted", res.Persisted, "failures", len(res.Failures))
		return res, &ValidationError{Failures: res.Failures}
	}

	imp.progress(res, PhaseComplete, -1)
	log.Info("import complete",
		"rows", res.Rows,
		"persisted", res.Persisted,
		"skipped", res.Skipped,
		"chunks", res.Chunks,
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

// commitChunk runs one chunk's transactional scope: BEGIN, persist every
// non-excluded row, COMMIT. Persistence errors roll the scope back unless
// skip-on-error is set, in which case the offending row alone is skipped.
func (imp *Importer) commitChunk(ctx context.Context, chunk Chunk, exclude map[int]bool, attrs *AttributeMap, res *Result, log *slog.Logger) error {
	imp.progress(res, PhaseCommitting, chunk.Index)

	scope, err := imp.sink.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chunk %d: %w", chunk.Index, err)
	}

	persisted := 0
	for _, row := range chunk.Rows {
		if exclude[row.Position] {
			continue
		}
		if err := ctx.Err(); err != nil {
			imp.rollback(ctx, scope, res, log, chunk.Index)
			return err
		}
		if err := scope.Persist(ctx, row, attrs); err != nil {
			perr := &PersistenceError{Row: row.Position, Err: err}
			if imp.opts.SkipOnError && ctx.Err() == nil {
				if imp.opts.OnError != nil {
					imp.opts.OnError(perr)
				}
				res.Skipped++
				log.Warn("row skipped after persistence error", "row", row.Position, "error", err)
				continue
			}
			imp.rollback(ctx, scope, res, log, chunk.Index)
			return perr
		}
		persisted++
	}

	if err := scope.Commit(ctx); err != nil {
		imp.rollback(ctx, scope, res, log, chunk.Index)
		return fmt.Errorf("commit chunk %d: %w", chunk.Index, err)
	}

	res.Persisted += persisted
	res.Committed++
	log.Debug("chunk committed", "chunk", chunk.Index, "rows", persisted)
	return nil
}

// rollback discards the current chunk's scope. Runs detached from the
// caller's cancellation so an abort signal still rolls the chunk back.
func (imp *Importer) rollback(ctx context.Context, scope TxScope, res *Result, log *slog.Logger, chunkIndex int) {
	imp.progress(res, PhaseRollingBack, chunkIndex)
	if err := scope.Rollback(context.WithoutCancel(ctx)); err != nil {
		log.Error("chunk rollback failed", "chunk", chunkIndex, "error", err)
	}
	res.RolledBack++
}

// abort stops the producer, drains in-flight chunks, and finalizes the
// result as aborted.
func (imp *Importer) abort(res *Result, start time.Time, chunks <-chan chunkMsg, stopProducer context.CancelFunc, log *slog.Logger, err error) (*Result, error) {
	stopProducer()
	for range chunks {
	}
	res.finish(start, PhaseAborted)
	imp.progress(res, PhaseAborted, -1)
	log.Error("import aborted", "rows", res.Rows, "persisted", res.Persisted, "error", err)
	return res, err
}

func (imp *Importer) progress(res *Result, phase Phase, chunk int) {
	res.State = phase
	if imp.opts.OnProgress == nil {
		return
	}
	imp.opts.OnProgress(Progress{
		ImportID:  res.ImportID,
		Phase:     phase,
		Chunk:     chunk,
		Rows:      res.Rows,
		Persisted: res.Persisted,
		Skipped:   res.Skipped,
	})
}

// produceChunks pulls rows from the source, drops fully empty ones, and
// emits capacity-bounded chunks. The channel is closed once the source is
// exhausted or streaming fails.
func produceChunks(ctx context.Context, src RowSource, capacity int, out chan<- chunkMsg) {
	defer close(out)
	acc := NewAccumulator(capacity)

	for {
		row, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if chunk, ok := acc.Flush(); ok {
					sendChunk(ctx, out, chunkMsg{chunk: chunk})
				}
				return
			}
			sendChunk(ctx, out, chunkMsg{err: asSourceError(err)})
			return
		}
		if row.IsEmpty() {
			continue
		}
		if chunk, ok := acc.Push(row); ok {
			if !sendChunk(ctx, out, chunkMsg{chunk: chunk}) {
				return
			}
		}
	}
}

func sendChunk(ctx context.Context, out chan<- chunkMsg, msg chunkMsg) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// asSourceError wraps a streaming error as a SourceReadError unless it is
// already one, or is plain cancellation.
func asSourceError(err error) error {
	var srcErr *SourceReadError
	if errors.As(err, &srcErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &SourceReadError{Err: err}
}

// failingPositions collects the row positions named by a chunk's failures.
func failingPositions(failures []Failure) map[int]bool {
	set := make(map[int]bool, len(failures))
	for _, f := range failures {
		set[f.Row] = true
	}
	return set
}

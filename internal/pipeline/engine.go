// Package pipeline schedules analysis stages and streams their results.
//
// Stages run strictly sequentially in declared order. A failing or timed-out
// stage is replaced by its fallback payload and the run continues; only
// unreadable input aborts a run. Each stage's chunks are emitted the moment
// the stage completes, and the engine closes every run with exactly one
// final chunk.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tablescope/tablescope/internal/logger"
)

// Engine executes a fixed stage list for one run at a time. Engines are
// stateless across runs; concurrent runs may share one Engine.
type Engine struct {
	stages  []Stage
	timeout time.Duration
	log     *logger.Logger
}

// NewEngine validates the stage list: names unique, every dependency
// declared by an earlier stage.
func NewEngine(stages []Stage, defaultTimeout time.Duration, log *logger.Logger) (*Engine, error) {
	if len(stages) == 0 {
		return nil, errors.New("no stages defined")
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	seen := map[string]struct{}{}
	for _, st := range stages {
		if st.Name == "" {
			return nil, errors.New("stage with empty name")
		}
		if _, dup := seen[st.Name]; dup {
			return nil, errors.Newf("duplicate stage %q", st.Name)
		}
		for _, dep := range st.Dependencies {
			if _, ok := seen[dep]; !ok {
				return nil, errors.Newf("stage %q depends on %q which does not run before it", st.Name, dep)
			}
		}
		seen[st.Name] = struct{}{}
	}
	return &Engine{stages: stages, timeout: defaultTimeout, log: log}, nil
}

// Run executes all stages, emitting chunks as they become available. The
// final chunk is always emitted unless the run is cancelled between stages.
func (e *Engine) Run(ctx context.Context, pc *Context, emit Emitter) error {
	if emit == nil {
		emit = func(Chunk) {}
	}
	log := e.log.WithRun(pc.RunID)

	for _, st := range e.stages {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "run cancelled")
		}
		res := e.runStage(ctx, st, pc, log)
		pc.record(res)

		if st.Chunks != nil {
			for _, ch := range st.Chunks(res, pc) {
				ch.Stage = st.Name
				ch.Final = false
				emit(ch)
			}
		}
	}

	emit(Chunk{
		Kind:    ChunkText,
		Payload: fmt.Sprintf("analysis complete: %d stages run", len(e.stages)),
		Final:   true,
	})
	return nil
}

// runStage invokes one stage under its timeout. Panics, errors, and expiry
// all yield a failed result carrying the fallback payload.
func (e *Engine) runStage(ctx context.Context, st Stage, pc *Context, log *logger.Logger) *StageResult {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		payload any
		status  Status
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Newf("stage panic: %v", r)}
			}
		}()
		payload, status, err := st.Run(sctx, pc)
		done <- outcome{payload: payload, status: status, err: err}
	}()

	slog := log.WithStage(st.Name)
	started := time.Now()
	var o outcome
	select {
	case o = <-done:
	case <-sctx.Done():
		o = outcome{err: errors.Wrapf(sctx.Err(), "stage %q timed out after %s", st.Name, timeout)}
	}

	if o.err != nil {
		slog.Warnw("stage failed, using fallback", "error", o.err, "elapsed", time.Since(started))
		res := &StageResult{Stage: st.Name, Status: StatusFailed, ErrDetail: o.err.Error()}
		if st.Fallback != nil {
			res.Payload = st.Fallback()
		}
		return res
	}
	status := o.status
	if status == "" {
		status = StatusOK
	}
	slog.Debugw("stage complete", "status", status, "elapsed", time.Since(started))
	return &StageResult{Stage: st.Name, Status: status, Payload: o.payload}
}

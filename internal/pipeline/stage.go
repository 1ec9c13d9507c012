package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/tablescope/tablescope/internal/source"
)

// Status is the outcome class of a stage.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// StageResult is the immutable record of one stage's completion.
type StageResult struct {
	Stage     string `json:"stage_name"`
	Status    Status `json:"status"`
	Payload   any    `json:"payload"`
	ErrDetail string `json:"error_detail,omitempty"`
}

// Context carries run-wide inputs and accumulates StageResults. Append-only.
// A timed-out stage's goroutine may still be reading while the run records
// later results, so access goes through the mutex.
type Context struct {
	RunID string
	Table *source.Table
	Query string

	mu      sync.RWMutex
	results map[string]*StageResult
	order   []string
}

// NewContext builds a run context for a loaded table.
func NewContext(runID string, tbl *source.Table, query string) *Context {
	return &Context{
		RunID:   runID,
		Table:   tbl,
		Query:   query,
		results: map[string]*StageResult{},
	}
}

// Result returns the recorded result of a stage.
func (c *Context) Result(stage string) (*StageResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[stage]
	return r, ok
}

// Payload returns a completed stage's payload, or nil if absent.
func (c *Context) Payload(stage string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.results[stage]; ok {
		return r.Payload
	}
	return nil
}

// Completed returns stage names in completion order.
func (c *Context) Completed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Context) record(r *StageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.Stage] = r
	c.order = append(c.order, r.Stage)
}

// RunFunc executes a stage's work. Returning an error marks the stage
// failed; a degraded status reports partial success.
type RunFunc func(ctx context.Context, pc *Context) (payload any, status Status, err error)

// Stage is one schedulable unit.
type Stage struct {
	Name         string
	Dependencies []string
	Run          RunFunc
	// Fallback builds the substitute payload used when Run fails or times
	// out. Nil means the fallback payload is nil.
	Fallback func() any
	// Chunks derives the stream output from a completed StageResult. The
	// engine clears any Final flag set here.
	Chunks func(res *StageResult, pc *Context) []Chunk
	// Timeout overrides the engine default when positive.
	Timeout time.Duration
}

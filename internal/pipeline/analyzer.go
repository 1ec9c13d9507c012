package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tablescope/tablescope/internal/ai"
	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/logger"
	"github.com/tablescope/tablescope/internal/source"
)

// Analyzer is the top-level entry: it loads a tabular file and drives the
// stage engine over it.
type Analyzer struct {
	cfg *config.Global
	log *logger.Logger
	svc Services
}

// NewAnalyzer wires an Analyzer from configuration. Without an API key the
// capability-backed stages degrade to local behavior.
func NewAnalyzer(cfg *config.Global, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.NewDefault()
	}
	svc := Services{Config: cfg, Log: log}
	if cfg.APIKey != "" {
		client := ai.NewClient(cfg.APIKey, ai.ClientOptions{
			HTTPTimeout:       time.Duration(cfg.HTTPTimeoutSec) * time.Second,
			RetryMaxAttempts:  cfg.RetryMaxAttempts,
			RetryBaseDelay:    time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
			RetryMaxDelay:     time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
			RequestsPerSecond: cfg.CapabilityRPS,
		})
		capability := &ai.Capability{
			Runtime:     client,
			Model:       cfg.DefaultModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}
		svc.Capability = capability
		svc.Renderer = capability
	}
	return &Analyzer{cfg: cfg, log: log, svc: svc}
}

// NewAnalyzerWithServices injects collaborators directly; used in tests.
func NewAnalyzerWithServices(svc Services) *Analyzer {
	if svc.Log == nil {
		svc.Log = logger.NewNop()
	}
	return &Analyzer{cfg: svc.Config, log: svc.Log, svc: svc}
}

// AnalyzeFile loads the file at path and runs the pipeline. Unreadable input
// is the one fatal case: an error chunk plus the final chunk are emitted and
// the error is returned.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path, query string, emit Emitter) error {
	tbl, err := source.Load(path)
	if err != nil {
		if emit != nil {
			emit(Chunk{Kind: ChunkText, Payload: "unable to read source: " + err.Error()})
			emit(Chunk{Kind: ChunkText, Payload: "analysis aborted", Final: true})
		}
		return errors.Wrap(err, "load source")
	}
	return a.AnalyzeTable(ctx, tbl, query, emit)
}

// AnalyzeTable runs the pipeline over an already-loaded table.
func (a *Analyzer) AnalyzeTable(ctx context.Context, tbl *source.Table, query string, emit Emitter) error {
	runID := uuid.NewString()
	a.log.WithRun(runID).Infow("starting analysis", "file", tbl.Name, "sheets", tbl.Sheets.Len())

	pc := NewContext(runID, tbl, query)
	engine, err := NewEngine(BuildStages(a.svc), a.cfg.Pipeline.StageTimeout(), a.log)
	if err != nil {
		return err
	}
	return engine.Run(ctx, pc, emit)
}

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/errors"

	"github.com/tablescope/tablescope/internal/source"
)

func emptyContext() *Context {
	return NewContext("run-test", source.NewTable("t"), "")
}

func okStage(name string, deps ...string) Stage {
	return Stage{
		Name:         name,
		Dependencies: deps,
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			return name + "-payload", StatusOK, nil
		},
		Chunks: func(res *StageResult, pc *Context) []Chunk {
			return []Chunk{{Kind: ChunkText, Payload: res.Stage}}
		},
	}
}

func collectChunks() (*[]Chunk, Emitter) {
	var chunks []Chunk
	return &chunks, func(c Chunk) { chunks = append(chunks, c) }
}

func TestEngineRunsInOrderWithOneFinalChunk(t *testing.T) {
	e, err := NewEngine([]Stage{okStage("a"), okStage("b", "a"), okStage("c", "a", "b")}, time.Second, nil)
	require.NoError(t, err)

	pc := emptyContext()
	chunks, emit := collectChunks()
	require.NoError(t, e.Run(context.Background(), pc, emit))

	assert.Equal(t, []string{"a", "b", "c"}, pc.Completed())

	finals := 0
	for _, c := range *chunks {
		if c.Final {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
	assert.True(t, (*chunks)[len(*chunks)-1].Final, "final chunk must be last")
	assert.Equal(t, "a", (*chunks)[0].Payload)
}

func TestEngineStageFailureUsesFallbackAndContinues(t *testing.T) {
	failing := Stage{
		Name: "broken",
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			return nil, "", errors.New("boom")
		},
		Fallback: func() any { return "fallback-payload" },
	}
	downstream := okStage("after", "broken")

	e, err := NewEngine([]Stage{failing, downstream}, time.Second, nil)
	require.NoError(t, err)
	pc := emptyContext()
	require.NoError(t, e.Run(context.Background(), pc, nil))

	res, ok := pc.Result("broken")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "fallback-payload", res.Payload)
	assert.Contains(t, res.ErrDetail, "boom")

	after, ok := pc.Result("after")
	require.True(t, ok)
	assert.Equal(t, StatusOK, after.Status)
}

func TestEngineStageTimeout(t *testing.T) {
	slow := Stage{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			select {
			case <-time.After(time.Second):
				return "done", StatusOK, nil
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		},
		Fallback: func() any { return "timed-out-fallback" },
	}
	e, err := NewEngine([]Stage{slow, okStage("after", "slow")}, time.Second, nil)
	require.NoError(t, err)

	pc := emptyContext()
	require.NoError(t, e.Run(context.Background(), pc, nil))

	res, _ := pc.Result("slow")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "timed-out-fallback", res.Payload)

	after, ok := pc.Result("after")
	require.True(t, ok)
	assert.Equal(t, StatusOK, after.Status)
}

// Exercises the window where a timed-out stage's goroutine keeps reading the
// run context while the engine records later results. Run with -race.
func TestEngineContextSafeAfterTimedOutStage(t *testing.T) {
	done := make(chan struct{})
	straggler := Stage{
		Name:         "straggler",
		Dependencies: []string{"a"},
		Timeout:      10 * time.Millisecond,
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			defer close(done)
			deadline := time.After(150 * time.Millisecond)
			for {
				select {
				case <-deadline:
					return "late", StatusOK, nil
				default:
					_ = pc.Payload("a")
					_, _ = pc.Result("a")
				}
			}
		},
	}
	e, err := NewEngine([]Stage{okStage("a"), straggler, okStage("after", "a")}, time.Second, nil)
	require.NoError(t, err)

	pc := emptyContext()
	require.NoError(t, e.Run(context.Background(), pc, nil))
	<-done

	res, _ := pc.Result("straggler")
	assert.Equal(t, StatusFailed, res.Status)
	after, ok := pc.Result("after")
	require.True(t, ok)
	assert.Equal(t, StatusOK, after.Status)
}

func TestEngineStagePanicIsCaught(t *testing.T) {
	panicky := Stage{
		Name: "panicky",
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			panic("unexpected")
		},
	}
	e, err := NewEngine([]Stage{panicky}, time.Second, nil)
	require.NoError(t, err)

	pc := emptyContext()
	require.NoError(t, e.Run(context.Background(), pc, nil))
	res, _ := pc.Result("panicky")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.ErrDetail, "panic")
}

func TestEngineValidatesDependencies(t *testing.T) {
	_, err := NewEngine([]Stage{okStage("a", "missing")}, time.Second, nil)
	assert.Error(t, err)

	_, err = NewEngine([]Stage{okStage("b", "a"), okStage("a")}, time.Second, nil)
	assert.Error(t, err, "dependency must run earlier in the list")

	_, err = NewEngine([]Stage{okStage("a"), okStage("a")}, time.Second, nil)
	assert.Error(t, err, "duplicate names rejected")

	_, err = NewEngine(nil, time.Second, nil)
	assert.Error(t, err)
}

func TestEngineClearsFinalFlagOnStageChunks(t *testing.T) {
	sneaky := Stage{
		Name: "sneaky",
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			return nil, StatusOK, nil
		},
		Chunks: func(res *StageResult, pc *Context) []Chunk {
			return []Chunk{{Kind: ChunkText, Payload: "x", Final: true}}
		},
	}
	e, err := NewEngine([]Stage{sneaky}, time.Second, nil)
	require.NoError(t, err)

	chunks, emit := collectChunks()
	require.NoError(t, e.Run(context.Background(), emptyContext(), emit))
	require.Len(t, *chunks, 2)
	assert.False(t, (*chunks)[0].Final)
	assert.True(t, (*chunks)[1].Final)
}

func TestEngineCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := Stage{
		Name: "first",
		Run: func(ctx context.Context, pc *Context) (any, Status, error) {
			cancel()
			return nil, StatusOK, nil
		},
	}
	e, err := NewEngine([]Stage{first, okStage("second", "first")}, time.Second, nil)
	require.NoError(t, err)

	pc := emptyContext()
	chunks, emit := collectChunks()
	require.Error(t, e.Run(ctx, pc, emit))

	_, ran := pc.Result("second")
	assert.False(t, ran)
	for _, c := range *chunks {
		assert.False(t, c.Final)
	}
}

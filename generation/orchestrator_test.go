package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/questanalytics/questa/ai/mock"
	"github.com/questanalytics/questa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextResults() []*core.RetrievalResult {
	return []*core.RetrievalResult{
		{
			Chunk: &core.IndexedChunk{
				Id:   42,
				Text: "Gradient descent converges for convex objectives.",
				Page: 3,
				Metadata: map[string]string{
					"source": "opt.pdf",
					"title":  "Convex Optimization Notes",
				},
			},
			Rank: 1,
		},
	}
}

func newOrchestrator(t *testing.T, primary, fallback *mock.MockChatModel, opts ...Option) *Orchestrator {
	t.Helper()
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockOCR(), primary, fallback)
	opts = append([]Option{WithProbeInterval(0)}, opts...)
	orch, err := NewOrchestrator(provider, opts...)
	require.NoError(t, err)
	return orch
}

func TestNewOrchestrator(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		_, err := NewOrchestrator(nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})

	t.Run("empty model chain", func(t *testing.T) {
		provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockOCR())
		_, err := NewOrchestrator(provider)
		assert.Equal(t, ErrNoModelsConfigured, err)
	})

	t.Run("all models start healthy", func(t *testing.T) {
		orch := newOrchestrator(t, mock.NewMockChatModel("primary"), mock.NewMockChatModel("fallback"))
		health := orch.ModelHealth()
		require.Len(t, health, 2)
		assert.Equal(t, "primary", health[0].ModelID)
		assert.Equal(t, core.StateHealthy, health[0].State)
		assert.Equal(t, "fallback", health[1].ModelID)
		assert.Equal(t, core.StateHealthy, health[1].State)
	})
}

func TestGenerate_PrimaryServes(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = func(_ context.Context, system, prompt string) (string, error) {
		assert.Contains(t, prompt, "[Doc 1] Convex Optimization Notes (page 3)")
		assert.Contains(t, prompt, "Question: what converges?")
		return "Gradient descent converges [Doc 1].", nil
	}
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback)

	answer, err := orch.Generate(context.Background(), "what converges?", contextResults())
	require.NoError(t, err)
	assert.Equal(t, "primary", answer.ModelID)
	assert.Equal(t, "Gradient descent converges [Doc 1].", answer.Text)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, core.ID(42), answer.Citations[0].ChunkId)
	assert.Equal(t, "opt.pdf", answer.Citations[0].Source)
	assert.Equal(t, 3, answer.Citations[0].Page)
	assert.Zero(t, fallback.ChatCalls())
}

func TestGenerate_FailoverWithinRequest(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("connection refused")
	}
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback)

	answer, err := orch.Generate(context.Background(), "q", contextResults())
	require.NoError(t, err, "fallback must absorb the primary failure")
	assert.Equal(t, "fallback", answer.ModelID)

	health := orch.ModelHealth()
	assert.Equal(t, 1, health[0].ConsecutiveFailures)
	assert.Equal(t, core.StateHealthy, health[0].State, "one failure is below the threshold")
}

func TestGenerate_ThresholdMarksUnreachable(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("connection refused")
	}
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback, WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		answer, err := orch.Generate(ctx, "q", nil)
		require.NoError(t, err)
		assert.Equal(t, "fallback", answer.ModelID)
	}

	health := orch.ModelHealth()
	assert.Equal(t, core.StateUnreachable, health[0].State)
	assert.Equal(t, 3, health[0].ConsecutiveFailures)

	// The next request skips the unreachable primary entirely.
	calls := primary.ChatCalls()
	answer, err := orch.Generate(ctx, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", answer.ModelID)
	assert.Equal(t, calls, primary.ChatCalls())
}

func TestGenerate_AllModelsFailed(t *testing.T) {
	fail := func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("boom")
	}
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = fail
	fallback := mock.NewMockChatModel("fallback")
	fallback.ChatFunc = fail

	orch := newOrchestrator(t, primary, fallback)

	_, err := orch.Generate(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrAllModelsFailed)
}

func TestGenerate_AllUnreachable(t *testing.T) {
	fail := func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("boom")
	}
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = fail
	fallback := mock.NewMockChatModel("fallback")
	fallback.ChatFunc = fail

	orch := newOrchestrator(t, primary, fallback, WithFailureThreshold(1))
	ctx := context.Background()

	_, err := orch.Generate(ctx, "q", nil)
	require.ErrorIs(t, err, ErrAllModelsFailed)

	// Both marked unreachable; no model is even attempted now.
	calls := primary.ChatCalls() + fallback.ChatCalls()
	_, err = orch.Generate(ctx, "q", nil)
	assert.ErrorIs(t, err, ErrAllModelsFailed)
	assert.Equal(t, calls, primary.ChatCalls()+fallback.ChatCalls())
}

func TestGenerate_SlowSuccessMarksDegraded(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	primary.Latency = 20 * time.Millisecond
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback, WithDegradedLatency(time.Millisecond))

	answer, err := orch.Generate(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", answer.ModelID, "degraded is still usable")

	health := orch.ModelHealth()
	assert.Equal(t, core.StateDegraded, health[0].State)
	assert.Zero(t, health[0].ConsecutiveFailures)
	assert.GreaterOrEqual(t, health[0].LastLatency, 20*time.Millisecond)
}

func TestGenerate_CancellationDoesNotTouchHealth(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	primary.Latency = 50 * time.Millisecond
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Generate(ctx, "q", nil)
	require.ErrorIs(t, err, context.Canceled)

	health := orch.ModelHealth()
	assert.Zero(t, health[0].ConsecutiveFailures, "caller cancellation is not a model failure")
	assert.Equal(t, core.StateHealthy, health[0].State)
}

func TestProbeOnce_RecoversUnreachableModel(t *testing.T) {
	failing := true
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = func(_ context.Context, _, _ string) (string, error) {
		if failing {
			return "", errors.New("down")
		}
		return "recovered answer", nil
	}
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback, WithFailureThreshold(1))
	ctx := context.Background()

	_, err := orch.Generate(ctx, "q", nil)
	require.NoError(t, err)
	require.Equal(t, core.StateUnreachable, orch.ModelHealth()[0].State)

	// Model comes back; the probe notices without user traffic.
	failing = false
	orch.ProbeOnce(ctx)
	assert.Equal(t, core.StateHealthy, orch.ModelHealth()[0].State)

	answer, err := orch.Generate(ctx, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", answer.ModelID)
}

func TestProbeOnce_FailedProbeCountsAsFailure(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	primary.ChatFunc = func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("down")
	}
	primary.ProbeFunc = func(_ context.Context) error {
		return errors.New("still down")
	}
	fallback := mock.NewMockChatModel("fallback")

	orch := newOrchestrator(t, primary, fallback, WithFailureThreshold(1))
	ctx := context.Background()

	_, err := orch.Generate(ctx, "q", nil)
	require.NoError(t, err)

	orch.ProbeOnce(ctx)
	health := orch.ModelHealth()
	assert.Equal(t, core.StateUnreachable, health[0].State)
	assert.Equal(t, 2, health[0].ConsecutiveFailures)
}

func TestStartStopProbeLoop(t *testing.T) {
	primary := mock.NewMockChatModel("primary")
	fallback := mock.NewMockChatModel("fallback")

	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockOCR(), primary, fallback)
	orch, err := NewOrchestrator(provider, WithProbeInterval(5*time.Millisecond), WithFailureThreshold(1))
	require.NoError(t, err)

	// Healthy models are not probed, so force one down first.
	orch.health.recordFailure("primary")
	require.Equal(t, core.StateUnreachable, orch.ModelHealth()[0].State)

	orch.Start()
	defer orch.Stop()

	deadline := time.After(time.Second)
	for orch.ModelHealth()[0].State != core.StateHealthy {
		select {
		case <-deadline:
			t.Fatal("probe loop never recovered the model")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Greater(t, primary.ProbeCalls(), 0)
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt := buildPrompt("what now?", nil)
	assert.Contains(t, prompt, "Question: what now?")
}

func TestHealthTracker_SuccessResetsFailures(t *testing.T) {
	tracker := newHealthTracker([]string{"m"}, 3, time.Second)

	tracker.recordFailure("m")
	tracker.recordFailure("m")
	require.Equal(t, 2, tracker.snapshot()[0].ConsecutiveFailures)
	require.Equal(t, core.StateHealthy, tracker.snapshot()[0].State)

	tracker.recordSuccess("m", 10*time.Millisecond)
	health := tracker.snapshot()[0]
	assert.Zero(t, health.ConsecutiveFailures)
	assert.Equal(t, core.StateHealthy, health.State)
}

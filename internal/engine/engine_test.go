package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/agentforge/internal/checkpoint"
	"github.com/fyrsmithlabs/agentforge/internal/events"
	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
	"github.com/fyrsmithlabs/agentforge/internal/tools"
)

type testHarness struct {
	engine   *Engine
	recorder *events.Recorder
	store    *checkpoint.MemoryStore
	client   *ghostfolio.MockClient
}

func newTestHarness(t *testing.T, opts ...func(*Options)) *testHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry, err := tools.NewDefaultRegistry(logger)
	require.NoError(t, err)

	h := &testHarness{
		recorder: events.NewRecorder(),
		store:    checkpoint.NewMemoryStore(logger),
		client:   ghostfolio.NewMockClient(),
	}
	options := Options{
		Registry: registry,
		Client:   h.client,
		Store:    h.store,
		Emitter:  h.recorder,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&options)
	}
	h.engine, err = New(options)
	require.NoError(t, err)
	return h
}

func kindCount(kinds []events.Kind, kind events.Kind) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func TestTurn_SingleToolQuery(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Response)

	assert.NotEmpty(t, result.ConversationID)
	assert.NotEmpty(t, result.TurnID)
	assert.Equal(t, CategoryAnalysis, result.Response.Category)
	assert.Equal(t, "analyze_portfolio_performance", result.Response.Tool)
	assert.Contains(t, result.Response.Message, "Portfolio net performance is")
	assert.Equal(t, 1.0, result.Response.Confidence)
	require.Len(t, result.History, 1)
	assert.True(t, result.History[0].Success)
	assert.NotEmpty(t, result.Response.Citations)
	assert.Equal(t, "[1]", result.Response.Citations[0].Label)

	kinds := h.recorder.Kinds()
	require.GreaterOrEqual(t, len(kinds), 4)
	assert.Equal(t, events.KindThinking, kinds[0])
	assert.Equal(t, events.KindToolCall, kinds[1])
	assert.Equal(t, events.KindToolResult, kinds[2])
	assert.Equal(t, events.KindDone, kinds[len(kinds)-1])
	assert.Positive(t, kindCount(kinds, events.KindToken))
	assert.Zero(t, kindCount(kinds, events.KindError))
}

func TestTurn_EmptyMessageRejected(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.engine.Turn(context.Background(), TurnRequest{})
	assert.Error(t, err)
	assert.Empty(t, h.recorder.Events())
}

func TestTurn_AmbiguousQueryClarifies(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Turn(context.Background(), TurnRequest{Message: "hello there"})
	require.NoError(t, err)

	assert.Equal(t, CategoryClarification, result.Response.Category)
	assert.Contains(t, result.Response.Message, "Supported capabilities:")
	assert.NotEmpty(t, result.Response.Suggestions)
	assert.Equal(t, 0.0, result.Response.Confidence)
	assert.Empty(t, result.History)

	kinds := h.recorder.Kinds()
	assert.Zero(t, kindCount(kinds, events.KindToolCall))
	assert.Equal(t, events.KindDone, kinds[len(kinds)-1])
	assert.Zero(t, h.client.Calls("details"))
}

func TestTurn_MultiStepPlan(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "Run a full health check on my portfolio",
	})
	require.NoError(t, err)

	require.Len(t, result.History, 3)
	assert.Equal(t, "analyze_portfolio_performance", result.History[0].Tool)
	assert.Equal(t, "advise_asset_allocation", result.History[1].Tool)
	assert.Equal(t, "check_compliance", result.History[2].Tool)
	for _, record := range result.History {
		assert.True(t, record.Success, record.Tool)
	}

	assert.Equal(t, CategoryAnalysis, result.Response.Category)
	assert.Contains(t, result.Response.Message, "Combined analysis:")
	assert.Equal(t, "check_compliance", result.Response.Tool)
	assert.Equal(t, 1.0, result.Response.Confidence)
	assert.Equal(t, 3, kindCount(h.recorder.Kinds(), events.KindToolCall))
}

func TestTurn_FailedStepIsRetriedOnce(t *testing.T) {
	h := newTestHarness(t)
	h.client.DetailsErr = &ghostfolio.Error{Code: ghostfolio.CodeAPIError}

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)

	assert.Equal(t, CategoryError, result.Response.Category)
	assert.Equal(t, "API_ERROR", result.ErrorCode)
	assert.Contains(t, result.Response.Message, SafeMessage("API_ERROR"))
	require.Len(t, result.History, 2)

	kinds := h.recorder.Kinds()
	assert.Equal(t, 2, kindCount(kinds, events.KindToolCall))
	assert.Equal(t, events.KindError, kinds[len(kinds)-1])
	assert.Zero(t, kindCount(kinds, events.KindToken))
	assert.Zero(t, kindCount(kinds, events.KindDone))
}

// flakyDetailsClient fails the first PortfolioDetails call, then delegates.
type flakyDetailsClient struct {
	*ghostfolio.MockClient
	failures int
}

func (c *flakyDetailsClient) PortfolioDetails(ctx context.Context) (map[string]any, error) {
	if c.failures > 0 {
		c.failures--
		return nil, &ghostfolio.Error{Code: ghostfolio.CodeAPIError}
	}
	return c.MockClient.PortfolioDetails(ctx)
}

func TestTurn_RetriedSuccessLowersConfidence(t *testing.T) {
	flaky := &flakyDetailsClient{MockClient: ghostfolio.NewMockClient(), failures: 1}
	h := newTestHarness(t, func(o *Options) { o.Client = flaky })

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Response)

	// The failed attempt and the successful retry both land in history,
	// and burning a retry costs confidence even when the turn recovers.
	require.Len(t, result.History, 2)
	assert.False(t, result.History[0].Success)
	assert.True(t, result.History[1].Success)
	assert.Equal(t, CategoryAnalysis, result.Response.Category)
	assert.InDelta(t, 0.7, result.Response.Confidence, 0.001)

	kinds := h.recorder.Kinds()
	assert.Equal(t, 2, kindCount(kinds, events.KindToolCall))
	assert.Equal(t, events.KindDone, kinds[len(kinds)-1])
}

func TestTurn_PredictionMarketsQuery(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "What are the trending prediction markets in crypto?",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Response)

	assert.Equal(t, CategoryAnalysis, result.Response.Category)
	assert.Equal(t, "explore_prediction_markets", result.Response.Tool)
	assert.Contains(t, result.Response.Message, "by 24h volume")
	require.Len(t, result.History, 1)
	assert.True(t, result.History[0].Success)
	assert.NotEmpty(t, result.Response.Citations)
	assert.Equal(t, 1, h.client.Calls("markets"))
	assert.Equal(t, events.KindDone, h.recorder.Kinds()[len(h.recorder.Kinds())-1])
}

func TestTurn_PlanContinuesPastFailedStep(t *testing.T) {
	h := newTestHarness(t)
	h.client.OrdersErr = &ghostfolio.Error{Code: ghostfolio.CodeAPITimeout}

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "I want a complete review",
	})
	require.NoError(t, err)

	// Performance succeeds, transactions fails twice, and the step cap
	// leaves no room for the tax step. Partial success still synthesizes.
	require.Len(t, result.History, 3)
	assert.True(t, result.History[0].Success)
	assert.False(t, result.History[1].Success)
	assert.False(t, result.History[2].Success)

	assert.Equal(t, CategoryAnalysis, result.Response.Category)
	assert.Equal(t, "analyze_portfolio_performance", result.Response.Tool)
	assert.Equal(t, events.KindDone, h.recorder.Kinds()[len(h.recorder.Kinds())-1])
}

func TestTurn_PlanExhaustsStepsWithoutSuccess(t *testing.T) {
	h := newTestHarness(t)
	h.client.DetailsErr = &ghostfolio.Error{Code: ghostfolio.CodeAPIError}

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "give me a portfolio overview",
	})
	require.NoError(t, err)

	// Performance fails, retries, then the allocation step fails too.
	require.Len(t, result.History, 3)
	assert.Equal(t, "advise_asset_allocation", result.History[2].Tool)
	assert.Equal(t, CategoryError, result.Response.Category)
	assert.Equal(t, 3, kindCount(h.recorder.Kinds(), events.KindToolCall))
}

func TestTurn_FollowUpRecoversPriorRoute(t *testing.T) {
	h := newTestHarness(t)

	first, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)

	second, err := h.engine.Turn(context.Background(), TurnRequest{
		ConversationID: first.ConversationID,
		Message:        "Based on that, what should I do next?",
	})
	require.NoError(t, err)

	assert.Equal(t, CategoryAnalysis, second.Response.Category)
	assert.Equal(t, "analyze_portfolio_performance", second.Response.Tool)
}

func TestTurn_CancelledContext(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.engine.Turn(ctx, TurnRequest{Message: "How is my portfolio doing ytd?"})
	require.NoError(t, err)

	assert.Equal(t, CategoryError, result.Response.Category)
	assert.Equal(t, CodeCancelled, result.ErrorCode)
	assert.Zero(t, h.client.Calls("details"))

	kinds := h.recorder.Kinds()
	assert.Equal(t, events.KindError, kinds[len(kinds)-1])
	assert.Zero(t, kindCount(kinds, events.KindToken))
}

func TestTurn_PersistsThread(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)

	thread, err := h.store.Load(context.Background(), result.ConversationID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, checkpoint.RoleUser, thread.Messages[0].Role)
	assert.Equal(t, checkpoint.RoleAssistant, thread.Messages[1].Role)
	assert.Equal(t, result.Response.Message, thread.Messages[1].Content)
	require.Len(t, thread.ToolCallHistory, 1)
	assert.Equal(t, "analyze_portfolio_performance", thread.ToolCallHistory[0].Tool)
	assert.True(t, thread.ToolCallHistory[0].Success)
}

func TestTurn_ThreadPersistsOnError(t *testing.T) {
	h := newTestHarness(t)
	h.client.DetailsErr = &ghostfolio.Error{Code: ghostfolio.CodeAuthFailed}

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)
	assert.Equal(t, "AUTH_FAILED", result.ErrorCode)

	thread, err := h.store.Load(context.Background(), result.ConversationID)
	require.NoError(t, err)
	require.Len(t, thread.ToolCallHistory, 2)
	assert.False(t, thread.ToolCallHistory[0].Success)
	assert.Equal(t, "AUTH_FAILED", thread.ToolCallHistory[0].Error)
}

type stubRouter struct {
	decision Decision
	err      error
}

func (s stubRouter) Route(ctx context.Context, query string, messages []checkpoint.Message) (Decision, error) {
	return s.decision, s.err
}

func TestTurn_RouterFailureFallsBackToKeywords(t *testing.T) {
	h := newTestHarness(t, func(o *Options) {
		o.Router = stubRouter{err: errors.New("model unavailable")}
	})

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "Categorize my transactions",
	})
	require.NoError(t, err)
	assert.Equal(t, CategoryAnalysis, result.Response.Category)
	assert.Equal(t, "categorize_transactions", result.Response.Tool)
}

func TestTurn_RouterArgsAreSanitized(t *testing.T) {
	h := newTestHarness(t, func(o *Options) {
		o.Router = stubRouter{decision: Decision{
			Route: "portfolio",
			Tool:  "analyze_portfolio_performance",
			Args:  map[string]any{"time_period": "6m"},
		}}
	})

	result, err := h.engine.Turn(context.Background(), TurnRequest{Message: "whatever"})
	require.NoError(t, err)
	require.Len(t, result.History, 1)
	assert.Equal(t, "ytd", result.History[0].Args["time_period"])
	assert.True(t, result.History[0].Success)
}

type stubSynth struct {
	text string
	err  error
}

func (s stubSynth) Synthesize(ctx context.Context, query, tool string, data map[string]any) (string, error) {
	return s.text, s.err
}

func TestTurn_SynthesizerShapesMessage(t *testing.T) {
	h := newTestHarness(t, func(o *Options) {
		o.Synthesizer = stubSynth{text: "Your portfolio gained ground this year."}
	})

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your portfolio gained ground this year.", result.Response.Message)
}

func TestTurn_SynthesizerFailureFallsBackToSummary(t *testing.T) {
	h := newTestHarness(t, func(o *Options) {
		o.Synthesizer = stubSynth{err: errors.New("model unavailable")}
	})

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Response.Message, "Portfolio net performance is")
}

func TestTurn_TokensReassembleMessage(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Turn(context.Background(), TurnRequest{
		Message: "How is my portfolio doing ytd?",
	})
	require.NoError(t, err)

	var rebuilt strings.Builder
	for _, event := range h.recorder.Events() {
		if event.Kind != events.KindToken {
			continue
		}
		payload, ok := event.Payload.(events.TokenPayload)
		require.True(t, ok)
		assert.LessOrEqual(t, len([]rune(payload.Content)), 64)
		rebuilt.WriteString(payload.Content)
	}
	assert.Equal(t, result.Response.Message, rebuilt.String())
}

func TestChunkMessage(t *testing.T) {
	assert.Nil(t, chunkMessage("", 64))
	assert.Equal(t, []string{"abc"}, chunkMessage("abc", 64))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunkMessage("abcdefghij", 4))

	chunks := chunkMessage(strings.Repeat("é", 130), 64)
	require.Len(t, chunks, 3)
	assert.Equal(t, 64, len([]rune(chunks[0])))
	assert.Equal(t, 2, len([]rune(chunks[2])))
}

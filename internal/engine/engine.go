package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/checkpoint"
	"github.com/fyrsmithlabs/agentforge/internal/events"
	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
	"github.com/fyrsmithlabs/agentforge/internal/tools"
)

// Config bounds turn execution.
type Config struct {
	// MaxSteps caps tool executions per turn, retries included.
	MaxSteps int

	// MaxRetries is the number of immediate re-executions after a failed
	// step.
	MaxRetries int

	// StepTimeout bounds one tool execution.
	StepTimeout time.Duration

	// TokenChunkSize is the length of streamed message chunks.
	TokenChunkSize int
}

// DefaultConfig mirrors the daemon defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:       3,
		MaxRetries:     1,
		StepTimeout:    30 * time.Second,
		TokenChunkSize: 64,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaults.MaxSteps
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = defaults.StepTimeout
	}
	if c.TokenChunkSize <= 0 {
		c.TokenChunkSize = defaults.TokenChunkSize
	}
}

// Engine executes conversational turns. One engine serves all
// conversations; per-conversation serialization lives in the store.
type Engine struct {
	registry *tools.Registry
	client   ghostfolio.Client
	store    checkpoint.Store
	emitter  events.Emitter
	router   Router
	synth    Synthesizer
	cfg      Config
	logger   *zap.Logger
}

// Options carries the engine's collaborators. Router defaults to the
// keyword router; Synthesizer is optional and falls back to deterministic
// summaries.
type Options struct {
	Registry    *tools.Registry
	Client      ghostfolio.Client
	Store       checkpoint.Store
	Emitter     events.Emitter
	Router      Router
	Synthesizer Synthesizer
	Config      Config
	Logger      *zap.Logger
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	if opts.Client == nil {
		return nil, errors.New("engine: upstream client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: checkpoint store is required")
	}
	if opts.Emitter == nil {
		return nil, errors.New("engine: event emitter is required")
	}
	if opts.Router == nil {
		opts.Router = KeywordRouter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Config.applyDefaults()

	return &Engine{
		registry: opts.Registry,
		client:   opts.Client,
		store:    opts.Store,
		emitter:  opts.Emitter,
		router:   opts.Router,
		synth:    opts.Synthesizer,
		cfg:      opts.Config,
		logger:   opts.Logger,
	}, nil
}

// TurnRequest is one inbound user message.
type TurnRequest struct {
	// ConversationID scopes the thread. Empty starts a fresh conversation.
	ConversationID string

	// TurnID identifies this turn in event subjects. Callers that subscribe
	// before launching the turn set it; empty generates one.
	TurnID string

	// Message is the user's query. Must be non-empty.
	Message string

	// Client, when set, overrides the engine's upstream client for this
	// turn. Carries a caller's own bearer identity.
	Client ghostfolio.Client
}

// TurnResult is the completed turn, mirroring the terminal event.
type TurnResult struct {
	ConversationID string
	TurnID         string
	Response       *Response
	History        []Record
	ErrorCode      string
}

// Turn runs one full turn: route, execute, validate, orchestrate, and
// finish through exactly one terminal stage. Every transition emits an
// event; a terminal event is always the last one. The thread checkpoint is
// saved even when the turn fails or is cancelled.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.Message == "" {
		return nil, errors.New("engine: message is required")
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	e.store.Acquire(conversationID)
	defer e.store.Release(conversationID)

	thread, err := e.store.Load(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNotFound) {
			return nil, err
		}
		thread = &checkpoint.Thread{ConversationID: conversationID}
	}
	thread.Append(checkpoint.Message{Role: checkpoint.RoleUser, Content: req.Message})

	turnID := req.TurnID
	if turnID == "" {
		turnID = uuid.NewString()
	}
	st := &turnState{
		conversationID: conversationID,
		turnID:         turnID,
		query:          req.Message,
		messages:       thread.Messages,
	}
	client := e.client
	if req.Client != nil {
		client = req.Client
	}

	log := e.logger.With(
		zap.String("conversation_id", conversationID),
		zap.String("turn_id", st.turnID))

	e.emit(ctx, st, events.Event{
		Kind:    events.KindThinking,
		Payload: events.ThinkingPayload{Message: "Analyzing your request..."},
	})

	e.route(ctx, st, thread.ToolCallHistory)
	log.Debug("turn routed",
		zap.String("route", st.route),
		zap.String("tool", st.tool),
		zap.Int("plan_steps", len(st.plan)))

	if st.route == RouteClarify {
		st.final = clarifyResponse()
		st.final.Confidence = computeConfidence(st.history, st.stepCount+st.retryCount)
	} else {
		e.execute(ctx, st, client, log)
	}

	e.finish(ctx, st, thread)
	log.Info("turn finished",
		zap.String("category", st.final.Category),
		zap.Int("steps", st.stepCount),
		zap.String("error_code", st.errorCode))

	return &TurnResult{
		ConversationID: conversationID,
		TurnID:         st.turnID,
		Response:       st.final,
		History:        st.history,
		ErrorCode:      st.errorCode,
	}, nil
}

// route picks the first tool and the remaining plan. Composite phrases win
// over the router; clarify decisions get one recovery chance on follow-up
// queries.
func (e *Engine) route(ctx context.Context, st *turnState, priorCalls []checkpoint.ToolCall) {
	if plan := detectPlan(st.query); len(plan) > 0 {
		first := plan[0]
		st.route = first.Route
		st.tool = first.Tool
		st.args = first.Args
		st.plan = plan[1:]
		st.reasoning = "multi_step_plan"
		return
	}

	decision, err := e.router.Route(ctx, st.query, st.messages)
	if err != nil {
		e.logger.Warn("router failed, using keyword fallback", zap.Error(err))
		decision, _ = KeywordRouter{}.Route(ctx, st.query, st.messages)
	}
	decision = normalizeDecision(st.query, decision)

	if decision.Route == RouteClarify && isFollowUpQuery(st.query) {
		if recovered, ok := recoverFromHistory(st.query, priorCalls); ok {
			decision = recovered
		} else if recovered, ok := recoverFromMessages(st.query, st.messages); ok {
			decision = recovered
		}
	}

	st.route = decision.Route
	st.tool = decision.Tool
	st.args = decision.Args
	st.reasoning = decision.Reasoning
}

// execute runs the bounded step loop. Each iteration executes one tool,
// validates the result, and decides among retry, next plan step, synthesis,
// and error.
func (e *Engine) execute(ctx context.Context, st *turnState, client ghostfolio.Client, log *zap.Logger) {
	for {
		if err := ctx.Err(); err != nil {
			st.errorCode = CodeCancelled
			st.final = errorResponse(CodeCancelled, st.tool)
			st.final.Confidence = computeConfidence(st.history, st.stepCount+st.retryCount)
			return
		}

		e.emit(ctx, st, events.Event{
			Kind:    events.KindToolCall,
			Payload: events.ToolCallPayload{Tool: st.tool, Args: st.args},
		})

		stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
		result := e.registry.Invoke(stepCtx, client, st.tool, st.args)
		cancel()

		e.emit(ctx, st, events.Event{
			Kind:    events.KindToolResult,
			Payload: events.ToolResultPayload{Tool: st.tool, Success: result.Success},
		})

		st.history = append(st.history, Record{
			Route:   st.route,
			Tool:    st.tool,
			Args:    st.args,
			Success: result.Success,
			Error:   result.ErrorCode,
			Data:    result.Data,
		})

		code := validateResult(st.tool, &result)
		st.stepCount++

		if code == "" {
			if len(st.plan) > 0 && st.stepCount < e.cfg.MaxSteps {
				e.advancePlan(st)
				continue
			}
			e.synthesize(ctx, st)
			return
		}

		st.errorCode = code
		log.Debug("step failed",
			zap.String("tool", st.tool),
			zap.String("code", code),
			zap.Int("step", st.stepCount),
			zap.Int("retries", st.retryCount))

		if st.retryCount < e.cfg.MaxRetries && st.stepCount < e.cfg.MaxSteps {
			st.retryCount++
			continue
		}
		if len(st.plan) > 0 && st.stepCount < e.cfg.MaxSteps {
			e.advancePlan(st)
			continue
		}
		if anySuccess(st.history) {
			e.synthesize(ctx, st)
			return
		}
		st.final = errorResponse(code, st.tool)
		st.final.Confidence = computeConfidence(st.history, st.stepCount+st.retryCount)
		return
	}
}

func (e *Engine) advancePlan(st *turnState) {
	next := st.plan[0]
	st.plan = st.plan[1:]
	st.route = next.Route
	st.tool = next.Tool
	st.args = next.Args
}

func anySuccess(history []Record) bool {
	for _, record := range history {
		if record.Success {
			return true
		}
	}
	return false
}

// synthesize builds the analysis response from the execution history,
// preferring the LLM synthesizer for single-step turns and deterministic
// summaries otherwise.
func (e *Engine) synthesize(ctx context.Context, st *turnState) {
	last := lastSuccess(st.history)

	var message string
	if len(successes(st.history)) > 1 {
		message = buildCombinedSummary(st.history)
	} else if e.synth != nil && last != nil {
		text, err := e.synth.Synthesize(ctx, st.query, last.Tool, last.Data)
		if err != nil || text == "" {
			message = buildSummary(lastTool(st.history, last), lastData(last))
		} else {
			message = text
		}
	} else {
		message = buildSummary(lastTool(st.history, last), lastData(last))
	}

	var tool string
	var data map[string]any
	if last != nil {
		tool = last.Tool
		data = last.Data
	}

	st.final = &Response{
		Category:    CategoryAnalysis,
		Message:     message,
		Tool:        tool,
		Data:        data,
		Suggestions: []string{},
		Citations:   buildCitations(st.history),
		Confidence:  computeConfidence(st.history, st.stepCount+st.retryCount),
	}
}

func lastSuccess(history []Record) *Record {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Success {
			return &history[i]
		}
	}
	return nil
}

func successes(history []Record) []Record {
	var out []Record
	for _, record := range history {
		if record.Success {
			out = append(out, record)
		}
	}
	return out
}

func lastTool(history []Record, last *Record) string {
	if last != nil {
		return last.Tool
	}
	if len(history) > 0 {
		return history[len(history)-1].Tool
	}
	return ""
}

func lastData(last *Record) map[string]any {
	if last != nil {
		return last.Data
	}
	return nil
}

// finish emits the terminal event, streams message chunks for non-error
// responses, and checkpoints the thread.
func (e *Engine) finish(ctx context.Context, st *turnState, thread *checkpoint.Thread) {
	thread.Append(checkpoint.Message{Role: checkpoint.RoleAssistant, Content: st.final.Message})
	for _, record := range st.history {
		thread.ToolCallHistory = append(thread.ToolCallHistory, checkpoint.ToolCall{
			Tool:    record.Tool,
			Args:    record.Args,
			Success: record.Success,
			Error:   record.Error,
		})
	}
	// Save with a background-derived context so cancellation cannot lose
	// the transcript.
	if err := e.store.Save(context.WithoutCancel(ctx), thread); err != nil {
		e.logger.Error("checkpoint save failed",
			zap.String("conversation_id", st.conversationID), zap.Error(err))
	}

	if st.final.Category == CategoryError {
		e.emit(ctx, st, events.Event{
			Kind:    events.KindError,
			Payload: events.ErrorPayload{Code: st.errorCode, Message: st.final.Message},
		})
		return
	}

	for _, chunk := range chunkMessage(st.final.Message, e.cfg.TokenChunkSize) {
		e.emit(ctx, st, events.Event{
			Kind:    events.KindToken,
			Payload: events.TokenPayload{Content: chunk},
		})
	}
	e.emit(ctx, st, events.Event{
		Kind: events.KindDone,
		Payload: events.DonePayload{
			ThreadID:        st.conversationID,
			Response:        st.final,
			ToolCallHistory: st.history,
		},
	})
}

func chunkMessage(message string, size int) []string {
	runes := []rune(message)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// emit publishes one event. Emission failures are logged and swallowed:
// a broken subscriber must not abort the turn.
func (e *Engine) emit(ctx context.Context, st *turnState, event events.Event) {
	if err := e.emitter.Emit(ctx, st.conversationID, st.turnID, event); err != nil {
		e.logger.Warn("event emit failed",
			zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/checkpoint"
	"github.com/fyrsmithlabs/agentforge/internal/engine"
)

// contextMessages caps how much thread history rides along with a routing
// call.
const contextMessages = 6

// Router classifies queries with a chat model. The engine sanitizes every
// decision it returns, so malformed model output can degrade the answer but
// never widen the tool surface.
type Router struct {
	model  llms.Model
	logger *zap.Logger
}

// NewRouter builds a model-backed router, or an error when the config
// cannot produce a model.
func NewRouter(cfg Config, logger *zap.Logger) (*Router, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{model: model, logger: logger}, nil
}

var _ engine.Router = (*Router)(nil)

// Route asks the model for a strict-JSON decision.
func (r *Router) Route(ctx context.Context, query string, messages []checkpoint.Message) (engine.Decision, error) {
	resp, err := r.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, buildRoutingInput(query, messages)),
		},
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("llm: routing call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return engine.Decision{}, fmt.Errorf("llm: routing call returned no choices")
	}

	decision, err := parseDecision(resp.Choices[0].Content)
	if err != nil {
		r.logger.Warn("unparseable routing decision", zap.Error(err))
		return engine.Decision{}, err
	}
	return decision, nil
}

func buildRoutingInput(query string, messages []checkpoint.Message) string {
	var b strings.Builder
	b.WriteString(routingPrompt)
	b.WriteString("\n\nExamples:\n")
	for _, example := range routingExamples {
		fmt.Fprintf(&b, "User: %s\n{\"route\":%q,\"tool_name\":%q,\"tool_args\":%s}\n",
			example.user, example.route, example.toolName, example.toolArgs)
	}

	recent := messages
	if len(recent) > contextMessages {
		recent = recent[len(recent)-contextMessages:]
	}
	if len(recent) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, message := range recent {
			fmt.Fprintf(&b, "%s: %s\n", message.Role, message.Content)
		}
	}

	fmt.Fprintf(&b, "\nLatest user request: %s\n", query)
	return b.String()
}

// routeDecision is the wire shape the routing prompt demands.
type routeDecision struct {
	Route    string          `json:"route"`
	ToolName string          `json:"tool_name"`
	ToolArgs json.RawMessage `json:"tool_args"`
	Reason   string          `json:"reason"`
}

// parseDecision decodes the model's JSON, tolerating code fences and the
// string "null" for tool_name.
func parseDecision(raw string) (engine.Decision, error) {
	cleaned := stripCodeFence(raw)

	var decoded routeDecision
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return engine.Decision{}, fmt.Errorf("llm: decoding decision: %w", err)
	}

	tool := decoded.ToolName
	if tool == "null" {
		tool = ""
	}

	var args map[string]any
	if len(decoded.ToolArgs) > 0 && string(decoded.ToolArgs) != "null" {
		if err := json.Unmarshal(decoded.ToolArgs, &args); err != nil {
			args = nil
		}
	}

	return engine.Decision{
		Route:     strings.ToLower(strings.TrimSpace(decoded.Route)),
		Tool:      tool,
		Args:      args,
		Reasoning: decoded.Reason,
	}, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

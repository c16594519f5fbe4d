package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/engine"
)

// Synthesizer turns validated tool output into conversational prose with a
// chat model. The engine falls back to deterministic summaries on any error.
type Synthesizer struct {
	model       llms.Model
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewSynthesizer builds a model-backed synthesizer.
func NewSynthesizer(cfg Config, logger *zap.Logger) (*Synthesizer, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Synthesizer{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}, nil
}

var _ engine.Synthesizer = (*Synthesizer)(nil)

// Synthesize answers the query from the tool's data payload.
func (s *Synthesizer) Synthesize(ctx context.Context, query, tool string, data map[string]any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("llm: encoding tool output: %w", err)
	}

	var b strings.Builder
	b.WriteString(synthesisPrompt)
	fmt.Fprintf(&b, "\n\nUser question: %s\n", query)
	fmt.Fprintf(&b, "\nTool output (%s):\n%s\n", tool, payload)

	resp, err := s.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, b.String()),
		},
		llms.WithTemperature(s.temperature),
		llms.WithMaxTokens(s.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("llm: synthesis call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: synthesis call returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("llm: synthesis call returned empty text")
	}
	return text, nil
}

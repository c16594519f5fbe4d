// Package engine runs conversational turns through a fixed workflow graph:
// routing, tool execution, validation, orchestration, and one of three
// terminal stages (synthesis, clarification, error handling). The node
// topology never changes per request; only the path through it does.
package engine

import (
	"github.com/fyrsmithlabs/agentforge/internal/checkpoint"
)

// Pending action values drive the transitions between orchestration steps.
const (
	actionToolSelected = "tool_selected"
	actionAmbiguous    = "ambiguous_or_unsupported"
	actionValid        = "valid"
	actionInvalid      = "invalid_or_error"
	actionNextStep     = "next_step"
	actionRetry        = "retry"
)

// Response categories.
const (
	CategoryAnalysis      = "analysis"
	CategoryClarification = "clarification"
	CategoryError         = "error"
)

// Record is one executed tool invocation, kept immutable once appended.
type Record struct {
	Route   string         `json:"route"`
	Tool    string         `json:"tool_name"`
	Args    map[string]any `json:"tool_args,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Citation anchors one response claim to a tool result field.
type Citation struct {
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
	Field       string `json:"field"`
	Value       string `json:"value"`
}

// Response is the normalized final payload of a turn.
type Response struct {
	Category    string         `json:"category"`
	Message     string         `json:"message"`
	Tool        string         `json:"tool_name,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Suggestions []string       `json:"suggestions"`
	Citations   []Citation     `json:"citations"`
	Confidence  float64        `json:"confidence"`
}

// PlanStep is one queued tool invocation of a multi-step plan.
type PlanStep struct {
	Route string
	Tool  string
	Args  map[string]any
}

// turnState carries everything one turn accumulates while moving through
// the graph.
type turnState struct {
	conversationID string
	turnID         string
	query          string
	messages       []checkpoint.Message

	route     string
	tool      string
	args      map[string]any
	reasoning string

	plan       []PlanStep
	stepCount  int
	retryCount int

	history   []Record
	errorCode string
	final     *Response
}

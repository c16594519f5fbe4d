package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

// Func is a tool implementation. Arguments arrive already validated against
// the tool's schema.
type Func func(ctx context.Context, client ghostfolio.Client, args Args) Result

// Definition binds a tool name to its schema and implementation. Route is the
// intent label the router emits for this tool.
type Definition struct {
	Name        string
	Route       string
	Description string
	Schema      Schema
	Func        Func
}

// Registry holds the tool set an engine can invoke. Registration happens at
// startup; lookups afterwards are read-only and need no locking.
type Registry struct {
	byName map[string]Definition
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{byName: make(map[string]Definition), logger: logger}
}

// Register adds a tool definition. Duplicate names and nil implementations
// are programmer errors and fail immediately.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tools: definition has no name")
	}
	if def.Func == nil {
		return fmt.Errorf("tools: %s has no implementation", def.Name)
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("tools: %s is already registered", def.Name)
	}
	r.byName[def.Name] = def
	r.logger.Debug("tool registered", zap.String("tool", def.Name), zap.String("route", def.Route))
	return nil
}

// Get returns the named definition.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.byName))
	for _, def := range r.byName {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Routes maps router intent labels to tool names.
func (r *Registry) Routes() map[string]string {
	out := make(map[string]string, len(r.byName))
	for _, def := range r.byName {
		if def.Route != "" {
			out[def.Route] = def.Name
		}
	}
	return out
}

// Invoke validates raw arguments against the tool's schema and runs the tool.
// A panic inside a tool is contained and surfaces as a COMPUTE_ERROR result,
// never as a crashed turn.
func (r *Registry) Invoke(ctx context.Context, client ghostfolio.Client, name string, raw map[string]any) (result Result) {
	def, ok := r.byName[name]
	if !ok {
		return Fail(CodeUnknownTool, map[string]any{"tool": name})
	}

	args, code, err := def.Schema.Validate(raw)
	if err != nil {
		r.logger.Warn("tool argument rejected",
			zap.String("tool", name), zap.String("code", code), zap.Error(err))
		return Fail(code, map[string]any{"tool": name, "detail": err.Error()})
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				zap.String("tool", name),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			result = Fail(CodeComputeError, map[string]any{"tool": name})
		}
	}()

	return def.Func(ctx, client, args)
}

// NewDefaultRegistry registers the full portfolio tool set.
func NewDefaultRegistry(logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	defs := []Definition{
		PerformanceTool(),
		TransactionsTool(),
		TaxTool(),
		AllocationTool(),
		ComplianceTool(),
		MarketDataTool(),
		PredictionMarketsTool(),
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/repositories"
)

// Func is the handler signature for one tool. Args arrive as the raw JSON
// argument object; the result must be JSON-serializable.
type Func func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Registry is the dispatch table from tool name to handler. Dispatch never
// fails hard: unknown tools and handler errors both produce a soft result so
// one bad call cannot abort a turn.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	funcs  map[string]Func
	decls  map[string]repositories.ToolDeclaration
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		funcs:  make(map[string]Func),
		decls:  make(map[string]repositories.ToolDeclaration),
		logger: logger,
	}
}

// Register adds one tool under its declared name.
func (r *Registry) Register(decl repositories.ToolDeclaration, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if decl.Name == "" {
		return fmt.Errorf("tool declaration has no name")
	}
	if _, exists := r.funcs[decl.Name]; exists {
		return fmt.Errorf("tool %s already registered", decl.Name)
	}
	r.order = append(r.order, decl.Name)
	r.funcs[decl.Name] = fn
	r.decls[decl.Name] = decl
	return nil
}

// Declarations returns every registered tool in registration order, for
// advertising to the model at connect time.
func (r *Registry) Declarations() []repositories.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repositories.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.decls[name])
	}
	return out
}

// Dispatch runs one call and always returns a result carrying the call's id
// and name. Unknown names and handler failures resolve to a soft payload.
func (r *Registry) Dispatch(ctx context.Context, call repositories.ToolCall) repositories.ToolResult {
	r.mu.RLock()
	fn, known := r.funcs[call.Name]
	r.mu.RUnlock()

	res := repositories.ToolResult{ID: call.ID, Name: call.Name}
	if !known {
		if r.logger != nil {
			r.logger.Warn("unknown tool call", zap.String("tool", call.Name))
		}
		res.Payload = softPayload("Tool not found.")
		return res
	}

	payload, err := fn(ctx, call.Args)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("tool handler failed",
				zap.String("tool", call.Name), zap.Error(err))
		}
		res.Payload = softPayload(fmt.Sprintf("Tool execution failed: %v", err))
		return res
	}
	res.Payload = payload
	return res
}

func softPayload(msg string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"log/slog"
)

// ErrUnknownTool is returned by Call for names no tool was registered under.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds the tools exposed to MCP clients. Registration happens at
// startup; lookups and calls may run concurrently afterwards.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

func (r *Registry) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name is empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	registered := t
	r.tools[t.Name] = &registered
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call runs the named tool. Unknown names fail with ErrUnknownTool; handler
// errors are returned as-is so transports can map them onto their own error
// surface.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := t.Handler(ctx, args)
	if err != nil {
		r.logWarn("tool_call_failed", "tool", name, "error", err)
		return nil, err
	}
	r.logDebug("tool_call", "tool", name)
	return result, nil
}

func (r *Registry) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Registry) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

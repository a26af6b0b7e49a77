package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotImplemented marks a tool that exists as a named extension point but
// carries no real logic yet. Callers surface the gap explicitly instead of
// returning fabricated data.
var ErrNotImplemented = errors.New("not implemented")

// Handler executes a tool call. args is the raw JSON arguments object.
type Handler func(ctx context.Context, args json.RawMessage) (*Result, error)

// Tool is a named callable action with a JSON Schema for its arguments.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler `json:"-"`
}

// Content is a single piece of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is what a tool call produces.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult builds a single-text result.
func TextResult(format string, args ...any) *Result {
	return &Result{Content: []Content{{Type: "text", Text: fmt.Sprintf(format, args...)}}}
}

// ErrorResult builds a result flagged as a tool-level failure. Used for
// failures a caller should see as output (for example an unreachable Zabbix
// server) rather than as a protocol error.
func ErrorResult(format string, args ...any) *Result {
	res := TextResult(format, args...)
	res.IsError = true
	return res
}

// objectSchema builds a JSON Schema for an object with the given properties.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

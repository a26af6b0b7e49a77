package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func okHandler(ctx context.Context, args json.RawMessage) (*Result, error) {
	return TextResult("ok"), nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(Tool{Name: "demo", Handler: okHandler}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Tool{Name: "demo", Handler: okHandler}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := r.Register(Tool{Handler: okHandler}); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := r.Register(Tool{Name: "nohandler"}); err == nil {
		t.Fatalf("expected missing handler to fail")
	}
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(Tool{Name: name, Handler: okHandler}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(list))
	}
	for i, want := range []string{"c", "a", "b"} {
		if list[i].Name != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, list[i].Name)
		}
	}
}

func TestRegistryCallUnknownTool(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Call(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryCallDefaultsEmptyArgs(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Register(Tool{Name: "echo", Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var decoded map[string]any
		if err := json.Unmarshal(args, &decoded); err != nil {
			return nil, err
		}
		return TextResult("fields=%d", len(decoded)), nil
	}})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := r.Call(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.Content[0].Text != "fields=0" {
		t.Fatalf("expected empty object default, got %q", result.Content[0].Text)
	}
}

func TestAnalysisStubsReportNotImplemented(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := registerAnalysisStubs(r); err != nil {
		t.Fatalf("register stubs: %v", err)
	}

	for _, stub := range analysisStubs {
		_, err := r.Call(context.Background(), stub.name, json.RawMessage(`{}`))
		if !errors.Is(err, ErrNotImplemented) {
			t.Fatalf("%s: expected ErrNotImplemented, got %v", stub.name, err)
		}
	}
}

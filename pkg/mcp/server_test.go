package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/zbridge/zbridge/pkg/tool"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	r := tool.NewRegistry()
	err := r.Register(tool.Tool{
		Name:        "demo.echo",
		Description: "Echo the message argument",
		InputSchema: map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args json.RawMessage) (*tool.Result, error) {
			var req struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, err
			}
			return tool.TextResult("echo: %s", req.Message), nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	err = r.Register(tool.Tool{
		Name: "demo.stub",
		Handler: func(ctx context.Context, args json.RawMessage) (*tool.Result, error) {
			return nil, tool.ErrNotImplemented
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewServer(r)
}

// roundTrip frames the request, runs the server to EOF and decodes the
// single response.
func roundTrip(t *testing.T, server *Server, request string) rpcResponse {
	t.Helper()

	input := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(request), request)
	var output bytes.Buffer
	if err := server.Serve(context.Background(), strings.NewReader(input), &output); err != nil {
		t.Fatalf("serve: %v", err)
	}

	payload, err := readMessage(bufio.NewReader(&output))
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp rpcResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	resp := roundTrip(t, newTestServer(t), `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["protocolVersion"] != ProtocolVersion {
		t.Fatalf("unexpected protocol version %v", result["protocolVersion"])
	}
}

func TestToolsListAdvertisesRegisteredTools(t *testing.T) {
	t.Parallel()

	resp := roundTrip(t, newTestServer(t), `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	tools := resp.Result.(map[string]any)["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	first := tools[0].(map[string]any)
	if first["name"] != "demo.echo" {
		t.Fatalf("expected demo.echo first, got %v", first["name"])
	}
	if first["inputSchema"] == nil {
		t.Fatalf("tools must always carry an input schema")
	}
}

func TestToolsCall(t *testing.T) {
	t.Parallel()

	resp := roundTrip(t, newTestServer(t),
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"demo.echo","arguments":{"message":"hi"}}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	data, _ := json.Marshal(resp.Result)
	var result tool.Result
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Content[0].Text != "echo: hi" {
		t.Fatalf("unexpected tool output %q", result.Content[0].Text)
	}
}

func TestToolsCallUnknownTool(t *testing.T) {
	t.Parallel()

	resp := roundTrip(t, newTestServer(t),
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`)
	if resp.Error == nil || resp.Error.Code != codeToolNotFound {
		t.Fatalf("expected tool-not-found error, got %+v", resp.Error)
	}
}

func TestToolsCallNotImplemented(t *testing.T) {
	t.Parallel()

	resp := roundTrip(t, newTestServer(t),
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"demo.stub"}}`)
	if resp.Error == nil || resp.Error.Code != codeNotImplemented {
		t.Fatalf("expected not-implemented error, got %+v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	t.Parallel()

	resp := roundTrip(t, newTestServer(t), `{"jsonrpc":"2.0","id":6,"method":"bogus/method"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestNotificationProducesNoResponse(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n"
	var output bytes.Buffer
	if err := newTestServer(t).Serve(context.Background(), strings.NewReader(input), &output); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if output.Len() != 0 {
		t.Fatalf("notifications must not be answered, got %q", output.String())
	}
}

func TestBareJSONLineAccepted(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","id":7,"method":"ping"}` + "\n"
	var output bytes.Buffer
	if err := newTestServer(t).Serve(context.Background(), strings.NewReader(input), &output); err != nil {
		t.Fatalf("serve: %v", err)
	}
	payload, err := readMessage(bufio.NewReader(&output))
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp rpcResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("ping failed: %+v", resp.Error)
	}
}

func TestReadMessageFraming(t *testing.T) {
	t.Parallel()

	payload := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	framed := fmt.Sprintf("Content-Length: %d\r\nX-Custom: ignored\r\n\r\n%s", len(payload), payload)

	got, err := readMessage(bufio.NewReader(strings.NewReader(framed)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("expected %q, got %q", payload, got)
	}

	if _, err := readMessage(bufio.NewReader(strings.NewReader(""))); err != io.EOF {
		t.Fatalf("expected EOF on empty input, got %v", err)
	}
}

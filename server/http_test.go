package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zbridge/zbridge/pkg/mcp"
	"github.com/zbridge/zbridge/pkg/tool"
)

func newHTTPServer(t *testing.T) *HTTPServer {
	t.Helper()
	registry := tool.NewRegistry()
	err := registry.Register(tool.Tool{
		Name: "demo.ping",
		Handler: func(ctx context.Context, args json.RawMessage) (*tool.Result, error) {
			return tool.TextResult("pong"), nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewHTTPServer(mcp.NewServer(registry))
}

func postJSONRPC(t *testing.T, handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHandleJSONRPC(t *testing.T) {
	t.Parallel()

	handler := newHTTPServer(t).Handler()
	rr := postJSONRPC(t, handler, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Result.Tools) != 1 || resp.Result.Tools[0].Name != "demo.ping" {
		t.Fatalf("unexpected tools: %+v", resp.Result.Tools)
	}
}

func TestNotificationAccepted(t *testing.T) {
	t.Parallel()

	handler := newHTTPServer(t).Handler()
	rr := postJSONRPC(t, handler, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("notifications should return 202, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("notifications must have no body, got %q", rr.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	handler := newHTTPServer(t).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	handler := newHTTPServer(t).Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	t.Parallel()

	s := newHTTPServer(t)
	s.SetAuthSecret("hush")
	handler := s.Handler()

	rr := postJSONRPC(t, handler, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = postJSONRPC(t, handler, `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		map[string]string{"Authorization": "Bearer garbage"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rr.Code)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	t.Parallel()

	s := newHTTPServer(t)
	s.SetAuthSecret("hush")
	handler := s.Handler()

	token, err := IssueToken("hush", "tester", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rr := postJSONRPC(t, handler, `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		map[string]string{"Authorization": "Bearer " + token})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	s := newHTTPServer(t)
	s.SetAuthSecret("hush")
	handler := s.Handler()

	token, err := IssueToken("other-secret", "tester", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rr := postJSONRPC(t, handler, `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		map[string]string{"Authorization": "Bearer " + token})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", rr.Code)
	}
}

func TestHealthEndpointSkipsAuth(t *testing.T) {
	t.Parallel()

	s := newHTTPServer(t)
	s.SetAuthSecret("hush")
	handler := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", rr.Code)
	}
}

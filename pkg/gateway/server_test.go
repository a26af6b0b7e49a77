package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/zbridge/zbridge/pkg/mcp"
	"github.com/zbridge/zbridge/pkg/tool"
)

func TestAllowlistAuthorizer(t *testing.T) {
	t.Parallel()

	auth := AllowlistAuthorizer{Allowed: []string{"10.0.0.1", "192.168.1.5:9999"}}
	ctx := context.Background()

	if err := auth.Allow(ctx, "10.0.0.1:51234"); err != nil {
		t.Fatalf("host match must be allowed: %v", err)
	}
	if err := auth.Allow(ctx, "192.168.1.5:9999"); err != nil {
		t.Fatalf("exact match must be allowed: %v", err)
	}
	if err := auth.Allow(ctx, "172.16.0.9:1000"); err == nil {
		t.Fatalf("unlisted address must be rejected")
	}

	empty := AllowlistAuthorizer{}
	if err := empty.Allow(ctx, "anything"); err != nil {
		t.Fatalf("empty allowlist admits everyone: %v", err)
	}
}

func TestGatewayServesMCPSession(t *testing.T) {
	t.Parallel()

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

	server := NewServer("127.0.0.1:0", mcp.NewServer(registry), nil)

	// Grab a free port up front so the client knows where to dial.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	server.addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Start(ctx) }()

	conn := dialWithRetry(t, addr)
	defer conn.Close()

	request := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"demo.ping","arguments":{}}}`
	if _, err := fmt.Fprintf(conn, "Content-Length: %d\r\n\r\n%s", len(request), request); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	header, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !strings.HasPrefix(strings.ToLower(header), "content-length:") {
		t.Fatalf("expected framed response, got %q", header)
	}

	if sessions := server.ListSessions(); len(sessions) != 1 {
		t.Fatalf("expected one live session, got %d", len(sessions))
	}
}

func dialWithRetry(t *testing.T, addr string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", addr, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

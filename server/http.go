package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zbridge/zbridge/pkg/mcp"
	"github.com/zbridge/zbridge/pkg/version"
	"log/slog"
)

const (
	httpShutdownTimeout = 5 * time.Second
	maxRequestBody      = 1 << 20
)

// HTTPServer exposes the MCP server over HTTP: JSON-RPC on POST /mcp, an
// SSE stream of responses on GET /mcp, plus /healthz and Prometheus
// /metrics. An optional shared secret turns on bearer-token authorization
// for /mcp.
type HTTPServer struct {
	mcpServer *mcp.Server
	secret    []byte
	started   time.Time
	logger    *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHTTPServer(mcpServer *mcp.Server) *HTTPServer {
	return &HTTPServer{
		mcpServer: mcpServer,
		started:   time.Now(),
		subs:      make(map[chan []byte]struct{}),
	}
}

func (s *HTTPServer) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetAuthSecret enables bearer-token authorization on /mcp. An empty
// secret leaves the endpoint open.
func (s *HTTPServer) SetAuthSecret(secret string) {
	if secret != "" {
		s.secret = []byte(secret)
	}
}

// Handler builds the full route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.requireAuth(http.HandlerFunc(s.handleMCP)))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe runs the server until the context is canceled.
func (s *HTTPServer) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logInfo("http_listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)

	switch r.Method {
	case http.MethodGet:
		s.handleSSE(w, r)
	case http.MethodPost:
		s.handleJSONRPC(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *HTTPServer) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read request", http.StatusBadRequest)
		return
	}

	resp, err := s.mcpServer.HandleMessage(r.Context(), payload)
	if err != nil {
		s.logError("http_encode_failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		s.logWarn("http_write_failed", "error", err)
		return
	}
	s.publish(resp)
}

func (s *HTTPServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := make(chan []byte, 16)
	s.subscribe(client)
	defer s.unsubscribe(client)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-client:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","version":%q,"uptime_seconds":%d}`,
		version.String(), int(time.Since(s.started).Seconds()))
}

func (s *HTTPServer) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
}

func (s *HTTPServer) subscribe(ch chan []byte) {
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *HTTPServer) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *HTTPServer) publish(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (s *HTTPServer) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *HTTPServer) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *HTTPServer) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zbridge/zbridge/pkg/tool"
	"github.com/zbridge/zbridge/pkg/version"
	"log/slog"
)

// Server answers MCP JSON-RPC requests from a byte stream. Messages arrive
// either with Content-Length framing or as bare JSON lines; both forms are
// accepted because MCP clients disagree on which to use.
type Server struct {
	registry *tool.Registry
	logger   *slog.Logger
}

func NewServer(registry *tool.Registry) *Server {
	return &Server{registry: registry}
}

func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Serve reads requests until EOF. Notifications (requests without an id)
// are processed but produce no response.
func (s *Server) Serve(ctx context.Context, reader io.Reader, writer io.Writer) error {
	bufReader := bufio.NewReader(reader)
	bufWriter := bufio.NewWriter(writer)

	for {
		payload, err := readMessage(bufReader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logError("mcp_read_failed", "error", err)
			return err
		}

		var req rpcRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			s.logWarn("mcp_parse_error", "error", err)
			_ = writeError(bufWriter, req.ID, codeParseError, "parse error", err.Error())
			continue
		}

		resp := s.Handle(ctx, req)
		if resp == nil {
			continue
		}
		if err := writeResponse(bufWriter, *resp); err != nil {
			return err
		}
	}
}

// ServeStdio runs the server over the process's stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// HandleMessage dispatches one raw JSON-RPC payload and returns the encoded
// response, or nil when none is owed. It is the entry point for transports
// that carry one message per exchange, like HTTP.
func (s *Server) HandleMessage(ctx context.Context, payload []byte) ([]byte, error) {
	var req rpcRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return json.Marshal(errorResponse(req.ID, codeParseError, "parse error", err.Error()))
	}
	resp := s.Handle(ctx, req)
	if resp == nil {
		return nil, nil
	}
	return json.Marshal(resp)
}

// Handle dispatches a single request. A nil return means no response is
// owed (a notification).
func (s *Server) Handle(ctx context.Context, req rpcRequest) *rpcResponse {
	if req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request", "missing method")
	}
	if len(req.ID) == 0 {
		// Notification: nothing to answer, and nothing to do for the
		// notifications MCP currently defines.
		s.logDebug("mcp_notification", "method", req.Method)
		return nil
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "zbridge",
				"version": version.String(),
			},
		})
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": s.listTools()})
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) listTools() []toolDescriptor {
	tools := s.registry.List()
	out := make([]toolDescriptor, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out
}

func (s *Server) handleToolCall(ctx context.Context, req rpcRequest) *rpcResponse {
	var call toolCallParams
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params", err.Error())
	}
	if call.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "invalid params", "missing tool name")
	}

	result, err := s.registry.Call(ctx, call.Name, call.Arguments)
	switch {
	case errors.Is(err, tool.ErrUnknownTool):
		return errorResponse(req.ID, codeToolNotFound, "tool not found", call.Name)
	case errors.Is(err, tool.ErrNotImplemented):
		return errorResponse(req.ID, codeNotImplemented, "not implemented", err.Error())
	case err != nil:
		return errorResponse(req.ID, codeToolFailed, "tool call failed", err.Error())
	}
	return resultResponse(req.ID, result)
}

func resultResponse(id json.RawMessage, result any) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message, Data: data}}
}

func writeError(w *bufio.Writer, id json.RawMessage, code int, message string, data any) error {
	return writeResponse(w, *errorResponse(id, code, message, data))
}

func writeResponse(w *bufio.Writer, resp rpcResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

// readMessage returns the next JSON payload. A line starting with '{' is
// taken as a complete message; otherwise headers are parsed until the blank
// line and Content-Length bytes are read.
func readMessage(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil && len(line) == 0 {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "{") {
			return []byte(trimmed), nil
		}

		contentLength, err := parseContentLength(trimmed)
		if err != nil {
			return nil, err
		}

		for {
			headerLine, readErr := r.ReadString('\n')
			if readErr != nil && len(headerLine) == 0 {
				return nil, readErr
			}
			header := strings.TrimRight(headerLine, "\r\n")
			if header == "" {
				break
			}
			if length, err := parseContentLength(header); err != nil {
				return nil, err
			} else if length > 0 {
				contentLength = length
			}
		}

		if contentLength <= 0 {
			return nil, fmt.Errorf("missing Content-Length")
		}

		payload := make([]byte, contentLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

func parseContentLength(header string) (int, error) {
	if !strings.HasPrefix(strings.ToLower(header), "content-length:") {
		return 0, nil
	}
	value := strings.TrimSpace(strings.SplitN(header, ":", 2)[1])
	length, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("bad Content-Length %q: %w", value, err)
	}
	return length, nil
}

func (s *Server) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Server) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

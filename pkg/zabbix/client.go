package zabbix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"log/slog"
)

const (
	apiPath     = "/api_jsonrpc.php"
	contentType = "application/json-rpc"

	// DefaultTimeout bounds every HTTP call issued by the client.
	DefaultTimeout = 30 * time.Second
)

// AuthStyle selects how the session token travels on API requests.
type AuthStyle string

const (
	// AuthStyleParam puts the token in the "auth" field of the JSON-RPC
	// envelope. This is the convention Zabbix servers before 6.4 expect.
	AuthStyleParam AuthStyle = "param"
	// AuthStyleBearer sends the token as an Authorization: Bearer header,
	// the convention Zabbix 6.4+ prefers.
	AuthStyleBearer AuthStyle = "bearer"
)

// Connection holds the settings required to reach a Zabbix API endpoint.
// It is validated by Configure and immutable afterwards.
type Connection struct {
	BaseURL   string
	Username  string
	Password  string
	AuthStyle AuthStyle
}

func (c *Connection) endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + apiPath
}

// Session wraps the opaque token returned by user.login.
type Session struct {
	Token      string
	ObtainedAt time.Time
}

// Observer receives notifications about client activity. Implementations
// must be safe for concurrent use.
type Observer interface {
	OnLogin()
	OnInvoke(method string, duration time.Duration, err error)
}

// Client issues JSON-RPC calls against a single Zabbix API endpoint.
// Each instance owns its own Connection; nothing is shared process-wide,
// so independent configurations can coexist under test.
//
// By default every Invoke performs a fresh user.login. Callers that need
// fewer logins opt in with EnableSessionCache; caching is never implied
// by the base contract because Zabbix does not document a token TTL.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	observer   Observer

	mu      sync.Mutex
	conn    *Connection
	cache   bool
	session *Session
}

// NewClient returns an unconfigured client. Invoke and Authenticate fail
// with ErrNotConfigured until Configure succeeds.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
}

func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// SetObserver installs a hook notified on every login and invoke.
func (c *Client) SetObserver(observer Observer) {
	c.observer = observer
}

// SetTimeout replaces the per-call deadline. Values <= 0 are ignored.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SetHTTPClient replaces the underlying HTTP client, mainly for tests and
// custom TLS configuration.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// Configure validates and installs the connection. It performs no network
// I/O. A previously cached session, if any, is discarded.
func (c *Client) Configure(conn Connection) error {
	parsed, err := url.Parse(conn.BaseURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return &ConfigError{Field: "baseUrl", Err: ErrInvalidURL}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ConfigError{Field: "baseUrl", Err: ErrInvalidURL}
	}
	if conn.Username == "" {
		return &ConfigError{Field: "user", Err: ErrMissingCredential}
	}
	if conn.Password == "" {
		return &ConfigError{Field: "password", Err: ErrMissingCredential}
	}
	if conn.AuthStyle == "" {
		conn.AuthStyle = AuthStyleParam
	}

	c.mu.Lock()
	c.conn = &conn
	c.session = nil
	c.mu.Unlock()

	c.logInfo("zabbix_configured", "endpoint", conn.endpoint(), "user", conn.Username)
	return nil
}

// Configured reports whether a connection has been installed.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) connection() (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConfigured
	}
	return c.conn, nil
}

// Authenticate issues a user.login call and returns the resulting session.
// It never consults or updates the session cache.
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	conn, err := c.connection()
	if err != nil {
		return Session{}, err
	}
	return c.login(ctx, conn)
}

// Invoke issues a JSON-RPC method call and returns the result field
// verbatim. The client does not interpret Zabbix-specific schemas; decoding
// the result is the caller's responsibility.
func (c *Client) Invoke(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.invoke(ctx, method, params)
	if c.observer != nil {
		c.observer.OnInvoke(method, time.Since(start), err)
	}
	if err != nil {
		c.logWarn("zabbix_invoke_failed", "method", method, "error", err)
		return nil, err
	}
	c.logDebug("zabbix_invoke", "method", method, "duration", time.Since(start))
	return result, nil
}

func (c *Client) invoke(ctx context.Context, method string, params any) (json.RawMessage, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	sess, err := c.sessionFor(ctx, conn)
	if err != nil {
		return nil, err
	}

	result, err := c.post(ctx, conn, method, params, sess.Token)
	if err != nil && c.cacheEnabled() && sessionExpired(err) {
		// The cached token was rejected remotely. Drop it and retry the
		// call once with a fresh login.
		c.invalidateSession(sess.Token)
		sess, err = c.sessionFor(ctx, conn)
		if err != nil {
			return nil, err
		}
		result, err = c.post(ctx, conn, method, params, sess.Token)
	}
	return result, err
}

func (c *Client) login(ctx context.Context, conn *Connection) (Session, error) {
	if c.observer != nil {
		c.observer.OnLogin()
	}
	params := map[string]string{
		"username": conn.Username,
		"password": conn.Password,
	}
	result, err := c.post(ctx, conn, "user.login", params, "")
	if err != nil {
		return Session{}, &AuthError{Err: err}
	}

	var token string
	if err := json.Unmarshal(result, &token); err != nil {
		return Session{}, &AuthError{Err: fmt.Errorf("decode token: %w", err)}
	}
	if token == "" {
		return Session{}, &AuthError{Err: errors.New("empty token")}
	}
	return Session{Token: token, ObtainedAt: time.Now()}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	Auth    string `json:"auth,omitempty"`
	ID      string `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (c *Client) post(ctx context.Context, conn *Connection, method string, params any, token string) (json.RawMessage, error) {
	envelope := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}
	if token != "" && conn.AuthStyle == AuthStyleParam {
		envelope.Auth = token
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, conn.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" && conn.AuthStyle == AuthStyleBearer {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w", method, ErrTimeout)
		}
		return nil, &TransportError{Status: 0, StatusText: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, &APIError{
			Code:    decoded.Error.Code,
			Message: decoded.Error.Message,
			Data:    decoded.Error.Data,
		}
	}
	return decoded.Result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

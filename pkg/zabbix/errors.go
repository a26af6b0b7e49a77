package zabbix

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by Invoke and Authenticate before a
	// successful Configure call.
	ErrNotConfigured = errors.New("zabbix: connection not configured")

	// ErrInvalidURL marks a base URL that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid base URL")

	// ErrMissingCredential marks an empty username or password.
	ErrMissingCredential = errors.New("missing credential")

	// ErrTimeout marks a request that exceeded the per-call deadline.
	ErrTimeout = errors.New("zabbix: request timed out")
)

// ConfigError reports a rejected Connection field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a non-success HTTP status from the Zabbix endpoint.
// The response body is not inspected; any non-2xx status is a transport
// failure regardless of content.
type TransportError struct {
	Status     int
	StatusText string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("zabbix: http %d %s", e.Status, e.StatusText)
}

// APIError reports a JSON-RPC error envelope returned by the Zabbix API.
type APIError struct {
	Code    int
	Message string
	Data    string
}

func (e *APIError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("zabbix: api error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("zabbix: api error %d: %s", e.Code, e.Message)
}

// AuthError wraps a failure during user.login. The wrapped error is either a
// *TransportError (endpoint unreachable or non-2xx) or an *APIError (login
// rejected).
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("zabbix: login failed: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

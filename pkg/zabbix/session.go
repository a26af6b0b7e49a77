package zabbix

import (
	"context"
	"errors"
	"strings"
)

// EnableSessionCache switches the client from login-per-call to a cached
// session. The cache is guarded by the client mutex so concurrent invokes
// share a single login instead of racing to authenticate. The cached token
// is dropped when the API reports it expired, and the failed call is
// retried once.
func (c *Client) EnableSessionCache() {
	c.mu.Lock()
	c.cache = true
	c.mu.Unlock()
}

func (c *Client) cacheEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}

// sessionFor returns the session to use for one call. Without caching this
// is always a fresh login, matching the reference behavior of the original
// adapter.
func (c *Client) sessionFor(ctx context.Context, conn *Connection) (Session, error) {
	if !c.cacheEnabled() {
		return c.login(ctx, conn)
	}
	return c.getOrRefreshSession(ctx, conn)
}

// getOrRefreshSession returns the cached session, logging in first if none
// exists. Holding the mutex across the login acts as a single-flight: while
// one caller authenticates, the rest block and then reuse its token.
func (c *Client) getOrRefreshSession(ctx context.Context, conn *Connection) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return *c.session, nil
	}
	sess, err := c.login(ctx, conn)
	if err != nil {
		return Session{}, err
	}
	c.session = &sess
	c.logDebug("zabbix_session_cached", "obtained_at", sess.ObtainedAt)
	return sess, nil
}

// invalidateSession drops the cached session if it still carries the given
// token. A concurrent caller may already have replaced it; that newer
// session is kept.
func (c *Client) invalidateSession(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Token == token {
		c.session = nil
		c.logDebug("zabbix_session_invalidated")
	}
}

// sessionExpired reports whether a remote error indicates the auth token is
// no longer valid. Zabbix signals this inside the error data rather than
// with a dedicated code.
func sessionExpired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	text := strings.ToLower(apiErr.Message + " " + apiErr.Data)
	return strings.Contains(text, "re-login") ||
		strings.Contains(text, "not authorised") ||
		strings.Contains(text, "not authorized") ||
		strings.Contains(text, "session terminated")
}

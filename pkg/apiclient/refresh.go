package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tutoria/dashboard/pkg/auth"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// failedRefresh remembers the outcome of the last failed refresh of token
type failedRefresh struct {
	token string
	err   error
	at    time.Time
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share one network call. Unlike a refresh triggered by a 401, it
// always contacts the backend.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx, c.AccessToken(), false)
}

// refresh renews the access token that staleToken was. If another caller
// already replaced it, nothing is sent. With reuseFailure, a refresh of the
// same token that failed less than refreshBackoff ago answers again instead
// of spending another attempt.
func (c *Client) refresh(ctx context.Context, staleToken string, reuseFailure bool) error {
	c.mu.RLock()
	current := c.accessToken
	disabled := c.refreshDisabled
	last := c.lastFailure
	c.mu.RUnlock()

	if current != "" && current != staleToken {
		return nil
	}
	if disabled {
		return ErrSessionExpired
	}
	if reuseFailure && last.err != nil && last.token == staleToken && c.now().Sub(last.at) < c.refreshBackoff {
		return last.err
	}

	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		// the shared call must not die with the first caller's context
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.doRefresh(ctx, staleToken)
	})
	return err
}

func (c *Client) doRefresh(ctx context.Context, staleToken string) error {
	c.mu.RLock()
	current := c.accessToken
	refreshToken := c.refreshToken
	disabled := c.refreshDisabled
	c.mu.RUnlock()

	// a refresh finished between the caller's check and this call
	if current != "" && current != staleToken {
		return nil
	}
	if disabled {
		return ErrSessionExpired
	}
	if refreshToken == "" {
		c.logger.Debug("no refresh token, clearing session")
		c.metrics.RecordTokenRefresh("missing")
		c.expire()
		return ErrSessionExpired
	}

	var tokens auth.Tokens
	err := c.do(ctx, APIAuth, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &tokens)
	if err == nil && tokens.AccessToken == "" {
		err = fmt.Errorf("refresh response carried no access token")
	}
	if err != nil {
		return c.refreshFailed(staleToken, err)
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	c.mu.Lock()
	c.accessToken = tokens.AccessToken
	c.refreshToken = tokens.RefreshToken
	c.refreshFailures = 0
	c.lastFailure = failedRefresh{}
	observer := c.observer
	c.mu.Unlock()

	c.metrics.RecordTokenRefresh("success")
	c.logger.Debug("access token refreshed")
	if observer != nil {
		observer.TokensRefreshed(tokens)
	}
	return nil
}

// refreshFailed counts a failed attempt and wipes the credentials once the
// limit is reached
func (c *Client) refreshFailed(staleToken string, cause error) error {
	c.mu.Lock()
	c.refreshFailures++
	failures := c.refreshFailures
	c.mu.Unlock()

	c.metrics.RecordTokenRefresh("failure")
	c.logger.WithError(cause).WithField("failures", failures).Warn("token refresh failed")

	if failures >= c.maxRefreshFailures {
		c.metrics.RecordTokenRefresh("exhausted")
		c.expire()
		return fmt.Errorf("%w: %d consecutive refresh failures", ErrSessionExpired, failures)
	}

	err := fmt.Errorf("%w: token refresh failed: %v", ErrUnauthorized, cause)
	c.mu.Lock()
	c.lastFailure = failedRefresh{token: staleToken, err: err, at: c.now()}
	c.mu.Unlock()
	return err
}

// expire clears the tokens and blocks refreshing until SetTokens
func (c *Client) expire() {
	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.refreshDisabled = true
	c.lastFailure = failedRefresh{}
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer.TokensCleared()
	}
}

// RefreshFailures returns the number of consecutive failed refreshes
func (c *Client) RefreshFailures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshFailures
}

// RefreshDisabled reports whether refreshing is blocked until the next login
func (c *Client) RefreshDisabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshDisabled
}

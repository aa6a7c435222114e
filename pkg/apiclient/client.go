package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/observability"
)

// API names one of the three backends
type API string

const (
	APIManagement API = "management"
	APIAuth       API = "auth"
	APIAI         API = "ai"
)

const (
	// DefaultTimeout bounds every request, retries included separately
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRefreshFailures is the number of consecutive failed
	// refreshes after which the tokens are wiped
	DefaultMaxRefreshFailures = 3
	// DefaultRefreshBackoff is how long a failed refresh answers later 401s
	// that carry the same access token
	DefaultRefreshBackoff = 5 * time.Second
)

// Config configures a Client
type Config struct {
	ManagementURL string
	AuthURL       string
	AIURL         string

	// Timeout defaults to DefaultTimeout
	Timeout time.Duration
	// MaxRefreshFailures defaults to DefaultMaxRefreshFailures
	MaxRefreshFailures int
	// RefreshBackoff defaults to DefaultRefreshBackoff; negative makes
	// every 401 attempt its own refresh
	RefreshBackoff time.Duration

	// HTTPClient defaults to a client with an otelhttp transport
	HTTPClient *http.Client
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// TokenObserver is told about token changes made by the client itself,
// so the session owner can persist them
type TokenObserver interface {
	TokensRefreshed(tokens auth.Tokens)
	TokensCleared()
}

// Client talks to the management, auth and AI backends with bearer auth.
// A 401 outside the /auth/ endpoints triggers one coalesced token refresh
// and a single retry of the original request. It is safe for concurrent use.
type Client struct {
	baseURLs           map[API]string
	http               *http.Client
	timeout            time.Duration
	maxRefreshFailures int
	refreshBackoff     time.Duration
	logger             *observability.Logger
	metrics            *observability.Metrics
	now                func() time.Time

	mu              sync.RWMutex
	accessToken     string
	refreshToken    string
	refreshFailures int
	refreshDisabled bool
	lastFailure     failedRefresh
	observer        TokenObserver

	refreshGroup singleflight.Group
}

// New creates a Client
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRefreshFailures <= 0 {
		cfg.MaxRefreshFailures = DefaultMaxRefreshFailures
	}
	if cfg.RefreshBackoff == 0 {
		cfg.RefreshBackoff = DefaultRefreshBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	return &Client{
		baseURLs: map[API]string{
			APIManagement: strings.TrimRight(cfg.ManagementURL, "/"),
			APIAuth:       strings.TrimRight(cfg.AuthURL, "/"),
			APIAI:         strings.TrimRight(cfg.AIURL, "/"),
		},
		http:               cfg.HTTPClient,
		timeout:            cfg.Timeout,
		maxRefreshFailures: cfg.MaxRefreshFailures,
		refreshBackoff:     cfg.RefreshBackoff,
		logger:             cfg.Logger,
		metrics:            cfg.Metrics,
		now:                time.Now,
	}
}

// SetObserver registers the token observer
func (c *Client) SetObserver(o TokenObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// SetTokens installs new credentials and re-enables refreshing
func (c *Client) SetTokens(tokens auth.Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = tokens.AccessToken
	c.refreshToken = tokens.RefreshToken
	c.refreshFailures = 0
	c.refreshDisabled = false
	c.lastFailure = failedRefresh{}
}

// ClearTokens forgets the credentials
func (c *Client) ClearTokens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
}

// Tokens returns the current credentials
func (c *Client) Tokens() auth.Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return auth.Tokens{AccessToken: c.accessToken, RefreshToken: c.refreshToken}
}

// AccessToken returns the current access token
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

type response struct {
	status int
	body   []byte
}

// do sends one request and decodes a 2xx body into out. A 401 on a non-auth
// path refreshes the token and retries once.
func (c *Client) do(ctx context.Context, api API, method, path string, in, out interface{}) error {
	token := c.AccessToken()
	resp, err := c.send(ctx, api, method, path, in, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && !isAuthPath(path) {
		if err := c.refresh(ctx, token, true); err != nil {
			return err
		}
		resp, err = c.send(ctx, api, method, path, in, c.AccessToken())
		if err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status > 299 {
		return &APIError{
			API:        api,
			Method:     method,
			Path:       path,
			StatusCode: resp.status,
			Message:    errorMessage(resp.status, resp.body),
		}
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send performs a single round trip under the client timeout
func (c *Client) send(ctx context.Context, api API, method, path string, in interface{}, token string) (*response, error) {
	base, ok := c.baseURLs[api]
	if !ok || base == "" {
		return nil, fmt.Errorf("no base URL configured for %s API", api)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordBackendRequest(string(api), method, 0, time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s %s", ErrTimeout, c.timeout, method, path)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	c.metrics.RecordBackendRequest(string(api), method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s %s", ErrTimeout, c.timeout, method, path)
		}
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"api":    string(api),
		"method": method,
		"path":   path,
		"status": httpResp.StatusCode,
	}).Debug("backend request")

	return &response{status: httpResp.StatusCode, body: data}, nil
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

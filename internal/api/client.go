package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/nao1215/scanexport/internal/config"
)

// defaultUserAgent identifies scanexport in HTTP requests.
// A descriptive User-Agent lets tenant operators recognize export traffic
// in the vendor's audit logs.
const defaultUserAgent = "scanexport/1.0 (+https://github.com/nao1215/scanexport)"

// maxResponseBody caps how much of a response body is read. List pages can
// be tens of megabytes for dense findings, so the cap is generous; it only
// guards against a pathological response.
const maxResponseBody = 256 * 1024 * 1024

// Client is an authenticated HTTP client for the vendor API.
// It owns token acquisition (exchange from key/secret) and refresh-on-401
// behavior, and routes every request through the configured retry policy.
//
// Design decision: We hold one *http.Client for the Client's lifetime
// rather than creating clients per call because:
//  1. Connection pooling across the many paginated calls of a crawl
//  2. Proxy/TLS configuration stays consistent
//  3. Tests can inject a client pointed at an httptest.Server
type Client struct {
	// baseURL is the API root, e.g. "https://api.endorlabs.com/v1",
	// without a trailing slash.
	baseURL string

	// httpClient performs the actual round trips. Per-call deadlines come
	// from request contexts, not from httpClient.Timeout.
	httpClient *http.Client

	// creds is the authentication material. Never logged.
	creds config.Credentials

	// retry wraps every round trip.
	retry RetryPolicy

	// timeout is the default per-call bound when the caller supplies none.
	timeout time.Duration

	// findingsTimeout and scanResultsTimeout bound the artifact page
	// fetches, which are slower than other list calls.
	findingsTimeout    time.Duration
	scanResultsTimeout time.Duration

	// userAgent is sent with every request.
	userAgent string

	// logger is used for request-level debug logging.
	logger *slog.Logger

	// mu guards token. The worker-pool export mode shares one Client
	// across goroutines, and a refresh-on-401 must not race another.
	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
// Used by tests to point the client at an httptest.Server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy sets the retry policy for all requests.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFindingsTimeout sets the per-call bound for findings pages.
func WithFindingsTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.findingsTimeout = d
		}
	}
}

// WithScanResultsTimeout sets the per-call bound for scan-result pages.
func WithScanResultsTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.scanResultsTimeout = d
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the API at baseURL using the given
// credentials. The zero retry policy never retries, so callers normally
// pass WithRetryPolicy.
func NewClient(baseURL string, creds config.Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		creds:              creds,
		retry:              RetryPolicy{MaxAttempts: 1},
		timeout:            config.DefaultTimeout,
		findingsTimeout:    config.DefaultFindingsTimeout,
		scanResultsTimeout: config.DefaultScanResultsTimeout,
		userAgent:          defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if creds.HasToken() {
		c.token = creds.Token
	}

	return c
}

// Authenticate ensures the client holds a usable token, exchanging the
// key/secret pair if necessary. Called once at run start so credential
// problems surface before any crawl work begins (fatal-for-run).
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return nil
	}
	return c.exchangeLocked(ctx)
}

// exchangeLocked swaps the key/secret pair for a fresh token.
// The caller must hold c.mu.
func (c *Client) exchangeLocked(ctx context.Context) error {
	if !c.creds.HasKeyPair() {
		return fmt.Errorf("%w: no key/secret pair to exchange", ErrAuthFailed)
	}

	body, err := json.Marshal(map[string]string{
		"key":    c.creds.Key,
		"secret": c.creds.Secret,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	u := c.baseURL + "/auth/api-key"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token exchange returned status %d", ErrAuthFailed, resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&payload); err != nil {
		return fmt.Errorf("%w: decoding token response: %w", ErrAuthFailed, err)
	}
	if payload.Token == "" {
		return fmt.Errorf("%w: no token in exchange response", ErrAuthFailed)
	}

	c.token = payload.Token
	c.logger.Debug("token exchanged")
	return nil
}

// currentToken returns the token under lock.
func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// refreshToken re-exchanges credentials after a 401, unless the token was
// supplied directly (nothing to refresh) or another goroutine already
// refreshed it (the stale token no longer matches).
func (c *Client) refreshToken(ctx context.Context, stale string) error {
	if !c.creds.HasKeyPair() {
		return fmt.Errorf("%w: token rejected and no key pair to re-exchange", ErrAuthFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != stale {
		return nil // Another worker refreshed first.
	}
	c.token = ""
	return c.exchangeLocked(ctx)
}

// get issues a GET with retry and returns the response body.
// The timeout bounds each individual attempt; 0 means the client default.
func (c *Client) get(ctx context.Context, path string, query url.Values, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}

	var body []byte
	res := c.retry.Do(ctx, func(ctx context.Context) error {
		b, err := c.doOnce(ctx, path, query, timeout)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if res.Err != nil {
		return nil, res.Err
	}

	c.logger.Debug("request succeeded",
		"path", path,
		"attempts", res.Attempts,
		"bytes", len(body),
	)
	return body, nil
}

// doOnce performs a single GET round trip. Non-2xx statuses become
// StatusError; a per-call deadline becomes TimeoutError when the outer
// context is still alive. A 401 triggers one token refresh and replay.
func (c *Client) doOnce(ctx context.Context, path string, query url.Values, timeout time.Duration) ([]byte, error) {
	return c.doOnceAuth(ctx, path, query, timeout, true)
}

func (c *Client) doOnceAuth(ctx context.Context, path string, query url.Values, timeout time.Duration, allowRefresh bool) ([]byte, error) {
	u := c.baseURL + "/" + path

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	token := c.currentToken()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	// Server-side timeout hint, in whole seconds, mirroring the client
	// bound so the API gives up no earlier than we do.
	req.Header.Set("Request-Timeout", strconv.Itoa(int(timeout.Seconds())))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URL: u, Limit: timeout}
		}
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close

	if resp.StatusCode == http.StatusUnauthorized && allowRefresh {
		if refreshErr := c.refreshToken(ctx, token); refreshErr != nil {
			return nil, refreshErr
		}
		return c.doOnceAuth(ctx, path, query, timeout, false)
	}

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // Drain only
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URL: u, Limit: timeout}
		}
		return nil, err
	}
	return body, nil
}

// Package client provides HTTP client functionality for the croit cluster API.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/croit/mcp-croit-ceph/internal/auth"
	"github.com/croit/mcp-croit-ceph/internal/config"
	"github.com/croit/mcp-croit-ceph/internal/security"
)

// APIPrefix is prepended to every business path.
const APIPrefix = "/api"

// Authenticator is the interface for adding authentication to requests
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// Recorder receives request metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordRequest(success bool, latency time.Duration, statusCode int)
	RecordRetry()
	RecordRateLimitHit()
}

// Client is an HTTP client for the croit API
type Client struct {
	httpClient    *http.Client
	config        *config.Config
	logger        *zap.Logger
	rateLimiter   *rate.Limiter
	authenticator Authenticator
	recorder      Recorder
	version       string
}

// New creates a new API client
func New(cfg *config.Config, logger *zap.Logger, version string) (*Client, error) {
	authenticator, err := auth.New(cfg.APIToken, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// croit appliances commonly run with self-signed certificates
	if !cfg.TLSVerify {
		tlsConfig.InsecureSkipVerify = true // #nosec G402 -- opt-in through TLS_VERIFY=false
		logger.Warn("TLS certificate verification is DISABLED",
			zap.String("host", cfg.Host),
		)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	var rateLimiter *rate.Limiter
	if cfg.EnableRateLimit {
		rateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)
	}

	if version == "" {
		version = "dev"
	}

	return &Client{
		httpClient:    httpClient,
		config:        cfg,
		logger:        logger,
		rateLimiter:   rateLimiter,
		authenticator: authenticator,
		version:       version,
	}, nil
}

// SetRecorder attaches a metrics recorder.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// Host returns the configured cluster base URL without trailing slash.
func (c *Client) Host() string {
	return strings.TrimRight(c.config.Host, "/")
}

// Config returns the client configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// TLSConfig returns the TLS settings shared with the log stream dialer.
func (c *Client) TLSConfig() *tls.Config {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok && t.TLSClientConfig != nil {
		return t.TLSClientConfig.Clone()
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: !c.config.TLSVerify} // #nosec G402
}

// Request represents an HTTP request
type Request struct {
	Method string
	// Path is relative to <host>/api.
	Path string
	// URL, when set, is used verbatim instead of Path, for archive downloads.
	URL     string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	// Authenticator overrides the client authenticator for one call.
	Authenticator Authenticator
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body. An empty body decodes to nil; a non-JSON body is
// returned as a string.
func (r *Response) JSON() interface{} {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return string(r.Body)
	}
	return out
}

// Do executes an HTTP request with retry logic. Retryable statuses that
// persist past the last attempt are returned as a response, not an error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			shift := min(attempt-1, 30)
			waitTime := c.config.RetryWaitMin * time.Duration(1<<shift)
			if waitTime > c.config.RetryWaitMax {
				waitTime = c.config.RetryWaitMax
			}

			c.logger.Debug("Retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", waitTime),
			)
			if c.recorder != nil {
				c.recorder.RecordRetry()
			}

			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			if isRetryable(err) {
				continue
			}
			return nil, err
		}

		if shouldRetry(resp.StatusCode) && attempt < c.config.MaxRetries {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(resp.Body))
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Get is a convenience wrapper for GET requests.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Download fetches an absolute or host-relative URL, such as a log archive
// link returned by the export endpoint.
func (c *Client) Download(ctx context.Context, rawURL string, authenticator Authenticator) (*Response, error) {
	resolved, err := c.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, &Request{
		Method:        http.MethodGet,
		URL:           resolved,
		Authenticator: authenticator,
		Headers:       map[string]string{"Accept": "*/*"},
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	return resp, nil
}

// ResolveURL resolves a relative URL against the configured host.
func (c *Client) ResolveURL(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.Host() + "/")
	if err != nil {
		return "", fmt.Errorf("invalid host: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// BuildURL returns <host>/api<path>?<query>.
func (c *Client) BuildURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.Host() + APIPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) doRequest(ctx context.Context, req *Request) (*Response, error) {
	if c.rateLimiter != nil {
		if !c.rateLimiter.Allow() {
			if c.recorder != nil {
				c.recorder.RecordRateLimitHit()
			}
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait failed: %w", err)
			}
		}
	}

	requestURL := req.URL
	if requestURL == "" {
		requestURL = c.BuildURL(req.Path, req.Query)
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", fmt.Sprintf("mcp-croit-ceph/%s", c.version))

	authenticator := c.authenticator
	if req.Authenticator != nil {
		authenticator = req.Authenticator
	}
	if err := authenticator.Authenticate(httpReq); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	safeURL := security.MaskURL(requestURL)
	c.logger.Debug("Executing HTTP request",
		zap.String("method", req.Method),
		zap.String("url", safeURL),
	)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("HTTP request failed",
			zap.String("error", security.SanitizeError(err)),
			zap.String("method", req.Method),
			zap.String("url", safeURL),
			zap.Duration("duration", duration),
		)
		if c.recorder != nil {
			c.recorder.RecordRequest(false, duration, 0)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("HTTP request completed",
		zap.String("method", req.Method),
		zap.String("url", safeURL),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
		zap.Int("response_size", len(body)),
	)
	if c.recorder != nil {
		c.recorder.RecordRequest(httpResp.StatusCode < 400, duration, httpResp.StatusCode)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

// isRetryable determines if an error is retryable (transient network errors)
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(opErr.Err, syscall.ETIMEDOUT) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset",
		"connection refused",
		"network is unreachable",
		"i/o timeout",
		"tls handshake timeout",
		"eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// shouldRetry determines if an HTTP status code should trigger a retry
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Close closes the client and releases resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

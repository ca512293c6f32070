package fetlife

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/ratelimit"
	"github.com/OEngineer/fetscraper/pkg/retry"
)

const (
	// chunkSize is the buffer size used when streaming bodies to disk
	chunkSize = 8192

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultUserAgent  = "FetScraper/1.0 (Personal Use)"
)

// Options configures a Client
type Options struct {
	Timeout        time.Duration
	RateLimitDelay time.Duration
	MaxRetries     int
	UserAgent      string
	Logger         logger.Logger
	// Backoff overrides the retry backoff strategy, mainly for tests
	Backoff retry.BackoffStrategy
}

// Client is the rate-limited HTTP client for the target site. Session
// state (cookies, CSRF token, authenticated flag) lives on the client;
// one client is shared by every component of a run.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	headers    map[string]string
	timeout    time.Duration
	maxRetries int
	backoff    retry.BackoffStrategy
	logger     logger.Logger

	mu            sync.Mutex
	csrfToken     string
	authenticated bool
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	// FinalURL is the request URL after following redirects
	FinalURL string
	Header   http.Header
}

// Stream is an open HTTP body for chunked transfer to disk
type Stream struct {
	Body          io.ReadCloser
	ContentLength int64
}

// NewClient creates a client with a cookie jar and default headers
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &Client{
		httpClient: &http.Client{Jar: jar},
		limiter:    ratelimit.NewIntervalGate(opts.RateLimitDelay),
		headers: map[string]string{
			"User-Agent":                opts.UserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.5",
			"DNT":                       "1",
			"Connection":                "keep-alive",
			"Upgrade-Insecure-Requests": "1",
		},
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}
}

// Limiter exposes the shared request gate, mainly for tests
func (c *Client) Limiter() ratelimit.Limiter {
	return c.limiter
}

// SetHeader sets a custom header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetCSRFToken records the anti-forgery token for this session
func (c *Client) SetCSRFToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrfToken = token
}

// CSRFToken returns the recorded anti-forgery token
func (c *Client) CSRFToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrfToken
}

// MarkAuthenticated flips the session's authenticated flag
func (c *Client) MarkAuthenticated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = v
}

// IsAuthenticated reports whether the session has logged in
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Close releases idle connections held by the client
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Get performs a rate-limited GET with bounded retry on transient failures
func (c *Client) Get(rawURL string) (*Response, error) {
	return c.GetWithTimeout(rawURL, c.timeout)
}

// GetWithTimeout performs a GET with an explicit per-request timeout
func (c *Client) GetWithTimeout(rawURL string, timeout time.Duration) (*Response, error) {
	cfg := &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     context.Background(),
		Logger:      c.logger,
	}

	return retry.DoWithResult(func() (*Response, error) {
		return c.getOnce(rawURL, timeout)
	}, cfg)
}

func (c *Client) getOnce(rawURL string, timeout time.Duration) (*Response, error) {
	c.limiter.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, errors.HTTP(resp.StatusCode, rawURL)
	}
	return out, nil
}

// Post performs a rate-limited form POST. POST is not idempotent, so it
// is never retried automatically.
func (c *Client) Post(rawURL string, form url.Values) (*Response, error) {
	c.limiter.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, errors.HTTP(resp.StatusCode, rawURL)
	}
	return out, nil
}

// OpenStream performs a rate-limited GET and returns the open body for
// chunked reading. The caller owns Body and must close it. The per-request
// timeout covers only the response headers so long transfers are not cut off.
func (c *Client) OpenStream(ctx context.Context, rawURL string) (*Stream, error) {
	cfg := &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	}

	return retry.DoWithResult(func() (*Stream, error) {
		return c.openStreamOnce(ctx, rawURL)
	}, cfg)
}

func (c *Client) openStreamOnce(ctx context.Context, rawURL string) (*Stream, error) {
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.HTTP(resp.StatusCode, rawURL)
	}

	return &Stream{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}

// DownloadToFile streams the body at url to path in fixed-size chunks and
// returns the number of bytes written. On failure the partial file is left
// behind; discarding it is the caller's responsibility.
func (c *Client) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	stream, err := c.OpenStream(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer stream.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Download("create %s: %v", path, err)
	}

	written, err := io.CopyBuffer(f, stream.Body, make([]byte, chunkSize))
	closeErr := f.Close()

	if err != nil {
		return written, errors.Download("write %s: %v", path, err)
	}
	if closeErr != nil {
		return written, errors.Download("close %s: %v", path, closeErr)
	}
	return written, nil
}

// do sends the request with the configured headers and logs the outcome
func (c *Client) do(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration.String(),
		})
		return nil, errors.Network(req.URL.String(), fmt.Errorf("%s %s: %w", req.Method, req.URL, err))
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration.String(),
	})

	return resp, nil
}

// Package preservica is a small client for the Preservica REST and S3
// gateway APIs: token login, folder listing, simple asset packages, and
// direct or bulk package uploads.
package preservica

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/preservica-tools/preservica-upload/internal/config"
	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/http"
	"github.com/preservica-tools/preservica-upload/internal/logging"
)

// TokenHeader carries the session token on every authenticated request.
const TokenHeader = "Preservica-Access-Token"

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, nethttp.StatusText(e.StatusCode), e.Body)
}

// Client talks to one Preservica tenant.
type Client struct {
	cfg        *config.Config
	baseURL    string
	api        *nethttp.Client // retrying client for REST calls
	transfer   *nethttp.Client // optimized client for package uploads
	limiter    *rate.Limiter
	logger     *logging.Logger
	partSize   int64
	tempDir    string
	retryDelay time.Duration

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClients overrides the REST and transfer HTTP clients.
func WithHTTPClients(api, transfer *nethttp.Client) Option {
	return func(c *Client) {
		c.api = api
		c.transfer = transfer
	}
}

// WithPartSize overrides the multipart part size for bulk uploads.
func WithPartSize(n int64) Option {
	return func(c *Client) { c.partSize = n }
}

// WithTempDir sets where asset packages are written.
func WithTempDir(dir string) Option {
	return func(c *Client) { c.tempDir = dir }
}

// WithRateLimit overrides the REST request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient creates a client from configuration. No network calls are made
// until the first request.
func NewClient(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    cfg.ServerURL(),
		limiter:    rate.NewLimiter(rate.Limit(constants.APIRequestsPerSecond), constants.APIRequestBurst),
		logger:     logger,
		partSize:   constants.PartSize,
		retryDelay: constants.RetryInitialDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transfer == nil {
		transfer, err := http.CreateOptimizedClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
		c.transfer = transfer
	}
	if c.api == nil {
		base, err := http.ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
		zl := logger.With().Str("component", "preservica-api").Logger()
		c.api = http.NewRetryingClient(base, zl, http.RetryOptions{})
	}

	return c, nil
}

// doRequest performs a rate-limited REST call. path may be absolute (as
// returned in paging links) or relative to the server URL. Authenticated
// calls log in first and retry once with a fresh token on 401.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values, authenticated bool) ([]byte, error) {
	body, status, err := c.send(ctx, method, path, form, authenticated)
	if err != nil {
		return nil, err
	}
	if status == nethttp.StatusUnauthorized && authenticated {
		c.logger.Debug().Str("path", path).Msg("token rejected, logging in again")
		c.invalidateToken()
		body, status, err = c.send(ctx, method, path, form, authenticated)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status > 299 {
		return nil, &APIError{Method: method, Path: path, StatusCode: status, Body: strings.TrimSpace(truncate(string(body), 512))}
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path string, form url.Values, authenticated bool) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", userAgent())

	if authenticated {
		token, err := c.Token(ctx)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

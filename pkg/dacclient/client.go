// Package dacclient implements the API Client (component B): a single
// authenticated, rate-limited, retry-aware transport to the external DAC
// platform, plus the typed endpoints for the datasets/users/permissions surface.
package dacclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacerr"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dactoken"
)

// MaxBatch is the ceiling on a single PUT/POST/DELETE body.
// Callers must chunk; the client never chunks on the caller's behalf.
const MaxBatch = 2000

// TokenAcquirer is the subset of the Token Manager the client depends on.
type TokenAcquirer interface {
	Acquire(ctx context.Context) (*dactoken.Token, error)
	Invalidate()
}

// Client is the single authenticated transport to the external platform.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenAcquirer
	limiter    *rate.Limiter
	logger     log.Logger
}

// Config carries the API Client's transport settings.
type Config struct {
	BaseURL            string
	MaxRequestLimit    int
	MaxRequestInterval time.Duration
	HTTPClient         *http.Client
}

// New builds an API Client sharing a single rate limiter and HTTP
// connection pool across every endpoint call.
func New(cfg Config, tokens TokenAcquirer, logger log.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := cfg.MaxRequestLimit
	if limit <= 0 {
		limit = 3
	}
	interval := cfg.MaxRequestInterval
	if interval <= 0 {
		interval = time.Second
	}
	// N requests per T: the refill rate is N events per interval T, with a
	// burst of N.
	everyInterval := interval / time.Duration(limit)
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Every(everyInterval), limit),
		logger:     logger,
	}
}

// request is an outbound call description, retained so it can be replayed
// verbatim on a single-shot retry.
type request struct {
	method string
	path   string
	query  map[string]string
	body   []byte
}

func (c *Client) buildURL(path string, query map[string]string) string {
	u := c.baseURL + path
	if len(query) == 0 {
		return u
	}
	first := true
	for k, v := range query {
		sep := "&"
		if first {
			sep = "?"
			first = false
		}
		u += fmt.Sprintf("%s%s=%s", sep, k, v)
	}
	return u
}

// do executes req, applying the rate limiter and the response interception
// rules: a single retry for 401 (after token refresh),
// 429, 504 and connection reset; BadRequest/NotFound are returned
// immediately without retry; any other 5xx is a ServerError.
func (c *Client) do(ctx context.Context, req request) ([]byte, int, error) {
	return c.doAttempt(ctx, req, false)
}

func (c *Client) doAttempt(ctx context.Context, req request, isRetry bool) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, dacerr.Wrap(dacerr.KindServerError, "rate limiter wait aborted", err)
	}

	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return nil, 0, dacerr.Wrap(dacerr.KindInvalidTokenResponse, "could not acquire access token", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.buildURL(req.path, req.query), bytes.NewReader(req.body))
	if err != nil {
		return nil, 0, dacerr.Wrap(dacerr.KindServerError, "could not build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if len(req.body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if !isRetry && isConnReset(err) {
			c.logger.Debug("connection reset, retrying once", "path", req.path)
			return c.doAttempt(ctx, req, true)
		}
		return nil, 0, dacerr.Wrap(dacerr.KindConnReset, "transport error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, dacerr.Wrap(dacerr.KindServerError, "could not read response body", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return body, resp.StatusCode, nil
	case http.StatusUnauthorized:
		if isRetry {
			return nil, resp.StatusCode, dacerr.New(dacerr.KindServerError, "second 401 after token refresh")
		}
		c.logger.Debug("received 401, invalidating token and retrying once", "path", req.path)
		c.tokens.Invalidate()
		return c.doAttempt(ctx, req, true)
	case http.StatusBadRequest:
		return nil, resp.StatusCode, dacerr.New(dacerr.KindBadRequest, string(body))
	case http.StatusNotFound:
		return nil, resp.StatusCode, dacerr.New(dacerr.KindNotFound, string(body))
	case http.StatusTooManyRequests:
		if isRetry {
			return nil, resp.StatusCode, dacerr.New(dacerr.KindTooManyRequests, "repeated 429 after retry")
		}
		return c.doAttempt(ctx, req, true)
	case http.StatusGatewayTimeout:
		if isRetry {
			return nil, resp.StatusCode, dacerr.New(dacerr.KindGatewayTimeout, "repeated 504 after retry")
		}
		return c.doAttempt(ctx, req, true)
	default:
		if resp.StatusCode >= 500 {
			return nil, resp.StatusCode, dacerr.New(dacerr.KindServerError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)))
		}
		return nil, resp.StatusCode, dacerr.New(dacerr.KindServerError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}
}

func isConnReset(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(err.Error(), "connection reset") || strings.Contains(err.Error(), "EOF")
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

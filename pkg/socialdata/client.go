package socialdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xrecap/pkg/config"
	errs "xrecap/pkg/errors"
	"xrecap/pkg/logger"
	"xrecap/pkg/ratelimit"
	"xrecap/pkg/retry"
)

// Client wraps the upstream HTTP API. Every request passes through the
// shared sliding-window throttle and a bounded retry loop for transient
// failures; terminal statuses (402, 404) surface immediately as classified
// errors.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	throttle   ratelimit.Limiter
	retryCfg   config.RateLimitConfig
	logger     logger.Logger

	// Injectable for tests.
	sleep func(time.Duration)
}

// NewClient creates an API client. The throttle is shared: pass the same
// limiter to every client so concurrent fetches respect one rate budget.
func NewClient(cfg *config.Config, throttle ratelimit.Limiter, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.API.BaseURL,
		key:     cfg.API.Key,
		httpClient: &http.Client{
			Timeout: cfg.API.Timeout,
		},
		throttle: throttle,
		retryCfg: cfg.RateLimit,
		logger:   log,
		sleep:    time.Sleep,
	}
}

// WithKey returns a shallow copy of the client using a different API key.
// The throttle and the underlying HTTP client are shared with the original.
func (c *Client) WithKey(key string) *Client {
	clone := *c
	clone.key = key
	return &clone
}

// FetchProfile retrieves the profile for a handle.
func (c *Client) FetchProfile(ctx context.Context, handle string) (*Profile, error) {
	body, err := c.get(ctx, ProfileURL(c.baseURL, handle))
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, errs.New(errs.TypeUpstream, 0, "failed to parse profile response: %v", err)
	}
	if profile.IDStr == "" {
		return nil, errs.New(errs.TypeNotFound, 404, "user %s not found", SanitizeHandle(handle))
	}
	return &profile, nil
}

// Search retrieves one page of posts matching a query, optionally resuming
// from a pagination cursor.
func (c *Client) Search(ctx context.Context, query, cursor string) (*SearchResponse, error) {
	body, err := c.get(ctx, SearchURL(c.baseURL, query, cursor))
	if err != nil {
		return nil, err
	}

	var page SearchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errs.New(errs.TypeUpstream, 0, "failed to parse search response: %v", err)
	}
	return &page, nil
}

// get performs a throttled, retried GET and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	retryCfg := &retry.Config{
		MaxAttempts: c.retryCfg.MaxRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay: c.retryCfg.RetryBaseDelay,
			MaxDelay:  c.retryCfg.RetryMaxDelay,
			JitterMax: c.retryCfg.RetryJitterMax,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  c.logger,
	}

	body, err := retry.DoWithResult(func() ([]byte, error) {
		c.throttle.Wait()
		return c.doRequest(ctx, url)
	}, retryCfg)

	if err != nil && errs.IsRateLimited(err) {
		// Retries exhausted against a rate-limited upstream. Cool down
		// before handing the error up so a caller that immediately retries
		// the page does not hammer the API.
		if c.logger != nil {
			c.logger.WarnWithFields("rate limited, cooling down", map[string]interface{}{
				"cooldown": c.retryCfg.RateLimitCooldown.String(),
			})
		}
		c.sleep(c.retryCfg.RateLimitCooldown)
	}

	return body, err
}

// doRequest performs a single HTTP request and classifies the outcome.
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.New(errs.TypeNetwork, 0, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.TypeNetwork, 0, "failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	return nil, c.classifyStatus(resp.StatusCode, body)
}

// classifyStatus maps a non-200 response to a classified error.
func (c *Client) classifyStatus(status int, body []byte) error {
	message := upstreamMessage(body)

	switch {
	case status == http.StatusPaymentRequired:
		return errs.New(errs.TypeQuotaExhausted, status, "subscription limit reached: %s", message)
	case status == http.StatusTooManyRequests:
		return errs.New(errs.TypeRateLimit, status, "rate limited by upstream: %s", message)
	case status == http.StatusNotFound:
		return errs.New(errs.TypeNotFound, status, "not found: %s", message)
	case status == http.StatusRequestTimeout:
		return errs.New(errs.TypeTimeout, status, "upstream timeout: %s", message)
	case errs.IsRetryableStatusCode(status):
		return errs.New(errs.TypeUpstream, status, "upstream error: %s", message)
	default:
		return errs.New(errs.TypeUpstream, status, "unexpected status %d: %s", status, message)
	}
}

// upstreamMessage extracts the error message from an API error payload,
// falling back to the raw body.
func upstreamMessage(body []byte) string {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

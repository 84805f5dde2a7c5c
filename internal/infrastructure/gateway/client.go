package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minimart/checkout/internal/pkg/retry"
)

// Config is shared by the provider-backed adapters.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts uint
	RetryPolicy retry.Policy
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryPolicy == (retry.Policy{}) {
		c.RetryPolicy = retry.Default
	}
	return c
}

// providerClient performs JSON calls against a provider API, retrying only
// transient failures (network errors and 5xx responses). 4xx responses and
// malformed bodies are permanent: retrying a rejected or garbled payment call
// cannot succeed and must fail closed instead.
type providerClient struct {
	http        *http.Client
	apiKey      string
	maxAttempts uint
	policy      retry.Policy
}

func newProviderClient(cfg Config) *providerClient {
	return &providerClient{
		http:        &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		policy:      cfg.RetryPolicy,
	}
}

func (c *providerClient) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, payload, out)
}

func (c *providerClient) getJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

func (c *providerClient) do(ctx context.Context, method, url string, payload []byte, out any) error {
	return c.policy.Do(ctx, c.maxAttempts, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("provider call: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return retry.Permanent(fmt.Errorf("provider rejected request: %d", resp.StatusCode))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("malformed provider response: %w", err))
		}
		return nil
	})
}

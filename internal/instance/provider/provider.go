// Package provider is the HTTP adapter for the upstream compute API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fleetgate/internal/instance"
	dErrors "fleetgate/pkg/domain-errors"
	"fleetgate/pkg/platform/circuit"
)

// Client calls the provider's instance API. All calls carry a bounded
// timeout, and a circuit breaker stops the gateway from hammering a
// provider that is already down.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
}

type Option func(*Client)

// WithBreaker overrides the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse provider base URL: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New("instance-provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) List(ctx context.Context) ([]instance.Instance, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/instances")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, dErrors.New(dErrors.CodeDownstream, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
	c.breaker.RecordSuccess()

	var instances []instance.Instance
	if err := json.NewDecoder(resp.Body).Decode(&instances); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeDownstream, "decode provider response", err)
	}
	return instances, nil
}

func (c *Client) Reboot(ctx context.Context, instanceID string) error {
	endpoint := c.baseURL + "/instances/" + url.PathEscape(instanceID) + "/reboot"
	resp, err := c.do(ctx, http.MethodPost, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		c.breaker.RecordSuccess()
		return nil
	case http.StatusNotFound:
		// A 404 is an answer from a healthy provider, not an outage.
		c.breaker.RecordSuccess()
		return dErrors.New(dErrors.CodeNotFound, "instance not found")
	default:
		c.breaker.RecordFailure()
		return dErrors.New(dErrors.CodeDownstream, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
}

// do runs one provider call through the breaker. Transport failures count
// against the circuit; HTTP status handling is the caller's job.
func (c *Client) do(ctx context.Context, method, endpoint string) (*http.Response, error) {
	if !c.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeDownstream, "provider temporarily unavailable")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeDownstream, "provider request failed", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, dErrors.Wrap(dErrors.CodeDownstream, "provider unreachable", err)
	}
	return resp, nil
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling out while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ServerError is a 5xx response. It counts as a breaker failure and is retried.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the endpoint group, e.g. "feed-rest".
	Name string

	// Timeout bounds each individual attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 2
	MaxRetries uint64

	// NoRetries disables retries regardless of MaxRetries.
	NoRetries bool

	// InitialInterval is the first retry delay.
	// Default: 200ms
	InitialInterval time.Duration

	// MaxInterval caps the retry delay.
	// Default: 2 seconds
	MaxInterval time.Duration

	// CircuitBreaker overrides the breaker settings.
	// Default: DefaultCircuitBreakerConfig(Name)
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives health updates. Optional.
	Registry *Registry

	// Transport is used for outgoing requests.
	// Default: http.DefaultTransport
	Transport http.RoundTripper
}

// DefaultClientConfig returns the defaults for an endpoint group.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client is an HTTP client guarded by a circuit breaker with bounded retries.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a resilient client and registers it when a registry is set.
func NewClient(cfg ClientConfig) *Client {
	defaults := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.NoRetries {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}
	if cfg.CircuitBreaker == nil {
		cfg.CircuitBreaker = defaults.CircuitBreaker
	}
	if cfg.CircuitBreaker.Name == "" {
		cfg.CircuitBreaker.Name = cfg.Name
	}

	c := &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		breaker:         newCircuitBreaker[*http.Response](*cfg.CircuitBreaker), //nolint:bodyclose // type param
		registry:        cfg.Registry,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}

	if c.registry != nil {
		c.registry.Register(c)
	}
	return c
}

// Name returns the endpoint group name.
func (c *Client) Name() string {
	return c.name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counters.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req through the breaker, retrying network errors and 5xx responses
// with exponential backoff. 4xx responses are returned as-is. When every
// attempt ends in a 5xx, the last response is returned together with its
// *ServerError. Request bodies are replayed with req.GetBody.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)

	var last *http.Response

	attempt := func() error {
		if last != nil {
			drain(last)
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.send(ctx, req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			last = resp
			return err
		}

		last = resp
		return nil
	}

	err := backoff.Retry(attempt, policy)
	c.record(err)

	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) && last != nil {
			return last, err
		}
		if last != nil {
			drain(last)
		}
		return nil, err
	}
	return last, nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, backoff.Permanent(errors.New("request body cannot be replayed"))
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		clone.Body = body
	}
	return c.httpClient.Do(clone)
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.name, err)
		return
	}
	c.registry.RecordSuccess(c.name)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

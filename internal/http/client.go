// Package http executes requests against the server and classifies every
// result into an outcome kind.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/deploy-client/internal/constants"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

var errServerFailure = errors.New("server failure")

// Request describes a call. Path may be an absolute URL, an absolute path,
// an application-relative path ("~/api/...") or a path relative to the base
// URL. Body is encoded as JSON unless it is already a []byte.
type Request struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// Response is a successful response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client executes single requests. It does not retry.
type Client struct {
	baseURL      *url.URL
	transport    Transport
	auth         deploy.Authenticator
	interceptors *deploy.InterceptorChain
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[*deploy.Response]
	metrics      *Metrics
	logger       deploy.Logger
	debug        bool
	userAgent    string
	timeout      time.Duration
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the default go-retryablehttp transport.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithHTTPClient reuses httpClient's transport settings.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithAuthenticator sets the credential source.
func WithAuthenticator(auth deploy.Authenticator) Option {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithInterceptors sets the interceptor chain.
func WithInterceptors(chain *deploy.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithRateLimit limits the request rate.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCircuitBreaker routes requests through a circuit breaker.
func WithCircuitBreaker(config *deploy.CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breaker = newBreaker(config, c)
	}
}

// WithMetrics records request metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithLogger sets the logger.
func WithLogger(logger deploy.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", deploy.ErrNoHostInURL, baseURL)
	}

	c := &Client{
		baseURL:   parsed,
		logger:    deploy.NoopLogger{},
		userAgent: constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		var transportLogger deploy.Logger
		if c.debug {
			transportLogger = c.logger
		}

		c.transport = NewRetryableTransport(c.httpClient, c.timeout, transportLogger)
	}

	return c, nil
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// ResolveURL turns a link or path into an absolute URL.
func (c *Client) ResolveURL(path string) (string, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return strings.TrimSuffix(c.baseURL.String(), "/") + "/" + rest, nil
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing link %q: %w", path, err)
	}

	if !ref.IsAbs() && !strings.HasPrefix(path, "/") {
		base := *c.baseURL
		base.Path = strings.TrimSuffix(base.Path, "/") + "/"

		return base.ResolveReference(ref).String(), nil
	}

	return c.baseURL.ResolveReference(ref).String(), nil
}

// Do sends req once and classifies the result. On failure the returned
// error is a *deploy.Error; the response is returned alongside it when the
// server answered.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &deploy.Error{Kind: deploy.Cancelled, Method: req.Method, URL: req.Path, Err: err}
	}

	target, err := c.ResolveURL(req.Path)
	if err != nil {
		return nil, &deploy.Error{Kind: deploy.Fatal, Method: req.Method, URL: req.Path, Err: err}
	}

	outgoing, err := c.prepare(ctx, req, target)
	if err != nil {
		return nil, classifyError(ctx, req.Method, target, err)
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": outgoing.Method,
			"url":    outgoing.URL,
		})
	}

	start := time.Now()
	resp, sendErr := c.send(ctx, outgoing)

	intercepted := resp
	if intercepted == nil {
		intercepted = &deploy.Response{Error: sendErr}
	}

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, outgoing, intercepted)

	var result error

	switch {
	case sendErr != nil:
		result = classifyError(ctx, outgoing.Method, target, sendErr)
	case interceptErr != nil:
		result = &deploy.Error{Kind: deploy.Fatal, Method: outgoing.Method, URL: target, Err: interceptErr}
	default:
		result = classifyResponse(outgoing.Method, target, resp)
	}

	c.metrics.observe(outgoing.Method, deploy.KindOf(result), time.Since(start))

	if resp == nil {
		return nil, result
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      outgoing.Method,
			"url":         target,
			"status_code": resp.StatusCode,
			"duration":    time.Since(start).String(),
		})
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Headers, Body: resp.Body}, result
}

func (c *Client) prepare(ctx context.Context, req *Request, target string) (*deploy.Request, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	outgoing := &deploy.Request{
		Method:   req.Method,
		URL:      target,
		Headers:  make(http.Header),
		Body:     body,
		Metadata: make(map[string]interface{}),
	}

	outgoing.Headers.Set("Accept", "application/json")
	outgoing.Headers.Set("User-Agent", c.userAgent)

	if body != nil {
		outgoing.Headers.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		outgoing.Headers.Set(key, value)
	}

	if c.auth != nil {
		err = c.auth.Authenticate(ctx, outgoing.Headers)
		if err != nil {
			return nil, &deploy.Error{Kind: deploy.Fatal, Method: req.Method, URL: target, Err: err}
		}
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, outgoing)
	if err != nil {
		return nil, interceptorError(ctx, req.Method, target, err)
	}

	if c.limiter != nil {
		err = c.limiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	return outgoing, nil
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, &deploy.Error{Kind: deploy.Fatal, Err: fmt.Errorf("encoding request body: %w", err)}
		}

		return data, nil
	}
}

func (c *Client) send(ctx context.Context, req *deploy.Request) (*deploy.Response, error) {
	if c.breaker == nil {
		return c.transport.Send(ctx, req)
	}

	resp, err := c.breaker.Execute(func() (*deploy.Response, error) {
		resp, err := c.transport.Send(ctx, req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= constants.HTTPStatusInternalServerError {
			return resp, errServerFailure
		}

		return resp, nil
	})

	switch {
	case errors.Is(err, errServerFailure):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", deploy.ErrCircuitOpen, err)
	default:
		return resp, err
	}
}

func newBreaker(config *deploy.CircuitBreakerConfig, c *Client) *gobreaker.CircuitBreaker[*deploy.Response] {
	threshold := uint32(constants.CircuitBreakerThreshold)
	timeout := constants.CircuitBreakerTimeout
	halfOpen := uint32(constants.CircuitBreakerHalfOpenRequests)

	if config != nil {
		if config.ConsecutiveFailures > 0 {
			threshold = config.ConsecutiveFailures
		}

		if config.Timeout > 0 {
			timeout = config.Timeout
		}

		if config.HalfOpenRequests > 0 {
			halfOpen = config.HalfOpenRequests
		}
	}

	return gobreaker.NewCircuitBreaker[*deploy.Response](gobreaker.Settings{
		Name:        "deploy-client",
		MaxRequests: halfOpen,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Decode unmarshals a successful response body into out. A body that does
// not decode is a fatal outcome.
func Decode(resp *Response, out interface{}) error {
	if out == nil || resp == nil || len(resp.Body) == 0 {
		return nil
	}

	err := json.Unmarshal(resp.Body, out)
	if err != nil {
		return &deploy.Error{
			Kind:       deploy.Fatal,
			StatusCode: resp.StatusCode,
			Message:    "unexpected response body",
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}

	if setter, ok := out.(deploy.ETagSetter); ok {
		if etag := resp.Headers.Get("ETag"); etag != "" {
			setter.SetETag(etag)
		}
	}

	return nil
}

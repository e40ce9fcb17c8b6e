package deploy

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// Request represents an HTTP request that can be intercepted.
type Request struct {
	Method   string
	URL      string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response represents an HTTP response that can be intercepted.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor is called before a request is sent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor is called after a response is received.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) *InterceptorChain {
	c.requestInterceptors = append(c.requestInterceptors, interceptor)

	return c
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) *InterceptorChain {
	c.responseInterceptors = append(c.responseInterceptors, interceptor)

	return c
}

// ExecuteRequestInterceptors runs all request interceptors.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	if c == nil {
		return nil
	}

	for _, interceptor := range c.requestInterceptors {
		err := interceptor(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs all response interceptors.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	if c == nil {
		return nil
	}

	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, req, resp)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// LoggingInterceptor logs requests.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("API Request", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs responses.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"method":      req.Method,
			"url":         req.URL,
			"status_code": resp.StatusCode,
		}

		if resp.Error != nil {
			fields["error"] = resp.Error.Error()
			logger.Error("API Response Error", fields)
		} else {
			logger.Debug("API Response", fields)
		}

		return nil
	}
}

// RateLimitInterceptor blocks until limiter admits the request.
func RateLimitInterceptor(limiter *rate.Limiter) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		err := limiter.Wait(ctx)
		if err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		return nil
	}
}

// AuthenticationInterceptor adds credentials from auth.
func AuthenticationInterceptor(auth Authenticator) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		err := auth.Authenticate(ctx, req.Headers)
		if err != nil {
			return fmt.Errorf("failed to authenticate request: %w", err)
		}

		return nil
	}
}

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

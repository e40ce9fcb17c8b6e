package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/deploy-client/internal/constants"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// ErrBuildRequest marks requests that could not be constructed.
var ErrBuildRequest = errors.New("building request")

// Transport sends a single prepared request. It returns a response for any
// status the server answered with and an error only when no response was
// received.
type Transport interface {
	Send(ctx context.Context, req *deploy.Request) (*deploy.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *deploy.Request) (*deploy.Response, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, req *deploy.Request) (*deploy.Response, error) {
	return f(ctx, req)
}

// RetryableTransport sends requests through go-retryablehttp. Its own retry
// loop is disabled; attempts are governed by the caller's retry policy.
type RetryableTransport struct {
	client *retryablehttp.Client
}

// NewRetryableTransport creates the default transport. httpClient may be nil.
func NewRetryableTransport(httpClient *http.Client, timeout time.Duration, logger deploy.Logger) *RetryableTransport {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if httpClient != nil {
		copied := *httpClient
		client.HTTPClient = &copied
	}

	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	client.HTTPClient.Timeout = timeout

	if logger != nil {
		client.Logger = &leveledLogger{logger: logger}
	} else {
		client.Logger = nil
	}

	return &RetryableTransport{client: client}
}

// Send implements Transport.
func (t *RetryableTransport) Send(ctx context.Context, req *deploy.Request) (*deploy.Response, error) {
	var body interface{}
	if req.Body != nil {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}

	httpReq.Header = req.Headers.Clone()

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &deploy.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// leveledLogger adapts deploy.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger deploy.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, toFields(keysAndValues))
}

func toFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		fields[key] = keysAndValues[i+1]
	}

	return fields
}

// Package retry re-attempts calls that failed transiently.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fivetwenty-io/deploy-client/internal/constants"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Call describes the request being retried.
type Call struct {
	Method         string
	IdempotencyKey string
}

// Retryable reports whether the call may be sent more than once.
func (c Call) Retryable() bool {
	switch c.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return c.IdempotencyKey != ""
	}
}

// Func performs one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Policy decides whether and when failed attempts are re-run. Only
// TransientFailure outcomes are retried.
type Policy struct {
	maxAttempts int
	waitMin     time.Duration
	waitMax     time.Duration
	onRetry     func(ctx context.Context, call Call, attempt int, err error)
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the number of attempts including the first.
func WithMaxAttempts(attempts int) Option {
	return func(p *Policy) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
	}
}

// WithBackoff sets the initial and maximum wait between attempts.
func WithBackoff(waitMin, waitMax time.Duration) Option {
	return func(p *Policy) {
		if waitMin > 0 {
			p.waitMin = waitMin
		}

		if waitMax > 0 {
			p.waitMax = waitMax
		}
	}
}

// WithOnRetry registers a hook called before every re-attempt with the
// failure that caused it.
func WithOnRetry(fn func(ctx context.Context, call Call, attempt int, err error)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// New creates a policy.
func New(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts: constants.DefaultRetryMaxAttempts,
		waitMin:     constants.DefaultRetryWaitMin,
		waitMax:     constants.DefaultRetryWaitMax,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.waitMax < p.waitMin {
		p.waitMax = p.waitMin
	}

	return p
}

// MaxAttempts returns the configured attempt limit.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// backoff builds a fresh backoff; go-retry backoffs are stateful.
// retry.Do counts the initial attempt, so maxAttempts-1 retries are allowed.
func (p *Policy) backoff(call Call) retry.Backoff {
	var retries uint64
	if call.Retryable() && p.maxAttempts > 1 {
		retries = uint64(p.maxAttempts - 1) // #nosec G115 - positive, checked above
	}

	return retry.WithMaxRetries(
		retries,
		retry.WithCappedDuration(
			p.waitMax,
			retry.WithJitterPercent(
				constants.RetryJitterPercent,
				retry.NewExponential(p.waitMin),
			),
		),
	)
}

// Do runs fn until it succeeds, fails with a non-transient outcome, the
// attempts are exhausted or ctx is done. It returns the number of attempts
// made and the terminal error; exhaustion surfaces the last transient
// failure.
func (p *Policy) Do(ctx context.Context, call Call, fn Func) (int, error) {
	var attempts int

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, &deploy.Error{Kind: deploy.Cancelled, Method: call.Method, Err: ctxErr}
	}

	err := retry.Do(ctx, p.backoff(call), func(ctx context.Context) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempts++

		err := fn(ctx, attempts)
		if err == nil {
			return nil
		}

		if !deploy.IsTransient(err) || !call.Retryable() || attempts >= p.maxAttempts {
			return err
		}

		if p.onRetry != nil {
			p.onRetry(ctx, call, attempts, err)
		}

		return retry.RetryableError(err)
	})
	if err == nil {
		return attempts, nil
	}

	// go-retry reports a done context with the bare context error.
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && !deploy.IsCancelled(err) {
		return attempts, &deploy.Error{Kind: deploy.Cancelled, Method: call.Method, Err: ctxErr}
	}

	return attempts, err
}

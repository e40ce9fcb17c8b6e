package deploy

import "github.com/google/uuid"

// IdempotencyKeyHeader carries the caller's idempotency key on create calls.
const IdempotencyKeyHeader = "Idempotency-Key"

// CallOptions tune a single repository call.
type CallOptions struct {
	IdempotencyKey string
	Headers        map[string]string
}

// CallOption configures CallOptions.
type CallOption func(*CallOptions)

// WithIdempotencyKey marks a create as safe to retry; the key is sent so the
// server can drop duplicates.
func WithIdempotencyKey(key string) CallOption {
	return func(o *CallOptions) {
		o.IdempotencyKey = key
	}
}

// WithGeneratedIdempotencyKey is WithIdempotencyKey with a random key.
func WithGeneratedIdempotencyKey() CallOption {
	return WithIdempotencyKey(uuid.NewString())
}

// WithHeader adds a header to the call.
func WithHeader(name, value string) CallOption {
	return func(o *CallOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}

		o.Headers[name] = value
	}
}

// ApplyCallOptions folds opts into a CallOptions value.
func ApplyCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

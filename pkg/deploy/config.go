package deploy

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config represents client configuration.
//
// # Authentication precedence
//
//  1. Authenticator: used as is when set.
//  2. APIKey: sent in the X-Octopus-ApiKey header.
//  3. AccessToken: sent as a Bearer token.
//  4. Nothing: requests are sent without credentials.
//
// # Retries
//
// Only transient failures are retried (5xx, 429, network errors, open
// circuit). RetryMaxAttempts counts the first try. POST requests are only
// retried when the call carries an idempotency key.
type Config struct {
	// ServerURL: base URL of the server (e.g., "https://deploy.example.com").
	// New normalizes it by trimming a trailing slash and adding "https://" if
	// no scheme is present.
	ServerURL string

	// APIKey: static API key.
	APIKey string
	// AccessToken: static bearer token, used when APIKey is empty.
	AccessToken string
	// Authenticator: overrides APIKey and AccessToken.
	Authenticator Authenticator

	// RootPath: path of the root document relative to ServerURL. Defaults to
	// "/api".
	RootPath string
	// RootDocument: when set, used instead of fetching the root document.
	RootDocument *RootDocument
	// RootDocumentStore: optional shared store for the fetched root document.
	RootDocumentStore *StoreConfig

	// HTTPTimeout: per-attempt timeout of the underlying HTTP client.
	HTTPTimeout time.Duration
	// HTTPClient: optional client whose transport (TLS, proxies, pooling) is
	// reused.
	HTTPClient *http.Client
	// RetryMaxAttempts: attempts per call including the first. If 0, a
	// default is used; 1 disables retries.
	RetryMaxAttempts int
	// RetryWaitMin: initial backoff between attempts.
	RetryWaitMin time.Duration
	// RetryWaitMax: backoff cap.
	RetryWaitMax time.Duration
	// Concurrency: maximum in-flight requests for one GetMany. If 0, a
	// default is used.
	Concurrency int

	// RateLimit: client-side requests per second; 0 disables limiting.
	RateLimit float64
	// RateBurst: burst size for RateLimit. Defaults to 1.
	RateBurst int
	// CircuitBreaker: when set, requests go through a circuit breaker.
	CircuitBreaker *CircuitBreakerConfig
	// MetricsRegisterer: when set, request and retry metrics are registered
	// with it.
	MetricsRegisterer prometheus.Registerer
	// Interceptors: extra request/response interceptors.
	Interceptors *InterceptorChain
	// Headers: static headers added to every request.
	Headers map[string]string

	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string
}

// CircuitBreakerConfig configures the request circuit breaker.
type CircuitBreakerConfig struct {
	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

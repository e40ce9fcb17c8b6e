package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second
)

// Retry and concurrency limits.
const (
	// DefaultRetryMaxAttempts is the default number of attempts per call,
	// counting the first.
	DefaultRetryMaxAttempts = 3

	// DefaultRetryWaitMin is the initial wait between attempts.
	DefaultRetryWaitMin = 500 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// RetryJitterPercent is the jitter applied to each backoff.
	RetryJitterPercent = 10
)

// Concurrency and batching limits.
const (
	// DefaultConcurrencyLimit limits concurrent lookups in one batch.
	DefaultConcurrencyLimit = 4

	// DefaultRateBurst is the burst allowed by the client-side rate limiter.
	DefaultRateBurst = 1
)

// Circuit breaker defaults.
const (
	// CircuitBreakerThreshold is the number of consecutive failures that
	// opens the circuit.
	CircuitBreakerThreshold = 5

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout = 60 * time.Second

	// CircuitBreakerHalfOpenRequests is the number of probes while half-open.
	CircuitBreakerHalfOpenRequests = 1
)

// HTTP status codes commonly used.
const (
	// HTTPStatusOK represents a successful HTTP response.
	HTTPStatusOK = 200

	// HTTPStatusMultipleChoices is the first non-success status.
	HTTPStatusMultipleChoices = 300

	// HTTPStatusInternalServerError represents server errors.
	HTTPStatusInternalServerError = 500
)

// Server conventions.
const (
	// DefaultRootPath is where the root document lives.
	DefaultRootPath = "/api"

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "deploy-client-go/1.0"

	// IDParameter is the template variable carrying a resource identifier.
	IDParameter = "id"

	// IDsParameter is the template variable advertising bulk lookups.
	IDsParameter = "ids"

	// TakeParameter is the template variable for page size.
	TakeParameter = "take"
)

package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// OutcomeKind classifies the terminal result of an operation.
type OutcomeKind int

// Outcome kinds.
const (
	Success OutcomeKind = iota
	NotFound
	Conflict
	ValidationFailure
	TransientFailure
	Cancelled
	Fatal
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case ValidationFailure:
		return "validation_failure"
	case TransientFailure:
		return "transient_failure"
	case Cancelled:
		return "cancelled"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Error is returned by every operation that does not succeed. Kind tells the
// caller how to react; Err carries the underlying cause when there is one.
type Error struct {
	Kind       OutcomeKind
	StatusCode int
	Method     string
	URL        string
	Message    string
	// Details holds field-level messages reported by the server.
	Details []string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.String())

	if e.Method != "" || e.URL != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.URL)
	}

	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if len(e.Details) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Details, "; "))
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, ErrNotFound) works for
// any not-found result regardless of status code or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.StatusCode == 0 && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Outcome kind sentinels for use with errors.Is.
var (
	ErrNotFound          = &Error{Kind: NotFound}
	ErrConflict          = &Error{Kind: Conflict}
	ErrValidationFailure = &Error{Kind: ValidationFailure}
	ErrTransientFailure  = &Error{Kind: TransientFailure}
	ErrCancelled         = &Error{Kind: Cancelled}
	ErrFatal             = &Error{Kind: Fatal}
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired        = errors.New("config is required")
	ErrServerURLRequired     = errors.New("server URL is required")
	ErrNoHostInURL           = errors.New("no host specified in URL")
	ErrUnknownRelation       = errors.New("relation not present in link set")
	ErrMissingParameter      = errors.New("required template parameter missing")
	ErrMalformedTemplate     = errors.New("malformed URI template")
	ErrEmptyIdentifier       = errors.New("identifier is empty")
	ErrNoSelfLink            = errors.New("resource has no Self link")
	ErrNoMorePages           = errors.New("no more pages")
	ErrNoMatch               = errors.New("no resource matched")
	ErrCircuitOpen           = errors.New("circuit breaker is open")
	ErrUnexpectedStatus      = errors.New("unexpected response status")
	ErrInvalidRootDocument   = errors.New("invalid root document")
	ErrRootDocumentNotStored = errors.New("root document not stored")
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS store")
	ErrFileStorePathRequired = errors.New("path required for file store")
	ErrUnsupportedStoreType  = errors.New("unsupported root document store type")
)

// NewError builds an *Error of the given kind wrapping err.
func NewError(kind OutcomeKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the outcome kind carried by err. A nil error is Success and
// an error that is not an *Error is Fatal.
func KindOf(err error) OutcomeKind {
	if err == nil {
		return Success
	}

	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}

	return Fatal
}

// IsNotFound checks if the error is a not found outcome.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == NotFound
}

// IsConflict checks if the error is a conflict outcome.
func IsConflict(err error) bool {
	return err != nil && KindOf(err) == Conflict
}

// IsValidationFailure checks if the error is a validation outcome.
func IsValidationFailure(err error) bool {
	return err != nil && KindOf(err) == ValidationFailure
}

// IsTransient checks if the error may succeed on a later attempt.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == TransientFailure
}

// IsCancelled checks if the error came from caller cancellation.
func IsCancelled(err error) bool {
	return err != nil && KindOf(err) == Cancelled
}

// IsFatal checks if the error is a non-retryable failure with no more
// specific classification.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == Fatal
}

// ErrorResponse is the error body returned by the server.
type ErrorResponse struct {
	ErrorMessage string            `json:"ErrorMessage"`
	Errors       []string          `json:"Errors,omitempty"`
	Details      map[string]string `json:"Details,omitempty"`
	HelpText     string            `json:"HelpText,omitempty"`
}

// Messages flattens the response into field-level messages, sorted by field
// name for Details entries.
func (r *ErrorResponse) Messages() []string {
	messages := make([]string, 0, len(r.Errors)+len(r.Details))
	messages = append(messages, r.Errors...)

	keys := make([]string, 0, len(r.Details))
	for key := range r.Details {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		messages = append(messages, key+": "+r.Details[key])
	}

	return messages
}

// ParseErrorResponse parses an error response from JSON.
func ParseErrorResponse(data []byte) (*ErrorResponse, error) {
	var errResp ErrorResponse

	err := json.Unmarshal(data, &errResp)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal error response: %w", err)
	}

	return &errResp, nil
}

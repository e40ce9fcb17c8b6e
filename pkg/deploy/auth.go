package deploy

import (
	"context"
	"net/http"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-Octopus-ApiKey"

// Authenticator supplies credentials for a request.
type Authenticator interface {
	Authenticate(ctx context.Context, header http.Header) error
}

// APIKey authenticates with a static API key.
type APIKey string

// Authenticate implements Authenticator.
func (k APIKey) Authenticate(_ context.Context, header http.Header) error {
	header.Set(APIKeyHeader, string(k))

	return nil
}

// BearerToken authenticates with a static access token.
type BearerToken string

// Authenticate implements Authenticator.
func (t BearerToken) Authenticate(_ context.Context, header http.Header) error {
	header.Set("Authorization", "Bearer "+string(t))

	return nil
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, header http.Header) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, header http.Header) error {
	return f(ctx, header)
}

package deployclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/deploy-client/internal/client"
	"github.com/fivetwenty-io/deploy-client/internal/paging"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Client is a session against one server.
type Client = client.Client

// Repository gives typed access to one collection.
type Repository[T deploy.Entity] = client.Repository[T]

// PageIterator walks a paginated listing.
type PageIterator[T any] = paging.Iterator[T]

// New creates a client. The server URL is normalized: a trailing slash is
// removed and "https://" is added when no scheme is given.
func New(ctx context.Context, config *deploy.Config) (*Client, error) {
	if config == nil {
		return nil, deploy.ErrConfigRequired
	}

	if config.ServerURL == "" {
		return nil, deploy.ErrServerURLRequired
	}

	serverURL := strings.TrimSuffix(config.ServerURL, "/")
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		serverURL = "https://" + serverURL
	}

	normalized := *config
	normalized.ServerURL = serverURL

	c, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewRepository creates a repository for a collection relation that has no
// dedicated accessor on Client.
func NewRepository[T deploy.Entity](c *Client, relation string) *Repository[T] {
	return client.NewRepository[T](c, relation)
}

// LoadRootDocumentFile reads a root document from a YAML or JSON file, in
// either the enveloped or the flat form.
func LoadRootDocumentFile(path string) (*deploy.RootDocument, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the caller
	if err != nil {
		return nil, fmt.Errorf("reading root document: %w", err)
	}

	return deploy.ParseRootDocumentYAML(data)
}

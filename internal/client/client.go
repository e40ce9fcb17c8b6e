package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/deploy-client/internal/constants"
	internalhttp "github.com/fivetwenty-io/deploy-client/internal/http"
	"github.com/fivetwenty-io/deploy-client/internal/links"
	"github.com/fivetwenty-io/deploy-client/internal/retry"
	"github.com/fivetwenty-io/deploy-client/internal/rootdoc"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Client is a session against one server. It owns the transport, the retry
// policy and the root document cache shared by every repository.
type Client struct {
	httpClient  *internalhttp.Client
	retry       *retry.Policy
	root        *rootdoc.Cache
	store       deploy.RootDocumentStore
	resolver    *links.Resolver
	metrics     *internalhttp.Metrics
	logger      deploy.Logger
	concurrency int
	rootPath    string

	projects     *Repository[deploy.Project]
	releases     *Repository[deploy.Release]
	environments *Repository[deploy.Environment]
	feeds        *Repository[deploy.Feed]
	spaces       *Repository[deploy.Space]
}

// createAuthenticator picks the credential source from config.
func createAuthenticator(config *deploy.Config) deploy.Authenticator {
	switch {
	case config.Authenticator != nil:
		return config.Authenticator
	case config.APIKey != "":
		return deploy.APIKey(config.APIKey)
	case config.AccessToken != "":
		return deploy.BearerToken(config.AccessToken)
	default:
		return nil // No authentication
	}
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *deploy.Config, logger deploy.Logger, metrics *internalhttp.Metrics) []internalhttp.Option {
	httpOpts := []internalhttp.Option{
		internalhttp.WithLogger(logger),
		internalhttp.WithDebug(config.Debug),
		internalhttp.WithMetrics(metrics),
		internalhttp.WithTimeout(config.HTTPTimeout),
		internalhttp.WithHTTPClient(config.HTTPClient),
	}

	if auth := createAuthenticator(config); auth != nil {
		httpOpts = append(httpOpts, internalhttp.WithAuthenticator(auth))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, internalhttp.WithUserAgent(config.UserAgent))
	}

	chain := config.Interceptors
	if len(config.Headers) > 0 {
		chain = deploy.NewInterceptorChain().
			AddRequestInterceptor(deploy.HeaderInterceptor(config.Headers))

		if config.Interceptors != nil {
			chain.AddRequestInterceptor(config.Interceptors.ExecuteRequestInterceptors)
			chain.AddResponseInterceptor(config.Interceptors.ExecuteResponseInterceptors)
		}
	}

	if chain != nil {
		httpOpts = append(httpOpts, internalhttp.WithInterceptors(chain))
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = constants.DefaultRateBurst
		}

		httpOpts = append(httpOpts, internalhttp.WithRateLimit(rate.NewLimiter(rate.Limit(config.RateLimit), burst)))
	}

	if config.CircuitBreaker != nil {
		httpOpts = append(httpOpts, internalhttp.WithCircuitBreaker(config.CircuitBreaker))
	}

	return httpOpts
}

// createRetryPolicy builds the retry policy; every re-attempt is logged and
// counted.
func createRetryPolicy(config *deploy.Config, logger deploy.Logger, metrics *internalhttp.Metrics) *retry.Policy {
	return retry.New(
		retry.WithMaxAttempts(config.RetryMaxAttempts),
		retry.WithBackoff(config.RetryWaitMin, config.RetryWaitMax),
		retry.WithOnRetry(func(_ context.Context, call retry.Call, attempt int, err error) {
			metrics.ObserveRetry(call.Method)
			logger.Debug("retrying request after transient failure", map[string]interface{}{
				"method":  call.Method,
				"attempt": attempt,
				"error":   err.Error(),
			})
		}),
	)
}

// createStore builds the root document store; NATS keys default to one per
// server.
func createStore(ctx context.Context, config *deploy.Config) (deploy.RootDocumentStore, error) {
	storeConfig := config.RootDocumentStore
	if storeConfig != nil && storeConfig.NATS != nil && storeConfig.NATS.Key == "" {
		nats := *storeConfig.NATS
		nats.Key = deploy.RootDocumentKey(config.ServerURL)

		copied := *storeConfig
		copied.NATS = &nats
		storeConfig = &copied
	}

	store, err := deploy.NewRootDocumentStore(ctx, storeConfig)
	if err != nil {
		return nil, fmt.Errorf("creating root document store: %w", err)
	}

	return store, nil
}

// New creates a session client. The root document is fetched lazily, on
// first use.
func New(ctx context.Context, config *deploy.Config) (*Client, error) {
	if config == nil {
		return nil, deploy.ErrConfigRequired
	}

	if config.ServerURL == "" {
		return nil, deploy.ErrServerURLRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = deploy.NoopLogger{}
	}

	var metrics *internalhttp.Metrics
	if config.MetricsRegisterer != nil {
		metrics = internalhttp.NewMetrics(config.MetricsRegisterer)
	}

	httpClient, err := internalhttp.NewClient(config.ServerURL, createHTTPClientOptions(config, logger, metrics)...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	store, err := createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	rootPath := config.RootPath
	if rootPath == "" {
		rootPath = constants.DefaultRootPath
	}

	if !strings.HasPrefix(rootPath, "/") {
		rootPath = "/" + rootPath
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrencyLimit
	}

	client := &Client{
		httpClient:  httpClient,
		retry:       createRetryPolicy(config, logger, metrics),
		store:       store,
		resolver:    links.NewResolver(),
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
		rootPath:    rootPath,
	}

	client.root = rootdoc.New(client.fetchRootDocument,
		rootdoc.WithStore(store),
		rootdoc.WithLogger(logger),
		rootdoc.WithDocument(config.RootDocument),
	)

	client.projects = NewRepository[deploy.Project](client, deploy.RelProjects)
	client.releases = NewRepository[deploy.Release](client, deploy.RelReleases)
	client.environments = NewRepository[deploy.Environment](client, deploy.RelEnvironments)
	client.feeds = NewRepository[deploy.Feed](client, deploy.RelFeeds)
	client.spaces = NewRepository[deploy.Space](client, deploy.RelSpaces)

	return client, nil
}

// Projects implements the projects repository.
func (c *Client) Projects() *Repository[deploy.Project] {
	return c.projects
}

// Releases implements the releases repository.
func (c *Client) Releases() *Repository[deploy.Release] {
	return c.releases
}

// Environments implements the environments repository.
func (c *Client) Environments() *Repository[deploy.Environment] {
	return c.environments
}

// Feeds implements the feeds repository.
func (c *Client) Feeds() *Repository[deploy.Feed] {
	return c.feeds
}

// Spaces implements the spaces repository.
func (c *Client) Spaces() *Repository[deploy.Space] {
	return c.spaces
}

// RootDocument returns the cached root document, fetching it on first use.
func (c *Client) RootDocument(ctx context.Context) (*deploy.RootDocument, error) {
	return c.root.Get(ctx)
}

// RefreshRootDocument re-fetches the root document.
func (c *Client) RefreshRootDocument(ctx context.Context) (*deploy.RootDocument, error) {
	return c.root.Refresh(ctx)
}

// InvalidateRootDocument forgets the cached root document.
func (c *Client) InvalidateRootDocument(ctx context.Context) error {
	return c.root.Invalidate(ctx)
}

// Close releases resources held by the root document store.
func (c *Client) Close() {
	if closer, ok := c.store.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (c *Client) fetchRootDocument(ctx context.Context) (*deploy.RootDocument, error) {
	var doc deploy.RootDocument

	err := c.execute(ctx, &internalhttp.Request{Method: http.MethodGet, Path: "~" + c.rootPath}, "", &doc)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("root document fetched", map[string]interface{}{
		"application": doc.Application,
		"version":     doc.Version,
		"links":       len(doc.Links),
	})

	return &doc, nil
}

// execute runs req under the retry policy and decodes a successful body into
// out. Each attempt is a fresh request.
func (c *Client) execute(ctx context.Context, req *internalhttp.Request, idempotencyKey string, out interface{}) error {
	call := retry.Call{Method: req.Method, IdempotencyKey: idempotencyKey}

	attempts, err := c.retry.Do(ctx, call, func(ctx context.Context, _ int) error {
		resp, err := c.httpClient.Do(ctx, req)
		if err != nil {
			return err
		}

		return internalhttp.Decode(resp, out)
	})
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{
		"method":   req.Method,
		"path":     req.Path,
		"attempts": attempts,
		"outcome":  deploy.KindOf(err).String(),
	}

	switch deploy.KindOf(err) {
	case deploy.NotFound, deploy.Cancelled:
		c.logger.Debug("request did not succeed", fields)
	default:
		fields["error"] = err.Error()
		c.logger.Warn("request failed", fields)
	}

	return err
}

//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
	"github.com/fivetwenty-io/deploy-client/pkg/deployclient"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	ServerURL     string
	APIKey        string
	SpaceRootPath string
	LifecycleID   string
	GroupID       string
	Verbose       bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		ServerURL:     os.Getenv("DEPLOY_SERVER_URL"),
		APIKey:        os.Getenv("DEPLOY_API_KEY"),
		SpaceRootPath: os.Getenv("DEPLOY_ROOT_PATH"),
		LifecycleID:   os.Getenv("DEPLOY_TEST_LIFECYCLE_ID"),
		GroupID:       os.Getenv("DEPLOY_TEST_PROJECT_GROUP_ID"),
		Verbose:       os.Getenv("DEPLOY_VERBOSE") == "true",
	}
}

// SkipIfMissingConfig skips the test when no server is configured.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.ServerURL == "" || config.APIKey == "" {
		t.Skip("DEPLOY_SERVER_URL or DEPLOY_API_KEY not set, skipping integration test")
	}
}

// NewClient creates a client against the configured server.
func (config *TestConfig) NewClient(t *testing.T) *deployclient.Client {
	t.Helper()

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	client, err := deployclient.New(context.Background(), &deploy.Config{
		ServerURL: config.ServerURL,
		APIKey:    config.APIKey,
		RootPath:  config.SpaceRootPath,
		Logger:    deploy.NewLogrusLogger(logger),
		Debug:     config.Verbose,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

// GenerateTestName creates a unique resource name.
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

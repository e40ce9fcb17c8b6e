package deployclient_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
	"github.com/fivetwenty-io/deploy-client/pkg/deployclient"
)

const configYAML = `
server_url: https://deploy.example.com
api_key: API-FILE
root_path: /api
http_timeout: 15s
retry:
  max_attempts: 5
  wait_min: 100ms
  wait_max: 2s
concurrency: 8
rate_limit: 2.5
rate_burst: 3
log_level: debug
cache:
  type: file
  file:
    path: /tmp/deploy-root.yaml
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	config, err := deployclient.LoadConfig(writeConfig(t, configYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://deploy.example.com", config.ServerURL)
	assert.Equal(t, "API-FILE", config.APIKey)
	assert.Equal(t, 15*time.Second, config.HTTPTimeout)
	assert.Equal(t, 5, config.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, config.RetryWaitMin)
	assert.Equal(t, 2*time.Second, config.RetryWaitMax)
	assert.Equal(t, 8, config.Concurrency)
	assert.InDelta(t, 2.5, config.RateLimit, 0.001)
	assert.Equal(t, 3, config.RateBurst)
	assert.IsType(t, &deploy.LogrusLogger{}, config.Logger)

	require.NotNil(t, config.RootDocumentStore)
	assert.Equal(t, deploy.StoreTypeFile, config.RootDocumentStore.Type)
	assert.Equal(t, "/tmp/deploy-root.yaml", config.RootDocumentStore.File.Path)
}

//nolint:paralleltest // Setenv is incompatible with parallel tests
func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DEPLOY_API_KEY", "API-ENV")
	t.Setenv("DEPLOY_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("DEPLOY_CACHE_TYPE", "nats")
	t.Setenv("DEPLOY_CACHE_NATS_BUCKET", "deploy-roots")
	t.Setenv("DEPLOY_CACHE_NATS_TTL", "1h")

	config, err := deployclient.LoadConfig(writeConfig(t, configYAML))
	require.NoError(t, err)

	assert.Equal(t, "API-ENV", config.APIKey)
	assert.Equal(t, 7, config.RetryMaxAttempts)
	require.NotNil(t, config.RootDocumentStore.NATS)
	assert.Equal(t, "deploy-roots", config.RootDocumentStore.NATS.Bucket)
	assert.Equal(t, time.Hour, config.RootDocumentStore.NATS.TTL)
}

//nolint:paralleltest // Setenv is incompatible with parallel tests
func TestLoadConfig_EnvironmentOnly(t *testing.T) {
	t.Setenv("DEPLOY_SERVER_URL", "https://env.example.com")

	config, err := deployclient.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", config.ServerURL)
	assert.Nil(t, config.RootDocumentStore)
	assert.Nil(t, config.Logger)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
		wantErr  error
	}{
		{name: "missing server URL", contents: "api_key: x\n", wantErr: deploy.ErrServerURLRequired},
		{
			name:     "unsupported cache",
			contents: "server_url: https://d.example.com\ncache:\n  type: redis\n",
			wantErr:  deploy.ErrUnsupportedStoreType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := deployclient.LoadConfig(writeConfig(t, tt.contents))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := deployclient.LoadConfig(writeConfig(t, "server_url: https://d.example.com\nlog_level: loud\n"))
	require.Error(t, err)
}

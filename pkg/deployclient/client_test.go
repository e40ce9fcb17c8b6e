package deployclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
	"github.com/fivetwenty-io/deploy-client/pkg/deployclient"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *deploy.Config
		wantErr error
	}{
		{name: "nil config", config: nil, wantErr: deploy.ErrConfigRequired},
		{name: "missing server URL", config: &deploy.Config{}, wantErr: deploy.ErrServerURLRequired},
		{name: "scheme added", config: &deploy.Config{ServerURL: "deploy.example.com/"}},
		{name: "explicit http", config: &deploy.Config{ServerURL: "http://localhost:8065"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := deployclient.New(context.Background(), tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestNew_DoesNotMutateConfig(t *testing.T) {
	t.Parallel()

	config := &deploy.Config{ServerURL: "deploy.example.com/"}

	_, err := deployclient.New(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, "deploy.example.com/", config.ServerURL)
}

func TestNewRepository(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"Links": map[string]string{"Channels": "/api/channels{/id}"},
			})
		case "/api/channels/Channels-1":
			_ = json.NewEncoder(w).Encode(map[string]string{"Id": "Channels-1", "Name": "Default"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	type channel struct {
		deploy.Resource

		Name string `json:"Name"`
	}

	client, err := deployclient.New(context.Background(), &deploy.Config{ServerURL: server.URL})
	require.NoError(t, err)

	channels := deployclient.NewRepository[channel](client, "Channels")

	found, err := channels.Get(context.Background(), "Channels-1")
	require.NoError(t, err)
	assert.Equal(t, "Default", found.Name)
	assert.Equal(t, "Channels-1", found.ID)
}

func TestLoadRootDocumentFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		contents string
		wantApp  string
	}{
		{
			name: "enveloped yaml",
			file: "root.yaml",
			contents: strings.Join([]string{
				"Application: Octopus Deploy",
				"Links:",
				"  Projects: /api/projects{/id}{?skip,take}",
			}, "\n"),
			wantApp: "Octopus Deploy",
		},
		{
			name:     "flat json",
			file:     "root.json",
			contents: `{"Projects": "/api/projects{/id}{?skip,take}"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o600))

			doc, err := deployclient.LoadRootDocumentFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantApp, doc.Application)

			href, ok := doc.Link(deploy.RelProjects)
			require.True(t, ok)
			assert.Equal(t, "/api/projects{/id}{?skip,take}", href)
		})
	}

	_, err := deployclient.LoadRootDocumentFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

package deploy_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

func TestRootDocument_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantApp string
		wantErr bool
	}{
		{
			name:    "enveloped",
			body:    `{"Application":"Octopus Deploy","Version":"2024.1","Links":{"Self":"/api","Projects":"/api/projects{/id}{?skip,take}"}}`,
			wantApp: "Octopus Deploy",
		},
		{
			name: "flat",
			body: `{"Self":"/api","Projects":"/api/projects{/id}{?skip,take}","Count":3}`,
		},
		{name: "links not an object", body: `{"Links":["a"]}`, wantErr: true},
		{name: "link not a string", body: `{"Links":{"Projects":1}}`, wantErr: true},
		{name: "not an object", body: `["a"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var doc deploy.RootDocument

			err := json.Unmarshal([]byte(tt.body), &doc)
			if tt.wantErr {
				require.ErrorIs(t, err, deploy.ErrInvalidRootDocument)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantApp, doc.Application)

			href, ok := doc.Link(deploy.RelProjects)
			require.True(t, ok)
			assert.Equal(t, "/api/projects{/id}{?skip,take}", href)

			_, ok = doc.Link("Count")
			assert.False(t, ok)
		})
	}
}

func TestRootDocument_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	doc := &deploy.RootDocument{
		Application: "Octopus Deploy",
		Version:     "2024.1",
		Links:       deploy.Links{"Projects": "/api/projects{/id}"},
	}

	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	parsed, err := deploy.ParseRootDocumentYAML(data)
	require.NoError(t, err)
	assert.Equal(t, doc, parsed)
}

func TestRootDocument_NilLink(t *testing.T) {
	t.Parallel()

	var doc *deploy.RootDocument

	_, ok := doc.Link(deploy.RelProjects)
	assert.False(t, ok)
}

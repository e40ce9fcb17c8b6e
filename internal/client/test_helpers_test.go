package client_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/fivetwenty-io/deploy-client/internal/client"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

const projectsTemplate = "/api/projects{/id}{?skip,take,ids,partialName}"

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type storedProject struct {
	project deploy.Project
	version int
}

// fakeServer is an in-memory hypermedia server exposing a projects
// collection.
type fakeServer struct {
	*httptest.Server

	mu        sync.Mutex
	template  string
	pageSize  int
	projects  map[string]*storedProject
	nextID    int
	failures  map[string]int
	counts    map[string]int
	keys      map[string]string
	lastMatch string
	lastSince string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	s := &fakeServer{
		template: projectsTemplate,
		pageSize: 30,
		projects: make(map[string]*storedProject),
		failures: make(map[string]int),
		counts:   make(map[string]int),
		keys:     make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", s.handleRoot)
	mux.HandleFunc("GET /api/projects", s.handleList)
	mux.HandleFunc("POST /api/projects", s.handleCreate)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleModify)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDelete)

	s.Server = httptest.NewServer(s.track(mux))
	t.Cleanup(s.Close)

	return s
}

func (s *fakeServer) newClient(t *testing.T, mutate ...func(*deploy.Config)) *Client {
	t.Helper()

	config := &deploy.Config{
		ServerURL:        s.URL,
		APIKey:           "API-TEST",
		RetryMaxAttempts: 3,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
	}

	for _, fn := range mutate {
		fn(config)
	}

	c, err := New(t.Context(), config)
	require.NoError(t, err)

	return c
}

func (s *fakeServer) seed(names ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, s.insertLocked(deploy.Project{Name: name}))
	}

	return ids
}

func (s *fakeServer) insertLocked(project deploy.Project) string {
	s.nextID++
	id := "Projects-" + strconv.Itoa(s.nextID)

	project.ID = id
	project.Links = deploy.Links{deploy.RelSelf: "/api/projects/" + id}
	s.projects[id] = &storedProject{project: project, version: 1}
	s.projects[id].touch()

	return id
}

// failNext makes the next n requests matching "METHOD /path" answer status
// 503.
func (s *fakeServer) failNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[route] = n
}

// touch stamps the modification time; each version is one minute later.
func (p *storedProject) touch() {
	modified := epoch.Add(time.Duration(p.version) * time.Minute)
	p.project.LastModifiedOn = &modified
}

func (s *fakeServer) setTemplate(template string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.template = template
}

func (s *fakeServer) setPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageSize = size
}

func (s *fakeServer) count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[route]
}

func (s *fakeServer) ifMatch() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastMatch
}

func (s *fakeServer) ifUnmodifiedSince() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSince
}

func (s *fakeServer) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.counts[route]++

		if r.Header.Get(deploy.APIKeyHeader) != "API-TEST" {
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"ErrorMessage": "missing API key"})

			return
		}

		if s.failures[route] > 0 {
			s.failures[route]--
			s.mu.Unlock()
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ErrorMessage": "try again"})

			return
		}
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *fakeServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	template := s.template
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"Application": "Octopus Deploy",
		"Version":     "2024.1.0",
		"ApiVersion":  "3.0.0",
		"Links": map[string]string{
			"Self":         "/api",
			"Projects":     template,
			"Environments": "/api/environments{/id}{?skip,take}",
		},
	})
}

func (s *fakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := r.URL.Query()

	var ids map[string]bool
	if raw := query.Get("ids"); raw != "" {
		ids = make(map[string]bool)
		for _, id := range strings.Split(raw, ",") {
			ids[id] = true
		}
	}

	partial := strings.ToLower(query.Get("partialName"))

	matched := make([]deploy.Project, 0, len(s.projects))
	for id, stored := range s.projects {
		if ids != nil && !ids[id] {
			continue
		}

		if partial != "" && !strings.Contains(strings.ToLower(stored.project.Name), partial) {
			continue
		}

		matched = append(matched, stored.project)
	}

	sort.Slice(matched, func(i, j int) bool {
		return idNumber(matched[i].ID) < idNumber(matched[j].ID)
	})

	skip, _ := strconv.Atoi(query.Get("skip"))

	take := s.pageSize
	if n, err := strconv.Atoi(query.Get("take")); err == nil && n > 0 && n < take {
		take = n
	}

	end := min(skip+take, len(matched))
	page := matched[min(skip, len(matched)):end]

	links := deploy.Links{deploy.RelSelf: r.URL.RequestURI()}
	if end < len(matched) {
		next := r.URL.Query()
		next.Set("skip", strconv.Itoa(end))
		next.Set("take", strconv.Itoa(take))
		links[deploy.RelPageNext] = "/api/projects?" + next.Encode()
	}

	writeJSON(w, http.StatusOK, deploy.ResourceCollection[deploy.Project]{
		ItemType:     "Project",
		TotalResults: len(matched),
		ItemsPerPage: take,
		Items:        page,
		Links:        links,
	})
}

func (s *fakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft deploy.Project

	err := json.NewDecoder(r.Body).Decode(&draft)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"ErrorMessage": err.Error()})

		return
	}

	if draft.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ErrorMessage": "There was a problem with your request.",
			"Errors":       []string{"Please specify a name."},
		})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Header.Get(deploy.IdempotencyKeyHeader)
	if id, ok := s.keys[key]; ok && key != "" {
		s.writeProjectLocked(w, http.StatusOK, id)

		return
	}

	id := s.insertLocked(draft)
	if key != "" {
		s.keys[key] = id
	}

	s.writeProjectLocked(w, http.StatusCreated, id)
}

func (s *fakeServer) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeProjectLocked(w, http.StatusOK, r.PathValue("id"))
}

func (s *fakeServer) handleModify(w http.ResponseWriter, r *http.Request) {
	var update deploy.Project

	err := json.NewDecoder(r.Body).Decode(&update)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"ErrorMessage": err.Error()})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMatch = r.Header.Get(deploy.IfMatchHeader)
	s.lastSince = r.Header.Get(deploy.IfUnmodifiedSinceHeader)

	stored, ok := s.projects[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"ErrorMessage": "not found"})

		return
	}

	if !s.preconditionsHoldLocked(stored) {
		writeJSON(w, http.StatusPreconditionFailed, map[string]string{
			"ErrorMessage": "The resource has been modified by another user.",
		})

		return
	}

	stored.project.Name = update.Name
	stored.project.Description = update.Description
	stored.version++
	stored.touch()

	s.writeProjectLocked(w, http.StatusOK, stored.project.ID)
}

// preconditionsHoldLocked evaluates If-Match and If-Unmodified-Since the way
// RFC 9110 orders them. Requests without either are unconditional.
func (s *fakeServer) preconditionsHoldLocked(stored *storedProject) bool {
	if s.lastMatch != "" {
		return s.lastMatch == etag(stored.version)
	}

	if s.lastSince != "" {
		since, err := http.ParseTime(s.lastSince)

		return err == nil && !stored.project.LastModifiedOn.After(since)
	}

	return true
}

func (s *fakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if _, ok := s.projects[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"ErrorMessage": "not found"})

		return
	}

	delete(s.projects, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *fakeServer) writeProjectLocked(w http.ResponseWriter, status int, id string) {
	stored, ok := s.projects[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"ErrorMessage": fmt.Sprintf("The resource '%s' was not found.", id),
		})

		return
	}

	w.Header().Set("ETag", etag(stored.version))
	writeJSON(w, status, stored.project)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func etag(version int) string {
	return `"v` + strconv.Itoa(version) + `"`
}

func idNumber(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "Projects-"))

	return n
}

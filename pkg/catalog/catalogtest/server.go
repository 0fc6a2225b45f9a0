// Package catalogtest provides an in-memory fake of the catalog service for tests.
package catalogtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/constants"
)

// APIKey is the key the fake server accepts.
const APIKey = "test-api-key"

// Call records one request received by the server.
type Call struct {
	Method string
	Path   string
}

// String renders the call as "METHOD /path".
func (c Call) String() string {
	return c.Method + " " + c.Path
}

// Server is a fake catalog backed by maps. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	// NotFoundOnEmpty makes an empty lookup answer 404 instead of [].
	NotFoundOnEmpty bool

	mu        sync.Mutex
	resources []catalog.Resource
	builds    map[string]catalog.Build
	links     map[string][]catalog.ID
	failures  map[string]int
	calls     []Call
	nextID    int
}

// NewServer starts a fake catalog that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		builds:   make(map[string]catalog.Build),
		links:    make(map[string][]catalog.ID),
		failures: make(map[string]int),
		nextID:   1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+constants.ResourcesPath, s.handleLookup)
	mux.HandleFunc("POST "+constants.ResourcesPath, s.handleCreate)
	mux.HandleFunc("PUT "+constants.ResourcesPath+"/{id}/role/rel/{role}", s.handleGrant)
	mux.HandleFunc("GET "+constants.BuildsPath+"/{build}", s.handleBuild)
	mux.HandleFunc("GET "+constants.BuildsPath+"/{build}/external_analysis", s.handleLinked)
	mux.HandleFunc("PUT "+constants.BuildsPath+"/{build}/external_analysis/rel/{id}", s.handleLink)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{Method: r.Method, Path: r.URL.Path}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		status, fail := s.failures[call.String()]
		s.mu.Unlock()

		if r.Header.Get(constants.APIKeyHeader) != APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid user_key"})
			return
		}
		if fail {
			writeJSON(w, status, map[string]string{"error": "injected failure"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)

	return s
}

// Client returns a catalog client pointed at this server with the accepted key.
func (s *Server) Client(t testing.TB) *catalog.Client {
	t.Helper()
	c, err := catalog.NewWithAPIKey(s.URL, APIKey)
	if err != nil {
		t.Fatalf("catalogtest: creating client: %v", err)
	}
	return c
}

// AddBuild registers a build.
func (s *Server) AddBuild(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[id] = catalog.Build{ID: catalog.ID(id), Name: name}
}

// AddResource stores a resource. An empty ID is assigned automatically.
func (s *Server) AddResource(r catalog.Resource) catalog.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	s.resources = append(s.resources, r)
	return r.ID
}

// Link associates a resource with a build without recording a call.
func (s *Server) Link(buildID string, id catalog.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[buildID] = append(s.links[buildID], id)
}

// FailOn makes requests matching method and path answer with status.
func (s *Server) FailOn(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Writes returns the non-GET requests received so far.
func (s *Server) Writes() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded calls while keeping state.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Resources returns a copy of every stored resource.
func (s *Server) Resources() []catalog.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Resource, len(s.resources))
	for i, r := range s.resources {
		r.Roles = slices.Clone(r.Roles)
		out[i] = r
	}
	return out
}

// LinkedIDs returns the resource ids linked to a build.
func (s *Server) LinkedIDs(buildID string) []catalog.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.links[buildID])
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var filter struct {
		Where struct {
			Or []struct {
				Name *struct {
					Inq []string `json:"inq"`
				} `json:"name"`
				URL *string `json:"url"`
			} `json:"or"`
		} `json:"where"`
		Include string `json:"include"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("filter")), &filter); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var names []string
	var urls []string
	for _, clause := range filter.Where.Or {
		if clause.Name != nil {
			names = append(names, clause.Name.Inq...)
		}
		if clause.URL != nil {
			urls = append(urls, *clause.URL)
		}
	}

	s.mu.Lock()
	found := []catalog.Resource{}
	for _, res := range s.resources {
		if slices.Contains(names, res.Name) || slices.Contains(urls, res.URL) {
			res.Roles = slices.Clone(res.Roles)
			if filter.Include != "roles" {
				res.Roles = nil
			}
			found = append(found, res)
		}
	}
	notFound := s.NotFoundOnEmpty && len(found) == 0
	s.mu.Unlock()

	if notFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no match"})
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	res := catalog.Resource{
		ID:          s.newID(),
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Status:      req.Status,
		CreatedBy:   req.CreatedBy,
	}
	s.resources = append(s.resources, res)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	id := catalog.ID(r.PathValue("id"))
	role := r.PathValue("role")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.resources {
		if s.resources[i].ID != id {
			continue
		}
		if !slices.ContainsFunc(s.resources[i].Roles, func(x catalog.Role) bool { return string(x.ID) == role }) {
			s.resources[i].Roles = append(s.resources[i].Roles, catalog.Role{ID: catalog.ID(role), Name: role})
		}
		writeJSON(w, http.StatusOK, map[string]string{"resourceId": string(id), "roleId": role})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	build, ok := s.builds[r.PathValue("build")]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown build"})
		return
	}
	writeJSON(w, http.StatusOK, build)
}

func (s *Server) handleLinked(w http.ResponseWriter, r *http.Request) {
	buildID := r.PathValue("build")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.builds[buildID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown build"})
		return
	}
	linked := []catalog.Resource{}
	for _, id := range s.links[buildID] {
		for _, res := range s.resources {
			if res.ID == id {
				linked = append(linked, res)
			}
		}
	}
	writeJSON(w, http.StatusOK, linked)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	buildID := r.PathValue("build")
	id := catalog.ID(r.PathValue("id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.links[buildID], id) {
		s.links[buildID] = append(s.links[buildID], id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"buildId": buildID, "resourceId": string(id)})
}

// newID must be called with mu held.
func (s *Server) newID() catalog.ID {
	id := catalog.ID(fmt.Sprintf("res-%d", s.nextID))
	s.nextID++
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

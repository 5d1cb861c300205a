package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/trakly/trakboard/internal/errors"
	"github.com/trakly/trakboard/internal/tracker"
	"github.com/trakly/trakboard/internal/usercfg"
)

// mockTrakly serves the slice of the Trakly API the board uses.
type mockTrakly struct {
	mu         sync.Mutex
	patches    []string
	requestIDs map[string]bool
	failPatch  bool
}

func newMockTrakly(t *testing.T, m *mockTrakly) *httptest.Server {
	t.Helper()
	m.requestIDs = map[string]bool{}
	mux := http.NewServeMux()
	record := func(r *http.Request) bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.requestIDs[r.Header.Get("X-Request-ID")] = true
		return r.Header.Get("Authorization") == "Bearer test-token"
	}
	mux.HandleFunc("/api/v1/projects/proj-1", func(w http.ResponseWriter, r *http.Request) {
		if !record(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "proj-1", "key": "TRAK", "name": "Trakly", "is_active": true,
			"workflow_template_id": "tpl-1",
		})
	})
	mux.HandleFunc("/api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		if !record(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "proj-1", "key": "TRAK", "name": "Trakly", "is_active": true},
			{"id": "proj-2", "key": "OPS", "name": "Operations", "is_active": true},
		})
	})
	mux.HandleFunc("/api/v1/workflows/tpl-1", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "tpl-1", "name": "Kanban",
			"columns": []map[string]interface{}{
				{"id": "col-done", "name": "Done", "position": 2},
				{"id": "col-todo", "name": "To Do", "position": 0},
				{"id": "col-progress", "name": "In Progress", "position": 1, "wip_limit": 2},
			},
		})
	})
	mux.HandleFunc("/api/v1/issues", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "i-1", "issue_key": "TRAK-1", "title": "Fix login", "issue_type": "bug", "priority": "high",
				"workflow_column_id": "col-todo", "assignee_id": "u-1", "assignee": map[string]string{"id": "u-1", "full_name": "Ada Lovelace"}},
			{"id": "i-2", "issue_key": "TRAK-2", "title": "Write docs", "issue_type": "task", "workflow_column_id": "col-progress"},
			{"id": "i-3", "issue_key": "TRAK-3", "title": "Old column", "issue_type": "task", "workflow_column_id": "col-archived"},
		})
	})
	mux.HandleFunc("/api/v1/issues/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		json.Unmarshal(body, &req)
		m.mu.Lock()
		m.patches = append(m.patches, strings.TrimPrefix(r.URL.Path, "/api/v1/issues/")+"->"+req["workflow_column_id"])
		fail := m.failPatch
		m.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"column not in project workflow"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "i-1", "workflow_column_id": req["workflow_column_id"]})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func apiConfig(t *testing.T, srv *httptest.Server) usercfg.Config {
	t.Helper()
	t.Setenv("TRAKLY_TOKEN", "test-token")
	return usercfg.Config{
		APIURL:         srv.URL,
		WebURL:         "https://app.trakly.example",
		ProjectID:      "proj-1",
		TokenEnv:       "TRAKLY_TOKEN",
		RequestTimeout: 5,
		MoveTimeout:    5,
	}
}

func TestBoardAgainstTraklyAPI(t *testing.T) {
	isolateUserConfig(t)
	mock := &mockTrakly{}
	srv := newMockTrakly(t, mock)

	svc, err := newService(apiConfig(t, srv))
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	model := loaded(t, newTestModel(t, svc))

	if got := strings.Join(columnKeys(model, "col-todo"), ","); got != "TRAK-1" {
		t.Errorf("to do = %s", got)
	}
	// Issues in columns outside the workflow are left off the board.
	if model.view.Grouping.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", model.view.Grouping.Dropped)
	}
	if !strings.Contains(model.View(), "not on this board") {
		t.Error("View() should mention issues outside the board")
	}
	if card := model.view.Columns[0].Cards[0]; card.AssigneeInitial != "A" {
		t.Errorf("initial = %q, want A", card.AssigneeInitial)
	}

	model = press(t, model, "m", "l", "enter")
	model = update(t, model, waitSettle(t, model))

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.patches) != 1 || mock.patches[0] != "i-1->col-progress" {
		t.Errorf("patches = %v", mock.patches)
	}
	if mock.requestIDs[""] {
		t.Error("every request should carry an X-Request-ID")
	}
}

func TestBoardAgainstTraklyAPI_RejectedMove(t *testing.T) {
	isolateUserConfig(t)
	mock := &mockTrakly{failPatch: true}
	srv := newMockTrakly(t, mock)

	svc, err := newService(apiConfig(t, srv))
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	model := loaded(t, newTestModel(t, svc))
	model = press(t, model, "m", "l", "l", "enter")

	settle := waitSettle(t, model)
	if errors.StatusCode(settle.err) != http.StatusUnprocessableEntity {
		t.Fatalf("settle err = %v", settle.err)
	}
	model = update(t, model, settle)
	if got := strings.Join(columnKeys(model, "col-todo"), ","); got != "TRAK-1" {
		t.Errorf("rejected move should be reverted, to do = %s", got)
	}
	if model.toast == "" {
		t.Error("rejected move should raise a toast")
	}
}

func TestBoardAgainstFixtureFile(t *testing.T) {
	isolateUserConfig(t)
	path := filepath.Join(t.TempDir(), "board.yaml")
	fixture := `project:
  id: local
  key: LOC
  name: Local board
issues:
  - id: i-1
    key: LOC-1
    title: Draft plan
    type: task
  - id: i-2
    key: LOC-2
    title: Review plan
    type: task
    column: default-review
`
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}

	svc, err := newService(usercfg.Config{FixtureFile: path, MoveTimeout: 5, RequestTimeout: 5})
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	if _, ok := svc.(*tracker.FileService); !ok {
		t.Fatalf("offline config should use the file service, got %T", svc)
	}

	model := loaded(t, newTestModel(t, svc))
	// No columns in the file: the built-in workflow is used.
	if got := strings.Join(columnKeys(model, "default-todo"), ","); got != "LOC-1" {
		t.Errorf("to do = %s", got)
	}

	model = press(t, model, "m", "l", "l", "l", "enter")
	model = update(t, model, waitSettle(t, model))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var saved struct {
		Issues []struct {
			ID     string `yaml:"id"`
			Column string `yaml:"column"`
		} `yaml:"issues"`
	}
	if err := yaml.Unmarshal(data, &saved); err != nil {
		t.Fatalf("fixture no longer parses: %v", err)
	}
	if saved.Issues[0].Column != "default-done" {
		t.Errorf("LOC-1 column on disk = %q, want default-done", saved.Issues[0].Column)
	}
}

func TestNewService(t *testing.T) {
	t.Setenv("TRAKLY_TOKEN", "")

	_, err := newService(usercfg.Config{ProjectID: "p", TokenEnv: "TRAKLY_TOKEN"})
	if err == nil || !strings.Contains(err.Error(), "api_url") {
		t.Errorf("missing api_url: err = %v", err)
	}
	_, err = newService(usercfg.Config{APIURL: "https://api.trakly.example", TokenEnv: "TRAKLY_TOKEN"})
	if err == nil || !strings.Contains(err.Error(), "project_id") {
		t.Errorf("missing project: err = %v", err)
	}
	_, err = newService(usercfg.Config{APIURL: "https://api.trakly.example", ProjectID: "p", TokenEnv: "TRAKLY_TOKEN"})
	if err == nil || !strings.Contains(err.Error(), "TRAKLY_TOKEN") {
		t.Errorf("missing token: err = %v", err)
	}
}

func TestOpenIssueInBrowser(t *testing.T) {
	var opened []string
	prev := openURL
	openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}
	defer func() { openURL = prev }()

	if err := openIssueInBrowser(&fakeService{}, "TRAK-7"); err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || opened[0] != "https://trakly.example/browse/TRAK-7" {
		t.Errorf("opened = %v", opened)
	}

	if err := openIssueInBrowser(tracker.NewFileService("board.yaml", ""), "TRAK-7"); err == nil {
		t.Error("a board without a web URL cannot open issues")
	}
}

func TestResolveProjectFlag(t *testing.T) {
	isolateUserConfig(t)
	srv := newMockTrakly(t, &mockTrakly{})
	cfg := apiConfig(t, srv)
	cfg.ProjectID = "proj-2"
	cfg.WorkflowTemplateID = "tpl-ops"

	resolved, err := resolveProjectFlag(context.Background(), cfg, "trak")
	if err != nil {
		t.Fatalf("resolveProjectFlag: %v", err)
	}
	if resolved.ProjectID != "proj-1" || resolved.ProjectKey != "TRAK" {
		t.Errorf("resolved = %s (%s), want proj-1 (TRAK)", resolved.ProjectID, resolved.ProjectKey)
	}
	if resolved.WorkflowTemplateID != "" {
		t.Errorf("template = %q, the configured template belongs to another project", resolved.WorkflowTemplateID)
	}

	_, err = resolveProjectFlag(context.Background(), cfg, "NOPE")
	if err == nil {
		t.Fatal("unknown project should be rejected")
	}
	for _, want := range []string{"Invalid Project", "NOPE", "TRAK, OPS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestResolveProjectFlagWithoutDiscovery(t *testing.T) {
	isolateUserConfig(t)
	t.Setenv("TRAKLY_TOKEN", "")
	cfg := usercfg.Config{APIURL: "https://api.trakly.example", TokenEnv: "TRAKLY_TOKEN", ProjectID: "old"}

	resolved, err := resolveProjectFlag(context.Background(), cfg, "proj-9")
	if err != nil {
		t.Fatalf("resolveProjectFlag: %v", err)
	}
	if resolved.ProjectID != "proj-9" {
		t.Errorf("ProjectID = %q, the flag is used as an id when projects cannot be listed", resolved.ProjectID)
	}
}

func TestMatchProject(t *testing.T) {
	projects := []tracker.Project{{ID: "p-1", Key: "TRAK"}, {ID: "p-2", Key: "OPS"}}
	tests := []struct {
		ref    string
		wantID string
	}{
		{"p-2", "p-2"},
		{"ops", "p-2"},
		{"TRAK", "p-1"},
		{"missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			p, err := matchProject(projects, tt.ref)
			if tt.wantID == "" {
				if err == nil {
					t.Errorf("matchProject(%q) = %+v, want error", tt.ref, p)
				}
				return
			}
			if err != nil || p.ID != tt.wantID {
				t.Errorf("matchProject(%q) = %+v, %v; want %s", tt.ref, p, err, tt.wantID)
			}
		})
	}
}

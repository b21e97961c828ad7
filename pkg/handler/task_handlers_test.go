package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/service"
)

// newTaskRouter wires the task handler against an in-memory database. Auth
// is covered by its own package; routes are mounted bare here.
func newTaskRouter(t *testing.T) (*gin.Engine, *service.TaskService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	tasks := service.NewTaskService(gdb)
	r := gin.New()
	NewTaskHandler(tasks).RegisterRoutes(r.Group("/api"))
	return r, tasks
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestTaskEndpoints_CreateAndGet(t *testing.T) {
	r, _ := newTaskRouter(t)

	w := do(r, http.MethodPost, "/api/alice/tasks", `{"title":"Buy milk","description":"two bottles"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decodeJSON(t, w)
	if created["title"] != "Buy milk" || created["completed"] != false {
		t.Fatalf("created = %v", created)
	}
	id := strconv.Itoa(int(created["id"].(float64)))

	w = do(r, http.MethodGet, "/api/alice/tasks/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decodeJSON(t, w)
	if got["description"] != "two bottles" {
		t.Fatalf("got = %v", got)
	}
}

func TestTaskEndpoints_CreateValidation(t *testing.T) {
	r, _ := newTaskRouter(t)

	w := do(r, http.MethodPost, "/api/alice/tasks", `{"title":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank title status = %d, want 400", w.Code)
	}
	body := decodeJSON(t, w)
	if body["error"] != "bad_request" {
		t.Fatalf("error body = %v", body)
	}

	w = do(r, http.MethodPost, "/api/alice/tasks", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d, want 400", w.Code)
	}
}

func TestTaskEndpoints_ListFilters(t *testing.T) {
	r, tasks := newTaskRouter(t)
	first, _ := tasks.Create("alice", "first", "")
	tasks.Create("alice", "second", "")
	tasks.Create("bob", "other", "")
	tasks.Complete("alice", first.ID)

	w := do(r, http.MethodGet, "/api/alice/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}

	w = do(r, http.MethodGet, "/api/alice/tasks?status=completed", "")
	body = decodeJSON(t, w)
	if body["count"] != float64(1) {
		t.Fatalf("completed count = %v, want 1", body["count"])
	}

	w = do(r, http.MethodGet, "/api/alice/tasks?limit=1", "")
	body = decodeJSON(t, w)
	if body["count"] != float64(1) {
		t.Fatalf("limited count = %v, want 1", body["count"])
	}
}

func TestTaskEndpoints_UpdateAndToggle(t *testing.T) {
	r, tasks := newTaskRouter(t)
	created, _ := tasks.Create("alice", "original", "")
	id := strconv.Itoa(int(created.ID))

	w := do(r, http.MethodPut, "/api/alice/tasks/"+id, `{"title":"renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decodeJSON(t, w); body["title"] != "renamed" {
		t.Fatalf("updated = %v", body)
	}

	w = do(r, http.MethodPut, "/api/alice/tasks/"+id, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty update status = %d, want 400", w.Code)
	}

	w = do(r, http.MethodPatch, "/api/alice/tasks/"+id+"/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", w.Code)
	}
	if body := decodeJSON(t, w); body["completed"] != true {
		t.Fatalf("toggle result = %v", body)
	}

	// A second PATCH reopens the task.
	w = do(r, http.MethodPatch, "/api/alice/tasks/"+id+"/complete", "")
	if body := decodeJSON(t, w); body["completed"] != false {
		t.Fatalf("second toggle result = %v", body)
	}
}

func TestTaskEndpoints_NotFound(t *testing.T) {
	r, tasks := newTaskRouter(t)
	created, _ := tasks.Create("bob", "private", "")
	id := strconv.Itoa(int(created.ID))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/alice/tasks/999"},
		{http.MethodGet, "/api/alice/tasks/" + id},
		{http.MethodPut, "/api/alice/tasks/" + id},
		{http.MethodPatch, "/api/alice/tasks/" + id + "/complete"},
		{http.MethodDelete, "/api/alice/tasks/" + id},
	} {
		body := ""
		if tc.method == http.MethodPut {
			body = `{"title":"x"}`
		}
		w := do(r, tc.method, tc.path, body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s %s status = %d, want 404", tc.method, tc.path, w.Code)
		}
	}

	w := do(r, http.MethodGet, "/api/alice/tasks/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric id status = %d, want 400", w.Code)
	}
}

func TestTaskEndpoints_ListLimitCapped(t *testing.T) {
	r, tasks := newTaskRouter(t)
	for i := 0; i < 120; i++ {
		if _, err := tasks.Create("alice", fmt.Sprintf("task %d", i), ""); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	// limit=0 falls back to the default instead of disabling the cap.
	w := do(r, http.MethodGet, "/api/alice/tasks?limit=0", "")
	if body := decodeJSON(t, w); body["count"] != float64(50) {
		t.Fatalf("limit=0 count = %v, want default 50", body["count"])
	}

	w = do(r, http.MethodGet, "/api/alice/tasks?limit=-5", "")
	if body := decodeJSON(t, w); body["count"] != float64(50) {
		t.Fatalf("limit=-5 count = %v, want default 50", body["count"])
	}

	// Oversized limits clamp to the cap.
	w = do(r, http.MethodGet, "/api/alice/tasks?limit=500", "")
	if body := decodeJSON(t, w); body["count"] != float64(100) {
		t.Fatalf("limit=500 count = %v, want cap 100", body["count"])
	}
}

func TestTaskEndpoints_InternalErrorIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	r := gin.New()
	NewTaskHandler(service.NewTaskService(gdb)).RegisterRoutes(r.Group("/api"))

	// Closing the connection makes every query fail.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close sql db: %v", err)
	}

	w := do(r, http.MethodGet, "/api/alice/tasks", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeJSON(t, w)
	if body["error"] != "internal_error" {
		t.Fatalf("error = %v", body["error"])
	}
	if body["message"] != "An unexpected error occurred" {
		t.Fatalf("message = %q, want the fixed generic text", body["message"])
	}
}

func TestTaskEndpoints_Delete(t *testing.T) {
	r, tasks := newTaskRouter(t)
	created, _ := tasks.Create("alice", "doomed", "")
	id := strconv.Itoa(int(created.ID))

	w := do(r, http.MethodDelete, "/api/alice/tasks/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	w = do(r, http.MethodDelete, "/api/alice/tasks/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apilink/apilink/internal/route"
)

func testRegistry(t *testing.T) *route.Registry {
	t.Helper()
	reg := route.NewRegistry()

	reg.MustRegister(&route.Route{
		Method:    route.MethodGet,
		Path:      "/projects/:id",
		Resource:  "projects",
		Operation: "get",
		Handler: func(req *route.Request, reply route.Reply) (interface{}, error) {
			return map[string]interface{}{
				"id":     req.Params["id"],
				"expand": req.Query.Get("expand"),
			}, nil
		},
	})
	reg.MustRegister(&route.Route{
		Method:    route.MethodPost,
		Path:      "/projects",
		Resource:  "projects",
		Operation: "create",
		Handler: func(req *route.Request, reply route.Reply) (interface{}, error) {
			body, _ := req.Body.(map[string]interface{})
			reply.Code(http.StatusCreated).Header("Location", "/projects/p-new")
			return body, nil
		},
	})
	reg.MustRegister(&route.Route{
		Method:    route.MethodGet,
		Path:      "/boom",
		Resource:  "system",
		Operation: "boom",
		Handler: func(req *route.Request, reply route.Reply) (interface{}, error) {
			return nil, errors.New("kaboom")
		},
	})
	return reg
}

func TestMuxPath(t *testing.T) {
	if got := muxPath("/projects/:id/tasks/:tid"); got != "/projects/{id}/tasks/{tid}" {
		t.Errorf("muxPath() = %s", got)
	}
	if got := muxPath("/health"); got != "/health" {
		t.Errorf("muxPath() = %s", got)
	}
}

func TestMountedGetRoute(t *testing.T) {
	router := NewRouter(testRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/projects/p1?expand=tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["id"] != "p1" || body["expand"] != "tasks" {
		t.Errorf("body = %v", body)
	}
}

func TestMountedPostRoute(t *testing.T) {
	router := NewRouter(testRegistry(t), nil)

	payload := bytes.NewBufferString(`{"name":"X","status":"draft"}`)
	req := httptest.NewRequest(http.MethodPost, "/projects", payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/projects/p-new" {
		t.Errorf("Location = %s", loc)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["name"] != "X" {
		t.Errorf("body = %v", body)
	}
}

func TestMountedInvalidJSONBody(t *testing.T) {
	router := NewRouter(testRegistry(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMountedHandlerError(t *testing.T) {
	router := NewRouter(testRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] == "" {
		t.Errorf("body = %v, want JSON error", body)
	}
}

func TestMountedMethodNotMatched(t *testing.T) {
	router := NewRouter(testRegistry(t), nil)

	req := httptest.NewRequest(http.MethodDelete, "/projects", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

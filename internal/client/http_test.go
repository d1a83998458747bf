package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alfredjeanlab/rednight/internal/idgen"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/server"
	"github.com/alfredjeanlab/rednight/internal/service"
	"github.com/alfredjeanlab/rednight/internal/store/memory"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	query       string
	body        string
	contentType string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL + "/")
	return c, srv
}

func TestHTTPClient_CreateEnvironment(t *testing.T) {
	h := &testHandler{responseBody: `{"id": 1001, "name": "staging", "created_at": 1700000000000}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	env, err := c.CreateEnvironment(context.Background(), "staging")
	if err != nil {
		t.Fatalf("CreateEnvironment() error = %v", err)
	}

	if h.method != http.MethodPost {
		t.Errorf("method = %q, want POST", h.method)
	}
	if h.path != "/environments" {
		t.Errorf("path = %q, want /environments", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}
	var reqBody map[string]any
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if reqBody["name"] != "staging" {
		t.Errorf("request body name = %v, want staging", reqBody["name"])
	}

	if env.ID != 1001 || env.Name != "staging" || env.CreatedAt != 1700000000000 {
		t.Errorf("unexpected environment %+v", env)
	}
}

func TestHTTPClient_ListConfigs_Query(t *testing.T) {
	h := &testHandler{responseBody: `{"items": [{"id": 7, "name": "api", "created_at": 1}], "next_page": "Nw"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	page, err := c.ListConfigs(context.Background(), 42, model.PageQuery{NextPage: "NQ", PageSize: 5})
	if err != nil {
		t.Fatalf("ListConfigs() error = %v", err)
	}
	if h.method != http.MethodGet {
		t.Errorf("method = %q, want GET", h.method)
	}
	if h.path != "/environments/42/configs" {
		t.Errorf("path = %q, want /environments/42/configs", h.path)
	}
	if h.query != "next_page=NQ&page_size=5" {
		t.Errorf("query = %q, want next_page=NQ&page_size=5", h.query)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 7 || page.NextPage != "Nw" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHTTPClient_ListEnvironments_NoQuery(t *testing.T) {
	h := &testHandler{responseBody: `{"items": []}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.ListEnvironments(context.Background(), model.PageQuery{}); err != nil {
		t.Fatalf("ListEnvironments() error = %v", err)
	}
	if h.query != "" {
		t.Errorf("query = %q, want empty", h.query)
	}
}

func TestHTTPClient_DeleteConfig(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteConfig(context.Background(), 1, 2); err != nil {
		t.Fatalf("DeleteConfig() error = %v", err)
	}
	if h.method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", h.method)
	}
	if h.path != "/environments/1/configs/2" {
		t.Errorf("path = %q, want /environments/1/configs/2", h.path)
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusNotFound,
		responseBody: `{"code": "NOT_FOUND", "message": "get environment: not found", "description": "not found"}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.GetEnvironment(context.Background(), 9)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", apiErr.Code)
	}
	if apiErr.Message != "get environment: not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
}

func TestHTTPClient_APIError_PlainBody(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadGateway, responseBody: "upstream down\n"}
	c, srv := newTestClient(h)
	defer srv.Close()

	err := c.DeleteEnvironment(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "upstream down" {
		t.Errorf("message = %q, want 'upstream down'", apiErr.Message)
	}
	if IsNotFound(err) {
		t.Error("IsNotFound() = true, want false")
	}
}

func TestHTTPClient_HealthUnavailable(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusServiceUnavailable,
		responseBody: `{"status": "unavailable", "checks": [{"name": "s3", "ok": false, "error": "timeout"}]}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	status, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if status == nil || status.Status != "unavailable" || len(status.Checks) != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

// newLiveServer runs the real HTTP handler over an in-memory store.
func newLiveServer(t *testing.T) *HTTPClient {
	t.Helper()
	mem := memory.New()
	gen, err := idgen.NewGenerator(3)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	envs := service.NewEnvironmentCoordinator(gen, mem.Environments(), mem.Blobs(), service.WithLogger(logger))
	configs := service.NewConfigCoordinator(gen, mem.Configs(), mem.Blobs(), service.WithLogger(logger))
	s := server.New(envs, configs, server.WithCheck("memory", mem), server.WithLogger(logger))

	srv := httptest.NewServer(s.NewHTTPHandler())
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL)
}

func TestHTTPClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newLiveServer(t)

	env, err := c.CreateEnvironment(ctx, "prod")
	if err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	for i := range 13 {
		if _, err := c.CreateConfig(ctx, env.ID, model.CreateConfig{Name: fmt.Sprintf("svc-%d", i), Config: "{}"}); err != nil {
			t.Fatalf("CreateConfig: %v", err)
		}
	}

	all, err := AllConfigs(ctx, c, env.ID, model.MinPageSize)
	if err != nil {
		t.Fatalf("AllConfigs: %v", err)
	}
	if len(all) != 13 {
		t.Fatalf("expected 13 configs, got %d", len(all))
	}

	cfg, err := c.GetConfig(ctx, env.ID, all[0].ID)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Config != "{}" || cfg.Name != "svc-0" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if err := c.DeleteEnvironment(ctx, env.ID); err != nil {
		t.Fatalf("DeleteEnvironment: %v", err)
	}
	if _, err := c.GetConfig(ctx, env.ID, all[0].ID); !IsNotFound(err) {
		t.Fatalf("expected not found after cascade, got %v", err)
	}
	envsLeft, err := AllEnvironments(ctx, c, 0)
	if err != nil {
		t.Fatalf("AllEnvironments: %v", err)
	}
	if len(envsLeft) != 0 {
		t.Fatalf("expected no environments, got %d", len(envsLeft))
	}

	health, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("status = %q, want ok", health.Status)
	}
}

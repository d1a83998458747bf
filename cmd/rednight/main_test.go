package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/rednight/internal/config"
	"github.com/alfredjeanlab/rednight/internal/events"
	"github.com/alfredjeanlab/rednight/internal/idgen"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/server"
	"github.com/alfredjeanlab/rednight/internal/service"
	"github.com/alfredjeanlab/rednight/internal/store/memory"
	"github.com/alfredjeanlab/rednight/internal/ui"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer serves the real HTTP handler over a fresh in-memory backend.
func startServer(t *testing.T) string {
	t.Helper()
	mem := memory.New()
	gen, err := idgen.NewGenerator(7)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	logger := discardLogger()
	envs := service.NewEnvironmentCoordinator(gen, mem.Environments(), mem.Blobs(), service.WithLogger(logger))
	configs := service.NewConfigCoordinator(gen, mem.Configs(), mem.Blobs(), service.WithLogger(logger))
	srv := server.New(envs, configs, server.WithCheck("memory", mem), server.WithLogger(logger))

	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes the CLI with args against url and returns stdout.
func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append(args, "--server", url))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, url string, args ...string) string {
	t.Helper()
	out, err := run(t, url, args...)
	if err != nil {
		t.Fatalf("rednight %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestCLI_EnvironmentAndConfigCommands(t *testing.T) {
	url := startServer(t)

	var env model.Environment
	if err := json.Unmarshal([]byte(mustRun(t, url, "env", "create", "staging", "--json")), &env); err != nil {
		t.Fatalf("decoding env: %v", err)
	}
	if env.Name != "staging" || env.ID == 0 {
		t.Fatalf("unexpected env %+v", env)
	}
	envID := jsonID(env.ID)

	if out := mustRun(t, url, "env", "show", envID); !strings.Contains(out, "staging") {
		t.Errorf("env show output missing name:\n%s", out)
	}

	for _, name := range []string{"api", "worker", "cron", "web", "db", "cache", "queue"} {
		mustRun(t, url, "config", "create", envID, name, "--value", `{"service":"`+name+`"}`)
	}

	var page model.Page[*model.ConfigSummary]
	if err := json.Unmarshal([]byte(mustRun(t, url, "config", "list", envID, "--all", "--page-size", "5", "--json")), &page); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(page.Items) != 7 || page.NextPage != "" {
		t.Fatalf("expected 7 configs and no cursor, got %d (%q)", len(page.Items), page.NextPage)
	}

	out := mustRun(t, url, "config", "list", envID, "--page-size", "5")
	if !strings.Contains(out, "5 configs") || !strings.Contains(out, "--next-page") {
		t.Errorf("expected a first page with a cursor hint:\n%s", out)
	}

	cfgID := jsonID(page.Items[0].ID)
	if raw := mustRun(t, url, "config", "get", envID, cfgID, "--raw"); raw != `{"service":"api"}` {
		t.Errorf("config get --raw = %q", raw)
	}

	mustRun(t, url, "config", "delete", envID, cfgID)
	if _, err := run(t, url, "config", "get", envID, cfgID); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 after delete, got %v", err)
	}

	mustRun(t, url, "env", "delete", envID)
	if out := mustRun(t, url, "env", "list"); !strings.Contains(out, "0 environments") {
		t.Errorf("expected empty listing:\n%s", out)
	}
}

func TestCLI_ConfigCreateFromFile(t *testing.T) {
	url := startServer(t)
	var env model.Environment
	if err := json.Unmarshal([]byte(mustRun(t, url, "env", "create", "dev", "--json")), &env); err != nil {
		t.Fatalf("decoding env: %v", err)
	}

	path := filepath.Join(t.TempDir(), "payload.yaml")
	if err := os.WriteFile(path, []byte("replicas: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var cfg model.Config
	if err := json.Unmarshal([]byte(mustRun(t, url, "config", "create", jsonID(env.ID), "svc", "-f", path, "--json")), &cfg); err != nil {
		t.Fatalf("decoding config: %v", err)
	}
	if cfg.Config != "replicas: 3\n" {
		t.Errorf("payload = %q", cfg.Config)
	}
}

func TestCLI_ConfigCreateRequiresPayload(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "config", "create", "1", "svc"); err == nil || !strings.Contains(err.Error(), "payload is required") {
		t.Fatalf("expected payload error, got %v", err)
	}
}

func TestCLI_InvalidID(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "env", "show", "abc"); err == nil || !strings.Contains(err.Error(), "invalid environment id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestCLI_Health(t *testing.T) {
	url := startServer(t)
	out := mustRun(t, url, "health")
	if !strings.Contains(out, "Health: ok") || !strings.Contains(out, "memory") {
		t.Errorf("unexpected health output:\n%s", out)
	}
}

// fakeSubscriber feeds canned messages to any subscription.
type fakeSubscriber struct {
	ch     chan events.Message
	topics []string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan events.Message, 1)}
}

func (f *fakeSubscriber) Subscribe(topic string) (<-chan events.Message, func(), error) {
	f.topics = append(f.topics, topic)
	return f.ch, func() {}, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func TestWatch_PrintsTopicAndPayload(t *testing.T) {
	sub := newFakeSubscriber()
	sub.ch <- events.Message{Topic: events.TopicConfigDeleted, Data: []byte(`{"environment_id":1,"config_id":2}`)}

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	c := &cli{jsonOutput: true}
	go func() { done <- c.watch(ctx, sub, &out) }()

	deadline := time.After(2 * time.Second)
	for !strings.Contains(out.String(), "config_id") {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("timed out waiting for event, got %q", out.String())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}

	var got watchedEvent
	if err := json.Unmarshal([]byte(strings.TrimSpace(out.String())), &got); err != nil {
		t.Fatalf("decoding watch output: %v", err)
	}
	if got.Topic != events.TopicConfigDeleted {
		t.Errorf("topic = %q", got.Topic)
	}
	if len(sub.topics) != 1 || sub.topics[0] != events.TopicAll {
		t.Errorf("subscribed to %v, want [%s]", sub.topics, events.TopicAll)
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	be, err := openBackend(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	if _, ok := be.checks["memory"]; !ok {
		t.Errorf("expected memory check, got %v", be.checks)
	}
	if err := be.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("expected JSON warn line, got %q", buf.String())
	}
}

func TestColorizeHelpOutput_NoColor(t *testing.T) {
	ui.ForceNoColor()
	in := "Resources:\n  env         Manage environments\n"
	if got := colorizeHelpOutput(in); got != in {
		t.Errorf("expected unchanged help without color, got %q", got)
	}
}

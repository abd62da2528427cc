package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/laneboard/internal/adapters/metrics"
	"github.com/evanschultz/laneboard/internal/adapters/server/common"
	"github.com/evanschultz/laneboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/laneboard/internal/app"
	"github.com/google/uuid"
)

// newDependencies wires a real service stack over in-memory sqlite.
func newDependencies(t *testing.T) (Dependencies, *metrics.Recorder) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	recorder := metrics.NewRecorder()
	svc := app.NewService(repo, uuid.NewString, time.Now)
	ctrl := app.NewTransitionController(svc, nil, app.WithObserver(recorder))
	return Dependencies{
		Board:   common.NewAppServiceAdapter(svc, ctrl),
		Metrics: recorder.Handler(),
	}, recorder
}

func TestNewHandlerServesHealthAPIAndMetrics(t *testing.T) {
	deps, _ := newDependencies(t)
	handler, cfg, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.MetricsEndpoint != "/metrics" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}

	resp, err = server.Client().Post(server.URL+"/api/v1/tasks", "application/json", strings.NewReader(`{"title":"Ship"}`))
	if err != nil {
		t.Fatalf("POST /tasks error = %v", err)
	}
	var created common.TaskView
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || created.ID == "" {
		t.Fatalf("unexpected create response %d %#v", resp.StatusCode, created)
	}

	resp, err = server.Client().Post(server.URL+"/api/v1/tasks/"+created.ID+"/move", "application/json", strings.NewReader(`{"lane":"Done"}`))
	if err != nil {
		t.Fatalf("POST move error = %v", err)
	}
	var moved common.MoveTaskResult
	if err := json.NewDecoder(resp.Body).Decode(&moved); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	_ = resp.Body.Close()
	if moved.Result != "success" || moved.Task.Status != "Done" {
		t.Fatalf("unexpected move response %#v", moved)
	}

	resp, err = server.Client().Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `laneboard_transitions_total{lane="Done",result="success"} 1`) {
		t.Fatalf("expected transition counter in exposition, got:\n%s", body)
	}
}

func TestNormalizeConfig(t *testing.T) {
	cfg, err := normalizeConfig(Config{APIEndpoint: "api/", MCPEndpoint: " /tools/mcp/ ", MetricsEndpoint: "/"})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	if cfg.APIEndpoint != "/api" || cfg.MCPEndpoint != "/tools/mcp" || cfg.MetricsEndpoint != "/metrics" {
		t.Fatalf("unexpected endpoints %#v", cfg)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.ServerName != "laneboard" || cfg.ServerVersion != "dev" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if _, err := normalizeConfig(Config{APIEndpoint: "/x", MCPEndpoint: "/x"}); err == nil {
		t.Fatal("expected api/mcp collision error")
	}
	if _, err := normalizeConfig(Config{MetricsEndpoint: "/mcp"}); err == nil {
		t.Fatal("expected metrics/mcp collision error")
	}
}

func TestNewHandlerRequiresBoard(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing board dependency error")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	deps, _ := newDependencies(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	shutdownCalled := make(chan struct{})
	deps.OnShutdown = func(context.Context) error {
		close(shutdownCalled)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{HTTPBind: addr}, deps)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	select {
	case <-shutdownCalled:
	default:
		t.Fatal("expected OnShutdown to run")
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	rec := NewRecorder()
	req := app.TransitionRequest{Task: domain.Task{ID: "t1"}, Destination: domain.LaneDone}
	rec.ObserveTransition(app.Outcome{Request: req, Result: app.OutcomeSuccess}, 5*time.Millisecond)
	rec.ObserveTransition(app.Outcome{Request: req, Result: app.OutcomeSuccess}, 5*time.Millisecond)
	rec.ObserveTransition(app.Outcome{Request: req, Result: app.OutcomeNoOp}, time.Microsecond)
	rec.ObserveTransition(app.Outcome{Request: app.TransitionRequest{Destination: domain.Lane(9)}, Result: app.OutcomeRejected}, 0)

	if got := testutil.ToFloat64(rec.transitions.WithLabelValues("success", "Done")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.transitions.WithLabelValues("noop", "Done")); got != 1 {
		t.Fatalf("noop count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.transitions.WithLabelValues("rejected", "unknown")); got != 1 {
		t.Fatalf("rejected count = %v, want 1", got)
	}
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveTransition(app.Outcome{Request: app.TransitionRequest{Destination: domain.LaneTodo}, Result: app.OutcomeFailure}, time.Millisecond)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if !strings.Contains(text, `laneboard_transitions_total{lane="To Do",result="failure"} 1`) {
		t.Fatalf("expected failure counter in exposition, got %s", text)
	}
	if !strings.Contains(text, "laneboard_transition_duration_seconds_bucket") {
		t.Fatalf("expected histogram in exposition, got %s", text)
	}
}

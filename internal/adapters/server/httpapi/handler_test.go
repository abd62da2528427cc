package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/laneboard/internal/adapters/server/common"
	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
)

// stubBoardService provides deterministic board responses for handler tests.
type stubBoardService struct {
	board       common.BoardView
	tasks       []common.TaskView
	created     common.TaskView
	moved       common.MoveTaskResult
	activity    []common.ActivityEntry
	err         error
	lastCreate  common.CreateTaskRequest
	lastMove    common.MoveTaskRequest
	lastDelete  string
	lastGet     string
	lastListing common.ListActivityRequest
	lastActor   app.MutationActor
}

// Board returns the fixture board.
func (s *stubBoardService) Board(context.Context) (common.BoardView, error) {
	return s.board, s.err
}

// ListTasks returns fixture tasks.
func (s *stubBoardService) ListTasks(context.Context) ([]common.TaskView, error) {
	return append([]common.TaskView(nil), s.tasks...), s.err
}

// GetTask records the id and returns the first fixture task.
func (s *stubBoardService) GetTask(_ context.Context, taskID string) (common.TaskView, error) {
	s.lastGet = taskID
	if s.err != nil {
		return common.TaskView{}, s.err
	}
	return s.tasks[0], nil
}

// CreateTask records the request and returns the fixture task.
func (s *stubBoardService) CreateTask(ctx context.Context, req common.CreateTaskRequest) (common.TaskView, error) {
	s.lastCreate = req
	s.lastActor = app.ActorForContext(ctx)
	return s.created, s.err
}

// DeleteTask records the id.
func (s *stubBoardService) DeleteTask(_ context.Context, taskID string) error {
	s.lastDelete = taskID
	return s.err
}

// MoveTask records the request and actor.
func (s *stubBoardService) MoveTask(ctx context.Context, req common.MoveTaskRequest) (common.MoveTaskResult, error) {
	s.lastMove = req
	s.lastActor = app.ActorForContext(ctx)
	return s.moved, s.err
}

// ListActivity records the filter and returns fixture rows.
func (s *stubBoardService) ListActivity(_ context.Context, req common.ListActivityRequest) ([]common.ActivityEntry, error) {
	s.lastListing = req
	return s.activity, s.err
}

// serve runs one request through the handler.
func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// decodeError decodes one error envelope.
func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var envelope ErrorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return envelope.Error
}

func TestHandlerBoard(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stub := &stubBoardService{board: common.BoardView{
		Lanes: []common.LaneView{
			{Name: "To Do", Position: 1, Tasks: []common.TaskView{{ID: "t1", Title: "A", Status: "To Do", CreatedAt: now, UpdatedAt: now}}},
			{Name: "In Progress", Position: 2, Tasks: []common.TaskView{}},
			{Name: "Done", Position: 3, Tasks: []common.TaskView{}},
		},
		Total: 1,
	}}
	rr := serve(NewHandler(stub), http.MethodGet, "/board", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var got common.BoardView
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Lanes) != 3 || got.Lanes[0].Tasks[0].ID != "t1" || got.Total != 1 {
		t.Fatalf("unexpected board payload %#v", got)
	}
}

func TestHandlerMoveTask(t *testing.T) {
	stub := &stubBoardService{moved: common.MoveTaskResult{
		Task:    common.TaskView{ID: "t1", Status: "Done"},
		Result:  "success",
		Message: "Moved to 'Done' successfully",
	}}
	h := NewHandler(stub)

	rr := serve(h, http.MethodPost, "/tasks/t1/move", `{"lane":"done"}`, map[string]string{actorHeader: "ci-bot"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if stub.lastMove.TaskID != "t1" || stub.lastMove.Lane != "done" {
		t.Fatalf("unexpected move request %#v", stub.lastMove)
	}
	if stub.lastActor.ActorID != "ci-bot" || stub.lastActor.ActorType != domain.ActorTypeUser {
		t.Fatalf("unexpected actor %#v", stub.lastActor)
	}
	var got common.MoveTaskResult
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Message != "Moved to 'Done' successfully" {
		t.Fatalf("unexpected move payload %#v", got)
	}

	rr = serve(h, http.MethodPost, "/tasks/t1/move", `{"lane":"done","extra":1}`, nil)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "invalid_request" {
		t.Fatalf("expected unknown field to be rejected, got %d", rr.Code)
	}
	rr = serve(h, http.MethodPost, "/tasks/t1/move", `{"lane":"done"}{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected trailing content to be rejected, got %d", rr.Code)
	}
}

func TestHandlerCreateGetDelete(t *testing.T) {
	stub := &stubBoardService{
		created: common.TaskView{ID: "t9", Title: "New", Status: "To Do"},
		tasks:   []common.TaskView{{ID: "t9", Title: "New", Status: "To Do"}},
	}
	h := NewHandler(stub)

	rr := serve(h, http.MethodPost, "/tasks", `{"title":"New"}`, nil)
	if rr.Code != http.StatusCreated || stub.lastCreate.Title != "New" {
		t.Fatalf("expected 201 create, got %d %#v", rr.Code, stub.lastCreate)
	}
	if stub.lastActor.ActorID != defaultActorID {
		t.Fatalf("expected default actor, got %#v", stub.lastActor)
	}

	rr = serve(h, http.MethodGet, "/tasks", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"t9"`) {
		t.Fatalf("unexpected list response %d %s", rr.Code, rr.Body.String())
	}
	rr = serve(h, http.MethodGet, "/tasks/t9", "", nil)
	if rr.Code != http.StatusOK || stub.lastGet != "t9" {
		t.Fatalf("unexpected get response %d", rr.Code)
	}
	rr = serve(h, http.MethodDelete, "/tasks/t9", "", nil)
	if rr.Code != http.StatusNoContent || stub.lastDelete != "t9" {
		t.Fatalf("unexpected delete response %d", rr.Code)
	}
}

func TestHandlerActivity(t *testing.T) {
	stub := &stubBoardService{activity: []common.ActivityEntry{{ID: 3, TaskID: "t1", Operation: "move"}}}
	h := NewHandler(stub)

	rr := serve(h, http.MethodGet, "/activity?task_id=t1&limit=5", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if stub.lastListing.TaskID != "t1" || stub.lastListing.Limit != 5 {
		t.Fatalf("unexpected activity request %#v", stub.lastListing)
	}
	rr = serve(h, http.MethodGet, "/activity?limit=abc", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: fmt.Errorf("get: %w", common.ErrNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, domain.ErrUnknownLane), status: http.StatusBadRequest, code: "invalid_request"},
		{name: "conflict", err: common.ErrConflict, status: http.StatusConflict, code: "transition_in_flight"},
		{name: "failed", err: common.ErrTransitionFailed, status: http.StatusBadGateway, code: "transition_failed"},
		{name: "internal", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubBoardService{err: tc.err}
			rr := serve(NewHandler(stub), http.MethodPost, "/tasks/t1/move", `{"lane":"x"}`, nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.code {
				t.Fatalf("expected code %q, got %#v", tc.code, apiErr)
			}
			if tc.name == "invalid" && !strings.Contains(apiErr.Hint, "In Progress") {
				t.Fatalf("expected lane hint, got %#v", apiErr)
			}
		})
	}
}

func TestHandlerRoutingFallbacks(t *testing.T) {
	h := NewHandler(&stubBoardService{})
	if rr := serve(h, http.MethodGet, "/nope", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodPut, "/board", "", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	rr := serve(NewHandler(nil), http.MethodGet, "/board", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without service, got %d", rr.Code)
	}
	rr = serve(h, http.MethodGet, "/lanes", "", nil)
	if !strings.Contains(rr.Body.String(), "In Progress") {
		t.Fatalf("expected lane names, got %s", rr.Body.String())
	}
}

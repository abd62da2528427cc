package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/evanschultz/laneboard/internal/adapters/server/common"
	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubBoardService provides deterministic board responses for MCP tool tests.
type stubBoardService struct {
	board     common.BoardView
	moved     common.MoveTaskResult
	moveErr   error
	lastMove  common.MoveTaskRequest
	lastActor app.MutationActor
	lastLimit int
}

// Board returns the fixture board.
func (s *stubBoardService) Board(context.Context) (common.BoardView, error) {
	return s.board, nil
}

// ListTasks returns no tasks.
func (s *stubBoardService) ListTasks(context.Context) ([]common.TaskView, error) {
	return []common.TaskView{}, nil
}

// GetTask reports every task as missing.
func (s *stubBoardService) GetTask(_ context.Context, taskID string) (common.TaskView, error) {
	return common.TaskView{}, errors.Join(common.ErrNotFound, errors.New(taskID))
}

// CreateTask echoes the title.
func (s *stubBoardService) CreateTask(ctx context.Context, req common.CreateTaskRequest) (common.TaskView, error) {
	s.lastActor = app.ActorForContext(ctx)
	return common.TaskView{ID: "t1", Title: req.Title, Status: "To Do"}, nil
}

// DeleteTask accepts every id.
func (s *stubBoardService) DeleteTask(context.Context, string) error {
	return nil
}

// MoveTask records the request and actor.
func (s *stubBoardService) MoveTask(ctx context.Context, req common.MoveTaskRequest) (common.MoveTaskResult, error) {
	s.lastMove = req
	s.lastActor = app.ActorForContext(ctx)
	if s.moveErr != nil {
		return common.MoveTaskResult{}, s.moveErr
	}
	return s.moved, nil
}

// ListActivity records the limit.
func (s *stubBoardService) ListActivity(_ context.Context, req common.ListActivityRequest) ([]common.ActivityEntry, error) {
	s.lastLimit = req.Limit
	return []common.ActivityEntry{}, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "laneboard-test",
				"version": "1.0.0",
			},
		},
	}
}

// newTestServer starts an httptest server over one MCP handler.
func newTestServer(t *testing.T, board common.BoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, board)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubBoardService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersBoardTools verifies tool discovery.
func TestHandlerRegistersBoardTools(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"laneboard.board",
		"laneboard.list_lanes",
		"laneboard.activity",
		"laneboard.list_tasks",
		"laneboard.get_task",
		"laneboard.create_task",
		"laneboard.move_task",
		"laneboard.delete_task",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerMoveTaskAttributesAgent verifies move_task forwards input under an agent actor.
func TestHandlerMoveTaskAttributesAgent(t *testing.T) {
	stub := &stubBoardService{moved: common.MoveTaskResult{
		Task:    common.TaskView{ID: "t1", Status: "Done"},
		Result:  "success",
		Message: "Moved to 'Done' successfully",
	}}
	server := newTestServer(t, stub)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "laneboard.move_task", map[string]any{
		"task_id":  "t1",
		"lane":     "Done",
		"actor_id": "planner",
	}))
	if isErr, _ := resp.Result["isError"].(bool); isErr {
		t.Fatalf("unexpected tool error %#v", resp.Result)
	}
	if !strings.Contains(toolResultText(t, resp.Result), "Moved to 'Done' successfully") {
		t.Fatalf("unexpected tool text %#v", resp.Result)
	}
	if stub.lastMove.TaskID != "t1" || stub.lastMove.Lane != "Done" {
		t.Fatalf("unexpected move request %#v", stub.lastMove)
	}
	if stub.lastActor.ActorID != "planner" || stub.lastActor.ActorType != domain.ActorTypeAgent {
		t.Fatalf("unexpected actor %#v", stub.lastActor)
	}
}

// TestHandlerMoveTaskErrors verifies service errors become tool errors.
func TestHandlerMoveTaskErrors(t *testing.T) {
	stub := &stubBoardService{moveErr: errors.Join(common.ErrInvalidRequest, domain.ErrUnknownLane)}
	server := newTestServer(t, stub)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "laneboard.move_task", map[string]any{
		"task_id": "t1",
		"lane":    "Review",
	}))
	if isErr, _ := resp.Result["isError"].(bool); !isErr {
		t.Fatalf("expected tool error, got %#v", resp.Result)
	}
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("unexpected error text %q", text)
	}
	if stub.lastActor.ActorID != defaultActorID {
		t.Fatalf("expected default agent actor, got %#v", stub.lastActor)
	}

	_, resp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "laneboard.get_task", map[string]any{
		"task_id": "nope",
	}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("unexpected get_task error text %q", text)
	}
}

// TestHandlerActivityForwardsLimit verifies numeric arguments reach the service.
func TestHandlerActivityForwardsLimit(t *testing.T) {
	stub := &stubBoardService{}
	server := newTestServer(t, stub)
	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(6, "laneboard.activity", map[string]any{
		"limit": 7,
	}))
	if stub.lastLimit != 7 {
		t.Fatalf("expected limit 7, got %d", stub.lastLimit)
	}
}

// TestToolResultFromError verifies error classes map to stable prefixes.
func TestToolResultFromError(t *testing.T) {
	cases := map[string]error{
		"transition_in_flight:": common.ErrConflict,
		"transition_failed:":    common.ErrTransitionFailed,
		"service_unavailable:":  common.ErrServiceUnavailable,
		"internal_error:":       errors.New("boom"),
	}
	for prefix, err := range cases {
		result := toolResultFromError(err)
		text, ok := result.Content[0].(mcp.TextContent)
		if !ok || !strings.HasPrefix(text.Text, prefix) {
			t.Fatalf("expected prefix %q, got %#v", prefix, result.Content)
		}
	}
}

func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error without board service")
	}
}

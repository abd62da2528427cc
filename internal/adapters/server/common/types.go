// Package common holds transport-neutral contracts shared by the HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/laneboard/internal/domain"
)

// TaskView is the transport shape of one task.
type TaskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Lane        string    `json:"lane,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LaneView is one rendered lane with its tasks in store order.
type LaneView struct {
	Name     string     `json:"name"`
	Position int        `json:"position"`
	Tasks    []TaskView `json:"tasks"`
}

// BoardView is the full three-lane board.
type BoardView struct {
	Lanes  []LaneView `json:"lanes"`
	Total  int        `json:"total"`
	Hidden int        `json:"hidden"`
}

// CreateTaskRequest stores create_task input.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// MoveTaskRequest stores move_task input. Lane accepts a lane name or its 1-based position.
type MoveTaskRequest struct {
	TaskID string `json:"task_id,omitempty"`
	Lane   string `json:"lane"`
}

// MoveTaskResult reports how a move settled.
type MoveTaskResult struct {
	Task    TaskView `json:"task"`
	Result  string   `json:"result"`
	Message string   `json:"message"`
}

// ActivityEntry is one change-ledger row.
type ActivityEntry struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"task_id"`
	Operation  string            `json:"operation"`
	ActorID    string            `json:"actor_id"`
	ActorType  string            `json:"actor_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ListActivityRequest filters the change ledger.
type ListActivityRequest struct {
	TaskID string
	Limit  int
}

// BoardService is the transport-facing board contract.
type BoardService interface {
	Board(context.Context) (BoardView, error)
	ListTasks(context.Context) ([]TaskView, error)
	GetTask(context.Context, string) (TaskView, error)
	CreateTask(context.Context, CreateTaskRequest) (TaskView, error)
	DeleteTask(context.Context, string) error
	MoveTask(context.Context, MoveTaskRequest) (MoveTaskResult, error)
	ListActivity(context.Context, ListActivityRequest) ([]ActivityEntry, error)
}

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports a missing task.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a move rejected because another one is still in flight.
var ErrConflict = errors.New("conflict")

// ErrTransitionFailed reports a move the store refused.
var ErrTransitionFailed = errors.New("transition failed")

// ErrServiceUnavailable reports an adapter without a backing service.
var ErrServiceUnavailable = errors.New("service unavailable")

// SupportedLanes returns lane names in board order.
func SupportedLanes() []string {
	lanes := domain.Lanes()
	out := make([]string, 0, len(lanes))
	for _, lane := range lanes {
		out = append(out, lane.Name())
	}
	return out
}

// MapTask converts one domain task into its transport shape.
func MapTask(task domain.Task) TaskView {
	view := TaskView{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if lane, ok := task.Lane(); ok {
		view.Lane = lane.Name()
	}
	return view
}

// MapTasks converts a task slice, never returning nil.
func MapTasks(tasks []domain.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, MapTask(task))
	}
	return out
}

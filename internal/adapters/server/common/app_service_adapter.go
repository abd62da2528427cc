package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service and the transition controller.
type AppServiceAdapter struct {
	service     *app.Service
	transitions *app.TransitionController
}

var _ BoardService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter. Moves always go through transitions.
func NewAppServiceAdapter(service *app.Service, transitions *app.TransitionController) *AppServiceAdapter {
	return &AppServiceAdapter{service: service, transitions: transitions}
}

// Board returns the classified three-lane board.
func (a *AppServiceAdapter) Board(ctx context.Context) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	board, err := a.service.Board(ctx)
	if err != nil {
		return BoardView{}, mapAppError("load board", err)
	}
	out := BoardView{
		Lanes:  make([]LaneView, 0, len(board.Lanes)),
		Total:  board.Total(),
		Hidden: board.Hidden,
	}
	for _, column := range board.Lanes {
		out.Lanes = append(out.Lanes, LaneView{
			Name:     column.Lane.Name(),
			Position: int(column.Lane) + 1,
			Tasks:    MapTasks(column.Tasks),
		})
	}
	return out, nil
}

// ListTasks returns every stored task, including ones outside the three lanes.
func (a *AppServiceAdapter) ListTasks(ctx context.Context) ([]TaskView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.ListTasks(ctx)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	return MapTasks(tasks), nil
}

// GetTask returns one task by id.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return TaskView{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	task, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, mapAppError("get task", err)
	}
	return MapTask(task), nil
}

// CreateTask creates one task. An empty status lands in the first lane.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return TaskView{}, fmt.Errorf("title is required: %w", ErrInvalidRequest)
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
	})
	if err != nil {
		return TaskView{}, mapAppError("create task", err)
	}
	return MapTask(task), nil
}

// DeleteTask removes one task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, taskID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	return mapAppError("delete task", a.service.DeleteTask(ctx, taskID))
}

// MoveTask requests a lane change through the transition controller and waits for it to settle.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (MoveTaskResult, error) {
	if err := a.ready(); err != nil {
		return MoveTaskResult{}, err
	}
	if a.transitions == nil {
		return MoveTaskResult{}, fmt.Errorf("transition controller is not configured: %w", ErrServiceUnavailable)
	}
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return MoveTaskResult{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	lane, err := domain.ParseLane(in.Lane)
	if err != nil {
		return MoveTaskResult{}, fmt.Errorf("lane %q: %w", in.Lane, errors.Join(ErrInvalidRequest, err))
	}
	task, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}
	req, err := app.NewTransitionRequest(task, lane)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}

	outcome, err := a.transitions.RequestTransition(ctx, req).Wait(ctx)
	if err != nil {
		return MoveTaskResult{}, fmt.Errorf("move task: %w", err)
	}
	switch outcome.Result {
	case app.OutcomeSuccess, app.OutcomeNoOp:
		return MoveTaskResult{
			Task:    MapTask(outcome.Record),
			Result:  string(outcome.Result),
			Message: outcome.Message,
		}, nil
	case app.OutcomeFailure:
		if errors.Is(outcome.Err, app.ErrNotFound) {
			return MoveTaskResult{}, mapAppError("move task", outcome.Err)
		}
		return MoveTaskResult{}, fmt.Errorf("move task: %w", errors.Join(ErrTransitionFailed, outcome.Err))
	default:
		return MoveTaskResult{}, mapAppError("move task", outcome.Err)
	}
}

// ListActivity lists change-ledger rows, newest first.
func (a *AppServiceAdapter) ListActivity(ctx context.Context, in ListActivityRequest) ([]ActivityEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if in.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	events, err := a.service.ListChangeEvents(ctx, in.TaskID, in.Limit)
	if err != nil {
		return nil, mapAppError("list activity", err)
	}
	out := make([]ActivityEntry, 0, len(events))
	for _, event := range events {
		out = append(out, ActivityEntry{
			ID:         event.ID,
			TaskID:     event.TaskID,
			Operation:  string(event.Operation),
			ActorID:    event.ActorID,
			ActorType:  string(event.ActorType),
			Metadata:   event.Metadata,
			OccurredAt: event.OccurredAt,
		})
	}
	return out, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return nil
}

// mapAppError maps app and domain errors onto transport sentinels, keeping the original chain.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrTransitionInFlight):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrUnknownLane),
		errors.Is(err, app.ErrTaskMismatch),
		errors.Is(err, app.ErrInvalidTransition):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

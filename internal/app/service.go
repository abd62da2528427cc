package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/evanschultz/laneboard/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service implements task use-cases and the TaskStore port over a Repository.
type Service struct {
	repo  Repository
	idGen IDGenerator
	clock Clock
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:  repo,
		idGen: idGen,
		clock: clock,
	}
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
}

// CreateTask creates task.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTaskInput holds input values for detail edits.
type UpdateTaskInput struct {
	TaskID      string
	Title       string
	Description string
}

// UpdateTask edits title and description. Status changes go through UpdateStatus.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(in.TaskID))
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.UpdateDetails(in.Title, in.Description, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateStatus persists a full task record produced by a transition.
// Writing a record identical to the stored one is a successful no-op.
func (s *Service) UpdateStatus(ctx context.Context, taskID string, task domain.Task) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.ErrInvalidID
	}
	if strings.TrimSpace(task.ID) != taskID {
		return ErrTaskMismatch
	}
	if strings.TrimSpace(task.Title) == "" {
		return domain.ErrInvalidTitle
	}
	current, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if current.SameContent(task) {
		return nil
	}
	task.CreatedAt = current.CreatedAt
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = s.clock().UTC()
	}
	return s.repo.UpdateTask(ctx, task)
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return s.repo.GetTask(ctx, strings.TrimSpace(taskID))
}

// ListTasks returns every stored task, including unclassified ones.
func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.repo.ListTasks(ctx)
}

// DeleteTask removes one task.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.ErrInvalidID
	}
	return s.repo.DeleteTask(ctx, taskID)
}

// Board loads the classified board.
func (s *Service) Board(ctx context.Context) (Board, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return Board{}, err
	}
	return BuildBoard(tasks), nil
}

// ListChangeEvents lists recent ledger rows, newest first. An empty taskID lists all tasks.
func (s *Service) ListChangeEvents(ctx context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListChangeEvents(ctx, strings.TrimSpace(taskID), limit)
}

// upsertTask creates or replaces one task record.
func (s *Service) upsertTask(ctx context.Context, task domain.Task) error {
	if _, err := s.repo.GetTask(ctx, task.ID); err == nil {
		return s.repo.UpdateTask(ctx, task)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateTask(ctx, task)
}

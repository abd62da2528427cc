package app

import (
	"context"
	"time"

	"github.com/evanschultz/laneboard/internal/domain"
)

// Repository persists tasks and the activity ledger.
type Repository interface {
	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context) ([]domain.Task, error)
	DeleteTask(context.Context, string) error
	ListChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// TaskStore is the single mutation path used by TransitionController.
// UpdateStatus receives the full record with only the status replaced and
// must treat a duplicate identical update as success.
type TaskStore interface {
	UpdateStatus(ctx context.Context, taskID string, task domain.Task) error
}

// Notifier is the user-feedback side channel.
type Notifier interface {
	Info(message string)
	Success(message string)
	Failure(message string)
}

// TransitionObserver receives every settled transition outcome.
type TransitionObserver interface {
	ObserveTransition(outcome Outcome, elapsed time.Duration)
}

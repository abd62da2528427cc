package domain

import (
	"strings"
	"time"
)

// Task is one board item. Status stays free-form at rest; see Classify.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

type TaskInput struct {
	ID          string
	Title       string
	Description string
	Status      string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = strings.TrimSpace(in.Status)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Status == "" {
		in.Status = LaneTodo.Name()
	}

	return Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Lane classifies the task status.
func (t Task) Lane() (Lane, bool) {
	return Classify(t.Status)
}

// WithStatus returns a copy with only the status replaced by the lane's canonical name.
func (t Task) WithStatus(lane Lane, now time.Time) Task {
	t.Status = lane.Name()
	t.UpdatedAt = now.UTC()
	return t
}

func (t *Task) UpdateDetails(title, description string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	t.UpdatedAt = now.UTC()
	return nil
}

// SameContent reports whether two records would persist identically, ignoring UpdatedAt.
func (t Task) SameContent(other Task) bool {
	return t.ID == other.ID &&
		t.Title == other.Title &&
		t.Description == other.Description &&
		t.Status == other.Status &&
		t.CreatedAt.Equal(other.CreatedAt)
}

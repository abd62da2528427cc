package domain

import "time"

// ActorType identifies who caused a persisted change.
type ActorType string

// ActorType values.
const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// ChangeOperation describes a persisted activity operation for a task.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationCreate ChangeOperation = "create"
	ChangeOperationUpdate ChangeOperation = "update"
	ChangeOperationMove   ChangeOperation = "move"
	ChangeOperationDelete ChangeOperation = "delete"
)

// ChangeEvent represents a single activity-log entry for a task.
type ChangeEvent struct {
	ID         int64             `json:"id" yaml:"id"`
	TaskID     string            `json:"task_id" yaml:"task_id"`
	Operation  ChangeOperation   `json:"operation" yaml:"operation"`
	ActorID    string            `json:"actor_id" yaml:"actor_id"`
	ActorType  ActorType         `json:"actor_type" yaml:"actor_type"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at" yaml:"occurred_at"`
}

// ClassifyTaskChange reports which ledger operation turns before into after.
// A status change wins over any detail edit made in the same write.
func ClassifyTaskChange(before, after Task) ChangeOperation {
	if before.Status != after.Status {
		return ChangeOperationMove
	}
	return ChangeOperationUpdate
}

// MoveMetadata describes a status change for the activity ledger.
func MoveMetadata(before, after Task) map[string]string {
	meta := map[string]string{
		"from_status": before.Status,
		"to_status":   after.Status,
	}
	if lane, ok := before.Lane(); ok {
		meta["from_lane"] = lane.Name()
	}
	if lane, ok := after.Lane(); ok {
		meta["to_lane"] = lane.Name()
	}
	return meta
}

// Package redis stores tasks and the activity ledger in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
)

// maxWatchRetries bounds optimistic-lock retries for one write.
const maxWatchRetries = 8

// Repository implements app.Repository using Redis.
type Repository struct {
	client     *backend.Client
	prefix     string
	eventLimit int64
}

// Option configures a Repository.
type Option func(*Repository)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		if strings.TrimSpace(prefix) != "" {
			r.prefix = prefix
		}
	}
}

// WithEventLimit caps how many ledger rows are retained per list.
func WithEventLimit(limit int) Option {
	return func(r *Repository) {
		if limit > 0 {
			r.eventLimit = int64(limit)
		}
	}
}

// New creates a repository with its own client.
func New(address, password string, db int, opts ...Option) *Repository {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a repository from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Repository {
	repo := &Repository{
		client:     client,
		prefix:     "laneboard:",
		eventLimit: 1000,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

func (r *Repository) taskKey(id string) string {
	return r.prefix + "task:" + id
}

func (r *Repository) indexKey() string {
	return r.prefix + "tasks"
}

func (r *Repository) eventsKey() string {
	return r.prefix + "events"
}

// Task ids are caller supplied, so per-task keys never share a namespace
// with fixed keys.
func (r *Repository) taskEventsKey(id string) string {
	return r.prefix + "task-events:" + id
}

func (r *Repository) eventSeqKey() string {
	return r.prefix + "seq:events"
}

// Ping reports whether the server answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (r *Repository) Close() error {
	return r.client.Close()
}

// CreateTask creates task. The existence check and every write run in one
// WATCH transaction so a failed create leaves nothing behind.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	eventID, err := r.nextEventID(ctx)
	if err != nil {
		return err
	}
	event := newEvent(eventID, t.ID, domain.ChangeOperationCreate, app.ActorForContext(ctx), map[string]string{"title": t.Title, "status": t.Status}, t.CreatedAt)
	key := r.taskKey(t.ID)

	txf := func(tx *backend.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check task: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("task %q already exists", t.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.indexKey(), backend.Z{Score: float64(t.CreatedAt.UnixMilli()), Member: t.ID})
			return r.pushEvent(ctx, pipe, event)
		})
		if err != nil && !errors.Is(err, backend.TxFailedErr) {
			return fmt.Errorf("failed to save task: %w", err)
		}
		return err
	}
	return r.watch(ctx, t.ID, txf, key)
}

// UpdateTask replaces the stored record and appends one ledger row.
// Concurrent writers are serialized with WATCH on the task key.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	// One id per call; optimistic-lock retries reuse it.
	eventID, err := r.nextEventID(ctx)
	if err != nil {
		return err
	}
	actor := app.ActorForContext(ctx)
	key := r.taskKey(t.ID)

	txf := func(tx *backend.Tx) error {
		prev, err := r.loadTask(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		op := domain.ClassifyTaskChange(prev, t)
		metadata := map[string]string{}
		if op == domain.ChangeOperationMove {
			metadata = domain.MoveMetadata(prev, t)
		}
		event := newEvent(eventID, t.ID, op, actor, metadata, t.UpdatedAt)
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return r.pushEvent(ctx, pipe, event)
		})
		return err
	}
	return r.watch(ctx, t.ID, txf, key)
}

// watch runs txf under WATCH, retrying when another writer touches keys.
func (r *Repository) watch(ctx context.Context, taskID string, txf func(*backend.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = r.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, backend.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("write task %q: %w", taskID, err)
}

// GetTask returns task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.loadTask(ctx, r.client, id)
}

// ListTasks lists tasks in creation order.
func (r *Repository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Task{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.taskKey(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	out := make([]domain.Task, 0, len(values))
	for _, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var task domain.Task
		if err := json.Unmarshal([]byte(str), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}
		out = append(out, task)
	}
	return out, nil
}

// DeleteTask deletes task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	task, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}
	eventID, err := r.nextEventID(ctx)
	if err != nil {
		return err
	}
	event := newEvent(eventID, id, domain.ChangeOperationDelete, app.ActorForContext(ctx), map[string]string{"title": task.Title, "status": task.Status}, time.Now())
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.taskKey(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if err := r.pushEvent(ctx, pipe, event); err != nil {
		return err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if del.Val() == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ListChangeEvents lists ledger rows newest first; an empty taskID lists every task.
func (r *Repository) ListChangeEvents(ctx context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	key := r.eventsKey()
	if taskID != "" {
		key = r.taskEventsKey(taskID)
	}
	rows, err := r.client.LRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list change events: %w", err)
	}
	out := make([]domain.ChangeEvent, 0, len(rows))
	for _, row := range rows {
		var event domain.ChangeEvent
		if err := json.Unmarshal([]byte(row), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal change event: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, nil
}

func (r *Repository) loadTask(ctx context.Context, c backend.Cmdable, id string) (domain.Task, error) {
	val, err := c.Get(ctx, r.taskKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	var task domain.Task
	if err := json.Unmarshal([]byte(val), &task); err != nil {
		return domain.Task{}, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return task, nil
}

func (r *Repository) nextEventID(ctx context.Context) (int64, error) {
	id, err := r.client.Incr(ctx, r.eventSeqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate change event id: %w", err)
	}
	return id, nil
}

func newEvent(id int64, taskID string, op domain.ChangeOperation, actor app.MutationActor, metadata map[string]string, at time.Time) domain.ChangeEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return domain.ChangeEvent{
		ID:         id,
		TaskID:     taskID,
		Operation:  op,
		ActorID:    actor.ActorID,
		ActorType:  actor.ActorType,
		Metadata:   metadata,
		OccurredAt: at.UTC(),
	}
}

// pushEvent queues the event onto the global and per-task ledgers.
func (r *Repository) pushEvent(ctx context.Context, pipe backend.Pipeliner, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	for _, key := range []string{r.eventsKey(), r.taskEventsKey(event.TaskID)} {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, r.eventLimit-1)
	}
	return nil
}

var _ app.Repository = (*Repository)(nil)

package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/laneboard/internal/domain"
)

// TransitionRequest asks for task to be moved to Destination. Consumed once.
type TransitionRequest struct {
	Task        domain.Task
	Destination domain.Lane
}

// NewTransitionRequest builds a request for an explicit move action.
// It does not suppress no-op moves; the controller reports those.
func NewTransitionRequest(task domain.Task, destination domain.Lane) (TransitionRequest, error) {
	if strings.TrimSpace(task.ID) == "" {
		return TransitionRequest{}, fmt.Errorf("%w: %w", ErrInvalidTransition, domain.ErrInvalidID)
	}
	if !destination.Valid() {
		return TransitionRequest{}, fmt.Errorf("%w: %w", ErrInvalidTransition, domain.ErrUnknownLane)
	}
	return TransitionRequest{Task: task, Destination: destination}, nil
}

// OutcomeResult labels how a transition settled.
type OutcomeResult string

// OutcomeResult values.
const (
	OutcomeSuccess  OutcomeResult = "success"
	OutcomeFailure  OutcomeResult = "failure"
	OutcomeNoOp     OutcomeResult = "noop"
	OutcomeRejected OutcomeResult = "rejected"
)

// Outcome is the settled result of one TransitionRequest.
type Outcome struct {
	Request TransitionRequest
	// Record is the task sent to the store, or the unchanged task when nothing was dispatched.
	Record domain.Task
	Result OutcomeResult
	Err    error
	// Message is the text sent to the notifier.
	Message string
}

// Succeeded reports whether the store accepted the new status.
func (o Outcome) Succeeded() bool {
	return o.Result == OutcomeSuccess
}

// Pending is the future returned by RequestTransition.
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(outcome Outcome) {
	p.outcome = outcome
	close(p.done)
}

// Done is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the outcome settles or ctx ends. Abandoning the wait does
// not cancel the dispatched mutation.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// TransitionOption configures a TransitionController.
type TransitionOption func(*TransitionController)

// WithInFlightGuard rejects a request while another for the same task is pending.
func WithInFlightGuard(enabled bool) TransitionOption {
	return func(c *TransitionController) {
		c.strict = enabled
	}
}

// WithObserver registers a settled-outcome observer.
func WithObserver(observer TransitionObserver) TransitionOption {
	return func(c *TransitionController) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// WithTransitionClock overrides the clock used to stamp dispatched records.
func WithTransitionClock(clock Clock) TransitionOption {
	return func(c *TransitionController) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// TransitionController is the single authority for status changes.
type TransitionController struct {
	store     TaskStore
	notifier  Notifier
	observers []TransitionObserver
	clock     Clock
	strict    bool

	mu       sync.Mutex
	inFlight map[string]int
	wg       sync.WaitGroup
}

// NewTransitionController constructs a controller over store and notifier.
func NewTransitionController(store TaskStore, notifier Notifier, opts ...TransitionOption) *TransitionController {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	c := &TransitionController{
		store:    store,
		notifier: notifier,
		clock:    time.Now,
		inFlight: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RequestTransition validates req and dispatches it without blocking the caller.
// The store call runs on a context detached from ctx's cancellation.
func (c *TransitionController) RequestTransition(ctx context.Context, req TransitionRequest) *Pending {
	pending := newPending()
	started := time.Now()

	if strings.TrimSpace(req.Task.ID) == "" || !req.Destination.Valid() {
		err := ErrInvalidTransition
		c.notifier.Failure(err.Error())
		c.settle(pending, Outcome{Request: req, Record: req.Task, Result: OutcomeRejected, Err: err, Message: err.Error()}, started)
		return pending
	}

	destination := req.Destination.Name()
	if current, ok := domain.Classify(req.Task.Status); ok && current == req.Destination {
		msg := fmt.Sprintf("Task is already in '%s'", destination)
		c.notifier.Info(msg)
		c.settle(pending, Outcome{Request: req, Record: req.Task, Result: OutcomeNoOp, Message: msg}, started)
		return pending
	}

	if !c.acquire(req.Task.ID) {
		msg := fmt.Sprintf("Task is already moving; wait before moving it to '%s'", destination)
		c.notifier.Info(msg)
		c.settle(pending, Outcome{Request: req, Record: req.Task, Result: OutcomeRejected, Err: ErrTransitionInFlight, Message: msg}, started)
		return pending
	}

	record := req.Task.WithStatus(req.Destination, c.clock())
	dispatchCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.store.UpdateStatus(dispatchCtx, req.Task.ID, record)
		c.release(req.Task.ID)

		outcome := Outcome{Request: req, Record: record, Result: OutcomeSuccess}
		if err != nil {
			outcome.Result, outcome.Err = OutcomeFailure, err
			outcome.Message = failureMessage(err)
			c.notifier.Failure(outcome.Message)
		} else {
			outcome.Message = fmt.Sprintf("Moved to '%s' successfully", destination)
			c.notifier.Success(outcome.Message)
		}
		c.settle(pending, outcome, started)
	}()
	return pending
}

// InFlight reports whether a dispatched mutation for taskID has not settled yet.
func (c *TransitionController) InFlight(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[taskID] > 0
}

// Drain waits for every dispatched mutation to settle or for ctx to end.
func (c *TransitionController) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire marks taskID in flight; it fails only in strict mode when one is pending.
func (c *TransitionController) acquire(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strict && c.inFlight[taskID] > 0 {
		return false
	}
	c.inFlight[taskID]++
	return true
}

func (c *TransitionController) release(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[taskID]--
	if c.inFlight[taskID] <= 0 {
		delete(c.inFlight, taskID)
	}
}

func (c *TransitionController) settle(pending *Pending, outcome Outcome, started time.Time) {
	elapsed := time.Since(started)
	for _, observer := range c.observers {
		observer.ObserveTransition(outcome, elapsed)
	}
	pending.resolve(outcome)
}

func failureMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Failed to move task"
	}
	return msg
}

type discardNotifier struct{}

func (discardNotifier) Info(string)    {}
func (discardNotifier) Success(string) {}
func (discardNotifier) Failure(string) {}

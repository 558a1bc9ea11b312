// Package lifecycle validates and applies task state transitions. It is the
// single place that appends lifecycle events: every accepted transition
// writes the new state (conditioned on the expected prior state) and records
// exactly one event; a rejected attempt touches nothing.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"compliance-taskboard/internal/models"
	"compliance-taskboard/internal/telemetry"
)

// StateChange is the conditional write handed to the store. The store must
// apply it only while the task's state still equals Expected and report
// ErrConcurrentModification otherwise.
type StateChange struct {
	TaskID           string
	Expected         models.TaskState
	Next             models.TaskState
	ReviewerApproved bool
	BlockedReason    *string
}

// Store is the persistence surface the machine drives.
type Store interface {
	GetTask(ctx context.Context, id string) (models.Task, error)
	ApplyStateChange(ctx context.Context, change StateChange) error
	AppendEvent(ctx context.Context, ev models.LifecycleEvent) error
}

// Machine applies transitions against a task store.
type Machine struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Machine {
	return &Machine{store: store, now: time.Now}
}

// Request describes one transition attempt. Expected is the optimistic
// precondition; when empty the machine reads the task's current state and
// uses that, which still guards against a concurrent writer between the read
// and the write.
type Request struct {
	TaskID   string
	Action   models.EventAction
	ActorID  string
	Expected models.TaskState
	Reason   string
	Metadata map[string]any
}

// transitionKey pairs a source state with a trigger.
type transitionKey struct {
	from   models.TaskState
	action models.EventAction
}

// transitions is the closed legal-transition table. Blocking is handled
// separately because it is legal from every active state.
var transitions = map[transitionKey]models.TaskState{
	{models.StatePending, models.ActionStart}:              models.StateInProgress,
	{models.StateInProgress, models.ActionComplete}:        models.StatePendingEvidence,
	{models.StatePendingEvidence, models.ActionSubmit}:     models.StateInValidation,
	{models.StateRejected, models.ActionSubmit}:            models.StateInValidation,
	{models.StateInValidation, models.ActionReject}:        models.StateRejected,
	{models.StateInValidation, models.ActionApprove}:       models.StateSubmitted,
	{models.StateInValidation, models.ActionSignOff}:       models.StateInValidation,
	{models.StateBlockedByClient, models.ActionUnblock}:    models.StateInProgress,
	{models.StateSubmitted, models.ActionConfirmPayment}:   models.StatePaid,
	{models.StatePaid, models.ActionClose}:                 models.StateClosed,
}

// nextState resolves the target state for (from, action), or ok=false when
// the pair is not in the table.
func nextState(from models.TaskState, action models.EventAction) (models.TaskState, bool) {
	if action == models.ActionBlock {
		if from.Terminal() || from == models.StateBlockedByClient {
			return "", false
		}
		return models.StateBlockedByClient, true
	}
	next, ok := transitions[transitionKey{from, action}]
	return next, ok
}

// Apply validates req, performs the conditional store write, and appends the
// lifecycle event. It returns the appended event on success.
func (m *Machine) Apply(ctx context.Context, req Request) (models.LifecycleEvent, error) {
	if req.TaskID == "" {
		return models.LifecycleEvent{}, fmt.Errorf("task id: %w", ErrMissingRequiredField)
	}
	if req.ActorID == "" {
		return models.LifecycleEvent{}, fmt.Errorf("actor id: %w", ErrMissingRequiredField)
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Action == models.ActionReject && reason == "" {
		return models.LifecycleEvent{}, fmt.Errorf("rejection reason: %w", ErrMissingRequiredField)
	}

	expected := req.Expected
	if expected == "" {
		task, err := m.store.GetTask(ctx, req.TaskID)
		if err != nil {
			return models.LifecycleEvent{}, err
		}
		expected = task.State
	} else if !expected.Valid() {
		return models.LifecycleEvent{}, fmt.Errorf("unknown state %q: %w", expected, ErrInvalidTransition)
	}

	next, ok := nextState(expected, req.Action)
	if !ok {
		telemetry.TransitionsInvalid.Inc()
		return models.LifecycleEvent{}, fmt.Errorf("%q from state %q: %w", req.Action, expected, ErrInvalidTransition)
	}

	change := StateChange{
		TaskID:   req.TaskID,
		Expected: expected,
		Next:     next,
	}
	switch req.Action {
	case models.ActionApprove, models.ActionSignOff:
		change.ReviewerApproved = true
	case models.ActionBlock:
		if reason != "" {
			change.BlockedReason = &reason
		}
	}

	if err := m.store.ApplyStateChange(ctx, change); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			telemetry.TransitionConflicts.Inc()
		}
		return models.LifecycleEvent{}, err
	}

	ev := models.LifecycleEvent{
		ID:            uuid.New().String(),
		TaskID:        req.TaskID,
		Action:        req.Action,
		PreviousState: expected,
		NewState:      next,
		ActorID:       req.ActorID,
		OccurredAt:    m.now().UTC(),
		Metadata:      req.Metadata,
	}
	if reason != "" {
		ev.Reason = &reason
	}
	if err := m.store.AppendEvent(ctx, ev); err != nil {
		return models.LifecycleEvent{}, fmt.Errorf("append event: %w", err)
	}
	telemetry.TransitionsApplied.Inc()
	telemetry.EventsAppended.Inc()
	return ev, nil
}

// ApprovalResult reports the outcome of one task inside a bulk approval.
type ApprovalResult struct {
	TaskID string                `json:"task_id"`
	Event  models.LifecycleEvent `json:"event,omitempty"`
	Err    error                 `json:"-"`
}

// BulkApprove applies the approve transition to each task in turn. The batch
// has no atomicity: a failure partway through leaves earlier approvals
// committed, and each outcome is reported per item.
func (m *Machine) BulkApprove(ctx context.Context, taskIDs []string, actorID string) []ApprovalResult {
	results := make([]ApprovalResult, 0, len(taskIDs))
	for _, id := range taskIDs {
		ev, err := m.Apply(ctx, Request{
			TaskID:   id,
			Action:   models.ActionApprove,
			ActorID:  actorID,
			Expected: models.StateInValidation,
		})
		results = append(results, ApprovalResult{TaskID: id, Event: ev, Err: err})
	}
	return results
}

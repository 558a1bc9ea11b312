package models

import (
	"time"
)

// TaskState enumerates lifecycle states persisted in Postgres.
type TaskState string

const (
	StatePending         TaskState = "pending"
	StateInProgress      TaskState = "in_progress"
	StatePendingEvidence TaskState = "pending_evidence"
	StateInValidation    TaskState = "in_validation"
	StateRejected        TaskState = "rejected"
	StateBlockedByClient TaskState = "blocked_by_client"
	StateSubmitted       TaskState = "submitted"
	StatePaid            TaskState = "paid"
	StateClosed          TaskState = "closed"
)

// Terminal reports whether no further transitions are accepted from s,
// except the forward submitted -> paid -> closed chain.
func (s TaskState) Terminal() bool {
	switch s {
	case StateSubmitted, StatePaid, StateClosed:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s TaskState) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StatePendingEvidence, StateInValidation,
		StateRejected, StateBlockedByClient, StateSubmitted, StatePaid, StateClosed:
		return true
	}
	return false
}

// EventAction enumerates the triggers recorded on lifecycle events.
type EventAction string

const (
	ActionStart          EventAction = "start"
	ActionComplete       EventAction = "complete"
	ActionSubmit         EventAction = "submit"
	ActionReject         EventAction = "reject"
	ActionApprove        EventAction = "approve"
	ActionSignOff        EventAction = "sign_off"
	ActionBlock          EventAction = "block"
	ActionUnblock        EventAction = "unblock"
	ActionConfirmPayment EventAction = "confirm_payment"
	ActionClose          EventAction = "close"
)

// UrgencyCategory is the derived deadline-risk label. It is computed at read
// time and never stored.
type UrgencyCategory string

const (
	CategoryOverdue  UrgencyCategory = "overdue"
	CategoryDueToday UrgencyCategory = "due_today"
	CategoryDueSoon  UrgencyCategory = "due_soon"
	CategoryBlocked  UrgencyCategory = "blocked"
	CategoryOther    UrgencyCategory = "other"
)

// PeriodBucket is the derived display grouping for a task's fiscal period.
type PeriodBucket string

const (
	BucketClosing PeriodBucket = "closing"
	BucketCurrent PeriodBucket = "current"
)

// Task represents a compliance obligation row persisted in Postgres.
// Client, obligation, and assignee are opaque display associations; the
// classification logic never looks at them.
type Task struct {
	ID               string    `json:"id"`
	ClientID         string    `json:"client_id"`
	ObligationID     string    `json:"obligation_id"`
	AssigneeID       string    `json:"assignee_id"`
	State            TaskState `json:"state"`
	DueDate          time.Time `json:"due_date"`
	FiscalPeriod     string    `json:"fiscal_period"`
	AtRisk           bool      `json:"at_risk"`
	ReviewerAssigned bool      `json:"reviewer_assigned"`
	ReviewerApproved bool      `json:"reviewer_approved"`
	BlockedReason    *string   `json:"blocked_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LifecycleEvent is one append-only audit row for an accepted transition.
type LifecycleEvent struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	Action        EventAction    `json:"action"`
	PreviousState TaskState      `json:"previous_state"`
	NewState      TaskState      `json:"new_state"`
	ActorID       string         `json:"actor_id"`
	Reason        *string        `json:"reason,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TaskFilter narrows FetchTasks results. Zero values mean "no constraint";
// terminal states are excluded unless IncludeTerminal is set. Period bounds
// are inclusive and compare lexically, which for "YYYY-MM" tokens is
// chronological.
type TaskFilter struct {
	AssigneeID      string
	FiscalPeriod    string
	PeriodFrom      string
	PeriodTo        string
	IncludeTerminal bool
}

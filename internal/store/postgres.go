package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance-taskboard/internal/lifecycle"
	"compliance-taskboard/internal/models"
)

// Store wraps pgxpool for Postgres persistence. It implements
// lifecycle.Store; task rows are created by the external generation engine,
// so no insert path for tasks exists here.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const taskColumns = `id, client_id, obligation_id, assignee_id, state, due_date, fiscal_period,
	at_risk, reviewer_assigned, reviewer_approved, blocked_reason, created_at, updated_at`

// FetchTasks returns task snapshots matching the filter, due date ascending.
// Terminal states are excluded unless the filter asks for them.
func (s *Store) FetchTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	if !filter.IncludeTerminal {
		query += fmt.Sprintf(" AND state NOT IN ($%d, $%d, $%d)", len(args)+1, len(args)+2, len(args)+3)
		args = append(args, models.StateSubmitted, models.StatePaid, models.StateClosed)
	}
	if filter.AssigneeID != "" {
		query += fmt.Sprintf(" AND assignee_id = $%d", len(args)+1)
		args = append(args, filter.AssigneeID)
	}
	if filter.FiscalPeriod != "" {
		query += fmt.Sprintf(" AND fiscal_period = $%d", len(args)+1)
		args = append(args, filter.FiscalPeriod)
	}
	if filter.PeriodFrom != "" {
		query += fmt.Sprintf(" AND fiscal_period >= $%d", len(args)+1)
		args = append(args, filter.PeriodFrom)
	}
	if filter.PeriodTo != "" {
		query += fmt.Sprintf(" AND fiscal_period <= $%d", len(args)+1)
		args = append(args, filter.PeriodTo)
	}
	query += " ORDER BY due_date ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, lifecycle.ErrTaskNotFound)
	}
	return task, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	var blockedReason pgtype.Text
	err := row.Scan(
		&task.ID, &task.ClientID, &task.ObligationID, &task.AssigneeID,
		&task.State, &task.DueDate, &task.FiscalPeriod,
		&task.AtRisk, &task.ReviewerAssigned, &task.ReviewerApproved,
		&blockedReason, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, err
		}
		return models.Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.BlockedReason = textPtr(blockedReason)
	return task, nil
}

// ApplyStateChange performs the conditional state write. The row is updated
// only while its state still equals change.Expected; when another writer got
// there first the update matches zero rows and the caller gets
// lifecycle.ErrConcurrentModification carrying the state that won.
func (s *Store) ApplyStateChange(ctx context.Context, change lifecycle.StateChange) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET state = $2,
		    reviewer_approved = CASE WHEN $3 THEN TRUE ELSE reviewer_approved END,
		    blocked_reason = $4,
		    updated_at = NOW()
		WHERE id = $1 AND state = $5
	`, change.TaskID, change.Next, change.ReviewerApproved, change.BlockedReason, change.Expected)
	if err != nil {
		return fmt.Errorf("update task state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := s.GetTask(ctx, change.TaskID)
		if err != nil {
			return err
		}
		return fmt.Errorf("task %s state is %q, expected %q: %w",
			change.TaskID, current.State, change.Expected, lifecycle.ErrConcurrentModification)
	}
	return nil
}

// AppendEvent inserts one lifecycle event row. Events are append-only: no
// update or delete statement for task_events exists anywhere in this module.
func (s *Store) AppendEvent(ctx context.Context, ev models.LifecycleEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO task_events (id, task_id, action, previous_state, new_state, actor_id, reason, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.TaskID, ev.Action, ev.PreviousState, ev.NewState, ev.ActorID, ev.Reason, ev.OccurredAt, metadata)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns a task's event history in occurred_at order.
func (s *Store) ListEvents(ctx context.Context, taskID string) ([]models.LifecycleEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, action, previous_state, new_state, actor_id, reason, occurred_at, metadata
		FROM task_events WHERE task_id = $1 ORDER BY occurred_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.LifecycleEvent
	for rows.Next() {
		var ev models.LifecycleEvent
		var reason pgtype.Text
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.Action, &ev.PreviousState, &ev.NewState,
			&ev.ActorID, &reason, &ev.OccurredAt, &metadata); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Reason = textPtr(reason)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

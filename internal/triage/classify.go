// Package triage derives the urgency category, sort rank, and period bucket
// for compliance tasks. Every function here is pure: the reference day and
// the current fiscal period are explicit arguments, so the same snapshot
// always produces the same board.
package triage

import (
	"time"

	"compliance-taskboard/internal/models"
)

// dueSoonWindow is the inclusive number of days ahead that still counts as
// "due soon".
const dueSoonWindow = 3

// Classify maps a task snapshot and a reference day to an urgency category.
// Terminal tasks carry no category and return ok=false; they never appear in
// active lists. Overdue takes precedence over blocked: a blocked task whose
// deadline has passed is overdue work first.
func Classify(t models.Task, today time.Time) (models.UrgencyCategory, bool) {
	if t.State.Terminal() {
		return "", false
	}
	d := daysUntil(t.DueDate, today)
	switch {
	case d < 0:
		return models.CategoryOverdue, true
	case t.State == models.StateBlockedByClient:
		return models.CategoryBlocked, true
	case d == 0:
		return models.CategoryDueToday, true
	case d <= dueSoonWindow:
		return models.CategoryDueSoon, true
	default:
		return models.CategoryOther, true
	}
}

// daysUntil returns the whole-day difference between due and today. Both
// timestamps are truncated to their calendar date; clock components never
// influence classification.
func daysUntil(due, today time.Time) int {
	return int(dateOnly(due).Sub(dateOnly(today)) / (24 * time.Hour))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodOf formats t as the fiscal-period token for its month ("YYYY-MM").
// Period tokens compare lexically in chronological order.
func PeriodOf(t time.Time) string {
	return t.Format("2006-01")
}

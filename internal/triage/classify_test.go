package triage

import (
	"testing"
	"time"

	"compliance-taskboard/internal/models"
)

var today = time.Date(2026, time.August, 17, 15, 4, 5, 0, time.UTC)

func taskDue(state models.TaskState, due time.Time) models.Task {
	return models.Task{ID: "t", State: state, DueDate: due, FiscalPeriod: "2026-08"}
}

func days(n int) time.Time {
	return today.AddDate(0, 0, n)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		task  models.Task
		want  models.UrgencyCategory
		undef bool
	}{
		{"overdue", taskDue(models.StatePending, days(-1)), models.CategoryOverdue, false},
		{"due today", taskDue(models.StateInProgress, days(0)), models.CategoryDueToday, false},
		{"due in two days", taskDue(models.StateInProgress, days(2)), models.CategoryDueSoon, false},
		{"window edge", taskDue(models.StatePending, days(3)), models.CategoryDueSoon, false},
		{"past window", taskDue(models.StatePending, days(4)), models.CategoryOther, false},
		{"blocked with slack", taskDue(models.StateBlockedByClient, days(10)), models.CategoryBlocked, false},
		{"blocked due today", taskDue(models.StateBlockedByClient, days(0)), models.CategoryBlocked, false},
		{"blocked and overdue", taskDue(models.StateBlockedByClient, days(-2)), models.CategoryOverdue, false},
		{"rejected overdue", taskDue(models.StateRejected, days(-5)), models.CategoryOverdue, false},
		{"submitted excluded", taskDue(models.StateSubmitted, days(-5)), "", true},
		{"paid excluded", taskDue(models.StatePaid, days(0)), "", true},
		{"closed excluded", taskDue(models.StateClosed, days(7)), "", true},
	}
	for _, tc := range cases {
		got, ok := Classify(tc.task, today)
		if tc.undef {
			if ok {
				t.Errorf("%s: expected terminal task to be excluded, got %q", tc.name, got)
			}
			continue
		}
		if !ok {
			t.Errorf("%s: expected a category, got none", tc.name)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassifyIgnoresClockComponent(t *testing.T) {
	// Due late tonight vs. a morning "today" is still due today, not due soon.
	due := time.Date(2026, time.August, 17, 23, 59, 0, 0, time.UTC)
	now := time.Date(2026, time.August, 17, 0, 1, 0, 0, time.UTC)
	got, ok := Classify(taskDue(models.StateInProgress, due), now)
	if !ok || got != models.CategoryDueToday {
		t.Fatalf("got %q ok=%v, want due_today", got, ok)
	}
}

func TestOverdueDominance(t *testing.T) {
	// Risk flag and reviewer assignment never change the category.
	for _, atRisk := range []bool{false, true} {
		for _, reviewer := range []bool{false, true} {
			task := taskDue(models.StateInProgress, days(-3))
			task.AtRisk = atRisk
			task.ReviewerAssigned = reviewer
			got, ok := Classify(task, today)
			if !ok || got != models.CategoryOverdue {
				t.Fatalf("at_risk=%v reviewer=%v: got %q ok=%v, want overdue", atRisk, reviewer, got, ok)
			}
		}
	}
}

func TestClassifyTotality(t *testing.T) {
	states := []models.TaskState{
		models.StatePending, models.StateInProgress, models.StatePendingEvidence,
		models.StateInValidation, models.StateRejected, models.StateBlockedByClient,
	}
	known := map[models.UrgencyCategory]bool{
		models.CategoryOverdue:  true,
		models.CategoryDueToday: true,
		models.CategoryDueSoon:  true,
		models.CategoryBlocked:  true,
		models.CategoryOther:    true,
	}
	for _, state := range states {
		for offset := -30; offset <= 30; offset++ {
			got, ok := Classify(taskDue(state, days(offset)), today)
			if !ok {
				t.Fatalf("state %q offset %d: non-terminal task excluded", state, offset)
			}
			if !known[got] {
				t.Fatalf("state %q offset %d: unknown category %q", state, offset, got)
			}
		}
	}
}

func TestPeriodOf(t *testing.T) {
	if got := PeriodOf(today); got != "2026-08" {
		t.Fatalf("got %q want 2026-08", got)
	}
	if PeriodOf(days(-30)) >= PeriodOf(today) {
		t.Fatalf("period tokens must compare chronologically")
	}
}

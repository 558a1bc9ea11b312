package triage

import (
	"reflect"
	"testing"

	"compliance-taskboard/internal/models"
)

func TestRankMapping(t *testing.T) {
	want := map[models.UrgencyCategory]int{
		models.CategoryOverdue:  0,
		models.CategoryDueToday: 1,
		models.CategoryDueSoon:  2,
		models.CategoryBlocked:  3,
		models.CategoryOther:    4,
	}
	for c, r := range want {
		if got := Rank(c); got != r {
			t.Errorf("Rank(%q) = %d, want %d", c, got, r)
		}
	}
}

func TestBucketOverdueOverride(t *testing.T) {
	task := taskDue(models.StatePending, days(-1))
	task.FiscalPeriod = "2026-08"
	if got := Bucket(task, today, "2026-08"); got != models.BucketClosing {
		t.Fatalf("current-period overdue task bucketed %q, want closing", got)
	}
}

func TestBucketByPeriod(t *testing.T) {
	prior := taskDue(models.StateInProgress, days(5))
	prior.FiscalPeriod = "2026-07"
	if got := Bucket(prior, today, "2026-08"); got != models.BucketClosing {
		t.Fatalf("prior-period task bucketed %q, want closing", got)
	}
	current := taskDue(models.StateInProgress, days(5))
	current.FiscalPeriod = "2026-08"
	if got := Bucket(current, today, "2026-08"); got != models.BucketCurrent {
		t.Fatalf("current-period task bucketed %q, want current", got)
	}
}

func TestComposeBoardOrdering(t *testing.T) {
	other := taskDue(models.StateInProgress, days(20))
	other.ID = "other"
	blocked := taskDue(models.StateBlockedByClient, days(10))
	blocked.ID = "blocked"
	soon := taskDue(models.StateInProgress, days(2))
	soon.ID = "soon"
	dueToday := taskDue(models.StatePending, days(0))
	dueToday.ID = "today"
	overdue := taskDue(models.StatePending, days(-1))
	overdue.ID = "overdue"
	closedOut := taskDue(models.StateClosed, days(-10))
	closedOut.ID = "closed"

	board := ComposeBoard([]models.Task{other, blocked, soon, dueToday, overdue, closedOut}, today, "2026-08")

	if len(board.Closing) != 1 || board.Closing[0].ID != "overdue" {
		t.Fatalf("closing bucket = %+v, want only the overdue task", board.Closing)
	}
	var order []string
	for _, bt := range board.Current {
		order = append(order, bt.ID)
	}
	want := []string{"today", "soon", "blocked", "other"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("current bucket order = %v, want %v", order, want)
	}
}

func TestSortStability(t *testing.T) {
	// Two tasks with equal category and equal due date keep input order,
	// and re-sorting yields an identical result.
	a := taskDue(models.StateInProgress, days(1))
	a.ID = "a"
	b := taskDue(models.StatePending, days(1))
	b.ID = "b"
	c := taskDue(models.StateInProgress, days(-2))
	c.ID = "c"

	tasks := []models.Task{a, b, c}
	SortTasks(tasks, today)
	first := ids(tasks)
	SortTasks(tasks, today)
	second := ids(tasks)

	if !reflect.DeepEqual(first, []string{"c", "a", "b"}) {
		t.Fatalf("sorted order = %v, want [c a b]", first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated sort changed order: %v then %v", first, second)
	}
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

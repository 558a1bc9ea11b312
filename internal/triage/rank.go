package triage

import (
	"sort"
	"time"

	"compliance-taskboard/internal/models"
)

// Rank maps a category to its sort position; lower sorts first.
func Rank(c models.UrgencyCategory) int {
	switch c {
	case models.CategoryOverdue:
		return 0
	case models.CategoryDueToday:
		return 1
	case models.CategoryDueSoon:
		return 2
	case models.CategoryBlocked:
		return 3
	default:
		return 4
	}
}

// SortTasks orders tasks in place by rank ascending, then due date ascending.
// The sort is stable: equal keys keep their relative input order so that
// caller-supplied groupings survive re-renders.
func SortTasks(tasks []models.Task, today time.Time) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ci, _ := Classify(tasks[i], today)
		cj, _ := Classify(tasks[j], today)
		ri, rj := Rank(ci), Rank(cj)
		if ri != rj {
			return ri < rj
		}
		return dateOnly(tasks[i].DueDate).Before(dateOnly(tasks[j].DueDate))
	})
}

package triage

import (
	"sort"
	"time"

	"compliance-taskboard/internal/models"
)

// BoardTask is a task annotated with its derived triage fields for display.
type BoardTask struct {
	models.Task
	Category models.UrgencyCategory `json:"category"`
	Rank     int                    `json:"rank"`
	Bucket   models.PeriodBucket    `json:"bucket"`
}

// Board is the grouped, sorted view model the dashboard renders.
type Board struct {
	Closing []BoardTask `json:"closing"`
	Current []BoardTask `json:"current"`
}

// ComposeBoard classifies, buckets, and sorts a snapshot of tasks. Terminal
// tasks are dropped. Within each bucket the order is rank ascending, due
// date ascending, stable on input order.
func ComposeBoard(tasks []models.Task, today time.Time, currentPeriod string) Board {
	var board Board
	for _, t := range tasks {
		category, ok := Classify(t, today)
		if !ok {
			continue
		}
		bt := BoardTask{
			Task:     t,
			Category: category,
			Rank:     Rank(category),
			Bucket:   Bucket(t, today, currentPeriod),
		}
		if bt.Bucket == models.BucketClosing {
			board.Closing = append(board.Closing, bt)
		} else {
			board.Current = append(board.Current, bt)
		}
	}
	sortBoardTasks(board.Closing)
	sortBoardTasks(board.Current)
	return board
}

func sortBoardTasks(tasks []BoardTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Rank != tasks[j].Rank {
			return tasks[i].Rank < tasks[j].Rank
		}
		return dateOnly(tasks[i].DueDate).Before(dateOnly(tasks[j].DueDate))
	})
}

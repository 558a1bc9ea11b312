package triage

import (
	"time"

	"compliance-taskboard/internal/models"
)

// Bucket assigns a task to the closing or current display section. Tasks
// from a prior fiscal period land in closing; overdue tasks are forced into
// closing even when their period equals currentPeriod, so current-period
// overdue work cannot hide in the current section.
func Bucket(t models.Task, today time.Time, currentPeriod string) models.PeriodBucket {
	bucket := models.BucketCurrent
	if t.FiscalPeriod < currentPeriod {
		bucket = models.BucketClosing
	}
	if c, ok := Classify(t, today); ok && c == models.CategoryOverdue {
		bucket = models.BucketClosing
	}
	return bucket
}

// Package recurrence implements the completion rule for recurring tasks:
// counting completions within a period and rolling the task over once the
// period's target is reached.
package recurrence

import (
	"errors"
	"time"

	"github.com/phrazzld/tasker-api/internal/domain"
)

// Common errors
var (
	ErrNilTask      = errors.New("task cannot be nil")
	ErrNotRecurring = errors.New("task is not recurring")
)

// Outcome describes what a single completion event did.
type Outcome struct {
	// PeriodCount is the number of completions recorded in the period,
	// including this one, before any rollover reset.
	PeriodCount int
	// PeriodTarget is the number of completions that exhausts the period.
	PeriodTarget int
	// NewPeriod is set when the previous period had elapsed (or never
	// started) and the count was restarted before this completion.
	NewPeriod bool
	// RolledOver is set when the period target was reached.
	RolledOver bool
	// Next is the spawned follow-up task when the task keeps history.
	// It has no ID yet; the caller persists it.
	Next *domain.Task
}

// PeriodExhausted reports whether this completion reached the target.
func (o *Outcome) PeriodExhausted() bool {
	return o.PeriodCount >= o.PeriodTarget
}

// Advance moves t forward by one interval of pattern. Months are added in
// calendar terms and clamp to the last day of a shorter month, so Jan 31
// advances to Feb 28 (or 29).
func Advance(pattern domain.RecurrencePattern, t time.Time) time.Time {
	switch pattern {
	case domain.RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case domain.RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case domain.RecurrenceMonthly:
		return addMonth(t)
	default:
		return t
	}
}

func addMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	firstOfNext := time.Date(y, m+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// PeriodElapsed reports whether now falls outside the period that started at
// start. A period that never started counts as elapsed.
func PeriodElapsed(pattern domain.RecurrencePattern, start *time.Time, now time.Time) bool {
	if start == nil {
		return true
	}
	return !now.Before(Advance(pattern, *start))
}

// Triggers reports whether moving task from prev to its current status is a
// completion event. Only a transition into completed from another status
// counts; completed to completed is ignored.
func Triggers(prev domain.TaskStatus, task *domain.Task) bool {
	return task != nil &&
		task.IsRecurring() &&
		prev != domain.TaskStatusCompleted &&
		task.Status == domain.TaskStatusCompleted
}

// Complete records one completion of a recurring task. The task must already
// carry status completed; it is modified in place.
//
// When the target is reached and the task keeps history, the returned
// Outcome.Next holds the follow-up task and the original stays completed.
// Otherwise the task itself is reset to todo for the next period.
func Complete(task *domain.Task, now time.Time) (*Outcome, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if !task.IsRecurring() {
		return nil, ErrNotRecurring
	}

	out := &Outcome{PeriodTarget: task.PeriodTarget()}

	if PeriodElapsed(task.RecurrencePattern, task.PeriodStartDate, now) {
		start := now
		task.PeriodStartDate = &start
		task.CurrentPeriodCount = 0
		out.NewPeriod = true
	}

	task.CurrentPeriodCount++
	task.UpdatedAt = now
	out.PeriodCount = task.CurrentPeriodCount

	if !out.PeriodExhausted() {
		return out, nil
	}

	out.RolledOver = true
	nextDue := advanceDue(task)

	if task.KeepHistory {
		out.Next = spawn(task, nextDue, now)
		return out, nil
	}

	start := now
	task.Status = domain.TaskStatusTodo
	task.DueDate = nextDue
	task.CurrentPeriodCount = 0
	task.PeriodStartDate = &start
	return out, nil
}

// ResetPeriod restarts the period after the recurrence pattern changed.
func ResetPeriod(task *domain.Task, now time.Time) {
	task.CurrentPeriodCount = 0
	if task.IsRecurring() {
		start := now
		task.PeriodStartDate = &start
		return
	}
	task.PeriodStartDate = nil
}

// advanceDue returns the next due date. Tasks without a due date keep none.
func advanceDue(task *domain.Task) *time.Time {
	if task.DueDate == nil {
		return nil
	}
	next := Advance(task.RecurrencePattern, *task.DueDate)
	return &next
}

func spawn(task *domain.Task, due *time.Time, now time.Time) *domain.Task {
	parent := task.ID
	if task.ParentTaskID != nil {
		parent = *task.ParentTaskID
	}

	var desc *string
	if task.Description != nil {
		d := *task.Description
		desc = &d
	}
	var times *int
	if task.TimesPerPeriod != nil {
		n := *task.TimesPerPeriod
		times = &n
	}
	tags := make([]domain.Tag, len(task.Tags))
	copy(tags, task.Tags)
	start := now

	return &domain.Task{
		UserID:             task.UserID,
		Title:              task.Title,
		Description:        desc,
		Status:             domain.TaskStatusTodo,
		Priority:           task.Priority,
		DueDate:            due,
		Tags:               tags,
		CreatedAt:          now,
		UpdatedAt:          now,
		RecurrencePattern:  task.RecurrencePattern,
		TimesPerPeriod:     times,
		CurrentPeriodCount: 0,
		PeriodStartDate:    &start,
		KeepHistory:        task.KeepHistory,
		ParentTaskID:       &parent,
	}
}

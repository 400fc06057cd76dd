package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority is the user-assigned importance of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// RecurrencePattern selects the period length of a recurring task.
type RecurrencePattern string

const (
	RecurrenceNone    RecurrencePattern = "none"
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
)

// Valid reports whether r is a known pattern.
func (r RecurrencePattern) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// MaxTitleLength bounds Task.Title in characters.
const MaxTitleLength = 200

// Task is a unit of work owned by a single user.
//
// The recurrence fields (TimesPerPeriod, CurrentPeriodCount, PeriodStartDate,
// KeepHistory) are only interpreted when RecurrencePattern is not none.
type Task struct {
	ID                 int64             `json:"id"`
	UserID             uuid.UUID         `json:"user_id"`
	Title              string            `json:"title"`
	Description        *string           `json:"description"`
	Status             TaskStatus        `json:"status"`
	Priority           TaskPriority      `json:"priority"`
	DueDate            *time.Time        `json:"due_date"`
	Tags               []Tag             `json:"tags"`
	IsDeleted          bool              `json:"is_deleted"`
	DeletedAt          *time.Time        `json:"deleted_at"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	RecurrencePattern  RecurrencePattern `json:"recurrence_pattern"`
	TimesPerPeriod     *int              `json:"times_per_period"`
	CurrentPeriodCount int               `json:"current_period_count"`
	PeriodStartDate    *time.Time        `json:"period_start_date"`
	KeepHistory        bool              `json:"keep_history"`
	ParentTaskID       *int64            `json:"parent_task_id"`
}

// NewTask creates a task with default status, priority and recurrence
// settings. Callers set optional fields and then call Validate.
func NewTask(userID uuid.UUID, title string) *Task {
	now := time.Now().UTC()
	return &Task{
		UserID:            userID,
		Title:             strings.TrimSpace(title),
		Status:            TaskStatusTodo,
		Priority:          PriorityMedium,
		RecurrencePattern: RecurrenceNone,
		KeepHistory:       true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Validate checks every field and reports all failures together.
func (t *Task) Validate() error {
	var errs ValidationErrors

	if t.UserID == uuid.Nil {
		errs.Add("user_id", "owner is required")
	}
	switch n := utf8.RuneCountInString(strings.TrimSpace(t.Title)); {
	case n == 0:
		errs.Add("title", "title cannot be empty")
	case n > MaxTitleLength:
		errs.Add("title", "title must be at most 200 characters")
	}
	if !t.Status.Valid() {
		errs.Add("status", "must be one of todo, in_progress, completed")
	}
	if !t.Priority.Valid() {
		errs.Add("priority", "must be one of low, medium, high")
	}
	if !t.RecurrencePattern.Valid() {
		errs.Add("recurrence_pattern", "must be one of none, daily, weekly, monthly")
	}
	if t.TimesPerPeriod != nil && *t.TimesPerPeriod < 1 {
		errs.Add("times_per_period", "must be at least 1")
	}
	if t.CurrentPeriodCount < 0 {
		errs.Add("current_period_count", "cannot be negative")
	}

	return errs.Err()
}

// IsRecurring reports whether the task repeats.
func (t *Task) IsRecurring() bool {
	return t.RecurrencePattern != "" && t.RecurrencePattern != RecurrenceNone
}

// IsOverdue reports whether the task is past due and still open at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskStatusCompleted
}

// PeriodTarget is the number of completions that exhausts a period.
func (t *Task) PeriodTarget() int {
	if t.TimesPerPeriod == nil || *t.TimesPerPeriod < 1 {
		return 1
	}
	return *t.TimesPerPeriod
}

// TagIDs returns the ids of the attached tags.
func (t *Task) TagIDs() []int64 {
	ids := make([]int64, 0, len(t.Tags))
	for _, tag := range t.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// TaskStats summarizes a user's tasks.
type TaskStats struct {
	Total      int                  `json:"total"`
	ByStatus   map[TaskStatus]int   `json:"by_status"`
	ByPriority map[TaskPriority]int `json:"by_priority"`
	Overdue    int                  `json:"overdue"`
	Deleted    int                  `json:"deleted"`
}

// NewTaskStats returns stats with every status and priority bucket present.
func NewTaskStats() *TaskStats {
	return &TaskStats{
		ByStatus: map[TaskStatus]int{
			TaskStatusTodo:       0,
			TaskStatusInProgress: 0,
			TaskStatusCompleted:  0,
		},
		ByPriority: map[TaskPriority]int{
			PriorityLow:    0,
			PriorityMedium: 0,
			PriorityHigh:   0,
		},
	}
}

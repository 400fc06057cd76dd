package client

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag labels tasks. Predefined tags are shared and read-only.
type Tag struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	IsPredefined bool   `json:"is_predefined"`
}

// Completion is what completing a recurring task did.
type Completion struct {
	Counted         bool   `json:"counted"`
	PeriodCount     int    `json:"period_count"`
	PeriodTarget    int    `json:"period_target"`
	PeriodExhausted bool   `json:"period_exhausted"`
	RolledOver      bool   `json:"rolled_over"`
	NextTaskID      *int64 `json:"next_task_id"`
}

// Task is a task as returned by the server.
type Task struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        *string    `json:"description"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority"`
	DueDate            *time.Time `json:"due_date"`
	Tags               []Tag      `json:"tags"`
	IsDeleted          bool       `json:"is_deleted"`
	DeletedAt          *time.Time `json:"deleted_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	RecurrencePattern  string     `json:"recurrence_pattern"`
	TimesPerPeriod     *int       `json:"times_per_period"`
	CurrentPeriodCount int        `json:"current_period_count"`
	PeriodStartDate    *time.Time `json:"period_start_date"`
	KeepHistory        bool       `json:"keep_history"`
	ParentTaskID       *int64     `json:"parent_task_id"`
	IsOverdue          bool       `json:"is_overdue"`
	IsRecurring        bool       `json:"is_recurring"`

	// Completion is only set on the response to an update that completed a
	// recurring task.
	Completion *Completion `json:"completion,omitempty"`
}

// TaskPage is one page of a listing.
type TaskPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Task  `json:"results"`
}

// Stats summarizes the user's tasks.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	Overdue    int            `json:"overdue"`
	Deleted    int            `json:"deleted"`
}

// BulkResult reports a bulk action.
type BulkResult struct {
	UpdatedCount int    `json:"updated_count"`
	Message      string `json:"message"`
}

// TaskInput creates a task. Empty strings use the server defaults.
type TaskInput struct {
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	Status            string     `json:"status,omitempty"`
	Priority          string     `json:"priority,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	TagIDs            []int64    `json:"tag_ids,omitempty"`
	RecurrencePattern string     `json:"recurrence_pattern,omitempty"`
	TimesPerPeriod    *int       `json:"times_per_period,omitempty"`
	KeepHistory       *bool      `json:"keep_history,omitempty"`
}

// TaskUpdate is a partial update. Nil fields are not sent; the Clear flags
// send an explicit null.
type TaskUpdate struct {
	Title             *string
	Description       *string
	Status            *string
	Priority          *string
	DueDate           *time.Time
	TagIDs            *[]int64
	RecurrencePattern *string
	TimesPerPeriod    *int
	KeepHistory       *bool

	ClearDescription    bool
	ClearDueDate        bool
	ClearTimesPerPeriod bool
}

// MarshalJSON implements json.Marshaler.
func (u TaskUpdate) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	set := func(key string, present bool, v any) {
		if present {
			m[key] = v
		}
	}
	set("title", u.Title != nil, u.Title)
	set("status", u.Status != nil, u.Status)
	set("priority", u.Priority != nil, u.Priority)
	set("tag_ids", u.TagIDs != nil, u.TagIDs)
	set("recurrence_pattern", u.RecurrencePattern != nil, u.RecurrencePattern)
	set("keep_history", u.KeepHistory != nil, u.KeepHistory)

	nullable := func(key string, null, present bool, v any) {
		switch {
		case null:
			m[key] = nil
		case present:
			m[key] = v
		}
	}
	nullable("description", u.ClearDescription, u.Description != nil, u.Description)
	nullable("due_date", u.ClearDueDate, u.DueDate != nil, u.DueDate)
	nullable("times_per_period", u.ClearTimesPerPeriod, u.TimesPerPeriod != nil, u.TimesPerPeriod)

	return json.Marshal(m)
}

// TagUpdate renames or recolours a tag. Nil fields are unchanged.
type TagUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// ListOptions filters and orders a task listing. Zero values do not filter.
type ListOptions struct {
	Page       int
	Status     string
	Priority   string
	Search     string
	TagIDs     []int64
	Overdue    *bool
	HasDueDate *bool
	DueAfter   *time.Time
	DueBefore  *time.Time
	// Ordering is a field name, prefixed with "-" for descending order.
	Ordering string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 1 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	setIf := func(key, v string) {
		if v != "" {
			q.Set(key, v)
		}
	}
	setIf("status", o.Status)
	setIf("priority", o.Priority)
	setIf("search", o.Search)
	setIf("ordering", o.Ordering)
	if len(o.TagIDs) > 0 {
		ids := make([]string, len(o.TagIDs))
		for i, id := range o.TagIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		q.Set("tags", strings.Join(ids, ","))
	}
	if o.Overdue != nil {
		q.Set("is_overdue", strconv.FormatBool(*o.Overdue))
	}
	if o.HasDueDate != nil {
		q.Set("has_due_date", strconv.FormatBool(*o.HasDueDate))
	}
	if o.DueAfter != nil {
		q.Set("due_date_after", o.DueAfter.UTC().Format(time.RFC3339))
	}
	if o.DueBefore != nil {
		q.Set("due_date_before", o.DueBefore.UTC().Format(time.RFC3339))
	}
	return q
}

package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/service"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the body of the refresh and logout endpoints.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the RFC 3339 time the access token expires.
	ExpiresAt string `json:"expires_at"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	TokenResponse
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// DueDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates, which are
// read as midnight UTC.
type DueDate struct {
	time.Time
}

// ParseDueDate parses s in either accepted form.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DueDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.NewValidationError("due_date", "must be a date string", err)
	}
	t, err := ParseDueDate(s)
	if err != nil {
		return domain.NewValidationError("due_date", "must be an RFC 3339 timestamp or YYYY-MM-DD date", err)
	}
	d.Time = t
	return nil
}

// Nullable records whether a JSON field was present and whether it was null,
// so partial updates can tell "leave alone" from "clear".
type Nullable[T any] struct {
	Present bool
	Value   *T
}

// UnmarshalJSON implements json.Unmarshaler. It only runs for present keys.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Optional converts to the service's partial-update representation.
func (n Nullable[T]) Optional() service.Optional[T] {
	return service.Optional[T]{Set: n.Present, Value: n.Value}
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title             string   `json:"title"              validate:"required"`
	Description       *string  `json:"description"`
	Status            string   `json:"status"             validate:"omitempty,oneof=todo in_progress completed"`
	Priority          string   `json:"priority"           validate:"omitempty,oneof=low medium high"`
	DueDate           *DueDate `json:"due_date"`
	TagIDs            []int64  `json:"tag_ids"`
	RecurrencePattern string   `json:"recurrence_pattern" validate:"omitempty,oneof=none daily weekly monthly"`
	TimesPerPeriod    *int     `json:"times_per_period"   validate:"omitempty,gte=1"`
	KeepHistory       *bool    `json:"keep_history"`
}

// ToInput converts the request to service input.
func (r *CreateTaskRequest) ToInput() service.CreateTaskInput {
	in := service.CreateTaskInput{
		Title:             r.Title,
		Description:       r.Description,
		Status:            domain.TaskStatus(r.Status),
		Priority:          domain.TaskPriority(r.Priority),
		TagIDs:            r.TagIDs,
		RecurrencePattern: domain.RecurrencePattern(r.RecurrencePattern),
		TimesPerPeriod:    r.TimesPerPeriod,
		KeepHistory:       r.KeepHistory,
	}
	if r.DueDate != nil {
		due := r.DueDate.Time
		in.DueDate = &due
	}
	return in
}

// UpdateTaskRequest is the body of PATCH /tasks/{id}. Absent fields are left
// unchanged; null clears description, due_date and times_per_period.
type UpdateTaskRequest struct {
	Title             *string           `json:"title"`
	Description       Nullable[string]  `json:"description"`
	Status            *string           `json:"status"             validate:"omitempty,oneof=todo in_progress completed"`
	Priority          *string           `json:"priority"           validate:"omitempty,oneof=low medium high"`
	DueDate           Nullable[DueDate] `json:"due_date"`
	TagIDs            *[]int64          `json:"tag_ids"`
	RecurrencePattern *string           `json:"recurrence_pattern" validate:"omitempty,oneof=none daily weekly monthly"`
	TimesPerPeriod    Nullable[int]     `json:"times_per_period"`
	KeepHistory       *bool             `json:"keep_history"`
}

// ToPatch converts the request to a service patch.
func (r *UpdateTaskRequest) ToPatch() service.TaskPatch {
	p := service.TaskPatch{
		Title:          r.Title,
		Description:    r.Description.Optional(),
		TagIDs:         r.TagIDs,
		TimesPerPeriod: r.TimesPerPeriod.Optional(),
		KeepHistory:    r.KeepHistory,
	}
	if r.Status != nil {
		s := domain.TaskStatus(*r.Status)
		p.Status = &s
	}
	if r.Priority != nil {
		pr := domain.TaskPriority(*r.Priority)
		p.Priority = &pr
	}
	if r.RecurrencePattern != nil {
		rp := domain.RecurrencePattern(*r.RecurrencePattern)
		p.RecurrencePattern = &rp
	}
	if r.DueDate.Present {
		p.DueDate.Set = true
		if r.DueDate.Value != nil {
			due := r.DueDate.Value.Time
			p.DueDate.Value = &due
		}
	}
	return p
}

// BulkActionRequest is the body of POST /tasks/bulk_action.
type BulkActionRequest struct {
	TaskIDs []int64 `json:"task_ids" validate:"required"`
	Action  string  `json:"action"   validate:"required"`
	Value   string  `json:"value"`
}

// TagResponse describes a tag.
type TagResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	IsPredefined bool   `json:"is_predefined"`
}

// CreateTagRequest is the body of POST /tags.
type CreateTagRequest struct {
	Name  string `json:"name"  validate:"required,max=50"`
	Color string `json:"color" validate:"required,hexcolor,len=7"`
}

// UpdateTagRequest is the body of PATCH /tags/{id}.
type UpdateTagRequest struct {
	Name  *string `json:"name"  validate:"omitempty,max=50"`
	Color *string `json:"color" validate:"omitempty,hexcolor,len=7"`
}

// TaskResponse describes a task. IsOverdue and IsRecurring are derived.
type TaskResponse struct {
	ID                 int64         `json:"id"`
	Title              string        `json:"title"`
	Description        *string       `json:"description"`
	Status             string        `json:"status"`
	Priority           string        `json:"priority"`
	DueDate            *time.Time    `json:"due_date"`
	Tags               []TagResponse `json:"tags"`
	IsDeleted          bool          `json:"is_deleted"`
	DeletedAt          *time.Time    `json:"deleted_at"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	RecurrencePattern  string        `json:"recurrence_pattern"`
	TimesPerPeriod     *int          `json:"times_per_period"`
	CurrentPeriodCount int           `json:"current_period_count"`
	PeriodStartDate    *time.Time    `json:"period_start_date"`
	KeepHistory        bool          `json:"keep_history"`
	ParentTaskID       *int64        `json:"parent_task_id"`
	IsOverdue          bool          `json:"is_overdue"`
	IsRecurring        bool          `json:"is_recurring"`

	Completion *service.Completion `json:"completion,omitempty"`
}

// RestoreResponse is returned by the restore endpoint.
type RestoreResponse struct {
	Message string       `json:"message"`
	Task    TaskResponse `json:"task"`
}

// PageResponse is one page of a listing. Next and Previous are absolute URLs.
type PageResponse struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []TaskResponse `json:"results"`
}

func tagToResponse(t domain.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, IsPredefined: t.IsPredefined}
}

func tagsToResponse(tags []domain.Tag) []TagResponse {
	out := make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagToResponse(t))
	}
	return out
}

func taskToResponse(t *domain.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Status:             string(t.Status),
		Priority:           string(t.Priority),
		DueDate:            t.DueDate,
		Tags:               tagsToResponse(t.Tags),
		IsDeleted:          t.IsDeleted,
		DeletedAt:          t.DeletedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		RecurrencePattern:  string(t.RecurrencePattern),
		TimesPerPeriod:     t.TimesPerPeriod,
		CurrentPeriodCount: t.CurrentPeriodCount,
		PeriodStartDate:    t.PeriodStartDate,
		KeepHistory:        t.KeepHistory,
		ParentTaskID:       t.ParentTaskID,
		IsOverdue:          t.IsOverdue(now),
		IsRecurring:        t.IsRecurring(),
	}
}

func tokensToResponse(p service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.ExpiresAt.Format(time.RFC3339),
	}
}

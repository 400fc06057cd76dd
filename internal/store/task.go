package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
)

// Sortable task columns.
const (
	OrderCreatedAt = "created_at"
	OrderUpdatedAt = "updated_at"
	OrderDueDate   = "due_date"
	OrderPriority  = "priority"
	OrderStatus    = "status"
	OrderTitle     = "title"
)

// TaskOrdering selects the sort column and direction of a listing.
type TaskOrdering struct {
	Field string
	Desc  bool
}

// DefaultTaskOrdering lists newest tasks first.
var DefaultTaskOrdering = TaskOrdering{Field: OrderCreatedAt, Desc: true}

// TaskFilter narrows a task listing. Nil fields do not filter.
type TaskFilter struct {
	Deleted       bool // list soft-deleted tasks instead of active ones
	Status        *domain.TaskStatus
	Priority      *domain.TaskPriority
	DueAfter      *time.Time // due_date >= DueAfter
	DueBefore     *time.Time // due_date <= DueBefore
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Overdue       *bool
	HasDueDate    *bool
	Search        string  // case-insensitive match on title, description or tag name
	TagIDs        []int64 // any-of
	Ordering      TaskOrdering
	Limit         int
	Offset        int
	// Now anchors the overdue computation.
	Now time.Time
}

// TaskStore defines the interface for task persistence. Every method is
// scoped to an owner; rows of other users behave as if they did not exist.
type TaskStore interface {
	// Create inserts the task and its tag links, setting ID and timestamps.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID returns an active task with its tags.
	// Returns ErrTaskNotFound for missing, foreign or soft-deleted tasks.
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Task, error)

	// GetForUpdate returns the task with its tags and locks its row until the
	// surrounding transaction ends. Soft-deleted tasks are returned only when
	// includeDeleted is set.
	GetForUpdate(ctx context.Context, userID uuid.UUID, id int64, includeDeleted bool) (*domain.Task, error)

	// ListForUpdate locks and returns the owner's tasks among ids, including
	// soft-deleted ones. Unknown or foreign ids are skipped.
	ListForUpdate(ctx context.Context, userID uuid.UUID, ids []int64) ([]*domain.Task, error)

	// Update writes every mutable column of task, provided the stored status
	// still equals prevStatus. Returns ErrConflict when it does not.
	Update(ctx context.Context, task *domain.Task, prevStatus domain.TaskStatus) error

	// SetTags replaces the tag links of a task.
	SetTags(ctx context.Context, taskID int64, tagIDs []int64) error

	// List returns one page of tasks matching filter and the total number of
	// matches across all pages.
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*domain.Task, int, error)

	// Stats aggregates the owner's tasks.
	Stats(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.TaskStats, error)

	// WithTx returns a TaskStore that runs its queries in tx.
	WithTx(tx *sql.Tx) TaskStore
}

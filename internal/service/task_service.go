package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/domain/recurrence"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

// Bulk action names accepted by BulkAction.
const (
	BulkDelete      = "delete"
	BulkRestore     = "restore"
	BulkComplete    = "complete"
	BulkSetPriority = "set_priority"
	BulkSetStatus   = "set_status"

	// MaxBulkTasks bounds the number of ids in one bulk request.
	MaxBulkTasks = 100
)

// Optional distinguishes an absent field from an explicit null in a partial
// update. Set reports presence; a nil Value with Set clears the field.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// CreateTaskInput carries the fields of a new task. Zero enum values select
// the defaults.
type CreateTaskInput struct {
	Title             string
	Description       *string
	Status            domain.TaskStatus
	Priority          domain.TaskPriority
	DueDate           *time.Time
	TagIDs            []int64
	RecurrencePattern domain.RecurrencePattern
	TimesPerPeriod    *int
	KeepHistory       *bool
}

// TaskPatch is a partial update. Nil pointers and unset Optionals leave the
// stored value unchanged.
type TaskPatch struct {
	Title             *string
	Description       Optional[string]
	Status            *domain.TaskStatus
	Priority          *domain.TaskPriority
	DueDate           Optional[time.Time]
	TagIDs            *[]int64
	RecurrencePattern *domain.RecurrencePattern
	TimesPerPeriod    Optional[int]
	KeepHistory       *bool
}

// Completion reports the recurrence outcome of a status change to completed.
type Completion struct {
	Counted         bool   `json:"counted"`
	PeriodCount     int    `json:"period_count"`
	PeriodTarget    int    `json:"period_target"`
	PeriodExhausted bool   `json:"period_exhausted"`
	RolledOver      bool   `json:"rolled_over"`
	NextTaskID      *int64 `json:"next_task_id"`
}

// UpdateResult is the updated task and, when the update completed a
// recurring task, what the completion did.
type UpdateResult struct {
	Task       *domain.Task
	Completion *Completion
}

// ListParams selects one page of a listing.
type ListParams struct {
	Filter store.TaskFilter
	// Page is 1-based.
	Page int
}

// TaskPage is one page of tasks.
type TaskPage struct {
	Tasks    []*domain.Task
	Total    int
	Page     int
	PageSize int
}

// HasNext reports whether a later page exists.
func (p *TaskPage) HasNext() bool {
	return p.Page*p.PageSize < p.Total
}

// HasPrevious reports whether an earlier page exists.
func (p *TaskPage) HasPrevious() bool {
	return p.Page > 1
}

// BulkRequest is a single action applied to many tasks.
type BulkRequest struct {
	TaskIDs []int64
	Action  string
	Value   string
}

// BulkResult reports how many tasks a bulk action changed.
type BulkResult struct {
	UpdatedCount int    `json:"updated_count"`
	Message      string `json:"message"`
}

// TaskService provides task operations. Every method is scoped to the
// owner; tasks of other users are reported as not found.
type TaskService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateTaskInput) (*domain.Task, error)
	Get(ctx context.Context, userID uuid.UUID, id int64) (*domain.Task, error)
	// Update applies patch and, when the status moves to completed, runs
	// the recurrence rule in the same transaction.
	Update(ctx context.Context, userID uuid.UUID, id int64, patch TaskPatch) (*UpdateResult, error)
	Delete(ctx context.Context, userID uuid.UUID, id int64) error
	Restore(ctx context.Context, userID uuid.UUID, id int64) (*domain.Task, error)
	List(ctx context.Context, userID uuid.UUID, params ListParams) (*TaskPage, error)
	ListDeleted(ctx context.Context, userID uuid.UUID, params ListParams) (*TaskPage, error)
	Stats(ctx context.Context, userID uuid.UUID) (*domain.TaskStats, error)
	BulkAction(ctx context.Context, userID uuid.UUID, req BulkRequest) (*BulkResult, error)
}

type taskServiceImpl struct {
	taskStore store.TaskStore
	tagStore  store.TagStore
	db        *sql.DB
	pageSize  int
	logger    *slog.Logger
	timeFunc  func() time.Time
}

// NewTaskService creates a TaskService. It returns an error if any required
// dependency is nil.
func NewTaskService(
	taskStore store.TaskStore,
	tagStore store.TagStore,
	db *sql.DB,
	pageSize int,
	logger *slog.Logger,
) (TaskService, error) {
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if tagStore == nil {
		return nil, domain.NewValidationError("tagStore", "cannot be nil", domain.ErrValidation)
	}
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		taskStore: taskStore,
		tagStore:  tagStore,
		db:        db,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("component", "task_service")),
		timeFunc:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create implements TaskService.Create
func (s *taskServiceImpl) Create(ctx context.Context, userID uuid.UUID, in CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	task := domain.NewTask(userID, in.Title)
	task.Description = in.Description
	task.DueDate = in.DueDate
	task.TimesPerPeriod = in.TimesPerPeriod
	task.CreatedAt, task.UpdatedAt = now, now
	if in.Status != "" {
		task.Status = in.Status
	}
	if in.Priority != "" {
		task.Priority = in.Priority
	}
	if in.RecurrencePattern != "" {
		task.RecurrencePattern = in.RecurrencePattern
	}
	if in.KeepHistory != nil {
		task.KeepHistory = *in.KeepHistory
	}
	if task.IsRecurring() {
		recurrence.ResetPeriod(task, now)
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tags, err := s.resolveTags(ctx, s.tagStore.WithTx(tx), userID, in.TagIDs)
		if err != nil {
			return err
		}
		task.Tags = tags

		if err := task.Validate(); err != nil {
			return err
		}
		return s.taskStore.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create", "failed to save task", err)
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.Bool("recurring", task.IsRecurring()))
	return task, nil
}

// Get implements TaskService.Get
func (s *taskServiceImpl) Get(ctx context.Context, userID uuid.UUID, id int64) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, userID, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, NewTaskServiceError("get", "failed to load task", err)
	}
	return task, nil
}

// Update implements TaskService.Update
func (s *taskServiceImpl) Update(
	ctx context.Context,
	userID uuid.UUID,
	id int64,
	patch TaskPatch,
) (*UpdateResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	var result *UpdateResult

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.taskStore.WithTx(tx)

		task, err := tasks.GetForUpdate(ctx, userID, id, false)
		if err != nil {
			return err
		}
		prevStatus := task.Status
		now := s.timeFunc()

		tagsChanged, err := s.applyPatch(ctx, s.tagStore.WithTx(tx), task, patch, now)
		if err != nil {
			return err
		}
		if err := task.Validate(); err != nil {
			return err
		}

		completion, next, err := s.complete(task, prevStatus, now)
		if err != nil {
			return err
		}
		if completion == nil && repeatCompletion(task, prevStatus, patch) {
			completion = uncountedCompletion(task)
		}

		if err := tasks.Update(ctx, task, prevStatus); err != nil {
			return err
		}
		if tagsChanged {
			if err := tasks.SetTags(ctx, task.ID, task.TagIDs()); err != nil {
				return err
			}
		}
		if next != nil {
			if err := tasks.Create(ctx, next); err != nil {
				return err
			}
			completion.NextTaskID = &next.ID
			log.Info("spawned next recurring task",
				slog.Int64("task_id", task.ID),
				slog.Int64("next_task_id", next.ID))
		}

		result = &UpdateResult{Task: task, Completion: completion}
		return nil
	})
	if err != nil {
		return nil, s.wrapWriteError(ctx, "update", id, err)
	}
	return result, nil
}

// Delete implements TaskService.Delete
func (s *taskServiceImpl) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.taskStore.WithTx(tx)
		task, err := tasks.GetForUpdate(ctx, userID, id, false)
		if err != nil {
			return err
		}
		softDelete(task, s.timeFunc())
		return tasks.Update(ctx, task, task.Status)
	})
	if err != nil {
		return s.wrapWriteError(ctx, "delete", id, err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted", slog.Int64("task_id", id))
	return nil
}

// Restore implements TaskService.Restore
func (s *taskServiceImpl) Restore(ctx context.Context, userID uuid.UUID, id int64) (*domain.Task, error) {
	var restored *domain.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.taskStore.WithTx(tx)
		task, err := tasks.GetForUpdate(ctx, userID, id, true)
		if err != nil {
			return err
		}
		if !task.IsDeleted {
			return ErrTaskNotDeleted
		}
		restore(task, s.timeFunc())
		if err := tasks.Update(ctx, task, task.Status); err != nil {
			return err
		}
		restored = task
		return nil
	})
	if err != nil {
		return nil, s.wrapWriteError(ctx, "restore", id, err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("task restored", slog.Int64("task_id", id))
	return restored, nil
}

// List implements TaskService.List
func (s *taskServiceImpl) List(ctx context.Context, userID uuid.UUID, params ListParams) (*TaskPage, error) {
	params.Filter.Deleted = false
	return s.list(ctx, userID, params)
}

// ListDeleted implements TaskService.ListDeleted
func (s *taskServiceImpl) ListDeleted(ctx context.Context, userID uuid.UUID, params ListParams) (*TaskPage, error) {
	params.Filter.Deleted = true
	return s.list(ctx, userID, params)
}

func (s *taskServiceImpl) list(ctx context.Context, userID uuid.UUID, params ListParams) (*TaskPage, error) {
	if params.Page < 1 {
		return nil, ErrPageNotFound
	}
	filter := params.Filter
	if filter.Ordering.Field == "" {
		filter.Ordering = store.DefaultTaskOrdering
	}
	filter.Now = s.timeFunc()
	filter.Limit = s.pageSize
	filter.Offset = (params.Page - 1) * s.pageSize

	tasks, total, err := s.taskStore.List(ctx, userID, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("list", "failed to list tasks", err)
	}
	// Page 1 always exists, even when empty.
	if params.Page > 1 && filter.Offset >= total {
		return nil, ErrPageNotFound
	}

	return &TaskPage{Tasks: tasks, Total: total, Page: params.Page, PageSize: s.pageSize}, nil
}

// Stats implements TaskService.Stats
func (s *taskServiceImpl) Stats(ctx context.Context, userID uuid.UUID) (*domain.TaskStats, error) {
	stats, err := s.taskStore.Stats(ctx, userID, s.timeFunc())
	if err != nil {
		return nil, NewTaskServiceError("stats", "failed to compute stats", err)
	}
	return stats, nil
}

// BulkAction implements TaskService.BulkAction
func (s *taskServiceImpl) BulkAction(ctx context.Context, userID uuid.UUID, req BulkRequest) (*BulkResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateBulk(req); err != nil {
		return nil, err
	}

	updated := 0
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.taskStore.WithTx(tx)

		owned, err := tasks.ListForUpdate(ctx, userID, uniqueIDs(req.TaskIDs))
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			return domain.NewValidationError("task_ids", "no valid tasks found", nil)
		}

		for _, task := range owned {
			changed, err := s.applyBulk(ctx, tasks, task, req)
			if err != nil {
				return err
			}
			if changed {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrConcurrentUpdate
		}
		log.Error("bulk action failed",
			slog.String("action", req.Action),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("bulk_action", "failed to apply "+req.Action, err)
	}

	log.Info("bulk action applied",
		slog.String("action", req.Action),
		slog.Int("updated_count", updated))
	return &BulkResult{
		UpdatedCount: updated,
		Message:      fmt.Sprintf("Successfully performed %q on %d tasks.", req.Action, updated),
	}, nil
}

// applyBulk applies one bulk action to a locked task and reports whether it
// counted as an update.
func (s *taskServiceImpl) applyBulk(ctx context.Context, tasks store.TaskStore, task *domain.Task, req BulkRequest) (bool, error) {
	now := s.timeFunc()
	prev := task.Status

	switch req.Action {
	case BulkDelete:
		if task.IsDeleted {
			return false, nil
		}
		softDelete(task, now)
	case BulkRestore:
		if !task.IsDeleted {
			return false, nil
		}
		restore(task, now)
	case BulkComplete:
		if task.IsDeleted || task.Status == domain.TaskStatusCompleted {
			return false, nil
		}
		task.Status = domain.TaskStatusCompleted
	case BulkSetPriority:
		if task.IsDeleted {
			return false, nil
		}
		task.Priority = domain.TaskPriority(req.Value)
	case BulkSetStatus:
		status := domain.TaskStatus(req.Value)
		if task.IsDeleted {
			return false, nil
		}
		// Completing goes through the recurrence rule, which only fires
		// for tasks that are not already completed.
		if status == domain.TaskStatusCompleted && task.Status == domain.TaskStatusCompleted {
			return false, nil
		}
		task.Status = status
	}
	task.UpdatedAt = now

	_, next, err := s.complete(task, prev, now)
	if err != nil {
		return false, err
	}
	if err := tasks.Update(ctx, task, prev); err != nil {
		return false, err
	}
	if next != nil {
		if err := tasks.Create(ctx, next); err != nil {
			return false, err
		}
	}
	return true, nil
}

// complete runs the recurrence rule when moving from prev to the task's
// current status is a completion event. It returns nil results otherwise.
func (s *taskServiceImpl) complete(task *domain.Task, prev domain.TaskStatus, now time.Time) (*Completion, *domain.Task, error) {
	if !recurrence.Triggers(prev, task) {
		return nil, nil, nil
	}
	out, err := recurrence.Complete(task, now)
	if err != nil {
		return nil, nil, err
	}
	return &Completion{
		Counted:         true,
		PeriodCount:     out.PeriodCount,
		PeriodTarget:    out.PeriodTarget,
		PeriodExhausted: out.PeriodExhausted(),
		RolledOver:      out.RolledOver,
	}, out.Next, nil
}

// repeatCompletion reports a request to complete a recurring task that was
// already completed. It does not count toward the period.
func repeatCompletion(task *domain.Task, prev domain.TaskStatus, p TaskPatch) bool {
	return p.Status != nil && *p.Status == domain.TaskStatusCompleted &&
		prev == domain.TaskStatusCompleted && task.IsRecurring()
}

func uncountedCompletion(task *domain.Task) *Completion {
	target := task.PeriodTarget()
	return &Completion{
		Counted:         false,
		PeriodCount:     task.CurrentPeriodCount,
		PeriodTarget:    target,
		PeriodExhausted: task.CurrentPeriodCount >= target,
	}
}

// applyPatch copies the patch onto task and reports whether the tag set
// changed. Nothing is written.
func (s *taskServiceImpl) applyPatch(
	ctx context.Context,
	tags store.TagStore,
	task *domain.Task,
	p TaskPatch,
	now time.Time,
) (bool, error) {
	if p.Title != nil {
		task.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description.Set {
		task.Description = p.Description.Value
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.DueDate.Set {
		task.DueDate = p.DueDate.Value
	}
	if p.TimesPerPeriod.Set {
		task.TimesPerPeriod = p.TimesPerPeriod.Value
	}
	if p.KeepHistory != nil {
		task.KeepHistory = *p.KeepHistory
	}
	if p.RecurrencePattern != nil && *p.RecurrencePattern != task.RecurrencePattern {
		task.RecurrencePattern = *p.RecurrencePattern
		if task.RecurrencePattern.Valid() {
			recurrence.ResetPeriod(task, now)
		}
	}
	task.UpdatedAt = now

	if p.TagIDs == nil {
		return false, nil
	}
	resolved, err := s.resolveTags(ctx, tags, task.UserID, *p.TagIDs)
	if err != nil {
		return false, err
	}
	task.Tags = resolved
	return true, nil
}

// resolveTags loads the tags behind ids, rejecting any id the user cannot see.
func (s *taskServiceImpl) resolveTags(
	ctx context.Context,
	tags store.TagStore,
	userID uuid.UUID,
	ids []int64,
) ([]domain.Tag, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []domain.Tag{}, nil
	}
	found, err := tags.FindVisible(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		known := make(map[int64]bool, len(found))
		for _, t := range found {
			known[t.ID] = true
		}
		for _, id := range ids {
			if !known[id] {
				return nil, domain.NewValidationError("tag_ids",
					fmt.Sprintf("invalid tag id %d", id), nil)
			}
		}
	}
	return found, nil
}

// wrapWriteError passes through the errors callers act on and wraps the rest.
func (s *taskServiceImpl) wrapWriteError(ctx context.Context, op string, id int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, ErrTaskNotDeleted):
		return err
	case store.IsNotFoundError(err):
		return store.ErrTaskNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConcurrentUpdate
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("task write failed",
		slog.String("operation", op),
		slog.Int64("task_id", id),
		slog.String("error", err.Error()))
	return NewTaskServiceError(op, "failed to save task", err)
}

func validateBulk(req BulkRequest) error {
	var errs domain.ValidationErrors
	switch n := len(req.TaskIDs); {
	case n == 0:
		errs.Add("task_ids", "at least one task id is required")
	case n > MaxBulkTasks:
		errs.Add("task_ids", fmt.Sprintf("at most %d task ids are allowed", MaxBulkTasks))
	}
	switch req.Action {
	case BulkDelete, BulkRestore, BulkComplete:
	case BulkSetPriority:
		if !domain.TaskPriority(req.Value).Valid() {
			errs.Add("value", "invalid priority, must be one of low, medium, high")
		}
	case BulkSetStatus:
		if !domain.TaskStatus(req.Value).Valid() {
			errs.Add("value", "invalid status, must be one of todo, in_progress, completed")
		}
	default:
		errs.Add("action", "must be one of delete, restore, complete, set_priority, set_status")
	}
	return errs.Err()
}

func softDelete(task *domain.Task, now time.Time) {
	task.IsDeleted = true
	task.DeletedAt = &now
	task.UpdatedAt = now
}

func restore(task *domain.Task, now time.Time) {
	task.IsDeleted = false
	task.DeletedAt = nil
	task.UpdatedAt = now
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

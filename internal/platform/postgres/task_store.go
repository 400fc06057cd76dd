package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

const taskColumns = `t.id, t.user_id, t.title, t.description, t.status, t.priority, t.due_date,
	t.is_deleted, t.deleted_at, t.created_at, t.updated_at, t.recurrence_pattern,
	t.times_per_period, t.current_period_count, t.period_start_date, t.keep_history,
	t.parent_task_id`

// orderExpressions whitelists the sortable columns. Enum columns sort by
// their logical rank rather than alphabetically.
var orderExpressions = map[string]string{
	store.OrderCreatedAt: "t.created_at",
	store.OrderUpdatedAt: "t.updated_at",
	store.OrderDueDate:   "t.due_date",
	store.OrderPriority:  "CASE t.priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
	store.OrderStatus:    "CASE t.status WHEN 'todo' THEN 1 WHEN 'in_progress' THEN 2 ELSE 3 END",
	store.OrderTitle:     "LOWER(t.title)",
}

// PostgresTaskStore implements store.TaskStore.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store over db.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (
			user_id, title, description, status, priority, due_date,
			is_deleted, deleted_at, recurrence_pattern, times_per_period,
			current_period_count, period_start_date, keep_history, parent_task_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		task.UserID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
		task.IsDeleted, task.DeletedAt, task.RecurrencePattern, task.TimesPerPeriod,
		task.CurrentPeriodCount, task.PeriodStartDate, task.KeepHistory, task.ParentTaskID,
		task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("user_id", task.UserID.String()))
		return MapError(err)
	}

	if len(task.Tags) > 0 {
		if err := s.SetTags(ctx, task.ID, task.TagIDs()); err != nil {
			return err
		}
	}

	log.Debug("task created",
		slog.Int64("task_id", task.ID),
		slog.String("recurrence", string(task.RecurrencePattern)))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Task, error) {
	return s.getOne(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.id = $1 AND t.user_id = $2 AND NOT t.is_deleted`,
		id, userID,
	)
}

// GetForUpdate implements store.TaskStore.GetForUpdate
func (s *PostgresTaskStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	id int64,
	includeDeleted bool,
) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.id = $1 AND t.user_id = $2`
	if !includeDeleted {
		query += ` AND NOT t.is_deleted`
	}
	return s.getOne(ctx, query+` FOR UPDATE`, id, userID)
}

func (s *PostgresTaskStore) getOne(ctx context.Context, query string, args ...any) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load task",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load task: %w", MapError(err))
	}
	if err := s.attachTags(ctx, []*domain.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// ListForUpdate implements store.TaskStore.ListForUpdate
func (s *PostgresTaskStore) ListForUpdate(ctx context.Context, userID uuid.UUID, ids []int64) ([]*domain.Task, error) {
	if len(ids) == 0 {
		return []*domain.Task{}, nil
	}
	tasks, err := s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.user_id = $1 AND t.id = ANY($2)
		ORDER BY t.id
		FOR UPDATE`,
		userID, ids,
	)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task, prevStatus domain.TaskStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = $1, description = $2, status = $3, priority = $4, due_date = $5,
			is_deleted = $6, deleted_at = $7, recurrence_pattern = $8, times_per_period = $9,
			current_period_count = $10, period_start_date = $11, keep_history = $12,
			updated_at = $13
		WHERE id = $14 AND user_id = $15 AND status = $16`,
		task.Title, task.Description, task.Status, task.Priority, task.DueDate,
		task.IsDeleted, task.DeletedAt, task.RecurrencePattern, task.TimesPerPeriod,
		task.CurrentPeriodCount, task.PeriodStartDate, task.KeepHistory,
		task.UpdatedAt,
		task.ID, task.UserID, prevStatus,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrConflict); err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Warn("task status changed concurrently",
				slog.Int64("task_id", task.ID),
				slog.String("expected_status", string(prevStatus)))
			return store.NewStoreError("task", "update", "stored status no longer matches", err)
		}
		return err
	}
	return nil
}

// SetTags implements store.TaskStore.SetTags
func (s *PostgresTaskStore) SetTags(ctx context.Context, taskID int64, tagIDs []int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to clear task tags: %w", MapError(err))
	}
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_tags (task_id, tag_id)
		SELECT $1, UNNEST($2::BIGINT[])
		ON CONFLICT DO NOTHING`,
		taskID, tagIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to link task tags: %w", MapError(err))
	}
	return nil
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.TaskFilter,
) ([]*domain.Task, int, error) {
	where, args := buildTaskWhere(userID, filter)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks t WHERE `+where, args.values...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", MapError(err))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + where +
		` ORDER BY ` + orderClause(filter.Ordering)
	if filter.Limit > 0 {
		query += ` LIMIT ` + args.add(filter.Limit) + ` OFFSET ` + args.add(filter.Offset)
	}

	tasks, err := s.queryTasks(ctx, query, args.values...)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Stats implements store.TaskStore.Stats
func (s *PostgresTaskStore) Stats(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.TaskStats, error) {
	stats := domain.NewTaskStats()
	var todo, inProgress, completed, low, medium, high int

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_deleted),
			COUNT(*) FILTER (WHERE NOT is_deleted AND status = 'todo'),
			COUNT(*) FILTER (WHERE NOT is_deleted AND status = 'in_progress'),
			COUNT(*) FILTER (WHERE NOT is_deleted AND status = 'completed'),
			COUNT(*) FILTER (WHERE NOT is_deleted AND priority = 'low'),
			COUNT(*) FILTER (WHERE NOT is_deleted AND priority = 'medium'),
			COUNT(*) FILTER (WHERE NOT is_deleted AND priority = 'high'),
			COUNT(*) FILTER (WHERE NOT is_deleted AND due_date < $2 AND status <> 'completed'),
			COUNT(*) FILTER (WHERE is_deleted)
		FROM tasks
		WHERE user_id = $1`,
		userID, now,
	).Scan(&stats.Total, &todo, &inProgress, &completed, &low, &medium, &high, &stats.Overdue, &stats.Deleted)
	if err != nil {
		return nil, fmt.Errorf("failed to compute task stats: %w", MapError(err))
	}

	stats.ByStatus[domain.TaskStatusTodo] = todo
	stats.ByStatus[domain.TaskStatusInProgress] = inProgress
	stats.ByStatus[domain.TaskStatusCompleted] = completed
	stats.ByPriority[domain.PriorityLow] = low
	stats.ByPriority[domain.PriorityMedium] = medium
	stats.ByPriority[domain.PriorityHigh] = high
	return stats, nil
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query tasks",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// attachTags loads the tags of all tasks with a single query.
func (s *PostgresTaskStore) attachTags(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Task, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		t.Tags = []domain.Tag{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tt.task_id, g.id, g.user_id, g.name, g.color, g.is_predefined, g.created_at
		FROM task_tags tt
		JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id = ANY($1)
		ORDER BY LOWER(g.name), g.id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to load task tags: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			taskID int64
			tag    domain.Tag
			owner  uuid.NullUUID
		)
		if err := rows.Scan(&taskID, &tag.ID, &owner, &tag.Name, &tag.Color, &tag.IsPredefined, &tag.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan task tag: %w", err)
		}
		if owner.Valid {
			id := owner.UUID
			tag.UserID = &id
		}
		if t, ok := byID[taskID]; ok {
			t.Tags = append(t.Tags, tag)
		}
	}
	return rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t           domain.Task
		description sql.NullString
		dueDate     sql.NullTime
		deletedAt   sql.NullTime
		times       sql.NullInt64
		periodStart sql.NullTime
		parentID    sql.NullInt64
		status      string
		priority    string
		pattern     string
	)

	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &description, &status, &priority, &dueDate,
		&t.IsDeleted, &deletedAt, &t.CreatedAt, &t.UpdatedAt, &pattern,
		&times, &t.CurrentPeriodCount, &periodStart, &t.KeepHistory,
		&parentID,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	t.RecurrencePattern = domain.RecurrencePattern(pattern)
	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	if times.Valid {
		n := int(times.Int64)
		t.TimesPerPeriod = &n
	}
	if periodStart.Valid {
		t.PeriodStartDate = &periodStart.Time
	}
	if parentID.Valid {
		t.ParentTaskID = &parentID.Int64
	}
	t.Tags = []domain.Tag{}
	return &t, nil
}

type queryArgs struct {
	values []any
}

// add appends v and returns its positional placeholder.
func (q *queryArgs) add(v any) string {
	q.values = append(q.values, v)
	return "$" + strconv.Itoa(len(q.values))
}

func buildTaskWhere(userID uuid.UUID, f store.TaskFilter) (string, *queryArgs) {
	args := &queryArgs{}
	conds := []string{
		"t.user_id = " + args.add(userID),
		"t.is_deleted = " + args.add(f.Deleted),
	}

	if f.Status != nil {
		conds = append(conds, "t.status = "+args.add(string(*f.Status)))
	}
	if f.Priority != nil {
		conds = append(conds, "t.priority = "+args.add(string(*f.Priority)))
	}
	if f.DueAfter != nil {
		conds = append(conds, "t.due_date >= "+args.add(*f.DueAfter))
	}
	if f.DueBefore != nil {
		conds = append(conds, "t.due_date <= "+args.add(*f.DueBefore))
	}
	if f.CreatedAfter != nil {
		conds = append(conds, "t.created_at >= "+args.add(*f.CreatedAfter))
	}
	if f.CreatedBefore != nil {
		conds = append(conds, "t.created_at <= "+args.add(*f.CreatedBefore))
	}
	if f.Overdue != nil {
		now := args.add(f.Now)
		overdue := "(t.due_date IS NOT NULL AND t.due_date < " + now + " AND t.status <> 'completed')"
		if *f.Overdue {
			conds = append(conds, overdue)
		} else {
			conds = append(conds, "NOT "+overdue)
		}
	}
	if f.HasDueDate != nil {
		if *f.HasDueDate {
			conds = append(conds, "t.due_date IS NOT NULL")
		} else {
			conds = append(conds, "t.due_date IS NULL")
		}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		p := args.add("%" + escapeLike(search) + "%")
		conds = append(conds, "(t.title ILIKE "+p+" OR t.description ILIKE "+p+
			" OR EXISTS (SELECT 1 FROM task_tags st JOIN tags sg ON sg.id = st.tag_id"+
			" WHERE st.task_id = t.id AND sg.name ILIKE "+p+"))")
	}
	if len(f.TagIDs) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM task_tags ft WHERE ft.task_id = t.id AND ft.tag_id = ANY("+
			args.add(f.TagIDs)+"))")
	}

	return strings.Join(conds, " AND "), args
}

func orderClause(o store.TaskOrdering) string {
	expr, ok := orderExpressions[o.Field]
	if !ok {
		o = store.DefaultTaskOrdering
		expr = orderExpressions[o.Field]
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return expr + " " + dir + " NULLS LAST, t.id " + dir
}

// escapeLike escapes ILIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

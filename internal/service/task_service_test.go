package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// newTaskServiceForTest wires a task service over mocks with a frozen clock.
// expectTx queues one transaction that either commits or rolls back.
func newTaskServiceForTest(t *testing.T) (*taskServiceImpl, *MockTaskStore, *MockTagStore, *sql.DB, func(commit bool)) {
	t.Helper()
	db, sqlMock := newMockDB(t)
	tasks := &MockTaskStore{}
	tags := &MockTagStore{}

	svc, err := NewTaskService(tasks, tags, db, 2, discardLogger())
	require.NoError(t, err)
	impl := svc.(*taskServiceImpl)
	impl.timeFunc = func() time.Time { return fixedNow }

	expectTx := func(commit bool) {
		sqlMock.ExpectBegin()
		if commit {
			sqlMock.ExpectCommit()
		} else {
			sqlMock.ExpectRollback()
		}
	}
	t.Cleanup(func() {
		tasks.AssertExpectations(t)
		tags.AssertExpectations(t)
	})
	return impl, tasks, tags, db, expectTx
}

func recurringTask(userID uuid.UUID, id int64) *domain.Task {
	task := domain.NewTask(userID, "Water plants")
	task.ID = id
	task.RecurrencePattern = domain.RecurrenceWeekly
	task.PeriodStartDate = timePtr(fixedNow.Add(-time.Hour))
	return task
}

func TestNewTaskService_RequiresDependencies(t *testing.T) {
	db, _ := newMockDB(t)

	_, err := NewTaskService(nil, &MockTagStore{}, db, 20, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewTaskService(&MockTaskStore{}, nil, db, 20, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewTaskService(&MockTaskStore{}, &MockTagStore{}, nil, 20, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	svc, err := NewTaskService(&MockTaskStore{}, &MockTagStore{}, db, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, svc.(*taskServiceImpl).pageSize)
}

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("defaults and tags", func(t *testing.T) {
		svc, tasks, tags, _, expectTx := newTaskServiceForTest(t)
		expectTx(true)

		work := domain.Tag{ID: 1, Name: "Work", Color: "#3B82F6", IsPredefined: true}
		tags.On("FindVisible", mock.Anything, userID, []int64{1}).Return([]domain.Tag{work}, nil)
		tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).
			Run(func(args mock.Arguments) { args.Get(1).(*domain.Task).ID = 7 }).
			Return(nil)

		task, err := svc.Create(ctx, userID, CreateTaskInput{Title: "  Write report  ", TagIDs: []int64{1, 1}})
		require.NoError(t, err)
		assert.Equal(t, int64(7), task.ID)
		assert.Equal(t, "Write report", task.Title)
		assert.Equal(t, domain.TaskStatusTodo, task.Status)
		assert.Equal(t, domain.PriorityMedium, task.Priority)
		assert.Equal(t, domain.RecurrenceNone, task.RecurrencePattern)
		assert.Nil(t, task.PeriodStartDate)
		assert.Equal(t, []domain.Tag{work}, task.Tags)
	})

	t.Run("recurring task starts a period", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(true)
		tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(nil)

		task, err := svc.Create(ctx, userID, CreateTaskInput{
			Title:             "Gym",
			RecurrencePattern: domain.RecurrenceWeekly,
			TimesPerPeriod:    intPtr(3),
		})
		require.NoError(t, err)
		require.NotNil(t, task.PeriodStartDate)
		assert.Equal(t, fixedNow, *task.PeriodStartDate)
		assert.Equal(t, 0, task.CurrentPeriodCount)
	})

	t.Run("unknown tag id", func(t *testing.T) {
		svc, _, tags, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)
		tags.On("FindVisible", mock.Anything, userID, []int64{1, 99}).
			Return([]domain.Tag{{ID: 1, Name: "Work"}}, nil)

		_, err := svc.Create(ctx, userID, CreateTaskInput{Title: "Report", TagIDs: []int64{1, 99}})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, domain.FieldErrors(err), "tag_ids")
	})

	t.Run("invalid fields are reported together", func(t *testing.T) {
		svc, _, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)

		_, err := svc.Create(ctx, userID, CreateTaskInput{Title: " ", Priority: "urgent"})
		require.ErrorIs(t, err, domain.ErrValidation)
		fields := domain.FieldErrors(err)
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "priority")
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)
		tasks.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := svc.Create(ctx, userID, CreateTaskInput{Title: "Report"})
		var serr *ServiceError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "create", serr.Operation)
	})
}

func TestTaskService_Get(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, _ := newTaskServiceForTest(t)

	tasks.On("GetByID", ctx, userID, int64(1)).Return(domain.NewTask(userID, "a"), nil)
	tasks.On("GetByID", ctx, userID, int64(2)).Return(nil, store.ErrTaskNotFound)

	task, err := svc.Get(ctx, userID, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", task.Title)

	_, err = svc.Get(ctx, userID, 2)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskService_Update_PartialFields(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, tags, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	task := domain.NewTask(userID, "Old")
	task.ID = 3
	task.Description = strPtr("keep me?")
	task.DueDate = timePtr(fixedNow)

	tasks.On("GetForUpdate", mock.Anything, userID, int64(3), false).Return(task, nil)
	tags.On("FindVisible", mock.Anything, userID, []int64{5}).Return([]domain.Tag{{ID: 5, Name: "Home"}}, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)
	tasks.On("SetTags", mock.Anything, int64(3), []int64{5}).Return(nil)

	newIDs := []int64{5}
	result, err := svc.Update(ctx, userID, 3, TaskPatch{
		Title:       strPtr("  New  "),
		Description: Optional[string]{Set: true},
		TagIDs:      &newIDs,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", result.Task.Title)
	assert.Nil(t, result.Task.Description)
	assert.NotNil(t, result.Task.DueDate, "absent field must stay unchanged")
	assert.Nil(t, result.Completion)
	assert.Equal(t, fixedNow, result.Task.UpdatedAt)
}

func TestTaskService_Update_PatternChangeResetsPeriod(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	task := recurringTask(userID, 4)
	task.CurrentPeriodCount = 2
	task.TimesPerPeriod = intPtr(3)

	tasks.On("GetForUpdate", mock.Anything, userID, int64(4), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)

	daily := domain.RecurrenceDaily
	result, err := svc.Update(ctx, userID, 4, TaskPatch{RecurrencePattern: &daily})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Task.CurrentPeriodCount)
	assert.Equal(t, fixedNow, *result.Task.PeriodStartDate)
}

func TestTaskService_Update_CompletionBelowTarget(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	task := recurringTask(userID, 5)
	task.TimesPerPeriod = intPtr(3)
	tasks.On("GetForUpdate", mock.Anything, userID, int64(5), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)

	completed := domain.TaskStatusCompleted
	result, err := svc.Update(ctx, userID, 5, TaskPatch{Status: &completed})
	require.NoError(t, err)

	require.NotNil(t, result.Completion)
	assert.True(t, result.Completion.Counted)
	assert.Equal(t, 1, result.Completion.PeriodCount)
	assert.Equal(t, 3, result.Completion.PeriodTarget)
	assert.False(t, result.Completion.PeriodExhausted)
	assert.False(t, result.Completion.RolledOver)
	assert.Nil(t, result.Completion.NextTaskID)
	assert.Equal(t, domain.TaskStatusCompleted, result.Task.Status)
}

func TestTaskService_Update_CompletionSpawnsNextTask(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	task := recurringTask(userID, 6)
	task.DueDate = timePtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	task.Tags = []domain.Tag{{ID: 1, Name: "Work"}}

	tasks.On("GetForUpdate", mock.Anything, userID, int64(6), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)
	var spawned *domain.Task
	tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).
		Run(func(args mock.Arguments) {
			spawned = args.Get(1).(*domain.Task)
			spawned.ID = 60
		}).
		Return(nil)

	completed := domain.TaskStatusCompleted
	result, err := svc.Update(ctx, userID, 6, TaskPatch{Status: &completed})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, result.Task.Status)
	require.NotNil(t, result.Completion)
	assert.True(t, result.Completion.RolledOver)
	require.NotNil(t, result.Completion.NextTaskID)
	assert.Equal(t, int64(60), *result.Completion.NextTaskID)

	require.NotNil(t, spawned)
	assert.Equal(t, domain.TaskStatusTodo, spawned.Status)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), *spawned.DueDate)
	assert.Equal(t, []int64{1}, spawned.TagIDs())
	assert.Equal(t, 0, spawned.CurrentPeriodCount)
}

// Weekly, twice per period, reset in place: the first completion only
// counts; completing again after reopening rolls the due date forward.
func TestTaskService_Update_WeeklyTwicePerPeriodInPlace(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)

	task := recurringTask(userID, 8)
	task.TimesPerPeriod = intPtr(2)
	task.KeepHistory = false
	task.DueDate = timePtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	tasks.On("GetForUpdate", mock.Anything, userID, int64(8), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, mock.Anything).Return(nil)

	completed := domain.TaskStatusCompleted
	todo := domain.TaskStatusTodo

	expectTx(true)
	result, err := svc.Update(ctx, userID, 8, TaskPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Task.CurrentPeriodCount)
	assert.Equal(t, domain.TaskStatusCompleted, result.Task.Status)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *result.Task.DueDate)

	expectTx(true)
	_, err = svc.Update(ctx, userID, 8, TaskPatch{Status: &todo})
	require.NoError(t, err)

	expectTx(true)
	result, err = svc.Update(ctx, userID, 8, TaskPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Task.CurrentPeriodCount)
	assert.Equal(t, domain.TaskStatusTodo, result.Task.Status)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), *result.Task.DueDate)
	assert.True(t, result.Completion.RolledOver)
	assert.Nil(t, result.Completion.NextTaskID)
	tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTaskService_Update_CompletedTwiceIsNotCounted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	task := recurringTask(userID, 9)
	task.TimesPerPeriod = intPtr(3)
	task.Status = domain.TaskStatusCompleted
	task.CurrentPeriodCount = 1

	tasks.On("GetForUpdate", mock.Anything, userID, int64(9), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusCompleted).Return(nil)

	completed := domain.TaskStatusCompleted
	result, err := svc.Update(ctx, userID, 9, TaskPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Task.CurrentPeriodCount)
	require.NotNil(t, result.Completion)
	assert.Equal(t, Completion{PeriodCount: 1, PeriodTarget: 3}, *result.Completion)
	assert.False(t, result.Completion.Counted)
}

func TestTaskService_Update_CompletedTwiceWithoutStatusHasNoCompletion(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	task := recurringTask(userID, 10)
	task.Status = domain.TaskStatusCompleted
	task.CurrentPeriodCount = 1

	tasks.On("GetForUpdate", mock.Anything, userID, int64(10), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusCompleted).Return(nil)

	result, err := svc.Update(ctx, userID, 10, TaskPatch{Title: strPtr("Water plants twice")})
	require.NoError(t, err)
	assert.Nil(t, result.Completion)
}

func TestTaskService_Update_SpawnFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(false)

	task := recurringTask(userID, 11)
	task.KeepHistory = true
	task.DueDate = timePtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	tasks.On("GetForUpdate", mock.Anything, userID, int64(11), false).Return(task, nil)
	tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)
	tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(errors.New("insert failed"))

	completed := domain.TaskStatusCompleted
	result, err := svc.Update(ctx, userID, 11, TaskPatch{Status: &completed})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "insert failed")

	var serr *ServiceError
	assert.ErrorAs(t, err, &serr)
}

func TestTaskService_Update_Errors(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	completed := domain.TaskStatusCompleted

	t.Run("concurrent status change", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)

		tasks.On("GetForUpdate", mock.Anything, userID, int64(1), false).Return(recurringTask(userID, 1), nil)
		tasks.On("Update", mock.Anything, mock.Anything, domain.TaskStatusTodo).
			Return(store.NewStoreError("task", "update", "stored status no longer matches", store.ErrConflict))

		_, err := svc.Update(ctx, userID, 1, TaskPatch{Status: &completed})
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})

	t.Run("missing task", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)
		tasks.On("GetForUpdate", mock.Anything, userID, int64(2), false).Return(nil, store.ErrTaskNotFound)

		_, err := svc.Update(ctx, userID, 2, TaskPatch{Status: &completed})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)
		tasks.On("GetForUpdate", mock.Anything, userID, int64(3), false).Return(domain.NewTask(userID, "x"), nil)

		bogus := domain.TaskStatus("archived")
		_, err := svc.Update(ctx, userID, 3, TaskPatch{Status: &bogus})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, domain.FieldErrors(err), "status")
	})
}

func TestTaskService_DeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("delete marks task", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(true)
		task := domain.NewTask(userID, "x")
		tasks.On("GetForUpdate", mock.Anything, userID, int64(1), false).Return(task, nil)
		tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)

		require.NoError(t, svc.Delete(ctx, userID, 1))
		assert.True(t, task.IsDeleted)
		assert.Equal(t, fixedNow, *task.DeletedAt)
	})

	t.Run("restore clears deletion", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(true)
		task := domain.NewTask(userID, "x")
		task.IsDeleted = true
		task.DeletedAt = timePtr(fixedNow.Add(-time.Hour))
		tasks.On("GetForUpdate", mock.Anything, userID, int64(1), true).Return(task, nil)
		tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(nil)

		restored, err := svc.Restore(ctx, userID, 1)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)
		assert.Nil(t, restored.DeletedAt)
	})

	t.Run("restore of active task", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)
		tasks.On("GetForUpdate", mock.Anything, userID, int64(1), true).Return(domain.NewTask(userID, "x"), nil)

		_, err := svc.Restore(ctx, userID, 1)
		assert.ErrorIs(t, err, ErrTaskNotDeleted)
	})
}

func TestTaskService_List_Pagination(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, _ := newTaskServiceForTest(t)

	page := []*domain.Task{domain.NewTask(userID, "a"), domain.NewTask(userID, "b")}
	tasks.On("List", ctx, userID, mock.MatchedBy(func(f store.TaskFilter) bool {
		return f.Offset == 0 && f.Limit == 2 && !f.Deleted && f.Ordering == store.DefaultTaskOrdering
	})).Return(page, 3, nil)
	tasks.On("List", ctx, userID, mock.MatchedBy(func(f store.TaskFilter) bool {
		return f.Offset == 4
	})).Return([]*domain.Task{}, 3, nil)

	first, err := svc.List(ctx, userID, ListParams{Page: 1})
	require.NoError(t, err)
	assert.Len(t, first.Tasks, 2)
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrevious())

	_, err = svc.List(ctx, userID, ListParams{Page: 3})
	assert.ErrorIs(t, err, ErrPageNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.List(ctx, userID, ListParams{Page: 0})
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestTaskService_List_EmptyFirstPage(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, _ := newTaskServiceForTest(t)

	tasks.On("List", ctx, userID, mock.MatchedBy(func(f store.TaskFilter) bool {
		return f.Deleted
	})).Return([]*domain.Task{}, 0, nil)

	page, err := svc.ListDeleted(ctx, userID, ListParams{Page: 1})
	require.NoError(t, err)
	assert.Empty(t, page.Tasks)
	assert.False(t, page.HasNext())
}

func TestTaskService_Stats(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, _ := newTaskServiceForTest(t)

	stats := domain.NewTaskStats()
	stats.Total = 4
	tasks.On("Stats", ctx, userID, fixedNow).Return(stats, nil)

	got, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Total)
}

func TestTaskService_BulkAction_Validation(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, _, _, _, _ := newTaskServiceForTest(t)

	tooMany := make([]int64, MaxBulkTasks+1)
	for i := range tooMany {
		tooMany[i] = int64(i + 1)
	}

	tests := []struct {
		name  string
		req   BulkRequest
		field string
	}{
		{"no ids", BulkRequest{Action: BulkDelete}, "task_ids"},
		{"too many ids", BulkRequest{TaskIDs: tooMany, Action: BulkDelete}, "task_ids"},
		{"unknown action", BulkRequest{TaskIDs: []int64{1}, Action: "archive"}, "action"},
		{"bad priority", BulkRequest{TaskIDs: []int64{1}, Action: BulkSetPriority, Value: "urgent"}, "value"},
		{"bad status", BulkRequest{TaskIDs: []int64{1}, Action: BulkSetStatus, Value: "done"}, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BulkAction(ctx, userID, tt.req)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, domain.FieldErrors(err), tt.field)
		})
	}
}

func TestTaskService_BulkAction_NoOwnedTasks(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(false)

	tasks.On("ListForUpdate", mock.Anything, userID, []int64{1, 2}).Return([]*domain.Task{}, nil)

	_, err := svc.BulkAction(ctx, userID, BulkRequest{TaskIDs: []int64{1, 2, 2}, Action: BulkDelete})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.FieldErrors(err), "task_ids")
}

func TestTaskService_BulkAction_Complete(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
	expectTx(true)

	open := domain.NewTask(userID, "open")
	open.ID = 1
	done := domain.NewTask(userID, "done")
	done.ID = 2
	done.Status = domain.TaskStatusCompleted
	weekly := recurringTask(userID, 3)

	tasks.On("ListForUpdate", mock.Anything, userID, []int64{1, 2, 3}).
		Return([]*domain.Task{open, done, weekly}, nil)
	tasks.On("Update", mock.Anything, open, domain.TaskStatusTodo).Return(nil)
	tasks.On("Update", mock.Anything, weekly, domain.TaskStatusTodo).Return(nil)
	tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(nil).Once()

	result, err := svc.BulkAction(ctx, userID, BulkRequest{TaskIDs: []int64{1, 2, 3}, Action: BulkComplete})
	require.NoError(t, err)
	assert.Equal(t, 2, result.UpdatedCount)
	assert.Equal(t, `Successfully performed "complete" on 2 tasks.`, result.Message)
	assert.Equal(t, domain.TaskStatusCompleted, open.Status)
}

func TestTaskService_BulkAction_SetPriorityAndRestore(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("set_priority skips deleted tasks", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(true)

		active := domain.NewTask(userID, "a")
		active.ID = 1
		deleted := domain.NewTask(userID, "b")
		deleted.ID = 2
		deleted.IsDeleted = true

		tasks.On("ListForUpdate", mock.Anything, userID, []int64{1, 2}).Return([]*domain.Task{active, deleted}, nil)
		tasks.On("Update", mock.Anything, active, domain.TaskStatusTodo).Return(nil)

		result, err := svc.BulkAction(ctx, userID, BulkRequest{
			TaskIDs: []int64{1, 2}, Action: BulkSetPriority, Value: "high",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.UpdatedCount)
		assert.Equal(t, domain.PriorityHigh, active.Priority)
		assert.Equal(t, domain.PriorityMedium, deleted.Priority)
	})

	t.Run("restore only counts deleted tasks", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(true)

		active := domain.NewTask(userID, "a")
		active.ID = 1
		deleted := domain.NewTask(userID, "b")
		deleted.ID = 2
		deleted.IsDeleted = true
		deleted.DeletedAt = timePtr(fixedNow)

		tasks.On("ListForUpdate", mock.Anything, userID, []int64{1, 2}).Return([]*domain.Task{active, deleted}, nil)
		tasks.On("Update", mock.Anything, deleted, domain.TaskStatusTodo).Return(nil)

		result, err := svc.BulkAction(ctx, userID, BulkRequest{TaskIDs: []int64{1, 2}, Action: BulkRestore})
		require.NoError(t, err)
		assert.Equal(t, 1, result.UpdatedCount)
		assert.False(t, deleted.IsDeleted)
	})

	t.Run("conflict aborts the batch", func(t *testing.T) {
		svc, tasks, _, _, expectTx := newTaskServiceForTest(t)
		expectTx(false)

		task := domain.NewTask(userID, "a")
		task.ID = 1
		tasks.On("ListForUpdate", mock.Anything, userID, []int64{1}).Return([]*domain.Task{task}, nil)
		tasks.On("Update", mock.Anything, task, domain.TaskStatusTodo).Return(store.ErrConflict)

		_, err := svc.BulkAction(ctx, userID, BulkRequest{TaskIDs: []int64{1}, Action: BulkSetStatus, Value: "in_progress"})
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})
}

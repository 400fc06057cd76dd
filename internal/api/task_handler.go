package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/api/shared"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/service"
)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
	timeFunc    func() time.Time
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if taskService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskService cannot be nil for TaskHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
		timeFunc:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUser(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, req.ToInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task, h.timeFunc()))
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.taskService.List)
}

// ListDeletedTasks handles GET /tasks/deleted.
func (h *TaskHandler) ListDeletedTasks(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.taskService.ListDeleted)
}

type listFunc func(ctx context.Context, userID uuid.UUID, params service.ListParams) (*service.TaskPage, error)

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, fetch listFunc) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUser(w, r, log)
	if !ok {
		return
	}

	params, err := parseListParams(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := fetch(r.Context(), userID, params)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, pageToResponse(r, page, h.timeFunc()))
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, h.timeFunc()))
}

// UpdateTask handles PATCH /tasks/{id}. When the update completes a recurring
// task the response carries the completion outcome.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, id, ok := handleUserIDAndPathID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.taskService.Update(r.Context(), userID, id, req.ToPatch())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	resp := taskToResponse(result.Task, h.timeFunc())
	resp.Completion = result.Completion
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DeleteTask handles DELETE /tasks/{id} as a soft delete.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), userID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreTask handles POST /tasks/{id}/restore.
func (h *TaskHandler) RestoreTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.taskService.Restore(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to restore task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RestoreResponse{
		Message: "Task restored successfully",
		Task:    taskToResponse(task, h.timeFunc()),
	})
}

// Stats handles GET /tasks/stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUser(w, r, log)
	if !ok {
		return
	}

	stats, err := h.taskService.Stats(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute stats")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// BulkAction handles POST /tasks/bulk_action.
func (h *TaskHandler) BulkAction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUser(w, r, log)
	if !ok {
		return
	}

	var req BulkActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.taskService.BulkAction(r.Context(), userID, service.BulkRequest{
		TaskIDs: req.TaskIDs,
		Action:  req.Action,
		Value:   req.Value,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to apply bulk action")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

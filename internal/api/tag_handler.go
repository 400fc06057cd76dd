package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasker-api/internal/api/shared"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/service"
)

// TagHandler handles tag-related HTTP requests.
type TagHandler struct {
	tagService service.TagService
	logger     *slog.Logger
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(tagService service.TagService, logger *slog.Logger) *TagHandler {
	if tagService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("tagService cannot be nil for TagHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TagHandler{
		tagService: tagService,
		logger:     logger.With(slog.String("component", "tag_handler")),
	}
}

// ListTags handles GET /tags: predefined tags plus the caller's own.
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	tags, err := h.tagService.List(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tags")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tagsToResponse(tags))
}

// CreateTag handles POST /tags.
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req CreateTagRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tag, err := h.tagService.Create(r.Context(), userID, req.Name, req.Color)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create tag")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, tagToResponse(*tag))
}

// UpdateTag handles PATCH /tags/{id}.
func (h *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req UpdateTagRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tag, err := h.tagService.Update(r.Context(), userID, id, service.TagPatch{Name: req.Name, Color: req.Color})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update tag")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tagToResponse(*tag))
}

// DeleteTag handles DELETE /tags/{id}.
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.tagService.Delete(r.Context(), userID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

// TagPatch is a partial tag update. Nil fields are left unchanged.
type TagPatch struct {
	Name  *string
	Color *string
}

// TagService manages the tags visible to a user.
type TagService interface {
	Create(ctx context.Context, userID uuid.UUID, name, color string) (*domain.Tag, error)
	// List returns predefined and owned tags ordered by name.
	List(ctx context.Context, userID uuid.UUID) ([]domain.Tag, error)
	Update(ctx context.Context, userID uuid.UUID, id int64, patch TagPatch) (*domain.Tag, error)
	// Delete removes an owned tag and detaches it from every task.
	Delete(ctx context.Context, userID uuid.UUID, id int64) error
}

type tagServiceImpl struct {
	tagStore store.TagStore
	db       *sql.DB
	logger   *slog.Logger
}

// NewTagService creates a TagService.
func NewTagService(tagStore store.TagStore, db *sql.DB, logger *slog.Logger) (TagService, error) {
	if tagStore == nil {
		return nil, domain.NewValidationError("tagStore", "cannot be nil", domain.ErrValidation)
	}
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tagServiceImpl{
		tagStore: tagStore,
		db:       db,
		logger:   logger.With(slog.String("component", "tag_service")),
	}, nil
}

// Create implements TagService.Create
func (s *tagServiceImpl) Create(ctx context.Context, userID uuid.UUID, name, color string) (*domain.Tag, error) {
	tag, err := domain.NewTag(userID, name, color)
	if err != nil {
		return nil, err
	}
	if err := s.tagStore.Create(ctx, tag); err != nil {
		return nil, s.wrapError(ctx, "create", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("tag created", slog.Int64("tag_id", tag.ID))
	return tag, nil
}

// List implements TagService.List
func (s *tagServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]domain.Tag, error) {
	tags, err := s.tagStore.ListVisible(ctx, userID)
	if err != nil {
		return nil, s.wrapError(ctx, "list", err)
	}
	return tags, nil
}

// Update implements TagService.Update
func (s *tagServiceImpl) Update(ctx context.Context, userID uuid.UUID, id int64, patch TagPatch) (*domain.Tag, error) {
	var updated *domain.Tag
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tags := s.tagStore.WithTx(tx)
		tag, err := tags.GetVisible(ctx, userID, id)
		if err != nil {
			return err
		}
		if tag.IsPredefined {
			return ErrPredefinedTag
		}

		if patch.Name != nil {
			tag.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Color != nil {
			tag.Color = *patch.Color
		}
		if err := tag.Validate(); err != nil {
			return err
		}
		if err := tags.Update(ctx, tag); err != nil {
			return err
		}
		updated = tag
		return nil
	})
	if err != nil {
		return nil, s.wrapError(ctx, "update", err)
	}
	return updated, nil
}

// Delete implements TagService.Delete
func (s *tagServiceImpl) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tags := s.tagStore.WithTx(tx)
		tag, err := tags.GetVisible(ctx, userID, id)
		if err != nil {
			return err
		}
		if tag.IsPredefined {
			return ErrPredefinedTag
		}
		return tags.Delete(ctx, userID, id)
	})
	if err != nil {
		return s.wrapError(ctx, "delete", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("tag deleted", slog.Int64("tag_id", id))
	return nil
}

func (s *tagServiceImpl) wrapError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, ErrPredefinedTag),
		store.IsDuplicateError(err):
		return err
	case store.IsNotFoundError(err):
		return store.ErrTagNotFound
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("tag operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return NewTagServiceError(op, "tag store failure", err)
}

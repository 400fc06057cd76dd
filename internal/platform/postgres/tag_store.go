package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

const tagColumns = `id, user_id, name, color, is_predefined, created_at`

// PostgresTagStore implements store.TagStore.
type PostgresTagStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTagStore creates a tag store over db.
func NewPostgresTagStore(db store.DBTX, logger *slog.Logger) *PostgresTagStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTagStore{
		db:     db,
		logger: logger.With(slog.String("component", "tag_store")),
	}
}

var _ store.TagStore = (*PostgresTagStore)(nil)

// WithTx implements store.TagStore.WithTx
func (s *PostgresTagStore) WithTx(tx *sql.Tx) store.TagStore {
	return &PostgresTagStore{db: tx, logger: s.logger}
}

// Create implements store.TagStore.Create
func (s *PostgresTagStore) Create(ctx context.Context, tag *domain.Tag) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := tag.Validate(); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (user_id, name, color, is_predefined, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING id`,
		*tag.UserID, tag.Name, tag.Color, tag.CreatedAt,
	).Scan(&tag.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrTagNameExists
		}
		log.Error("failed to create tag", slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("tag created", slog.Int64("tag_id", tag.ID))
	return nil
}

// GetVisible implements store.TagStore.GetVisible
func (s *PostgresTagStore) GetVisible(ctx context.Context, userID uuid.UUID, id int64) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		WHERE id = $1 AND (user_id IS NULL OR user_id = $2)`,
		id, userID,
	)
	tag, err := scanTag(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", MapError(err))
	}
	return tag, nil
}

// FindVisible implements store.TagStore.FindVisible
func (s *PostgresTagStore) FindVisible(ctx context.Context, userID uuid.UUID, ids []int64) ([]domain.Tag, error) {
	if len(ids) == 0 {
		return []domain.Tag{}, nil
	}
	return s.list(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		WHERE id = ANY($1) AND (user_id IS NULL OR user_id = $2)
		ORDER BY id`,
		ids, userID,
	)
}

// ListVisible implements store.TagStore.ListVisible
func (s *PostgresTagStore) ListVisible(ctx context.Context, userID uuid.UUID) ([]domain.Tag, error) {
	return s.list(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		WHERE user_id IS NULL OR user_id = $1
		ORDER BY LOWER(name), id`,
		userID,
	)
}

// Update implements store.TagStore.Update
func (s *PostgresTagStore) Update(ctx context.Context, tag *domain.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	if tag.UserID == nil {
		return store.ErrTagNotFound
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tags SET name = $1, color = $2
		WHERE id = $3 AND user_id = $4 AND NOT is_predefined`,
		tag.Name, tag.Color, tag.ID, *tag.UserID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrTagNameExists
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update tag",
			slog.String("error", err.Error()), slog.Int64("tag_id", tag.ID))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTagNotFound)
}

// Delete implements store.TagStore.Delete
func (s *PostgresTagStore) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tags WHERE id = $1 AND user_id = $2 AND NOT is_predefined`,
		id, userID,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete tag",
			slog.String("error", err.Error()), slog.Int64("tag_id", id))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTagNotFound)
}

func (s *PostgresTagStore) list(ctx context.Context, query string, args ...any) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tags := []domain.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, *tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*domain.Tag, error) {
	var (
		tag   domain.Tag
		owner uuid.NullUUID
	)
	if err := row.Scan(&tag.ID, &owner, &tag.Name, &tag.Color, &tag.IsPredefined, &tag.CreatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		id := owner.UUID
		tag.UserID = &id
	}
	return &tag, nil
}

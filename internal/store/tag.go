package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
)

// TagStore defines the interface for tag persistence. A tag is visible to a
// user when it is predefined or owned by that user.
type TagStore interface {
	// Create inserts a custom tag.
	// Returns ErrTagNameExists when the owner already has a tag of that name,
	// compared case-insensitively.
	Create(ctx context.Context, tag *domain.Tag) error

	// GetVisible returns a tag visible to userID, or ErrTagNotFound.
	GetVisible(ctx context.Context, userID uuid.UUID, id int64) (*domain.Tag, error)

	// FindVisible returns the visible tags among ids. Ids that are unknown or
	// belong to another user are omitted.
	FindVisible(ctx context.Context, userID uuid.UUID, ids []int64) ([]domain.Tag, error)

	// ListVisible returns predefined and owned tags ordered by name.
	ListVisible(ctx context.Context, userID uuid.UUID) ([]domain.Tag, error)

	// Update writes the name and color of an owned custom tag.
	// Returns ErrTagNotFound if it is not owned by the tag's user and
	// ErrTagNameExists on a name clash.
	Update(ctx context.Context, tag *domain.Tag) error

	// Delete removes an owned custom tag and detaches it from all tasks.
	Delete(ctx context.Context, userID uuid.UUID, id int64) error

	// WithTx returns a TagStore that runs its queries in tx.
	WithTx(tx *sql.Tx) TagStore
}

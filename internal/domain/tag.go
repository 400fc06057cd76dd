package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTagNameLength bounds Tag.Name in characters.
const MaxTagNameLength = 50

// Tag labels tasks. Predefined tags have no owner and are shared by all users.
type Tag struct {
	ID           int64      `json:"id"`
	UserID       *uuid.UUID `json:"-"`
	Name         string     `json:"name"`
	Color        string     `json:"color"`
	IsPredefined bool       `json:"is_predefined"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewTag creates a custom tag owned by userID.
func NewTag(userID uuid.UUID, name, color string) (*Tag, error) {
	tag := &Tag{
		UserID:    &userID,
		Name:      strings.TrimSpace(name),
		Color:     strings.TrimSpace(color),
		CreatedAt: time.Now().UTC(),
	}
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	return tag, nil
}

// Validate checks the tag's name and color.
func (t *Tag) Validate() error {
	var errs ValidationErrors

	switch n := utf8.RuneCountInString(t.Name); {
	case n == 0:
		errs.Add("name", "name cannot be empty")
	case n > MaxTagNameLength:
		errs.Add("name", "name must be at most 50 characters")
	}
	switch {
	case t.Color == "":
		errs.Add("color", "color is required")
	case !ValidColor(t.Color):
		errs.Add("color", "must be a hex color like #3B82F6")
	}
	if !t.IsPredefined && (t.UserID == nil || *t.UserID == uuid.Nil) {
		errs.Add("user_id", "owner is required")
	}

	return errs.Err()
}

// OwnedBy reports whether the tag is a custom tag of userID.
func (t *Tag) OwnedBy(userID uuid.UUID) bool {
	return !t.IsPredefined && t.UserID != nil && *t.UserID == userID
}

// ValidColor accepts six-digit hex colors with a leading '#'.
func ValidColor(color string) bool {
	return len(color) == 7 && fieldValidator.Var(color, "hexcolor") == nil
}

// Package tag defines ToolTag, a label attached to tools.
package tag

import (
	"regexp"
	"strings"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// MinNameLength is the shortest accepted tag name.
const MinNameLength = 2

// ColorPattern accepts #RRGGBB hex colors.
var ColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Tag is a label that can be attached to many tools.
type Tag struct {
	ID          shared.ID
	Name        string
	Slug        string
	Color       string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTag validates and builds an active Tag.
func NewTag(name, slug, color, description string) (*Tag, error) {
	t := &Tag{
		Name:        strings.TrimSpace(name),
		Slug:        slug,
		Color:       color,
		Description: description,
		IsActive:    true,
	}
	if t.Color == "" {
		return nil, shared.NewValidationError("color", "color is required")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Slug        *string
	Color       *string
	Description *string
	IsActive    *bool
}

// Apply validates and applies the patch.
func (t *Tag) Apply(p Patch) error {
	next := *t
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Slug != nil {
		next.Slug = *p.Slug
	}
	if p.Color != nil {
		next.Color = *p.Color
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.IsActive != nil {
		next.IsActive = *p.IsActive
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*t = next
	return nil
}

func (t *Tag) validate() error {
	if len([]rune(t.Name)) < MinNameLength {
		return shared.NewValidationError("name", "name must be at least 2 characters")
	}
	if !shared.SlugPattern.MatchString(t.Slug) {
		return shared.NewValidationError("slug", "slug must contain only lowercase letters, numbers, and hyphens")
	}
	if t.Color != "" && !ColorPattern.MatchString(t.Color) {
		return shared.NewValidationError("color", "color must be a hex color like #3b82f6")
	}
	return nil
}

// Package tool defines the Tool aggregate of the catalog.
// A tool is a named capability that agents invoke through one of its versions.
package tool

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// MinNameLength is the shortest accepted tool name.
const MinNameLength = 3

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []string{"api", "database", "computation", "integration", "utility"}

// Categories is the configured set of accepted tool categories.
type Categories struct {
	values []string
}

// NewCategories builds a category set, dropping blanks and duplicates.
// An empty input yields DefaultCategories.
func NewCategories(values []string) Categories {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = slices.Clone(DefaultCategories)
	}
	return Categories{values: out}
}

// Contains reports whether category is accepted.
func (c Categories) Contains(category string) bool {
	return slices.Contains(c.values, category)
}

// List returns the accepted categories in configuration order.
func (c Categories) List() []string {
	return slices.Clone(c.values)
}

// TagRef is the tag projection embedded in tool reads.
type TagRef struct {
	ID    shared.ID
	Name  string
	Slug  string
	Color string
}

// VersionSummary is the version projection embedded in a tool detail read.
type VersionSummary struct {
	ID            shared.ID
	VersionNumber string
	IsActive      bool
	IsDeprecated  bool
}

// Tool is a registered capability.
type Tool struct {
	ID          shared.ID
	Name        string
	Slug        string
	Category    string
	Description string
	IsActive    bool
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time

	// Read-side enrichment, never persisted through the tools table.
	Tags     []TagRef
	Versions []VersionSummary
}

// NewTool creates a new active Tool after validating its fields.
func NewTool(name, slug, category, description, createdBy string, categories Categories) (*Tool, error) {
	t := &Tool{
		Name:        strings.TrimSpace(name),
		Slug:        slug,
		Category:    category,
		Description: description,
		IsActive:    true,
		CreatedBy:   createdBy,
		UpdatedBy:   createdBy,
	}
	if err := t.validate(categories); err != nil {
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
	Category    *string
	Description *string
	IsActive    *bool
	UpdatedBy   *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Slug == nil && p.Category == nil &&
		p.Description == nil && p.IsActive == nil && p.UpdatedBy == nil
}

// Apply applies the patch and refreshes UpdatedAt.
func (t *Tool) Apply(p Patch, categories Categories) error {
	next := *t
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Slug != nil {
		next.Slug = *p.Slug
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.IsActive != nil {
		next.IsActive = *p.IsActive
	}
	if p.UpdatedBy != nil {
		next.UpdatedBy = *p.UpdatedBy
	}
	if err := next.validate(categories); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*t = next
	return nil
}

// IsDeleted reports whether the tool has been soft deleted.
func (t *Tool) IsDeleted() bool {
	return t.DeletedAt != nil
}

func (t *Tool) validate(categories Categories) error {
	if len([]rune(t.Name)) < MinNameLength {
		return shared.NewValidationError("name", fmt.Sprintf("name must be at least %d characters", MinNameLength))
	}
	if !shared.SlugPattern.MatchString(t.Slug) {
		return shared.NewValidationError("slug", "slug must contain only lowercase letters, numbers, and hyphens")
	}
	if t.Category == "" {
		return shared.NewValidationError("category", "category is required")
	}
	if !categories.Contains(t.Category) {
		return shared.NewValidationError("category",
			fmt.Sprintf("category must be one of: %s", strings.Join(categories.List(), ", ")))
	}
	return nil
}

package app

import (
	"context"
	"fmt"

	"github.com/openctemio/toolstudio/internal/metrics"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// TagService handles tag operations.
type TagService struct {
	tagRepo  tag.Repository
	toolRepo tool.Repository
	tools    Cache[tool.Tool]
	logger   *logger.Logger
}

// NewTagService creates a new TagService.
func NewTagService(tagRepo tag.Repository, toolRepo tool.Repository, log *logger.Logger) *TagService {
	return &TagService{
		tagRepo:  tagRepo,
		toolRepo: toolRepo,
		logger:   log.With("service", "tag"),
	}
}

// SetToolCache registers the tool cache, whose entries embed tags.
func (s *TagService) SetToolCache(cache Cache[tool.Tool]) {
	s.tools = cache
}

// ListTags returns tags ordered by name. A nil isActive returns all of them.
func (s *TagService) ListTags(ctx context.Context, isActive *bool) ([]*tag.Tag, error) {
	return s.tagRepo.List(ctx, isActive)
}

// GetTag returns a tag by ID.
func (s *TagService) GetTag(ctx context.Context, id shared.ID) (*tag.Tag, error) {
	return s.tagRepo.GetByID(ctx, id)
}

// GetTagBySlug returns a tag by slug.
func (s *TagService) GetTagBySlug(ctx context.Context, slug string) (*tag.Tag, error) {
	return s.tagRepo.GetBySlug(ctx, slug)
}

// ListToolsByTag returns live tools carrying the tag.
func (s *TagService) ListToolsByTag(ctx context.Context, id shared.ID) ([]*tool.Tool, error) {
	if _, err := s.tagRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.toolRepo.ListByTag(ctx, id)
}

// CreateTagInput represents the input for creating a tag.
type CreateTagInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Slug        string `json:"slug" validate:"required,max=100,slug"`
	Color       string `json:"color" validate:"required,hexcolor6"`
	Description string `json:"description" validate:"max=1000"`
}

// CreateTag creates a tag with a unique slug.
func (s *TagService) CreateTag(ctx context.Context, input CreateTagInput) (*tag.Tag, error) {
	t, err := tag.NewTag(input.Name, input.Slug, input.Color, input.Description)
	if err != nil {
		return nil, err
	}

	exists, err := s.tagRepo.ExistsBySlug(ctx, t.Slug, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, tagSlugTaken(t.Slug)
	}
	if err := s.tagRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	metrics.RegistryWritesTotal.WithLabelValues("tag", "create").Inc()
	s.logger.Info("tag created", "tag_id", t.ID.Int64(), "slug", t.Slug)
	return t, nil
}

// UpdateTagInput carries a partial update.
type UpdateTagInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,max=100,slug"`
	Color       *string `json:"color" validate:"omitempty,hexcolor6"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateTag applies the supplied fields. A slug taken by another tag is a conflict.
func (s *TagService) UpdateTag(ctx context.Context, id shared.ID, input UpdateTagInput) (*tag.Tag, error) {
	t, err := s.tagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Slug != nil && *input.Slug != t.Slug {
		exists, err := s.tagRepo.ExistsBySlug(ctx, *input.Slug, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, tagSlugTaken(*input.Slug)
		}
	}

	err = t.Apply(tag.Patch{
		Name:        input.Name,
		Slug:        input.Slug,
		Color:       input.Color,
		Description: input.Description,
		IsActive:    input.IsActive,
	})
	if err != nil {
		return nil, err
	}
	if err := s.tagRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	metrics.RegistryWritesTotal.WithLabelValues("tag", "update").Inc()
	s.dropCachedTools(ctx)
	return t, nil
}

// DeleteTag hard-deletes a tag no live tool references.
func (s *TagService) DeleteTag(ctx context.Context, id shared.ID) error {
	if err := s.tagRepo.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RegistryWritesTotal.WithLabelValues("tag", "delete").Inc()
	s.dropCachedTools(ctx)
	s.logger.Info("tag deleted", "tag_id", id.Int64())
	return nil
}

func (s *TagService) dropCachedTools(ctx context.Context) {
	if s.tools == nil {
		return
	}
	if err := s.tools.DeletePattern(ctx, slugKey("*")); err != nil {
		s.logger.Warn("failed to invalidate tool cache", "error", err)
	}
}

func tagSlugTaken(slug string) error {
	return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("tag slug %q is already in use", slug), shared.ErrAlreadyExists)
}

package app

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/openctemio/toolstudio/internal/metrics"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// ToolService handles tool registry business operations.
type ToolService struct {
	toolRepo    tool.Repository
	versionRepo toolversion.Repository
	tagRepo     tag.Repository
	categories  tool.Categories
	cache       Cache[tool.Tool]
	catalog     CatalogInvalidator
	logger      *logger.Logger
}

// NewToolService creates a new ToolService.
func NewToolService(
	toolRepo tool.Repository,
	versionRepo toolversion.Repository,
	tagRepo tag.Repository,
	categories tool.Categories,
	log *logger.Logger,
) *ToolService {
	return &ToolService{
		toolRepo:    toolRepo,
		versionRepo: versionRepo,
		tagRepo:     tagRepo,
		categories:  categories,
		catalog:     nopInvalidator{},
		logger:      log.With("service", "tool"),
	}
}

// SetCache enables slug lookups through cache.
func (s *ToolService) SetCache(cache Cache[tool.Tool]) {
	s.cache = cache
}

// SetCatalogInvalidator registers the catalog to refresh after writes.
func (s *ToolService) SetCatalogInvalidator(inv CatalogInvalidator) {
	if inv != nil {
		s.catalog = inv
	}
}

// ListToolsInput represents the query of a tool listing.
type ListToolsInput struct {
	Search    string `json:"search" validate:"max=255"`
	Category  string `json:"category" validate:"omitempty,category"`
	IsActive  *bool
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

// ListTools returns a page of live tools with their tags.
func (s *ToolService) ListTools(ctx context.Context, input ListToolsInput) (pagination.Result[*tool.Tool], error) {
	filter := tool.Filter{Search: input.Search, Category: input.Category, IsActive: input.IsActive}
	sort := pagination.ResolveSort(input.SortBy, input.SortOrder, tool.SortFields, tool.DefaultSort)
	return s.toolRepo.List(ctx, filter, pagination.New(input.Page, input.PerPage), sort)
}

// GetTool returns a live tool with its tags and version summaries.
func (s *ToolService) GetTool(ctx context.Context, id shared.ID) (*tool.Tool, error) {
	var (
		t        *tool.Tool
		versions []*toolversion.Version
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.toolRepo.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		versions, err = s.versionRepo.ListByTool(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.Versions = make([]tool.VersionSummary, 0, len(versions))
	for _, v := range versions {
		t.Versions = append(t.Versions, tool.VersionSummary{
			ID:            v.ID,
			VersionNumber: v.VersionNumber,
			IsActive:      v.IsActive,
			IsDeprecated:  v.IsDeprecated,
		})
	}
	return t, nil
}

// GetToolBySlug returns a live tool with its tags.
func (s *ToolService) GetToolBySlug(ctx context.Context, slug string) (*tool.Tool, error) {
	return readThrough(ctx, s.cache, slugKey(slug), func(ctx context.Context) (*tool.Tool, error) {
		return s.toolRepo.GetBySlug(ctx, slug)
	})
}

// CreateToolInput represents the input for creating a tool.
type CreateToolInput struct {
	Name        string `json:"name" validate:"required,min=3,max=255"`
	Slug        string `json:"slug" validate:"required,max=255,slug"`
	Category    string `json:"category" validate:"required,category"`
	Description string `json:"description" validate:"max=5000"`
	IsActive    *bool  `json:"is_active"`
	CreatedBy   string `json:"created_by" validate:"max=255"`
}

// CreateTool registers a new tool. A slug held by a live tool is a conflict.
func (s *ToolService) CreateTool(ctx context.Context, input CreateToolInput) (*tool.Tool, error) {
	t, err := tool.NewTool(input.Name, input.Slug, input.Category, input.Description, input.CreatedBy, s.categories)
	if err != nil {
		return nil, err
	}
	if input.IsActive != nil {
		t.IsActive = *input.IsActive
	}

	exists, err := s.toolRepo.ExistsBySlug(ctx, t.Slug, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, slugTaken(t.Slug)
	}

	if err := s.toolRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	t.Tags = []tool.TagRef{}

	metrics.RegistryWritesTotal.WithLabelValues("tool", "create").Inc()
	s.catalog.InvalidateCatalog(ctx)
	s.logger.Info("tool created", "tool_id", t.ID.Int64(), "slug", t.Slug)
	return t, nil
}

// UpdateToolInput carries a partial update; nil fields are left unchanged.
type UpdateToolInput struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=255"`
	Slug        *string `json:"slug" validate:"omitempty,max=255,slug"`
	Category    *string `json:"category" validate:"omitempty,category"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	IsActive    *bool   `json:"is_active"`
	UpdatedBy   *string `json:"updated_by" validate:"omitempty,max=255"`
}

// UpdateTool applies only the supplied fields and refreshes updated_at.
func (s *ToolService) UpdateTool(ctx context.Context, id shared.ID, input UpdateToolInput) (*tool.Tool, error) {
	t, err := s.toolRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := t.Slug

	if input.Slug != nil && *input.Slug != t.Slug {
		exists, err := s.toolRepo.ExistsBySlug(ctx, *input.Slug, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, slugTaken(*input.Slug)
		}
	}

	patch := tool.Patch{
		Name:        input.Name,
		Slug:        input.Slug,
		Category:    input.Category,
		Description: input.Description,
		IsActive:    input.IsActive,
		UpdatedBy:   input.UpdatedBy,
	}
	if err := t.Apply(patch, s.categories); err != nil {
		return nil, err
	}
	if err := s.toolRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	metrics.RegistryWritesTotal.WithLabelValues("tool", "update").Inc()
	s.invalidate(ctx, oldSlug, t.Slug)
	return t, nil
}

// DeleteTool soft-deletes a live tool.
func (s *ToolService) DeleteTool(ctx context.Context, id shared.ID) error {
	t, err := s.toolRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.toolRepo.SoftDelete(ctx, id); err != nil {
		return err
	}

	metrics.RegistryWritesTotal.WithLabelValues("tool", "delete").Inc()
	s.invalidate(ctx, t.Slug)
	s.logger.Info("tool deleted", "tool_id", id.Int64(), "slug", t.Slug)
	return nil
}

// AssignTagsInput is the full replacement tag set of a tool.
type AssignTagsInput struct {
	TagIDs []int64 `json:"tag_ids" validate:"max=100,dive,gt=0"`
}

// AssignTags replaces the tool's whole tag set with exactly the given tags.
// Every tag must exist; the replacement is all-or-nothing.
func (s *ToolService) AssignTags(ctx context.Context, id shared.ID, input AssignTagsInput) (*tool.Tool, error) {
	ctx, span := tracer.Start(ctx, "ToolService.AssignTags")
	defer span.End()

	ids := uniqueIDs(input.TagIDs)
	if len(ids) > 0 {
		n, err := s.tagRepo.CountExisting(ctx, ids)
		if err != nil {
			return nil, err
		}
		if n != len(ids) {
			return nil, shared.NewValidationError("tag_ids", "one or more tags do not exist")
		}
	}

	if err := s.toolRepo.ReplaceTags(ctx, id, ids); err != nil {
		return nil, err
	}

	t, err := s.toolRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.RegistryWritesTotal.WithLabelValues("tool", "assign_tags").Inc()
	s.invalidate(ctx, t.Slug)
	return t, nil
}

func (s *ToolService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache != nil {
		for _, slug := range slices.Compact(slugs) {
			if err := s.cache.Delete(ctx, slugKey(slug)); err != nil {
				s.logger.Warn("failed to invalidate tool cache", "slug", slug, "error", err)
			}
		}
	}
	s.catalog.InvalidateCatalog(ctx)
}

func slugKey(slug string) string {
	return "slug:" + slug
}

func slugTaken(slug string) error {
	return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("slug %q is already in use", slug), shared.ErrAlreadyExists)
}

// uniqueIDs drops duplicates and keeps first-seen order.
func uniqueIDs(raw []int64) []shared.ID {
	seen := make(map[int64]struct{}, len(raw))
	out := make([]shared.ID, 0, len(raw))
	for _, v := range raw {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, shared.ID(v))
	}
	return out
}

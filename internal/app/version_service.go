package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openctemio/toolstudio/internal/metrics"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/schema"
)

// VersionService handles version registry operations, including the
// atomic single-active-version transition.
type VersionService struct {
	versionRepo   toolversion.Repository
	toolRepo      tool.Repository
	schemas       *schema.Registry
	defaultActive bool
	catalog       CatalogInvalidator
	logger        *logger.Logger
}

// NewVersionService creates a new VersionService. defaultActive is used
// when a create request leaves is_active unset.
func NewVersionService(
	versionRepo toolversion.Repository,
	toolRepo tool.Repository,
	schemas *schema.Registry,
	defaultActive bool,
	log *logger.Logger,
) *VersionService {
	if schemas == nil {
		schemas = schema.NewRegistry()
	}
	return &VersionService{
		versionRepo:   versionRepo,
		toolRepo:      toolRepo,
		schemas:       schemas,
		defaultActive: defaultActive,
		catalog:       nopInvalidator{},
		logger:        log.With("service", "version"),
	}
}

// SetCatalogInvalidator registers the catalog to refresh after writes.
func (s *VersionService) SetCatalogInvalidator(inv CatalogInvalidator) {
	if inv != nil {
		s.catalog = inv
	}
}

// ListVersions returns the versions of a live tool, newest first.
func (s *VersionService) ListVersions(ctx context.Context, toolID shared.ID) ([]*toolversion.Version, error) {
	if _, err := s.toolRepo.GetByID(ctx, toolID); err != nil {
		return nil, err
	}
	return s.versionRepo.ListByTool(ctx, toolID)
}

// GetVersion returns a version by ID.
func (s *VersionService) GetVersion(ctx context.Context, id shared.ID) (*toolversion.Version, error) {
	return s.versionRepo.GetByID(ctx, id)
}

// GetActiveVersion returns the active version of a tool.
func (s *VersionService) GetActiveVersion(ctx context.Context, toolID shared.ID) (*toolversion.Version, error) {
	v, err := s.versionRepo.GetActive(ctx, toolID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewNotFoundError("active version")
	}
	return v, err
}

// CreateVersionInput represents the input for creating a version.
type CreateVersionInput struct {
	VersionNumber     string          `json:"version_number" validate:"required,max=32,semver"`
	SemanticVersion   string          `json:"semantic_version" validate:"max=64"`
	InputSchema       json.RawMessage `json:"input_schema" validate:"required"`
	OutputSchema      json.RawMessage `json:"output_schema" validate:"required"`
	HandlerSourceCode string          `json:"handler_source_code"`
	HandlerLanguage   string          `json:"handler_language" validate:"omitempty,handler_language"`
	IsActive          *bool           `json:"is_active"`
	Changelog         string          `json:"changelog"`
	CreatedBy         string          `json:"created_by" validate:"max=255"`
}

// CreateVersion adds a version under a live tool. When the version starts
// active, its siblings are deactivated in the same transaction.
func (s *VersionService) CreateVersion(ctx context.Context, toolID shared.ID, input CreateVersionInput) (*toolversion.Version, error) {
	ctx, span := tracer.Start(ctx, "VersionService.CreateVersion")
	defer span.End()

	if _, err := s.toolRepo.GetByID(ctx, toolID); err != nil {
		return nil, err
	}

	active := s.defaultActive
	if input.IsActive != nil {
		active = *input.IsActive
	}

	v, err := toolversion.NewVersion(toolversion.NewParams{
		ToolID:            toolID,
		VersionNumber:     input.VersionNumber,
		SemanticVersion:   input.SemanticVersion,
		InputSchema:       input.InputSchema,
		OutputSchema:      input.OutputSchema,
		HandlerSourceCode: input.HandlerSourceCode,
		HandlerLanguage:   toolversion.HandlerLanguage(input.HandlerLanguage),
		IsActive:          active,
		Changelog:         input.Changelog,
		CreatedBy:         input.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkSchemas(v.InputSchema, v.OutputSchema); err != nil {
		return nil, err
	}

	if err := s.versionRepo.Create(ctx, v); err != nil {
		return nil, err
	}

	metrics.RegistryWritesTotal.WithLabelValues("version", "create").Inc()
	if v.IsActive {
		metrics.VersionActivationsTotal.Inc()
	}
	s.catalog.InvalidateCatalog(ctx)
	s.logger.Info("version created",
		"version_id", v.ID.Int64(),
		"tool_id", toolID.Int64(),
		"version_number", v.VersionNumber,
		"is_active", v.IsActive,
	)
	return v, nil
}

// UpdateVersionInput carries a partial update. is_active is written in the
// same transaction as the other fields; true also deactivates the siblings.
type UpdateVersionInput struct {
	VersionNumber      *string          `json:"version_number" validate:"omitempty,max=32,semver"`
	SemanticVersion    *string          `json:"semantic_version" validate:"omitempty,max=64"`
	InputSchema        *json.RawMessage `json:"input_schema"`
	OutputSchema       *json.RawMessage `json:"output_schema"`
	HandlerSourceCode  *string          `json:"handler_source_code"`
	HandlerLanguage    *string          `json:"handler_language" validate:"omitempty,handler_language"`
	IsActive           *bool            `json:"is_active"`
	IsDeprecated       *bool            `json:"is_deprecated"`
	DeprecationMessage *string          `json:"deprecation_message"`
	Changelog          *string          `json:"changelog"`
}

// UpdateVersion applies the supplied fields. Nothing is persisted unless
// the whole update, activation included, commits.
func (s *VersionService) UpdateVersion(ctx context.Context, id shared.ID, input UpdateVersionInput) (*toolversion.Version, error) {
	ctx, span := tracer.Start(ctx, "VersionService.UpdateVersion")
	defer span.End()

	v, err := s.versionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := toolversion.Patch{
		VersionNumber:      input.VersionNumber,
		SemanticVersion:    input.SemanticVersion,
		InputSchema:        input.InputSchema,
		OutputSchema:       input.OutputSchema,
		HandlerSourceCode:  input.HandlerSourceCode,
		IsDeprecated:       input.IsDeprecated,
		DeprecationMessage: input.DeprecationMessage,
		Changelog:          input.Changelog,
	}
	if input.HandlerLanguage != nil {
		lang := toolversion.HandlerLanguage(*input.HandlerLanguage)
		patch.HandlerLanguage = &lang
	}
	if err := v.Apply(patch); err != nil {
		return nil, err
	}
	if err := s.checkSchemas(v.InputSchema, v.OutputSchema); err != nil {
		return nil, err
	}

	wasActive := v.IsActive
	if input.IsActive != nil {
		v.IsActive = *input.IsActive
	}
	if err := s.versionRepo.Update(ctx, v); err != nil {
		return nil, err
	}

	metrics.RegistryWritesTotal.WithLabelValues("version", "update").Inc()
	if v.IsActive && !wasActive {
		metrics.VersionActivationsTotal.Inc()
	}
	s.catalog.InvalidateCatalog(ctx)
	s.logger.Info("version updated", "version_id", v.ID.Int64(), "is_active", v.IsActive)
	return v, nil
}

// ActivateVersion makes id the only active version of its tool, atomically.
func (s *VersionService) ActivateVersion(ctx context.Context, id shared.ID) (*toolversion.Version, error) {
	ctx, span := tracer.Start(ctx, "VersionService.ActivateVersion")
	defer span.End()

	v, err := s.versionRepo.Activate(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.VersionActivationsTotal.Inc()
	s.catalog.InvalidateCatalog(ctx)
	s.logger.Info("version activated", "version_id", v.ID.Int64(), "tool_id", v.ToolID.Int64())
	return v, nil
}

// DeleteVersion hard-deletes a version that has no recorded executions.
func (s *VersionService) DeleteVersion(ctx context.Context, id shared.ID) error {
	if err := s.versionRepo.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RegistryWritesTotal.WithLabelValues("version", "delete").Inc()
	s.catalog.InvalidateCatalog(ctx)
	return nil
}

func (s *VersionService) checkSchemas(input, output json.RawMessage) error {
	if _, err := s.schemas.Get(input); err != nil {
		return shared.NewValidationError("input_schema", err.Error())
	}
	if _, err := s.schemas.Get(output); err != nil {
		return shared.NewValidationError("output_schema", err.Error())
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
)

// VersionRepository implements toolversion.Repository using PostgreSQL.
type VersionRepository struct {
	db *DB
}

// NewVersionRepository creates a new VersionRepository.
func NewVersionRepository(db *DB) *VersionRepository {
	return &VersionRepository{db: db}
}

const versionColumns = `version_id, tool_id, version_number, semantic_version, input_schema, output_schema,
	handler_source_code, handler_language, is_active, is_deprecated, deprecation_message, changelog,
	created_by, created_at, updated_at`

func (r *VersionRepository) selectQuery() string {
	return "SELECT " + versionColumns + " FROM tool_versions"
}

// Create inserts the version. When it is born active, siblings are
// deactivated in the same transaction under a lock on the parent tool.
func (r *VersionRepository) Create(ctx context.Context, v *toolversion.Version) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockTool(ctx, tx, v.ToolID); err != nil {
			return err
		}
		if v.IsActive {
			if err := deactivateSiblings(ctx, tx, v.ToolID); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO tool_versions (
				tool_id, version_number, semantic_version, input_schema, output_schema,
				handler_source_code, handler_language, is_active, is_deprecated,
				deprecation_message, changelog, created_by, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING version_id`

		err := tx.QueryRowContext(ctx, query,
			v.ToolID,
			v.VersionNumber,
			nullString(v.SemanticVersion),
			[]byte(v.InputSchema),
			[]byte(v.OutputSchema),
			nullString(v.HandlerSourceCode),
			nullString(string(v.HandlerLanguage)),
			v.IsActive,
			v.IsDeprecated,
			nullString(v.DeprecationMessage),
			nullString(v.Changelog),
			nullString(v.CreatedBy),
			v.CreatedAt,
			v.UpdatedAt,
		).Scan(&v.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return versionConflict(v.VersionNumber)
			}
			return fmt.Errorf("failed to create version: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a version by ID.
func (r *VersionRepository) GetByID(ctx context.Context, id shared.ID) (*toolversion.Version, error) {
	query := r.selectQuery() + " WHERE version_id = $1"
	return r.scanVersion(r.db.QueryRowContext(ctx, query, id))
}

// GetActive retrieves the single active version of a tool.
func (r *VersionRepository) GetActive(ctx context.Context, toolID shared.ID) (*toolversion.Version, error) {
	query := r.selectQuery() + " WHERE tool_id = $1 AND is_active = true"
	return r.scanVersion(r.db.QueryRowContext(ctx, query, toolID))
}

// ListByTool returns every version of a tool, newest first.
func (r *VersionRepository) ListByTool(ctx context.Context, toolID shared.ID) ([]*toolversion.Version, error) {
	query := r.selectQuery() + " WHERE tool_id = $1 ORDER BY created_at DESC, version_id DESC"
	rows, err := r.db.QueryContext(ctx, query, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := make([]*toolversion.Version, 0)
	for rows.Next() {
		v, err := r.scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}
	return versions, nil
}

// Update persists every column except tool_id. When v is active its
// siblings are deactivated first, in the same transaction and under the
// tool lock.
func (r *VersionRepository) Update(ctx context.Context, v *toolversion.Version) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if v.IsActive {
			if err := lockTool(ctx, tx, v.ToolID); err != nil {
				return err
			}
			if err := deactivateSiblings(ctx, tx, v.ToolID); err != nil {
				return err
			}
		}

		query := `
			UPDATE tool_versions
			SET version_number = $2, semantic_version = $3, input_schema = $4, output_schema = $5,
			    handler_source_code = $6, handler_language = $7, is_active = $8, is_deprecated = $9,
			    deprecation_message = $10, changelog = $11, updated_at = $12
			WHERE version_id = $1`

		result, err := tx.ExecContext(ctx, query,
			v.ID,
			v.VersionNumber,
			nullString(v.SemanticVersion),
			[]byte(v.InputSchema),
			[]byte(v.OutputSchema),
			nullString(v.HandlerSourceCode),
			nullString(string(v.HandlerLanguage)),
			v.IsActive,
			v.IsDeprecated,
			nullString(v.DeprecationMessage),
			nullString(v.Changelog),
			v.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return versionConflict(v.VersionNumber)
			}
			return fmt.Errorf("failed to update version: %w", err)
		}
		return expectOneRow(result, "version")
	})
}

// Activate makes id the only active version of its tool.
func (r *VersionRepository) Activate(ctx context.Context, id shared.ID) (*toolversion.Version, error) {
	var activated *toolversion.Version
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var toolID shared.ID
		err := tx.QueryRowContext(ctx, `SELECT tool_id FROM tool_versions WHERE version_id = $1`, id).Scan(&toolID)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.NewNotFoundError("version")
		}
		if err != nil {
			return fmt.Errorf("failed to load version: %w", err)
		}

		if err := lockTool(ctx, tx, toolID); err != nil {
			return err
		}
		if err := deactivateSiblings(ctx, tx, toolID); err != nil {
			return err
		}

		query := `UPDATE tool_versions SET is_active = true, updated_at = NOW()
			WHERE version_id = $1 RETURNING ` + versionColumns
		activated, err = r.scanVersion(tx.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

// Delete hard-deletes a version. Versions referenced by executions are kept.
func (r *VersionRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tool_versions WHERE version_id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return shared.NewDomainError("VERSION_IN_USE", "version has recorded executions", shared.ErrInUse)
		}
		return fmt.Errorf("failed to delete version: %w", err)
	}
	return expectOneRow(result, "version")
}

// lockTool takes a row lock on a tool. Soft-deleted tools still own their versions.
func lockTool(ctx context.Context, tx *sql.Tx, toolID shared.ID) error {
	var id shared.ID
	err := tx.QueryRowContext(ctx, `SELECT tool_id FROM tools WHERE tool_id = $1 FOR UPDATE`, toolID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.NewNotFoundError("tool")
	}
	if err != nil {
		return fmt.Errorf("failed to lock tool: %w", err)
	}
	return nil
}

func deactivateSiblings(ctx context.Context, tx *sql.Tx, toolID shared.ID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tool_versions SET is_active = false, updated_at = NOW() WHERE tool_id = $1 AND is_active = true`, toolID)
	if err != nil {
		return fmt.Errorf("failed to deactivate versions: %w", err)
	}
	return nil
}

func (r *VersionRepository) scanVersion(row scanner) (*toolversion.Version, error) {
	var (
		v              toolversion.Version
		semantic       sql.NullString
		inputSchema    []byte
		outputSchema   []byte
		source         sql.NullString
		language       sql.NullString
		deprecationMsg sql.NullString
		changelog      sql.NullString
		createdBy      sql.NullString
	)

	err := row.Scan(
		&v.ID,
		&v.ToolID,
		&v.VersionNumber,
		&semantic,
		&inputSchema,
		&outputSchema,
		&source,
		&language,
		&v.IsActive,
		&v.IsDeprecated,
		&deprecationMsg,
		&changelog,
		&createdBy,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewNotFoundError("version")
		}
		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	v.SemanticVersion = nullStringValue(semantic)
	v.InputSchema = jsonValue(inputSchema)
	v.OutputSchema = jsonValue(outputSchema)
	v.HandlerSourceCode = nullStringValue(source)
	v.HandlerLanguage = toolversion.HandlerLanguage(nullStringValue(language))
	v.DeprecationMessage = nullStringValue(deprecationMsg)
	v.Changelog = nullStringValue(changelog)
	v.CreatedBy = nullStringValue(createdBy)
	return &v, nil
}

func versionConflict(number string) error {
	return shared.NewDomainError("ALREADY_EXISTS",
		fmt.Sprintf("version %s already exists for this tool", number), shared.ErrAlreadyExists)
}

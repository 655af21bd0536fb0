package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// ToolRepository implements tool.Repository using PostgreSQL.
type ToolRepository struct {
	db *DB
}

// NewToolRepository creates a new ToolRepository.
func NewToolRepository(db *DB) *ToolRepository {
	return &ToolRepository{db: db}
}

const toolColumns = `tool_id, name, slug, category, description, is_active,
	created_by, updated_by, created_at, updated_at, deleted_at`

func (r *ToolRepository) selectQuery() string {
	return "SELECT " + toolColumns + " FROM tools"
}

// Create persists a new tool and assigns its ID.
func (r *ToolRepository) Create(ctx context.Context, t *tool.Tool) error {
	query := `
		INSERT INTO tools (name, slug, category, description, is_active, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING tool_id`

	err := r.db.QueryRowContext(ctx, query,
		t.Name,
		t.Slug,
		t.Category,
		nullString(t.Description),
		t.IsActive,
		nullString(t.CreatedBy),
		nullString(t.UpdatedBy),
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return slugConflict(t.Slug)
		}
		return fmt.Errorf("failed to create tool: %w", err)
	}
	return nil
}

// GetByID retrieves a live tool with its tags.
func (r *ToolRepository) GetByID(ctx context.Context, id shared.ID) (*tool.Tool, error) {
	query := r.selectQuery() + " WHERE tool_id = $1 AND deleted_at IS NULL"
	t, err := r.scanTool(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return t, r.attachTags(ctx, []*tool.Tool{t})
}

// GetBySlug retrieves a live tool by slug with its tags.
func (r *ToolRepository) GetBySlug(ctx context.Context, slug string) (*tool.Tool, error) {
	query := r.selectQuery() + " WHERE slug = $1 AND deleted_at IS NULL"
	t, err := r.scanTool(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		return nil, err
	}
	return t, r.attachTags(ctx, []*tool.Tool{t})
}

// List returns a page of live tools. Count and page share one WHERE clause.
func (r *ToolRepository) List(ctx context.Context, filter tool.Filter, page pagination.Pagination, sort pagination.Sort) (pagination.Result[*tool.Tool], error) {
	var result pagination.Result[*tool.Tool]

	whereClause, args := buildToolWhere(filter)
	countQuery := "SELECT COUNT(*) FROM tools WHERE " + whereClause

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count tools: %w", err)
	}

	sort = pagination.ResolveSort(sort.Field, string(sort.Order), tool.SortFields, tool.DefaultSort)
	query := fmt.Sprintf("%s WHERE %s ORDER BY %s, tool_id DESC LIMIT %d OFFSET %d",
		r.selectQuery(), whereClause, sort.SQL(), page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list tools: %w", err)
	}
	defer rows.Close()

	tools, err := r.collect(rows)
	if err != nil {
		return result, err
	}
	if err := r.attachTags(ctx, tools); err != nil {
		return result, err
	}

	return pagination.NewResult(tools, total, page), nil
}

// buildToolWhere always excludes soft-deleted rows.
func buildToolWhere(filter tool.Filter) (string, []any) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any
	argIndex := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, wrapLikePattern(filter.Search))
		argIndex++
	}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
	}

	return strings.Join(conditions, " AND "), args
}

// ExistsBySlug reports whether a live tool other than excludeID owns slug.
func (r *ToolRepository) ExistsBySlug(ctx context.Context, slug string, excludeID shared.ID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tools WHERE slug = $1 AND tool_id <> $2 AND deleted_at IS NULL)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, slug, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check tool slug: %w", err)
	}
	return exists, nil
}

// Update writes every mutable column of a live tool.
func (r *ToolRepository) Update(ctx context.Context, t *tool.Tool) error {
	query := `
		UPDATE tools
		SET name = $2, slug = $3, category = $4, description = $5,
		    is_active = $6, updated_by = $7, updated_at = $8
		WHERE tool_id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.Name,
		t.Slug,
		t.Category,
		nullString(t.Description),
		t.IsActive,
		nullString(t.UpdatedBy),
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return slugConflict(t.Slug)
		}
		return fmt.Errorf("failed to update tool: %w", err)
	}
	return expectOneRow(result, "tool")
}

// SoftDelete stamps deleted_at. A tool already deleted is not found.
func (r *ToolRepository) SoftDelete(ctx context.Context, id shared.ID) error {
	query := `UPDATE tools SET deleted_at = NOW(), updated_at = NOW() WHERE tool_id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tool: %w", err)
	}
	return expectOneRow(result, "tool")
}

// ReplaceTags removes every association of the tool and inserts tagIDs, atomically.
func (r *ToolRepository) ReplaceTags(ctx context.Context, id shared.ID, tagIDs []shared.ID) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		// Lock the tool row so concurrent replacements serialize.
		var locked shared.ID
		err := tx.QueryRowContext(ctx,
			`SELECT tool_id FROM tools WHERE tool_id = $1 AND deleted_at IS NULL FOR UPDATE`, id,
		).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.NewNotFoundError("tool")
		}
		if err != nil {
			return fmt.Errorf("failed to lock tool: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_tool_tags WHERE tool_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear tool tags: %w", err)
		}
		if len(tagIDs) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tool_tool_tags (tool_id, tag_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT (tool_id, tag_id) DO NOTHING`, id, idArray(tagIDs))
		if err != nil {
			if isForeignKeyViolation(err) {
				return shared.NewValidationError("tag_ids", "one or more tags do not exist")
			}
			return fmt.Errorf("failed to assign tool tags: %w", err)
		}
		return nil
	})
}

// TagsFor loads the active tags of several tools in one query.
func (r *ToolRepository) TagsFor(ctx context.Context, ids []shared.ID) (map[shared.ID][]tool.TagRef, error) {
	out := make(map[shared.ID][]tool.TagRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT tt.tool_id, t.tag_id, t.name, t.slug, t.color
		FROM tool_tool_tags tt
		JOIN tool_tags t ON t.tag_id = tt.tag_id
		WHERE tt.tool_id = ANY($1) AND t.is_active = true
		ORDER BY t.name`

	rows, err := r.db.QueryContext(ctx, query, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load tool tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var toolID shared.ID
		var ref tool.TagRef
		if err := rows.Scan(&toolID, &ref.ID, &ref.Name, &ref.Slug, &ref.Color); err != nil {
			return nil, fmt.Errorf("failed to scan tool tag: %w", err)
		}
		out[toolID] = append(out[toolID], ref)
	}
	return out, rows.Err()
}

// ListByTag returns live tools carrying the tag, ordered by name.
func (r *ToolRepository) ListByTag(ctx context.Context, tagID shared.ID) ([]*tool.Tool, error) {
	query := `
		SELECT ` + prefixColumns("t", toolColumns) + `
		FROM tools t
		JOIN tool_tool_tags tt ON tt.tool_id = t.tool_id
		WHERE tt.tag_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.name`

	rows, err := r.db.QueryContext(ctx, query, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools by tag: %w", err)
	}
	defer rows.Close()

	tools, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	return tools, r.attachTags(ctx, tools)
}

func (r *ToolRepository) attachTags(ctx context.Context, tools []*tool.Tool) error {
	if len(tools) == 0 {
		return nil
	}
	ids := make([]shared.ID, len(tools))
	for i, t := range tools {
		ids[i] = t.ID
	}
	tags, err := r.TagsFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, t := range tools {
		t.Tags = tags[t.ID]
		if t.Tags == nil {
			t.Tags = []tool.TagRef{}
		}
	}
	return nil
}

func (r *ToolRepository) collect(rows *sql.Rows) ([]*tool.Tool, error) {
	tools := make([]*tool.Tool, 0)
	for rows.Next() {
		t, err := r.scanTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tools: %w", err)
	}
	return tools, nil
}

func (r *ToolRepository) scanTool(row scanner) (*tool.Tool, error) {
	var (
		t           tool.Tool
		description sql.NullString
		createdBy   sql.NullString
		updatedBy   sql.NullString
		deletedAt   sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&t.Category,
		&description,
		&t.IsActive,
		&createdBy,
		&updatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewNotFoundError("tool")
		}
		return nil, fmt.Errorf("failed to scan tool: %w", err)
	}

	t.Description = nullStringValue(description)
	t.CreatedBy = nullStringValue(createdBy)
	t.UpdatedBy = nullStringValue(updatedBy)
	t.DeletedAt = nullTimeValue(deletedAt)
	return &t, nil
}

func slugConflict(slug string) error {
	return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("slug %q is already in use", slug), shared.ErrAlreadyExists)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
)

// TagRepository implements tag.Repository using PostgreSQL.
type TagRepository struct {
	db *DB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db *DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) selectQuery() string {
	return `SELECT tag_id, name, slug, color, description, is_active, created_at, updated_at FROM tool_tags`
}

// Create persists a new tag.
func (r *TagRepository) Create(ctx context.Context, t *tag.Tag) error {
	query := `
		INSERT INTO tool_tags (name, slug, color, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING tag_id`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Slug, t.Color, nullString(t.Description), t.IsActive, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return slugConflict(t.Slug)
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// GetByID retrieves a tag by ID.
func (r *TagRepository) GetByID(ctx context.Context, id shared.ID) (*tag.Tag, error) {
	return r.scanTag(r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE tag_id = $1", id))
}

// GetBySlug retrieves a tag by slug.
func (r *TagRepository) GetBySlug(ctx context.Context, slug string) (*tag.Tag, error) {
	return r.scanTag(r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE slug = $1", slug))
}

// List returns tags ordered by name, optionally filtered by is_active.
func (r *TagRepository) List(ctx context.Context, isActive *bool) ([]*tag.Tag, error) {
	query := r.selectQuery()
	var args []any
	if isActive != nil {
		query += " WHERE is_active = $1"
		args = append(args, *isActive)
	}
	query += " ORDER BY name, tag_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*tag.Tag, 0)
	for rows.Next() {
		t, err := r.scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

// ExistsBySlug reports whether a tag other than excludeID owns slug.
func (r *TagRepository) ExistsBySlug(ctx context.Context, slug string, excludeID shared.ID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tool_tags WHERE slug = $1 AND tag_id <> $2)`, slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tag slug: %w", err)
	}
	return exists, nil
}

// CountExisting counts how many of ids name existing tags.
func (r *TagRepository) CountExisting(ctx context.Context, ids []shared.ID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_tags WHERE tag_id = ANY($1)`, idArray(ids)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tags: %w", err)
	}
	return n, nil
}

// Update writes every mutable column.
func (r *TagRepository) Update(ctx context.Context, t *tag.Tag) error {
	query := `
		UPDATE tool_tags
		SET name = $2, slug = $3, color = $4, description = $5, is_active = $6, updated_at = $7
		WHERE tag_id = $1`

	result, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Slug, t.Color, nullString(t.Description), t.IsActive, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return slugConflict(t.Slug)
		}
		return fmt.Errorf("failed to update tag: %w", err)
	}
	return expectOneRow(result, "tag")
}

// Delete removes a tag that no live tool references.
// Links to soft-deleted tools cascade away with the tag.
func (r *TagRepository) Delete(ctx context.Context, id shared.ID) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var locked shared.ID
		err := tx.QueryRowContext(ctx, `SELECT tag_id FROM tool_tags WHERE tag_id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.NewNotFoundError("tag")
		}
		if err != nil {
			return fmt.Errorf("failed to lock tag: %w", err)
		}

		var inUse int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM tool_tool_tags tt
			JOIN tools t ON t.tool_id = tt.tool_id
			WHERE tt.tag_id = $1 AND t.deleted_at IS NULL`, id).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("failed to count tag usage: %w", err)
		}
		if inUse > 0 {
			return shared.NewDomainError("TAG_IN_USE",
				fmt.Sprintf("tag is assigned to %d tool(s)", inUse), shared.ErrInUse)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_tags WHERE tag_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		return nil
	})
}

func (r *TagRepository) scanTag(row scanner) (*tag.Tag, error) {
	var (
		t           tag.Tag
		description sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Color, &description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewNotFoundError("tag")
		}
		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}
	t.Description = nullStringValue(description)
	return &t, nil
}

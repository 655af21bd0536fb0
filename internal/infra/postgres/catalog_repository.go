package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// CatalogRepository implements catalog.Reader using PostgreSQL.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const catalogQuery = `
	SELECT t.tool_id, t.name, t.slug, COALESCE(t.description, ''), t.category,
	       v.version_id, v.version_number, v.input_schema, v.output_schema
	FROM tools t
	JOIN tool_versions v ON v.tool_id = t.tool_id AND v.is_active = true
	WHERE t.deleted_at IS NULL AND t.is_active = true`

// ListEntries returns every invocable tool ordered by name.
func (r *CatalogRepository) ListEntries(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := r.db.QueryContext(ctx, catalogQuery+" ORDER BY t.name, t.tool_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	entries := make([]catalog.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog: %w", err)
	}
	return entries, nil
}

// GetEntry returns the invocable tool with slug.
func (r *CatalogRepository) GetEntry(ctx context.Context, slug string) (*catalog.Entry, error) {
	return scanEntry(r.db.QueryRowContext(ctx, catalogQuery+" AND t.slug = $1", slug))
}

func scanEntry(row scanner) (*catalog.Entry, error) {
	var (
		e      catalog.Entry
		input  []byte
		output []byte
	)
	err := row.Scan(&e.ToolID, &e.Name, &e.Slug, &e.Description, &e.Category,
		&e.VersionID, &e.VersionNumber, &input, &output)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewNotFoundError("tool")
		}
		return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
	}
	e.InputSchema = jsonValue(input)
	e.OutputSchema = jsonValue(output)
	return &e, nil
}

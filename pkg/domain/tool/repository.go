package tool

import (
	"context"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// Filter defines filtering options for tool listings.
// Soft-deleted tools are always excluded.
type Filter struct {
	Search   string
	Category string
	IsActive *bool
}

// Sortable fields mapped to their column names.
var SortFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// DefaultSort orders tools newest first.
var DefaultSort = pagination.Sort{Field: "created_at", Order: pagination.SortDesc}

// Repository defines the interface for tool persistence.
type Repository interface {
	// Create inserts the tool and assigns its ID.
	// Returns shared.ErrAlreadyExists when the slug is taken by a live tool.
	Create(ctx context.Context, t *Tool) error
	GetByID(ctx context.Context, id shared.ID) (*Tool, error)
	GetBySlug(ctx context.Context, slug string) (*Tool, error)
	List(ctx context.Context, filter Filter, page pagination.Pagination, sort pagination.Sort) (pagination.Result[*Tool], error)
	// ExistsBySlug checks live tools other than excludeID.
	ExistsBySlug(ctx context.Context, slug string, excludeID shared.ID) (bool, error)
	Update(ctx context.Context, t *Tool) error
	SoftDelete(ctx context.Context, id shared.ID) error

	// ReplaceTags swaps the whole tag set of a tool in one transaction.
	ReplaceTags(ctx context.Context, id shared.ID, tagIDs []shared.ID) error
	// TagsFor loads active tags for a batch of tools.
	TagsFor(ctx context.Context, ids []shared.ID) (map[shared.ID][]TagRef, error)
	ListByTag(ctx context.Context, tagID shared.ID) ([]*Tool, error)
}

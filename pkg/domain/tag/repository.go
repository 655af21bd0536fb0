package tag

import (
	"context"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// Repository defines the interface for tag persistence.
type Repository interface {
	// Create returns shared.ErrAlreadyExists on a slug collision.
	Create(ctx context.Context, t *Tag) error
	GetByID(ctx context.Context, id shared.ID) (*Tag, error)
	GetBySlug(ctx context.Context, slug string) (*Tag, error)
	// List orders by name. A nil isActive returns every tag.
	List(ctx context.Context, isActive *bool) ([]*Tag, error)
	ExistsBySlug(ctx context.Context, slug string, excludeID shared.ID) (bool, error)
	// CountExisting reports how many of ids exist.
	CountExisting(ctx context.Context, ids []shared.ID) (int, error)
	Update(ctx context.Context, t *Tag) error
	// Delete hard-deletes the tag. Returns shared.ErrInUse while a live tool references it.
	Delete(ctx context.Context, id shared.ID) error
}

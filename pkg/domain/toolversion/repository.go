package toolversion

import (
	"context"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// Repository defines the interface for version persistence.
type Repository interface {
	// Create inserts the version. An active version deactivates its
	// siblings within the same transaction.
	Create(ctx context.Context, v *Version) error
	GetByID(ctx context.Context, id shared.ID) (*Version, error)
	// GetActive returns shared.ErrNotFound when the tool has no active version.
	GetActive(ctx context.Context, toolID shared.ID) (*Version, error)
	// ListByTool returns versions newest first.
	ListByTool(ctx context.Context, toolID shared.ID) ([]*Version, error)
	// Update persists every field except tool_id. An active version
	// deactivates its siblings within the same transaction.
	Update(ctx context.Context, v *Version) error
	// Activate deactivates all versions of the owning tool and activates id, atomically.
	Activate(ctx context.Context, id shared.ID) (*Version, error)
	Delete(ctx context.Context, id shared.ID) error
}

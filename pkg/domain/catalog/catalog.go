// Package catalog describes the invocable view of the registry: live,
// active tools paired with their active version.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// Entry is one invocable tool.
type Entry struct {
	ToolID        shared.ID
	Name          string
	Slug          string
	Description   string
	Category      string
	VersionID     shared.ID
	VersionNumber string
	InputSchema   json.RawMessage
	OutputSchema  json.RawMessage
}

// Reader loads the catalog.
type Reader interface {
	// ListEntries returns entries ordered by tool name.
	ListEntries(ctx context.Context) ([]Entry, error)
	// GetEntry returns shared.ErrNotFound unless the tool is live, active and has an active version.
	GetEntry(ctx context.Context, slug string) (*Entry, error)
}

// Package folders persists users' map libraries: nested folders and the
// placement of maps in them.
package folders

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

// Repository stores folders and map placements. A parent id of "" is the
// top level.
type Repository interface {
	// LockOwner serializes structural changes to ownerID's folders.
	LockOwner(ctx context.Context, ownerID string) error
	Create(ctx context.Context, f *models.Folder) (*models.Folder, error)
	Get(ctx context.Context, id string) (*models.Folder, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Folder, error)
	Rename(ctx context.Context, id, name string) error
	// IsDescendant reports whether candidate is id itself or lies below it.
	IsDescendant(ctx context.Context, id, candidate string) (bool, error)
	SetParent(ctx context.Context, id, parentID string) error
	// Delete removes the folder. Its subfolders and placed maps move up to
	// its parent.
	Delete(ctx context.Context, id string) error
	// PlaceMap files mapID under folderID in userID's library; "" removes
	// the placement.
	PlaceMap(ctx context.Context, userID, mapID, folderID string) error
	// Placements maps map id to folder id for userID.
	Placements(ctx context.Context, userID string) (map[string]string, error)
}

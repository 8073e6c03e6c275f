// Package ownership answers the two questions the authorization engine asks:
// which map owns an entity, and who may act on that map.
//
// Nothing here is cached; every call reads the current rows.
package ownership

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	// OwningMap walks the ancestor chain of ref up to its map.
	OwningMap(ctx context.Context, ref models.EntityRef) (string, error)
	// MapAccess reads owner and visibility. With lock set the row is held
	// FOR SHARE until the transaction ends.
	MapAccess(ctx context.Context, mapID string, lock bool) (*models.MapAccess, error)
	// Grant returns the user's grant on the map or ErrNotFound. With lock set
	// the row is held FOR SHARE until the transaction ends.
	Grant(ctx context.Context, mapID, userID string, lock bool) (*models.AccessGrant, error)
	// Lock holds ref until the transaction ends. A shared lock also covers
	// every ancestor below the map, so none of them can be deleted while it
	// is held. An exclusive lock covers ref alone and waits for all shared
	// holders. ErrNotFound when ref is gone.
	Lock(ctx context.Context, ref models.EntityRef, exclusive bool) error
}

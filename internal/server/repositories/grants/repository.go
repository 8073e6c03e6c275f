// Package grants stores per-user access grants on maps.
package grants

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	// Upsert creates the grant or replaces its permission.
	Upsert(ctx context.Context, g *models.AccessGrant) (*models.AccessGrant, error)
	Delete(ctx context.Context, mapID, userID string) error
	// List returns the map's grants with grantee usernames filled in.
	List(ctx context.Context, mapID string) ([]*models.AccessGrant, error)
}

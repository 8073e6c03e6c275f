// Package maps provides persistence for maps, the roots of the ownership graph.
package maps

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Map) (*models.Map, error)
	Get(ctx context.Context, id string) (*models.Map, error)
	// ListAccessible returns maps owned by userID or granted to it, plus
	// public maps when includePublic is set.
	ListAccessible(ctx context.Context, userID string, includePublic bool) ([]*models.Map, error)
	// ListShared returns maps owned by ownerID that have at least one grant.
	ListShared(ctx context.Context, ownerID string) ([]*models.Map, error)
	Update(ctx context.Context, m *models.Map) error
	SetVisibility(ctx context.Context, id string, v models.Visibility) error
	// Delete removes the map; descendants go with it via ON DELETE CASCADE.
	Delete(ctx context.Context, id string) error
}

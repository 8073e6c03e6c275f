// Package markers stores map markers.
package markers

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Marker) (*models.Marker, error)
	Get(ctx context.Context, id string) (*models.Marker, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*models.Marker, error)
	// ListByMap returns every marker of the map, ordered by collection.
	ListByMap(ctx context.Context, mapID string) ([]*models.Marker, error)
	// Update replaces title and coordinates.
	Update(ctx context.Context, m *models.Marker) (*models.Marker, error)
	MoveToCollection(ctx context.Context, id, collectionID string) (*models.Marker, error)
	Delete(ctx context.Context, id string) error
}

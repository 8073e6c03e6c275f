// Package articles stores the single rich-text article attached to a marker.
package articles

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	// Upsert creates the marker's article or replaces its body.
	Upsert(ctx context.Context, markerID, body string) (*models.Article, error)
	Get(ctx context.Context, id string) (*models.Article, error)
	GetByMarker(ctx context.Context, markerID string) (*models.Article, error)
	ListByMap(ctx context.Context, mapID string) ([]*models.Article, error)
	Delete(ctx context.Context, id string) error
}

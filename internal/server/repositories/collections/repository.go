// Package collections stores the ordered collections of a map.
//
// Positions within a map are contiguous and start at 0.
package collections

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	// Create appends c at the end of its map (position = max+1).
	Create(ctx context.Context, c *models.Collection) (*models.Collection, error)
	Get(ctx context.Context, id string) (*models.Collection, error)
	ListByMap(ctx context.Context, mapID string) ([]*models.Collection, error)
	Rename(ctx context.Context, id, name string) (*models.Collection, error)
	// Move places the collection at position, shifting its siblings. The
	// target is clamped to the valid range.
	Move(ctx context.Context, id string, position int) (*models.Collection, error)
	// Delete removes the collection and closes the gap it leaves.
	Delete(ctx context.Context, id string) error
}

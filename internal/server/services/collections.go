package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

type CollectionInput struct {
	Name string `json:"name" validate:"notblank,max=200"`
}

type CollectionService struct {
	base
}

func NewCollectionService(d Deps) *CollectionService {
	return &CollectionService{base{d}}
}

// Create appends a collection to the map. A duplicate name is ErrConflict.
// Create, Move and Delete hold the map row exclusively while they renumber.
func (s *CollectionService) Create(ctx context.Context, actor, mapID string, in CollectionInput) (*models.Collection, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var c *models.Collection
	err := s.exclusive(ctx, actor, authz.ActionCreate, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		c, err = s.Repos.Collections(tx).Create(ctx, &models.Collection{MapID: mapID, Name: strings.TrimSpace(in.Name)})
		return err
	})
	return c, err
}

func (s *CollectionService) List(ctx context.Context, actor, mapID string) ([]*models.Collection, error) {
	var result []*models.Collection
	err := s.authorized(ctx, actor, authz.ActionList, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		result, err = s.Repos.Collections(tx).ListByMap(ctx, mapID)
		return err
	})
	return result, err
}

func (s *CollectionService) Rename(ctx context.Context, actor, id string, in CollectionInput) (*models.Collection, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var c *models.Collection
	err := s.authorized(ctx, actor, authz.ActionUpdate, models.CollectionRef(id), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		c, err = s.Repos.Collections(tx).Rename(ctx, id, strings.TrimSpace(in.Name))
		return err
	})
	return c, err
}

// Move reorders the collection to position (0-based, clamped).
func (s *CollectionService) Move(ctx context.Context, actor, id string, position int) (*models.Collection, error) {
	var c *models.Collection
	err := s.exclusive(ctx, actor, authz.ActionUpdate, models.CollectionRef(id), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		c, err = s.Repos.Collections(tx).Move(ctx, id, position)
		return err
	})
	return c, err
}

// Delete removes the collection with its markers and articles. Their media
// is orphaned in the same transaction.
func (s *CollectionService) Delete(ctx context.Context, actor, id string) error {
	var orphaned int64
	err := s.exclusive(ctx, actor, authz.ActionDelete, models.CollectionRef(id), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		if orphaned, err = s.Repos.Media(tx).OrphanByCollection(ctx, id); err != nil {
			return err
		}
		return s.Repos.Collections(tx).Delete(ctx, id)
	})
	if err == nil && orphaned > 0 {
		s.Media.Notify()
	}
	return err
}

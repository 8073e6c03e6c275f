package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

type MapInput struct {
	Title       string            `json:"title" validate:"notblank,max=200"`
	Description string            `json:"description" validate:"max=10000"`
	Visibility  models.Visibility `json:"visibility" validate:"omitempty,oneof=private shared public"`
	Type        models.MapType    `json:"map_type" validate:"omitempty,oneof=osm custom_image"`
}

type MapService struct {
	base
}

func NewMapService(d Deps) *MapService {
	return &MapService{base{d}}
}

// Create makes actor the owner of a new map. Visibility defaults to private
// and the type to osm. The type is fixed for the life of the map.
func (s *MapService) Create(ctx context.Context, actor string, in MapInput) (*models.Map, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	if in.Type == "" {
		in.Type = models.MapTypeOSM
	}

	var m *models.Map
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		m, err = s.Repos.Maps(tx).Create(ctx, &models.Map{
			OwnerID:     actor,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			Visibility:  in.Visibility,
			Type:        in.Type,
		})
		return err
	})
	return m, err
}

// Get returns the map with every collection, marker, article and committed
// media asset.
func (s *MapService) Get(ctx context.Context, actor, mapID string) (*models.MapTree, error) {
	var tree *models.MapTree
	err := s.authorized(ctx, actor, authz.ActionView, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		m, err := s.Repos.Maps(tx).Get(ctx, mapID)
		if err != nil {
			return err
		}
		collections, err := s.Repos.Collections(tx).ListByMap(ctx, mapID)
		if err != nil {
			return err
		}
		markers, err := s.Repos.Markers(tx).ListByMap(ctx, mapID)
		if err != nil {
			return err
		}
		articles, err := s.Repos.Articles(tx).ListByMap(ctx, mapID)
		if err != nil {
			return err
		}
		assets, err := s.Repos.Media(tx).ListCommittedByMap(ctx, mapID)
		if err != nil {
			return err
		}
		tree = buildTree(m, collections, markers, articles, assets)
		return nil
	})
	return tree, err
}

func buildTree(m *models.Map, collections []*models.Collection, markers []*models.Marker, articles []*models.Article, assets []*models.MediaAsset) *models.MapTree {
	media := groupMedia(assets)
	byMarker := make(map[string]*models.Article, len(articles))
	for _, a := range articles {
		byMarker[a.MarkerID] = a
	}

	tree := &models.MapTree{Map: m, Collections: make([]*models.CollectionTree, 0, len(collections))}
	if images := media[models.OwnerMap][m.ID]; len(images) > 0 {
		tree.Image = images[len(images)-1]
	}
	index := make(map[string]*models.CollectionTree, len(collections))
	for _, c := range collections {
		ct := &models.CollectionTree{Collection: c, Markers: []*models.MarkerDetail{}}
		index[c.ID] = ct
		tree.Collections = append(tree.Collections, ct)
	}
	for _, k := range markers {
		ct, ok := index[k.CollectionID]
		if !ok {
			continue
		}
		ct.Markers = append(ct.Markers, markerDetail(k, byMarker[k.ID], media))
	}
	return tree
}

func markerDetail(k *models.Marker, a *models.Article, media map[models.OwnerKind]map[string][]*models.MediaAsset) *models.MarkerDetail {
	d := &models.MarkerDetail{Marker: k, Media: media[models.OwnerMarker][k.ID]}
	if a != nil {
		d.Article = &models.ArticleDetail{Article: a, Media: media[models.OwnerArticle][a.ID]}
	}
	return d
}

// ListAccessible returns maps actor owns or holds a grant on, plus public
// maps when includePublic is set.
func (s *MapService) ListAccessible(ctx context.Context, actor string, includePublic bool) ([]*models.Map, error) {
	var result []*models.Map
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = s.Repos.Maps(tx).ListAccessible(ctx, actor, includePublic)
		return err
	})
	return result, err
}

// ListShared returns the actor's maps that have at least one grant.
func (s *MapService) ListShared(ctx context.Context, actor string) ([]*models.Map, error) {
	var result []*models.Map
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = s.Repos.Maps(tx).ListShared(ctx, actor)
		return err
	})
	return result, err
}

// Update replaces title and description.
func (s *MapService) Update(ctx context.Context, actor, mapID string, in MapInput) (*models.Map, error) {
	in.Visibility, in.Type = "", ""
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var m *models.Map
	err := s.authorized(ctx, actor, authz.ActionUpdate, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		repo := s.Repos.Maps(tx)
		current, err := repo.Get(ctx, mapID)
		if err != nil {
			return err
		}
		current.Title, current.Description = strings.TrimSpace(in.Title), in.Description
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		m, err = repo.Get(ctx, mapID)
		return err
	})
	return m, err
}

// SetVisibility changes who can read the map without a grant. Owner only.
func (s *MapService) SetVisibility(ctx context.Context, actor, mapID string, v models.Visibility) (*models.Map, error) {
	if err := validation.ValidateStruct(&struct {
		Visibility models.Visibility `json:"visibility" validate:"required,oneof=private shared public"`
	}{v}); err != nil {
		return nil, err
	}
	var m *models.Map
	err := s.authorized(ctx, actor, authz.ActionManageGrants, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		repo := s.Repos.Maps(tx)
		if err := repo.SetVisibility(ctx, mapID, v); err != nil {
			return err
		}
		var err error
		m, err = repo.Get(ctx, mapID)
		return err
	})
	return m, err
}

// Delete removes the map and everything under it. Its media becomes
// orphaned in the same transaction and is collected by the sweeper.
func (s *MapService) Delete(ctx context.Context, actor, mapID string) error {
	var orphaned int64
	err := s.exclusive(ctx, actor, authz.ActionDeleteMap, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		if orphaned, err = s.Repos.Media(tx).OrphanByMap(ctx, mapID); err != nil {
			return err
		}
		return s.Repos.Maps(tx).Delete(ctx, mapID)
	})
	if err != nil {
		return err
	}
	s.Log.Info(ctx, "map deleted", "map", mapID, "orphaned_media", orphaned)
	if orphaned > 0 {
		s.Media.Notify()
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

// MarkerInput carries WGS84 coordinates in degrees.
type MarkerInput struct {
	Title string  `json:"title" validate:"notblank,max=200"`
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon   float64 `json:"lon" validate:"gte=-180,lte=180"`
}

type MarkerService struct {
	base
}

func NewMarkerService(d Deps) *MarkerService {
	return &MarkerService{base{d}}
}

func (in *MarkerInput) validate() error {
	if err := validation.ValidateStruct(in); err != nil {
		return err
	}
	// NaN passes the range tags.
	if !models.ValidCoordinates(in.Lat, in.Lon) {
		return fmt.Errorf("coordinates out of range: %w", common.ErrValidation)
	}
	return nil
}

func (s *MarkerService) Create(ctx context.Context, actor, collectionID string, in MarkerInput) (*models.Marker, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var k *models.Marker
	err := s.authorized(ctx, actor, authz.ActionCreate, models.CollectionRef(collectionID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		k, err = s.Repos.Markers(tx).Create(ctx, &models.Marker{
			CollectionID: collectionID,
			Title:        strings.TrimSpace(in.Title),
			Lat:          in.Lat,
			Lon:          in.Lon,
		})
		return err
	})
	return k, err
}

// Get returns the marker with its article and committed media.
func (s *MarkerService) Get(ctx context.Context, actor, id string) (*models.MarkerDetail, error) {
	var detail *models.MarkerDetail
	err := s.authorized(ctx, actor, authz.ActionView, models.MarkerRef(id), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		k, err := s.Repos.Markers(tx).Get(ctx, id)
		if err != nil {
			return err
		}
		mediaRepo := s.Repos.Media(tx)
		assets, err := mediaRepo.ListCommittedByOwner(ctx, models.OwnerMarker, id)
		if err != nil {
			return err
		}
		a, err := s.Repos.Articles(tx).GetByMarker(ctx, id)
		switch {
		case errors.Is(err, common.ErrNotFound):
			a = nil
		case err != nil:
			return err
		default:
			articleAssets, err := mediaRepo.ListCommittedByOwner(ctx, models.OwnerArticle, a.ID)
			if err != nil {
				return err
			}
			assets = append(assets, articleAssets...)
		}
		detail = markerDetail(k, a, groupMedia(assets))
		return nil
	})
	return detail, err
}

func (s *MarkerService) List(ctx context.Context, actor, collectionID string) ([]*models.Marker, error) {
	var result []*models.Marker
	err := s.authorized(ctx, actor, authz.ActionList, models.CollectionRef(collectionID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		result, err = s.Repos.Markers(tx).ListByCollection(ctx, collectionID)
		return err
	})
	return result, err
}

// Update replaces title and coordinates.
func (s *MarkerService) Update(ctx context.Context, actor, id string, in MarkerInput) (*models.Marker, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var k *models.Marker
	err := s.authorized(ctx, actor, authz.ActionUpdate, models.MarkerRef(id), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		k, err = s.Repos.Markers(tx).Update(ctx, &models.Marker{ID: id, Title: strings.TrimSpace(in.Title), Lat: in.Lat, Lon: in.Lon})
		return err
	})
	return k, err
}

// Move puts the marker into another collection of the same map.
func (s *MarkerService) Move(ctx context.Context, actor, id, collectionID string) (*models.Marker, error) {
	var k *models.Marker
	err := s.authorized(ctx, actor, authz.ActionUpdate, models.MarkerRef(id), func(ctx context.Context, tx dbx.DBTX, d *authz.Decision) error {
		target, err := s.Authz.Authorize(ctx, tx, actor, authz.ActionCreate, models.CollectionRef(collectionID))
		if err != nil {
			return err
		}
		if target.MapID != d.MapID {
			return fmt.Errorf("collection belongs to another map: %w", common.ErrValidation)
		}
		k, err = s.Repos.Markers(tx).MoveToCollection(ctx, id, collectionID)
		return err
	})
	return k, err
}

// Delete removes the marker and its article. Their media is orphaned in the
// same transaction.
func (s *MarkerService) Delete(ctx context.Context, actor, id string) error {
	var orphaned int64
	err := s.authorized(ctx, actor, authz.ActionDelete, models.MarkerRef(id), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		// Waits out uploads registering against the marker.
		if err := s.Repos.Ownership(tx).Lock(ctx, models.MarkerRef(id), true); err != nil {
			return err
		}
		var err error
		if orphaned, err = s.Repos.Media(tx).OrphanByMarker(ctx, id); err != nil {
			return err
		}
		return s.Repos.Markers(tx).Delete(ctx, id)
	})
	if err == nil && orphaned > 0 {
		s.Media.Notify()
	}
	return err
}

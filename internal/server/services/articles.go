package services

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

// ArticleInput holds rich text; it is stored verbatim.
type ArticleInput struct {
	Body string `json:"body" validate:"max=200000"`
}

type ArticleService struct {
	base
}

func NewArticleService(d Deps) *ArticleService {
	return &ArticleService{base{d}}
}

// Put creates the marker's article or replaces its body.
func (s *ArticleService) Put(ctx context.Context, actor, markerID string, in ArticleInput) (*models.Article, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var a *models.Article
	err := s.authorized(ctx, actor, authz.ActionUpdate, models.MarkerRef(markerID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		a, err = s.Repos.Articles(tx).Upsert(ctx, markerID, in.Body)
		return err
	})
	return a, err
}

func (s *ArticleService) Get(ctx context.Context, actor, markerID string) (*models.ArticleDetail, error) {
	var detail *models.ArticleDetail
	err := s.authorized(ctx, actor, authz.ActionView, models.MarkerRef(markerID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		a, err := s.Repos.Articles(tx).GetByMarker(ctx, markerID)
		if err != nil {
			return err
		}
		assets, err := s.Repos.Media(tx).ListCommittedByOwner(ctx, models.OwnerArticle, a.ID)
		if err != nil {
			return err
		}
		detail = &models.ArticleDetail{Article: a, Media: assets}
		return nil
	})
	return detail, err
}

// Delete removes the marker's article and orphans its media.
func (s *ArticleService) Delete(ctx context.Context, actor, markerID string) error {
	var orphaned int64
	err := s.authorized(ctx, actor, authz.ActionDelete, models.MarkerRef(markerID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		repo := s.Repos.Articles(tx)
		a, err := repo.GetByMarker(ctx, markerID)
		if err != nil {
			return err
		}
		if err := s.Repos.Ownership(tx).Lock(ctx, models.ArticleRef(a.ID), true); err != nil {
			return err
		}
		if orphaned, err = s.Repos.Media(tx).OrphanByArticle(ctx, a.ID); err != nil {
			return err
		}
		return repo.Delete(ctx, a.ID)
	})
	if err == nil && orphaned > 0 {
		s.Media.Notify()
	}
	return err
}

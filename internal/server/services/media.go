package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

type UploadInput struct {
	ContentType string `json:"content_type" validate:"required,max=255"`
	Size        int64  `json:"size" validate:"gt=0"`
}

// UploadTicket is a pending asset and the credential to upload its bytes.
type UploadTicket struct {
	Asset   *models.MediaAsset
	Request *storage.PresignedRequest
}

// DownloadTicket is a committed asset and a time-limited URL to fetch it.
type DownloadTicket struct {
	Asset   *models.MediaAsset
	Request *storage.PresignedRequest
}

type MediaService struct {
	base
}

func NewMediaService(d Deps) *MediaService {
	return &MediaService{base{d}}
}

// BeginUpload registers a pending asset under the owner and presigns its
// upload. The row is committed before the credential is issued. A map owner
// means the base image of a custom_image map.
func (s *MediaService) BeginUpload(ctx context.Context, actor string, kind models.OwnerKind, ownerID string, in UploadInput) (*UploadTicket, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	ref, ok := kind.Ref(ownerID)
	if !ok {
		return nil, fmt.Errorf("owner kind %q: %w", kind, common.ErrValidation)
	}

	var asset *models.MediaAsset
	err := s.authorized(ctx, actor, authz.ActionUpload, ref, func(ctx context.Context, tx dbx.DBTX, d *authz.Decision) error {
		if kind == models.OwnerMap {
			m, err := s.Repos.Maps(tx).Get(ctx, ownerID)
			if err != nil {
				return err
			}
			if m.Type != models.MapTypeCustomImage {
				return fmt.Errorf("map %s is not a custom_image map: %w", ownerID, common.ErrValidation)
			}
		}
		var err error
		asset, err = s.Media.Register(ctx, tx, d.MapID, kind, ownerID, in.ContentType, in.Size)
		return err
	})
	if err != nil {
		return nil, err
	}

	req, err := s.Media.PresignUpload(ctx, asset)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{Asset: asset, Request: req}, nil
}

// Complete verifies the uploaded bytes and commits the asset.
func (s *MediaService) Complete(ctx context.Context, actor, assetID string) (*models.MediaAsset, error) {
	return s.Media.CompleteUpload(ctx, actor, assetID)
}

// Get returns a download URL for a committed asset. Assets in any other
// state do not exist for readers.
func (s *MediaService) Get(ctx context.Context, actor, assetID string) (*DownloadTicket, error) {
	var asset *models.MediaAsset
	err := s.authorized(ctx, actor, authz.ActionView, models.MediaRef(assetID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		asset, err = s.Repos.Media(tx).Get(ctx, assetID)
		if err == nil && asset.Status != models.MediaCommitted {
			return common.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	req, err := s.Media.PresignDownload(ctx, asset)
	if err != nil {
		return nil, err
	}
	return &DownloadTicket{Asset: asset, Request: req}, nil
}

// Delete orphans a pending or committed asset; the sweeper removes it.
func (s *MediaService) Delete(ctx context.Context, actor, assetID string) error {
	err := s.authorized(ctx, actor, authz.ActionDelete, models.MediaRef(assetID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		repo := s.Repos.Media(tx)
		a, err := repo.Get(ctx, assetID)
		if err != nil {
			return err
		}
		if a.Status == models.MediaOrphaned {
			return common.ErrNotFound
		}
		return repo.Orphan(ctx, assetID)
	})
	if err != nil {
		return err
	}
	s.Media.Notify()
	return nil
}

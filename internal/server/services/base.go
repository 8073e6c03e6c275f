package services

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
)

// Authorizer decides access inside the caller's transaction.
type Authorizer interface {
	Authorize(ctx context.Context, tx dbx.DBTX, actor string, action authz.Action, target models.EntityRef) (*authz.Decision, error)
}

// MediaLifecycle is the part of media.Manager the services drive.
type MediaLifecycle interface {
	Register(ctx context.Context, tx dbx.DBTX, mapID string, kind models.OwnerKind, ownerID, contentType string, size int64) (*models.MediaAsset, error)
	PresignUpload(ctx context.Context, a *models.MediaAsset) (*storage.PresignedRequest, error)
	PresignDownload(ctx context.Context, a *models.MediaAsset) (*storage.PresignedRequest, error)
	CompleteUpload(ctx context.Context, actor, assetID string) (*models.MediaAsset, error)
	Notify()
}

// Deps are the collaborators shared by the domain services.
type Deps struct {
	Tx    dbx.Transactor
	Repos repomanager.RepositoryManager
	Authz Authorizer
	Media MediaLifecycle
	Log   logging.Logger
}

type base struct {
	Deps
}

// authorized runs fn in a transaction after authorizing actor for action on
// target. fn sees the decision.
func (b *base) authorized(ctx context.Context, actor string, action authz.Action, target models.EntityRef, fn func(ctx context.Context, tx dbx.DBTX, d *authz.Decision) error) error {
	return b.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		d, err := b.Authz.Authorize(ctx, tx, actor, action, target)
		if err != nil {
			return err
		}
		return fn(ctx, tx, d)
	})
}

// exclusive is authorized for writers that restructure a map. The owning
// map row is locked FOR UPDATE before authorization takes its shared lock,
// so two such writers queue on the map instead of deadlocking on an upgrade.
func (b *base) exclusive(ctx context.Context, actor string, action authz.Action, target models.EntityRef, fn func(ctx context.Context, tx dbx.DBTX, d *authz.Decision) error) error {
	return b.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		own := b.Repos.Ownership(tx)
		mapID, err := own.OwningMap(ctx, target)
		if err != nil {
			return err
		}
		if err := own.Lock(ctx, models.MapRef(mapID), true); err != nil {
			return err
		}
		d, err := b.Authz.Authorize(ctx, tx, actor, action, target)
		if err != nil {
			return err
		}
		return fn(ctx, tx, d)
	})
}

// groupMedia indexes committed assets by owner.
func groupMedia(assets []*models.MediaAsset) map[models.OwnerKind]map[string][]*models.MediaAsset {
	out := map[models.OwnerKind]map[string][]*models.MediaAsset{
		models.OwnerMarker:  {},
		models.OwnerArticle: {},
		models.OwnerMap:     {},
	}
	for _, a := range assets {
		byOwner, ok := out[a.OwnerKind]
		if !ok || a.Status != models.MediaCommitted {
			continue
		}
		byOwner[a.OwnerID] = append(byOwner[a.OwnerID], a)
	}
	return out
}

// Package media implements the two-phase lifecycle of media assets.
//
//	pending   -> committed   CompleteUpload verified the stored object
//	pending   -> (deleted)   verification failed, or the upload never came
//	pending   -> orphaned    owner deleted before completion
//	committed -> orphaned    owner or asset deleted
//	orphaned  -> (deleted)   Sweeper or Reconciler removed the object
//
// Object-store calls never run inside a database transaction except for the
// sweeper's delete of a claimed row. Uploads and deletions meet at two
// points: Register holds the owner chain FOR SHARE while the pending row is
// inserted, and deletions lock their target exclusively before orphaning, so
// an orphaning pass always sees every pending row of the owner. The
// conditional pending -> committed update then refuses rows that were
// orphaned or whose owner is gone.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/metrics"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
	"github.com/google/uuid"
)

// KeyPrefix is the root of every storage key the server writes.
const KeyPrefix = "maps/"

// Authorizer is the subset of authz.Engine the manager needs.
type Authorizer interface {
	Authorize(ctx context.Context, tx dbx.DBTX, actor string, action authz.Action, target models.EntityRef) (*authz.Decision, error)
}

type Config struct {
	UploadTTL     time.Duration
	DownloadTTL   time.Duration
	MaxUploadSize int64
}

type Manager struct {
	cfg    Config
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	store  storage.ObjectStore
	authz  Authorizer
	log    logging.Logger
	notify chan struct{}
}

func NewManager(cfg Config, tx dbx.Transactor, repos repomanager.RepositoryManager, store storage.ObjectStore, az Authorizer, log logging.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		tx:     tx,
		repos:  repos,
		store:  store,
		authz:  az,
		log:    log.With("module", "media"),
		notify: make(chan struct{}, 1),
	}
}

// StorageKey builds the key of a new object owned by (kind, ownerID).
func StorageKey(mapID string, kind models.OwnerKind, ownerID string) string {
	return path.Join(KeyPrefix, mapID, string(kind), ownerID, uuid.NewString())
}

// Register inserts a pending asset inside the caller's transaction. The
// caller must already have authorized the upload on the owner.
func (m *Manager) Register(ctx context.Context, tx dbx.DBTX, mapID string, kind models.OwnerKind, ownerID, contentType string, size int64) (*models.MediaAsset, error) {
	ref, ok := kind.Ref(ownerID)
	if !ok {
		return nil, fmt.Errorf("owner kind %q: %w", kind, common.ErrValidation)
	}
	if strings.TrimSpace(contentType) == "" {
		return nil, fmt.Errorf("content type required: %w", common.ErrValidation)
	}
	if size <= 0 || (m.cfg.MaxUploadSize > 0 && size > m.cfg.MaxUploadSize) {
		return nil, fmt.Errorf("size %d out of range: %w", size, common.ErrValidation)
	}
	if err := m.repos.Ownership(tx).Lock(ctx, ref, false); err != nil {
		return nil, err
	}

	a, err := m.repos.Media(tx).Create(ctx, &models.MediaAsset{
		StorageKey:  StorageKey(mapID, kind, ownerID),
		MapID:       mapID,
		OwnerKind:   kind,
		OwnerID:     ownerID,
		ContentType: contentType,
		Size:        size,
		Status:      models.MediaPending,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMediaTransition("new", string(models.MediaPending))
	return a, nil
}

// PresignUpload issues the single-use upload credential for a pending asset.
func (m *Manager) PresignUpload(ctx context.Context, a *models.MediaAsset) (*storage.PresignedRequest, error) {
	return m.store.PresignPut(ctx, a.StorageKey, a.ContentType, a.Size, m.cfg.UploadTTL)
}

// PresignDownload issues a download URL for a committed asset.
func (m *Manager) PresignDownload(ctx context.Context, a *models.MediaAsset) (*storage.PresignedRequest, error) {
	if a.Status != models.MediaCommitted {
		return nil, common.ErrNotFound
	}
	return m.store.PresignGet(ctx, a.StorageKey, m.cfg.DownloadTTL)
}

// CompleteUpload verifies the uploaded object and commits the asset.
// Completing a committed asset returns it unchanged. A missing or mismatching
// object removes the pending asset and returns ErrMediaVerificationFailed.
// Store outages return ErrStorageUnavailable and leave the asset pending.
func (m *Manager) CompleteUpload(ctx context.Context, actor, assetID string) (*models.MediaAsset, error) {
	var asset *models.MediaAsset
	err := m.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := m.authz.Authorize(ctx, tx, actor, authz.ActionUpload, models.MediaRef(assetID)); err != nil {
			return err
		}
		var err error
		asset, err = m.repos.Media(tx).Get(ctx, assetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	switch asset.Status {
	case models.MediaCommitted:
		return asset, nil
	case models.MediaOrphaned:
		return nil, common.ErrNotFound
	}

	info, err := m.store.Head(ctx, asset.StorageKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return nil, m.reject(ctx, asset, "object missing")
	case err != nil:
		m.log.Warn(ctx, "verify upload", "asset", asset.ID, "error", err)
		if errors.Is(err, common.ErrStorageFatal) {
			return nil, err
		}
		return nil, fmt.Errorf("verify upload: %w", common.ErrStorageUnavailable)
	case info.Size != asset.Size || !sameContentType(info.ContentType, asset.ContentType):
		return nil, m.reject(ctx, asset, fmt.Sprintf("stored %d bytes of %q", info.Size, info.ContentType))
	}

	var superseded int64
	err = m.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := m.authz.Authorize(ctx, tx, actor, authz.ActionUpload, models.MediaRef(assetID)); err != nil {
			return err
		}
		repo := m.repos.Media(tx)
		if err := repo.Commit(ctx, assetID); err != nil {
			return err
		}
		var err error
		// A map has one base image; the previous one goes to the sweeper.
		if asset.OwnerKind == models.OwnerMap {
			if superseded, err = repo.OrphanSuperseded(ctx, models.OwnerMap, asset.OwnerID, assetID); err != nil {
				return err
			}
		}
		asset, err = repo.Get(ctx, assetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMediaTransition(string(models.MediaPending), string(models.MediaCommitted))
	m.log.Info(ctx, "media committed", "asset", asset.ID, "key", asset.StorageKey)
	if superseded > 0 {
		metrics.RecordMediaTransition(string(models.MediaCommitted), string(models.MediaOrphaned))
		m.Notify()
	}
	return asset, nil
}

func (m *Manager) reject(ctx context.Context, asset *models.MediaAsset, reason string) error {
	m.log.Info(ctx, "upload verification failed", "asset", asset.ID, "reason", reason)
	err := m.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return m.repos.Media(tx).DeletePending(ctx, asset.ID)
	})
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err == nil {
		metrics.RecordMediaTransition(string(models.MediaPending), "deleted")
	}
	if err := m.store.Delete(ctx, asset.StorageKey); err != nil {
		m.log.Warn(ctx, "delete rejected upload", "key", asset.StorageKey, "error", err)
	}
	return common.ErrMediaVerificationFailed
}

// Notify wakes the sweeper without blocking.
func (m *Manager) Notify() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Notifications is the channel Notify signals on.
func (m *Manager) Notifications() <-chan struct{} {
	return m.notify
}

// sameContentType compares media types ignoring case and parameters order.
func sameContentType(stored, declared string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, " ", ""))
	}
	return norm(stored) == norm(declared)
}

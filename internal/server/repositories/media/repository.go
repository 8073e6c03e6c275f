// Package media stores MediaAsset rows, the relational half of the two-phase
// media lifecycle.
package media

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.MediaAsset) (*models.MediaAsset, error)
	// Get returns the asset in any status.
	Get(ctx context.Context, id string) (*models.MediaAsset, error)
	GetByKey(ctx context.Context, storageKey string) (*models.MediaAsset, error)
	// Commit flips pending to committed; ErrNotFound when the row is gone,
	// no longer pending, or its owner no longer exists.
	Commit(ctx context.Context, id string) error
	// DeletePending removes the row only while it is still pending.
	DeletePending(ctx context.Context, id string) error

	ListCommittedByOwner(ctx context.Context, kind models.OwnerKind, ownerID string) ([]*models.MediaAsset, error)
	ListCommittedByMap(ctx context.Context, mapID string) ([]*models.MediaAsset, error)

	// The Orphan* calls move pending and committed rows to orphaned and
	// report how many rows changed. They must run before the relational
	// delete of the owner, in the same transaction.
	OrphanByMap(ctx context.Context, mapID string) (int64, error)
	OrphanByCollection(ctx context.Context, collectionID string) (int64, error)
	OrphanByMarker(ctx context.Context, markerID string) (int64, error)
	OrphanByArticle(ctx context.Context, articleID string) (int64, error)
	Orphan(ctx context.Context, id string) error
	// OrphanSuperseded orphans the owner's committed assets other than keepID.
	OrphanSuperseded(ctx context.Context, kind models.OwnerKind, ownerID, keepID string) (int64, error)

	// ClaimOrphaned locks one orphaned row last touched before updatedBefore
	// and with fewer than maxAttempts failures (no limit when maxAttempts <= 0).
	// Rows locked by other transactions are skipped. ErrNotFound when none.
	ClaimOrphaned(ctx context.Context, maxAttempts int, updatedBefore time.Time) (*models.MediaAsset, error)
	// CountOrphaned counts the rows ClaimOrphaned could return.
	CountOrphaned(ctx context.Context, maxAttempts int, updatedBefore time.Time) (int, error)
	RecordFailure(ctx context.Context, id, lastError string) error
	Delete(ctx context.Context, id string) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.MediaAsset, error)
}

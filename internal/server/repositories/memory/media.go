package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type MediaRepository struct{ s *Store }

func (r *MediaRepository) Create(_ context.Context, a *models.MediaAsset) (*models.MediaAsset, error) {
	for _, x := range r.s.data.media {
		if x.StorageKey == a.StorageKey {
			return nil, fmt.Errorf("insert media asset: %w", common.ErrConflict)
		}
	}
	if !a.OwnerKind.Valid() || a.Size < 0 {
		return nil, fmt.Errorf("insert media asset: %w", common.ErrValidation)
	}
	now := r.s.now()
	a.ID, a.CreatedAt, a.UpdatedAt = r.s.newID(), now, now
	row := *a
	r.s.data.media[a.ID] = &row
	return a, nil
}

func (r *MediaRepository) Get(_ context.Context, id string) (*models.MediaAsset, error) {
	a, ok := r.s.data.media[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *MediaRepository) GetByKey(_ context.Context, storageKey string) (*models.MediaAsset, error) {
	for _, a := range r.s.data.media {
		if a.StorageKey == storageKey {
			out := *a
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MediaRepository) Commit(_ context.Context, id string) error {
	a, ok := r.s.data.media[id]
	if !ok || a.Status != models.MediaPending || !r.s.ownerExists(a.OwnerKind, a.OwnerID) {
		return common.ErrNotFound
	}
	a.Status, a.UpdatedAt = models.MediaCommitted, r.s.now()
	return nil
}

func (r *MediaRepository) DeletePending(_ context.Context, id string) error {
	a, ok := r.s.data.media[id]
	if !ok || a.Status != models.MediaPending {
		return common.ErrNotFound
	}
	delete(r.s.data.media, id)
	return nil
}

func (r *MediaRepository) ListCommittedByOwner(_ context.Context, kind models.OwnerKind, ownerID string) ([]*models.MediaAsset, error) {
	return r.filter(func(a *models.MediaAsset) bool {
		return a.OwnerKind == kind && a.OwnerID == ownerID && a.Status == models.MediaCommitted
	}), nil
}

func (r *MediaRepository) ListCommittedByMap(_ context.Context, mapID string) ([]*models.MediaAsset, error) {
	return r.filter(func(a *models.MediaAsset) bool {
		return a.MapID == mapID && a.Status == models.MediaCommitted
	}), nil
}

func (r *MediaRepository) OrphanByMap(_ context.Context, mapID string) (int64, error) {
	return r.orphanWhere(func(a *models.MediaAsset) bool { return a.MapID == mapID }), nil
}

func (r *MediaRepository) OrphanByCollection(_ context.Context, collectionID string) (int64, error) {
	d := r.s.data
	return r.orphanWhere(func(a *models.MediaAsset) bool {
		switch a.OwnerKind {
		case models.OwnerMarker:
			m := d.markers[a.OwnerID]
			return m != nil && m.CollectionID == collectionID
		case models.OwnerArticle:
			ar := d.articles[a.OwnerID]
			if ar == nil {
				return false
			}
			m := d.markers[ar.MarkerID]
			return m != nil && m.CollectionID == collectionID
		}
		return false
	}), nil
}

func (r *MediaRepository) OrphanByMarker(_ context.Context, markerID string) (int64, error) {
	d := r.s.data
	return r.orphanWhere(func(a *models.MediaAsset) bool {
		switch a.OwnerKind {
		case models.OwnerMarker:
			return a.OwnerID == markerID
		case models.OwnerArticle:
			ar := d.articles[a.OwnerID]
			return ar != nil && ar.MarkerID == markerID
		}
		return false
	}), nil
}

func (r *MediaRepository) OrphanByArticle(_ context.Context, articleID string) (int64, error) {
	return r.orphanWhere(func(a *models.MediaAsset) bool {
		return a.OwnerKind == models.OwnerArticle && a.OwnerID == articleID
	}), nil
}

func (r *MediaRepository) OrphanSuperseded(_ context.Context, kind models.OwnerKind, ownerID, keepID string) (int64, error) {
	return r.orphanWhere(func(a *models.MediaAsset) bool {
		return a.OwnerKind == kind && a.OwnerID == ownerID && a.ID != keepID && a.Status == models.MediaCommitted
	}), nil
}

func (r *MediaRepository) Orphan(_ context.Context, id string) error {
	if r.orphanWhere(func(a *models.MediaAsset) bool { return a.ID == id }) == 0 {
		return common.ErrNotFound
	}
	return nil
}

func claimable(maxAttempts int, updatedBefore time.Time) func(*models.MediaAsset) bool {
	return func(a *models.MediaAsset) bool {
		return a.Status == models.MediaOrphaned &&
			a.UpdatedAt.Before(updatedBefore) &&
			(maxAttempts <= 0 || a.Attempts < maxAttempts)
	}
}

func (r *MediaRepository) CountOrphaned(_ context.Context, maxAttempts int, updatedBefore time.Time) (int, error) {
	return len(r.filter(claimable(maxAttempts, updatedBefore))), nil
}

func (r *MediaRepository) ClaimOrphaned(_ context.Context, maxAttempts int, updatedBefore time.Time) (*models.MediaAsset, error) {
	candidates := r.filter(claimable(maxAttempts, updatedBefore))
	if len(candidates) == 0 {
		return nil, common.ErrNotFound
	}
	slices.SortFunc(candidates, func(a, b *models.MediaAsset) int {
		return cmp.Or(a.UpdatedAt.Compare(b.UpdatedAt), cmp.Compare(a.ID, b.ID))
	})
	return candidates[0], nil
}

func (r *MediaRepository) RecordFailure(_ context.Context, id, lastError string) error {
	a, ok := r.s.data.media[id]
	if !ok {
		return common.ErrNotFound
	}
	a.Attempts++
	a.LastError, a.UpdatedAt = lastError, r.s.now()
	return nil
}

func (r *MediaRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.s.data.media[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.data.media, id)
	return nil
}

func (r *MediaRepository) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]*models.MediaAsset, error) {
	result := r.filter(func(a *models.MediaAsset) bool {
		return a.Status == models.MediaPending && a.CreatedAt.Before(createdBefore)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// filter returns copies of the matching rows ordered by creation.
func (r *MediaRepository) filter(keep func(*models.MediaAsset) bool) []*models.MediaAsset {
	var result []*models.MediaAsset
	for _, a := range r.s.data.media {
		if keep(a) {
			out := *a
			result = append(result, &out)
		}
	}
	slices.SortFunc(result, func(a, b *models.MediaAsset) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return result
}

func (r *MediaRepository) orphanWhere(match func(*models.MediaAsset) bool) int64 {
	var n int64
	now := r.s.now()
	for _, a := range r.s.data.media {
		if a.Status != models.MediaOrphaned && match(a) {
			a.Status, a.UpdatedAt = models.MediaOrphaned, now
			n++
		}
	}
	return n
}

func (s *Store) ownerExists(kind models.OwnerKind, id string) bool {
	var ok bool
	switch kind {
	case models.OwnerMarker:
		_, ok = s.data.markers[id]
	case models.OwnerArticle:
		_, ok = s.data.articles[id]
	case models.OwnerMap:
		_, ok = s.data.maps[id]
	}
	return ok
}

package models

import "time"

// MediaStatus is the upload-lifecycle state of a MediaAsset.
//
// Transitions: pending -> committed | deleted,
// pending|committed -> orphaned -> deleted.
type MediaStatus string

const (
	MediaPending   MediaStatus = "pending"
	MediaCommitted MediaStatus = "committed"
	MediaOrphaned  MediaStatus = "orphaned"
)

// OwnerKind is the kind of entity a MediaAsset belongs to.
type OwnerKind string

const (
	OwnerMarker  OwnerKind = "marker"
	OwnerArticle OwnerKind = "article"
	// OwnerMap owns the base image of a custom_image map.
	OwnerMap OwnerKind = "map"
)

// Valid reports whether k can own media.
func (k OwnerKind) Valid() bool {
	return k == OwnerMarker || k == OwnerArticle || k == OwnerMap
}

// Ref returns the entity that owns the asset.
func (k OwnerKind) Ref(id string) (EntityRef, bool) {
	switch k {
	case OwnerMarker:
		return MarkerRef(id), true
	case OwnerArticle:
		return ArticleRef(id), true
	case OwnerMap:
		return MapRef(id), true
	}
	return EntityRef{}, false
}

// MediaAsset pairs one object-storage key with its owning entity.
type MediaAsset struct {
	ID          string
	StorageKey  string
	MapID       string
	OwnerKind   OwnerKind
	OwnerID     string
	ContentType string
	Size        int64
	Status      MediaStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

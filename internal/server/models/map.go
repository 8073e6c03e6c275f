package models

import "time"

// Visibility controls default (non-grant) access to a map.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is one of the known visibility modes.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return true
	}
	return false
}

// MapType selects the base layer markers are placed on.
type MapType string

const (
	MapTypeOSM MapType = "osm"
	// MapTypeCustomImage maps carry one committed base image; marker
	// coordinates are then relative to that image.
	MapTypeCustomImage MapType = "custom_image"
)

func (t MapType) Valid() bool {
	return t == MapTypeOSM || t == MapTypeCustomImage
}

// Map is the root of the ownership graph.
type Map struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Visibility  Visibility
	Type        MapType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MapAccess is the slice of a map row the authorization engine needs.
type MapAccess struct {
	MapID      string
	OwnerID    string
	Visibility Visibility
}

// MapTree is a map with all of its readable content, as returned to clients.
type MapTree struct {
	Map         *Map
	Image       *MediaAsset
	Collections []*CollectionTree
}

// CollectionTree is a collection with its markers.
type CollectionTree struct {
	Collection *Collection
	Markers    []*MarkerDetail
}

package models

import "time"

// Marker is a titled point on the map.
type Marker struct {
	ID           string
	CollectionID string
	Title        string
	Lat          float64
	Lon          float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidCoordinates reports whether lat/lon are within WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// MarkerDetail is a marker with its article and committed media.
type MarkerDetail struct {
	Marker  *Marker
	Article *ArticleDetail
	Media   []*MediaAsset
}

package models

import "time"

// Collection groups markers inside a map. Name and Position are unique
// within the map.
type Collection struct {
	ID        string
	MapID     string
	Name      string
	Position  int
	CreatedAt time.Time
}

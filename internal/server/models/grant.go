package models

import "time"

// Permission is the level of access a grant confers.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Valid reports whether p is a known permission level.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// AccessGrant authorizes a non-owner user on a map. There is at most one
// grant per (MapID, UserID).
type AccessGrant struct {
	MapID      string
	UserID     string
	UserName   string
	Permission Permission
	CreatedAt  time.Time
}

package models

import "time"

// User is an account that can own maps and receive grants.
type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	DisplayName  string
	CreatedAt    time.Time
}

// Package users provides persistence for user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

// Repository stores user accounts. Lookups return common.ErrNotFound when
// the user does not exist; Create returns common.ErrConflict for a taken
// username.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	for _, u := range r.s.data.users {
		if u.UserName == user.UserName {
			return nil, common.ErrConflict
		}
	}
	user.ID = r.s.newID()
	user.CreatedAt = r.s.now()
	row := *user
	row.PasswordHash = append([]byte(nil), user.PasswordHash...)
	r.s.data.users[user.ID] = &row
	return user, nil
}

func (r *UserRepository) GetByUserName(_ context.Context, userName string) (*models.User, error) {
	for _, u := range r.s.data.users {
		if u.UserName == userName {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *u
	return &c, nil
}

type RefreshTokenRepository struct{ s *Store }

func (r *RefreshTokenRepository) Create(_ context.Context, userID, token string, expiresAt time.Time) error {
	if _, ok := r.s.data.users[userID]; !ok {
		return common.ErrNotFound
	}
	if _, ok := r.s.data.refreshTokens[token]; ok {
		return common.ErrConflict
	}
	r.s.data.refreshTokens[token] = &models.RefreshToken{
		ID:        r.s.newID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.now(),
	}
	return nil
}

func (r *RefreshTokenRepository) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := r.s.data.refreshTokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *RefreshTokenRepository) Delete(_ context.Context, token string) error {
	delete(r.s.data.refreshTokens, token)
	return nil
}

// Package services contains the domain operations of the server. Every
// operation authorizes the actor and mutates state in one transaction.
// This file implements UserService: registration, login, refresh-token
// rotation and user lookup.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/auth"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	UserName    string `json:"username" validate:"required,min=3,max=64,alphanumunicode"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=128"`
}

// UserService provides authentication-related operations:
// - Register: create users
// - Login: verify credentials and mint tokens
// - Refresh: rotate refresh tokens and mint new access tokens
type UserService struct {
	tx                           dbx.Transactor
	repomanager                  repomanager.RepositoryManager
	tokens                       *auth.TokenService
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewUserService constructs a UserService. tokens holds the signing key.
func NewUserService(tx dbx.Transactor, m repomanager.RepositoryManager, tokens *auth.TokenService, refreshValidity time.Duration) *UserService {
	return &UserService{
		tx:                           tx,
		repomanager:                  m,
		tokens:                       tokens,
		refreshTokenValidityDuration: refreshValidity,
		now:                          time.Now,
	}
}

// Register creates a user with a bcrypt hash of password. A taken username
// yields ErrConflict.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = in.UserName
	}

	var user *models.User
	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).Create(ctx, &models.User{
			UserName:     in.UserName,
			PasswordHash: hash,
			DisplayName:  displayName,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login verifies the password and, on success, returns a new TokenPair.
// Unknown users and wrong passwords both yield ErrInvalidCredentials after
// one bcrypt comparison.
func (s *UserService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByUserName(ctx, strings.TrimSpace(userName))
		var hash []byte
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return fmt.Errorf("error searching user: %w", err)
		default:
			hash = user.PasswordHash
		}
		if err := auth.CheckPassword(hash, password); err != nil {
			return err
		}
		pair, err = s.generateTokenPair(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired,
// unknown ones ErrTokenInvalid.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var (
		pair    *TokenPair
		expired bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)
		token, err := repo.Find(ctx, refreshToken)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if err := repo.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		if token.Expired(s.now()) {
			expired = true
			return nil
		}
		pair, err = s.generateTokenPair(ctx, tx, token.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrRefreshTokenExpired
	}
	return pair, nil
}

// Lookup finds a user by username so clients can address grants. The
// password hash is cleared.
func (s *UserService) Lookup(ctx context.Context, userName string) (*models.User, error) {
	var u *models.User
	err := s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		u, err = s.repomanager.Users(tx).GetByUserName(ctx, strings.TrimSpace(userName))
		return err
	})
	if err != nil {
		return nil, err
	}
	u.PasswordHash = nil
	return u, nil
}

// Authenticate verifies an access token and returns its user id.
func (s *UserService) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *UserService) generateTokenPair(ctx context.Context, tx dbx.DBTX, userID string) (*TokenPair, error) {
	access, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	expires := s.now().Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, expires); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

type GrantInput struct {
	Permission models.Permission `json:"permission" validate:"required,oneof=view edit"`
}

// GrantService manages who may access a map. Every operation is owner-only.
type GrantService struct {
	base
}

func NewGrantService(d Deps) *GrantService {
	return &GrantService{base{d}}
}

func (s *GrantService) List(ctx context.Context, actor, mapID string) ([]*models.AccessGrant, error) {
	var result []*models.AccessGrant
	err := s.authorized(ctx, actor, authz.ActionManageGrants, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		var err error
		result, err = s.Repos.Grants(tx).List(ctx, mapID)
		return err
	})
	return result, err
}

// Grant gives userName the permission on the map, replacing an existing
// grant. Granting to the owner is rejected.
func (s *GrantService) Grant(ctx context.Context, actor, mapID, userName string, in GrantInput) (*models.AccessGrant, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var g *models.AccessGrant
	err := s.authorized(ctx, actor, authz.ActionManageGrants, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		grantee, err := s.Repos.Users(tx).GetByUserName(ctx, strings.TrimSpace(userName))
		if err != nil {
			return err
		}
		if grantee.ID == actor {
			return fmt.Errorf("owner cannot be granted access: %w", common.ErrValidation)
		}
		g, err = s.Repos.Grants(tx).Upsert(ctx, &models.AccessGrant{MapID: mapID, UserID: grantee.ID, Permission: in.Permission})
		if err != nil {
			return err
		}
		g.UserName = grantee.UserName
		return nil
	})
	return g, err
}

// Revoke removes userName's grant. Requests already holding the grant row
// finish first.
func (s *GrantService) Revoke(ctx context.Context, actor, mapID, userName string) error {
	return s.authorized(ctx, actor, authz.ActionManageGrants, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		grantee, err := s.Repos.Users(tx).GetByUserName(ctx, strings.TrimSpace(userName))
		if err != nil {
			return err
		}
		return s.Repos.Grants(tx).Delete(ctx, mapID, grantee.ID)
	})
}

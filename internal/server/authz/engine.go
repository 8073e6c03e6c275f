// Package authz decides whether an actor may perform an action on an entity
// of the ownership graph.
//
// The decision has two halves. Role resolution walks the ownership graph in
// SQL: the map owner is "owner", a grantee gets "editor" or "viewer", anyone
// else on a public map is "public". The role to action matrix is a static
// Casbin policy embedded in the binary.
package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/metrics"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

type Action string

const (
	ActionView         Action = "view"
	ActionList         Action = "list"
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionUpload       Action = "upload"
	ActionDeleteMap    Action = "delete-map"
	ActionManageGrants Action = "manage-grants"
)

// IsWrite reports whether a must hold its locks until commit.
func (a Action) IsWrite() bool {
	return a != ActionView && a != ActionList
}

type Role string

// Anonymous is the actor of unauthenticated requests.
const Anonymous = ""

const (
	RoleNone   Role = "none"
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RolePublic Role = "public"
)

// Decision is the outcome of a successful authorization.
type Decision struct {
	MapID string
	Role  Role
}

// Engine evaluates authorization requests inside the caller's transaction.
type Engine struct {
	enforcer *casbin.SyncedEnforcer
	repos    repomanager.RepositoryManager
}

func NewEngine(repos repomanager.RepositoryManager) (*Engine, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(embeddedPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return &Engine{enforcer: enforcer, repos: repos}, nil
}

// Authorize resolves the map that owns target and the actor's role on it,
// then checks the action against the policy. It returns ErrNotFound when the
// target does not exist or the actor cannot read the map, and ErrForbidden
// when the actor can read but not perform the action. Write actions lock the
// map and grant rows until tx ends.
func (e *Engine) Authorize(ctx context.Context, tx dbx.DBTX, actor string, action Action, target models.EntityRef) (*Decision, error) {
	own := e.repos.Ownership(tx)

	mapID, err := own.OwningMap(ctx, target)
	if err != nil {
		e.record(RoleNone, action, err)
		return nil, err
	}

	role, err := e.Role(ctx, tx, actor, mapID, action.IsWrite())
	if err != nil {
		e.record(RoleNone, action, err)
		return nil, err
	}

	err = e.check(role, action)
	e.record(role, action, err)
	if err != nil {
		return nil, err
	}
	return &Decision{MapID: mapID, Role: role}, nil
}

// Role returns the actor's role on mapID. Owner precedence: a grant held by
// the owner is never consulted. An empty actor is an anonymous reader.
func (e *Engine) Role(ctx context.Context, tx dbx.DBTX, actor, mapID string, lock bool) (Role, error) {
	own := e.repos.Ownership(tx)

	access, err := own.MapAccess(ctx, mapID, lock)
	if err != nil {
		return RoleNone, err
	}
	if actor == Anonymous {
		if access.Visibility == models.VisibilityPublic {
			return RolePublic, nil
		}
		return RoleNone, nil
	}
	if access.OwnerID == actor {
		return RoleOwner, nil
	}

	grant, err := own.Grant(ctx, mapID, actor, lock)
	switch {
	case err == nil:
		if grant.Permission == models.PermissionEdit {
			return RoleEditor, nil
		}
		return RoleViewer, nil
	case !errors.Is(err, common.ErrNotFound):
		return RoleNone, err
	}

	if access.Visibility == models.VisibilityPublic {
		return RolePublic, nil
	}
	return RoleNone, nil
}

// Allowed reports whether role permits action.
func (e *Engine) Allowed(role Role, action Action) (bool, error) {
	if role == RoleNone {
		return false, nil
	}
	ok, err := e.enforcer.Enforce(string(role), string(action))
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return ok, nil
}

func (e *Engine) check(role Role, action Action) error {
	ok, err := e.Allowed(role, action)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	canRead, err := e.Allowed(role, ActionView)
	if err != nil {
		return err
	}
	if !canRead {
		return common.ErrNotFound
	}
	return common.ErrForbidden
}

func (e *Engine) record(role Role, action Action, err error) {
	decision := "allow"
	switch {
	case errors.Is(err, common.ErrNotFound):
		decision = "not_found"
	case errors.Is(err, common.ErrForbidden):
		decision = "forbidden"
	case err != nil:
		decision = "error"
	}
	metrics.RecordAuthzDecision(string(role), string(action), decision)
}

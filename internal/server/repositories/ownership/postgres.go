package ownership

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var owningMapQueries = map[models.EntityKind]string{
	models.KindMap:        `SELECT id FROM maps WHERE id = $1`,
	models.KindCollection: `SELECT map_id FROM collections WHERE id = $1`,
	models.KindMarker: `
		SELECT c.map_id FROM markers m
		JOIN collections c ON c.id = m.collection_id
		WHERE m.id = $1`,
	models.KindArticle: `
		SELECT c.map_id FROM articles a
		JOIN markers m ON m.id = a.marker_id
		JOIN collections c ON c.id = m.collection_id
		WHERE a.id = $1`,
	models.KindMedia: `SELECT map_id FROM media_assets WHERE id = $1`,
}

func (r *PostgresRepository) OwningMap(ctx context.Context, ref models.EntityRef) (string, error) {
	query, ok := owningMapQueries[ref.Kind]
	if !ok {
		return "", fmt.Errorf("owning map of %s: %w", ref, common.ErrValidation)
	}
	var mapID string
	if err := r.db.QueryRowContext(ctx, query, ref.ID).Scan(&mapID); err != nil {
		return "", dbx.MapError("owning map of "+ref.String(), err)
	}
	return mapID, nil
}

func (r *PostgresRepository) MapAccess(ctx context.Context, mapID string, lock bool) (*models.MapAccess, error) {
	query := `SELECT id, owner_id, visibility FROM maps WHERE id = $1`
	if lock {
		query += ` FOR SHARE`
	}
	a := &models.MapAccess{}
	var vis string
	if err := r.db.QueryRowContext(ctx, query, mapID).Scan(&a.MapID, &a.OwnerID, &vis); err != nil {
		return nil, dbx.MapError("select map access", err)
	}
	a.Visibility = models.Visibility(vis)
	return a, nil
}

func (r *PostgresRepository) Grant(ctx context.Context, mapID, userID string, lock bool) (*models.AccessGrant, error) {
	query := `
		SELECT map_id, user_id, permission, created_at
		FROM access_grants
		WHERE map_id = $1 AND user_id = $2`
	if lock {
		query += ` FOR SHARE`
	}
	g := &models.AccessGrant{}
	var perm string
	if err := r.db.QueryRowContext(ctx, query, mapID, userID).Scan(&g.MapID, &g.UserID, &perm, &g.CreatedAt); err != nil {
		return nil, dbx.MapError("select grant", err)
	}
	g.Permission = models.Permission(perm)
	return g, nil
}

var sharedLockQueries = map[models.EntityKind]string{
	models.KindMap:        `SELECT id FROM maps WHERE id = $1 FOR SHARE`,
	models.KindCollection: `SELECT id FROM collections WHERE id = $1 FOR SHARE`,
	models.KindMarker: `
		SELECT m.id FROM markers m
		JOIN collections c ON c.id = m.collection_id
		WHERE m.id = $1
		FOR SHARE`,
	models.KindArticle: `
		SELECT a.id FROM articles a
		JOIN markers m ON m.id = a.marker_id
		JOIN collections c ON c.id = m.collection_id
		WHERE a.id = $1
		FOR SHARE`,
}

var exclusiveLockTables = map[models.EntityKind]string{
	models.KindMap:        "maps",
	models.KindCollection: "collections",
	models.KindMarker:     "markers",
	models.KindArticle:    "articles",
}

func (r *PostgresRepository) Lock(ctx context.Context, ref models.EntityRef, exclusive bool) error {
	var query string
	if exclusive {
		if table, ok := exclusiveLockTables[ref.Kind]; ok {
			query = `SELECT id FROM ` + table + ` WHERE id = $1 FOR UPDATE`
		}
	} else {
		query = sharedLockQueries[ref.Kind]
	}
	if query == "" {
		return fmt.Errorf("lock %s: %w", ref, common.ErrValidation)
	}
	var id string
	if err := r.db.QueryRowContext(ctx, query, ref.ID).Scan(&id); err != nil {
		return dbx.MapError("lock "+ref.String(), err)
	}
	return nil
}

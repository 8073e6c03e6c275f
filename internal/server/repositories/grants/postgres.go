package grants

import (
	"context"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, g *models.AccessGrant) (*models.AccessGrant, error) {
	query := `
		INSERT INTO access_grants (map_id, user_id, permission)
		VALUES ($1, $2, $3)
		ON CONFLICT (map_id, user_id) DO UPDATE SET permission = EXCLUDED.permission
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, g.MapID, g.UserID, string(g.Permission)).Scan(&g.CreatedAt)
	if err != nil {
		return nil, dbx.MapError("upsert grant", err)
	}
	return g, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, mapID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_grants WHERE map_id = $1 AND user_id = $2`, mapID, userID)
	if err != nil {
		return dbx.MapError("delete grant", err)
	}
	return dbx.ExpectOneRow("delete grant", res)
}

func (r *PostgresRepository) List(ctx context.Context, mapID string) ([]*models.AccessGrant, error) {
	query := `
		SELECT g.map_id, g.user_id, u.username, g.permission, g.created_at
		FROM access_grants g
		JOIN users u ON u.id = g.user_id
		WHERE g.map_id = $1
		ORDER BY u.username
	`
	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, dbx.MapError("select grants", err)
	}
	defer rows.Close()

	var result []*models.AccessGrant
	for rows.Next() {
		g := &models.AccessGrant{}
		var perm string
		if err := rows.Scan(&g.MapID, &g.UserID, &g.UserName, &perm, &g.CreatedAt); err != nil {
			return nil, dbx.MapError("scan grant", err)
		}
		g.Permission = models.Permission(perm)
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError("select grants", err)
	}
	return result, nil
}

package maps

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const mapColumns = `id, owner_id, title, description, visibility, map_type, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, m *models.Map) (*models.Map, error) {
	query := `
		INSERT INTO maps (owner_id, title, description, visibility, map_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if m.Type == "" {
		m.Type = models.MapTypeOSM
	}
	err := r.db.QueryRowContext(ctx, query, m.OwnerID, m.Title, m.Description, string(m.Visibility), string(m.Type)).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError("insert map", err)
	}
	return m, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Map, error) {
	query := `SELECT ` + mapColumns + ` FROM maps WHERE id = $1`
	m, err := scanMap(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.MapError("select map", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListAccessible(ctx context.Context, userID string, includePublic bool) ([]*models.Map, error) {
	query := `
		SELECT ` + mapColumns + ` FROM maps
		WHERE owner_id = $1
		   OR id IN (SELECT map_id FROM access_grants WHERE user_id = $1)
		   OR ($2 AND visibility = 'public')
		ORDER BY created_at, id
	`
	return r.list(ctx, query, userID, includePublic)
}

func (r *PostgresRepository) ListShared(ctx context.Context, ownerID string) ([]*models.Map, error) {
	query := `
		SELECT ` + mapColumns + ` FROM maps
		WHERE owner_id = $1
		  AND EXISTS (SELECT 1 FROM access_grants g WHERE g.map_id = maps.id)
		ORDER BY created_at, id
	`
	return r.list(ctx, query, ownerID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Map, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError("select maps", err)
	}
	defer rows.Close()

	var result []*models.Map
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, dbx.MapError("scan map", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError("select maps", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, m *models.Map) error {
	query := `
		UPDATE maps SET title = $2, description = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, m.ID, m.Title, m.Description)
	if err != nil {
		return dbx.MapError("update map", err)
	}
	return dbx.ExpectOneRow("update map", res)
}

func (r *PostgresRepository) SetVisibility(ctx context.Context, id string, v models.Visibility) error {
	query := `UPDATE maps SET visibility = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(v))
	if err != nil {
		return dbx.MapError("update map visibility", err)
	}
	return dbx.ExpectOneRow("update map visibility", res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM maps WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError("delete map", err)
	}
	return dbx.ExpectOneRow("delete map", res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMap(s scanner) (*models.Map, error) {
	m := &models.Map{}
	var vis, typ string
	if err := s.Scan(&m.ID, &m.OwnerID, &m.Title, &m.Description, &vis, &typ, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Visibility, m.Type = models.Visibility(vis), models.MapType(typ)
	return m, nil
}

var _ scanner = (*sql.Row)(nil)

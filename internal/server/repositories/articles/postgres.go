package articles

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

const articleColumns = `id, marker_id, body, created_at, updated_at`

func (r *PostgresRepository) Upsert(ctx context.Context, markerID, body string) (*models.Article, error) {
	query := `
		INSERT INTO articles (marker_id, body)
		VALUES ($1, $2)
		ON CONFLICT (marker_id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
		RETURNING ` + articleColumns
	return r.one(ctx, "upsert article", query, markerID, body)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Article, error) {
	return r.one(ctx, "select article", `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByMarker(ctx context.Context, markerID string) (*models.Article, error) {
	return r.one(ctx, "select article by marker", `SELECT `+articleColumns+` FROM articles WHERE marker_id = $1`, markerID)
}

func (r *PostgresRepository) ListByMap(ctx context.Context, mapID string) ([]*models.Article, error) {
	query := `
		SELECT a.id, a.marker_id, a.body, a.created_at, a.updated_at
		FROM articles a
		JOIN markers m ON m.id = a.marker_id
		JOIN collections c ON c.id = m.collection_id
		WHERE c.map_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, dbx.MapError("select articles", err)
	}
	defer rows.Close()

	var result []*models.Article
	for rows.Next() {
		a := &models.Article{}
		if err := rows.Scan(&a.ID, &a.MarkerID, &a.Body, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, dbx.MapError("scan article", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError("select articles", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError("delete article", err)
	}
	return dbx.ExpectOneRow("delete article", res)
}

func (r *PostgresRepository) one(ctx context.Context, op, query string, args ...any) (*models.Article, error) {
	a := &models.Article{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.MarkerID, &a.Body, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(op, err)
	}
	return a, nil
}

package markers

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

const markerColumns = `id, collection_id, title, lat, lon, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, m *models.Marker) (*models.Marker, error) {
	query := `
		INSERT INTO markers (collection_id, title, lat, lon)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, m.CollectionID, m.Title, m.Lat, m.Lon).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError("insert marker", err)
	}
	return m, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Marker, error) {
	query := `SELECT ` + markerColumns + ` FROM markers WHERE id = $1`
	m := &models.Marker{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(markerFields(m)...); err != nil {
		return nil, dbx.MapError("select marker", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListByCollection(ctx context.Context, collectionID string) ([]*models.Marker, error) {
	query := `
		SELECT ` + markerColumns + `
		FROM markers
		WHERE collection_id = $1
		ORDER BY created_at, id
	`
	return r.list(ctx, "select markers by collection", query, collectionID)
}

func (r *PostgresRepository) ListByMap(ctx context.Context, mapID string) ([]*models.Marker, error) {
	query := `
		SELECT m.id, m.collection_id, m.title, m.lat, m.lon, m.created_at, m.updated_at
		FROM markers m
		JOIN collections c ON c.id = m.collection_id
		WHERE c.map_id = $1
		ORDER BY c.position, m.created_at, m.id
	`
	return r.list(ctx, "select markers by map", query, mapID)
}

func (r *PostgresRepository) Update(ctx context.Context, m *models.Marker) (*models.Marker, error) {
	query := `
		UPDATE markers SET title = $2, lat = $3, lon = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + markerColumns
	out := &models.Marker{}
	if err := r.db.QueryRowContext(ctx, query, m.ID, m.Title, m.Lat, m.Lon).Scan(markerFields(out)...); err != nil {
		return nil, dbx.MapError("update marker", err)
	}
	return out, nil
}

func (r *PostgresRepository) MoveToCollection(ctx context.Context, id, collectionID string) (*models.Marker, error) {
	query := `
		UPDATE markers SET collection_id = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + markerColumns
	out := &models.Marker{}
	if err := r.db.QueryRowContext(ctx, query, id, collectionID).Scan(markerFields(out)...); err != nil {
		return nil, dbx.MapError("move marker", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM markers WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError("delete marker", err)
	}
	return dbx.ExpectOneRow("delete marker", res)
}

func (r *PostgresRepository) list(ctx context.Context, op, query string, arg any) ([]*models.Marker, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, dbx.MapError(op, err)
	}
	defer rows.Close()

	var result []*models.Marker
	for rows.Next() {
		m := &models.Marker{}
		if err := rows.Scan(markerFields(m)...); err != nil {
			return nil, dbx.MapError(op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(op, err)
	}
	return result, nil
}

func markerFields(m *models.Marker) []any {
	return []any{&m.ID, &m.CollectionID, &m.Title, &m.Lat, &m.Lon, &m.CreatedAt, &m.UpdatedAt}
}

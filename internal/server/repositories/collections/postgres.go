package collections

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	query := `
		INSERT INTO collections (map_id, name, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM collections WHERE map_id = $1
		RETURNING id, position, created_at
	`
	err := r.db.QueryRowContext(ctx, query, c.MapID, c.Name).Scan(&c.ID, &c.Position, &c.CreatedAt)
	if err != nil {
		return nil, dbx.MapError("insert collection", err)
	}
	return c, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Collection, error) {
	query := `SELECT id, map_id, name, position, created_at FROM collections WHERE id = $1`
	c := &models.Collection{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.MapID, &c.Name, &c.Position, &c.CreatedAt)
	if err != nil {
		return nil, dbx.MapError("select collection", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByMap(ctx context.Context, mapID string) ([]*models.Collection, error) {
	query := `
		SELECT id, map_id, name, position, created_at
		FROM collections
		WHERE map_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, dbx.MapError("select collections", err)
	}
	defer rows.Close()

	var result []*models.Collection
	for rows.Next() {
		c := &models.Collection{}
		if err := rows.Scan(&c.ID, &c.MapID, &c.Name, &c.Position, &c.CreatedAt); err != nil {
			return nil, dbx.MapError("scan collection", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError("select collections", err)
	}
	return result, nil
}

func (r *PostgresRepository) Rename(ctx context.Context, id, name string) (*models.Collection, error) {
	query := `
		UPDATE collections SET name = $2 WHERE id = $1
		RETURNING id, map_id, name, position, created_at
	`
	c := &models.Collection{}
	err := r.db.QueryRowContext(ctx, query, id, name).Scan(&c.ID, &c.MapID, &c.Name, &c.Position, &c.CreatedAt)
	if err != nil {
		return nil, dbx.MapError("rename collection", err)
	}
	return c, nil
}

// Move relies on collections_map_id_position_key being deferred: positions
// are briefly duplicated inside the transaction.
func (r *PostgresRepository) Move(ctx context.Context, id string, position int) (*models.Collection, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE map_id = $1`, c.MapID).Scan(&count); err != nil {
		return nil, dbx.MapError("count collections", err)
	}
	position = clamp(position, count)
	if position == c.Position {
		return c, nil
	}

	if position < c.Position {
		_, err = r.db.ExecContext(ctx, `
			UPDATE collections SET position = position + 1
			WHERE map_id = $1 AND position >= $2 AND position < $3
		`, c.MapID, position, c.Position)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE collections SET position = position - 1
			WHERE map_id = $1 AND position > $2 AND position <= $3
		`, c.MapID, c.Position, position)
	}
	if err != nil {
		return nil, dbx.MapError("shift collections", err)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE collections SET position = $2 WHERE id = $1`, id, position)
	if err != nil {
		return nil, dbx.MapError("move collection", err)
	}
	if err := dbx.ExpectOneRow("move collection", res); err != nil {
		return nil, err
	}
	c.Position = position
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	var mapID string
	var position int
	err := r.db.QueryRowContext(ctx, `DELETE FROM collections WHERE id = $1 RETURNING map_id, position`, id).
		Scan(&mapID, &position)
	if err != nil {
		return dbx.MapError("delete collection", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE collections SET position = position - 1
		WHERE map_id = $1 AND position > $2
	`, mapID, position)
	if err != nil {
		return dbx.MapError("compact collections", err)
	}
	return nil
}

func clamp(position, count int) int {
	if position < 0 {
		return 0
	}
	if position > count-1 {
		return count - 1
	}
	return position
}

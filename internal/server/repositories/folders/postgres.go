package folders

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const folderColumns = `id, owner_id, parent_id, name, created_at, updated_at`

// nullable turns the top-level marker "" into SQL NULL.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func (r *PostgresRepository) LockOwner(ctx context.Context, ownerID string) error {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, ownerID).Scan(&id)
	if err != nil {
		return dbx.MapError("lock folder owner", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	query := `
		INSERT INTO folders (owner_id, parent_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, f.OwnerID, nullable(f.ParentID), f.Name).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError("insert folder", err)
	}
	return f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Folder, error) {
	f, err := scanFolder(r.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.MapError("select folder", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE owner_id = $1 ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, dbx.MapError("select folders", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, dbx.MapError("scan folder", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError("select folders", err)
	}
	return result, nil
}

func (r *PostgresRepository) Rename(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE folders SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return dbx.MapError("rename folder", err)
	}
	return dbx.ExpectOneRow("rename folder", res)
}

func (r *PostgresRepository) IsDescendant(ctx context.Context, id, candidate string) (bool, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM folders WHERE id = $1
			UNION ALL
			SELECT f.id FROM folders f JOIN subtree s ON f.parent_id = s.id
		)
		SELECT EXISTS (SELECT 1 FROM subtree WHERE id = $2)
	`
	var found bool
	if err := r.db.QueryRowContext(ctx, query, id, candidate).Scan(&found); err != nil {
		return false, dbx.MapError("select folder subtree", err)
	}
	return found, nil
}

func (r *PostgresRepository) SetParent(ctx context.Context, id, parentID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE folders SET parent_id = $2, updated_at = now() WHERE id = $1`, id, nullable(parentID))
	if err != nil {
		return dbx.MapError("move folder", err)
	}
	return dbx.ExpectOneRow("move folder", res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	var parent sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT parent_id FROM folders WHERE id = $1`, id).Scan(&parent); err != nil {
		return dbx.MapError("select folder parent", err)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE folders SET parent_id = $2, updated_at = now() WHERE parent_id = $1`, id, nullable(parent.String))
	if err != nil {
		return dbx.MapError("reparent subfolders", err)
	}
	// Without a parent the placements go with the folder via ON DELETE CASCADE.
	if parent.Valid {
		if _, err := r.db.ExecContext(ctx, `UPDATE folder_maps SET folder_id = $2 WHERE folder_id = $1`, id, parent.String); err != nil {
			return dbx.MapError("reparent folder maps", err)
		}
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError("delete folder", err)
	}
	return dbx.ExpectOneRow("delete folder", res)
}

func (r *PostgresRepository) PlaceMap(ctx context.Context, userID, mapID, folderID string) error {
	if folderID == "" {
		_, err := r.db.ExecContext(ctx, `DELETE FROM folder_maps WHERE user_id = $1 AND map_id = $2`, userID, mapID)
		return dbx.MapError("unplace map", err)
	}
	query := `
		INSERT INTO folder_maps (user_id, map_id, folder_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, map_id) DO UPDATE SET folder_id = EXCLUDED.folder_id
	`
	_, err := r.db.ExecContext(ctx, query, userID, mapID, folderID)
	return dbx.MapError("place map", err)
}

func (r *PostgresRepository) Placements(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT map_id, folder_id FROM folder_maps WHERE user_id = $1`, userID)
	if err != nil {
		return nil, dbx.MapError("select folder maps", err)
	}
	defer rows.Close()

	result := map[string]string{}
	for rows.Next() {
		var mapID, folderID string
		if err := rows.Scan(&mapID, &folderID); err != nil {
			return nil, dbx.MapError("scan folder map", err)
		}
		result[mapID] = folderID
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError("select folder maps", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(s scanner) (*models.Folder, error) {
	f := &models.Folder{}
	var parent sql.NullString
	if err := s.Scan(&f.ID, &f.OwnerID, &parent, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.ParentID = parent.String
	return f, nil
}

package media

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const assetColumns = `id, storage_key, map_id, owner_kind, owner_id, content_type, size, status, attempts, last_error, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, a *models.MediaAsset) (*models.MediaAsset, error) {
	query := `
		INSERT INTO media_assets (storage_key, map_id, owner_kind, owner_id, content_type, size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.StorageKey, a.MapID, string(a.OwnerKind), a.OwnerID, a.ContentType, a.Size, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError("insert media asset", err)
	}
	return a, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.MediaAsset, error) {
	return r.one(ctx, "select media asset", `SELECT `+assetColumns+` FROM media_assets WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByKey(ctx context.Context, storageKey string) (*models.MediaAsset, error) {
	return r.one(ctx, "select media asset by key", `SELECT `+assetColumns+` FROM media_assets WHERE storage_key = $1`, storageKey)
}

func (r *PostgresRepository) Commit(ctx context.Context, id string) error {
	query := `
		UPDATE media_assets a SET status = 'committed', updated_at = now()
		WHERE a.id = $1 AND a.status = 'pending' AND (
			(a.owner_kind = 'marker' AND EXISTS (SELECT 1 FROM markers WHERE id = a.owner_id))
			OR (a.owner_kind = 'article' AND EXISTS (SELECT 1 FROM articles WHERE id = a.owner_id))
			OR (a.owner_kind = 'map' AND EXISTS (SELECT 1 FROM maps WHERE id = a.owner_id))
		)
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return dbx.MapError("commit media asset", err)
	}
	return dbx.ExpectOneRow("commit media asset", res)
}

func (r *PostgresRepository) DeletePending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media_assets WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return dbx.MapError("delete pending media asset", err)
	}
	return dbx.ExpectOneRow("delete pending media asset", res)
}

func (r *PostgresRepository) ListCommittedByOwner(ctx context.Context, kind models.OwnerKind, ownerID string) ([]*models.MediaAsset, error) {
	query := `
		SELECT ` + assetColumns + ` FROM media_assets
		WHERE owner_kind = $1 AND owner_id = $2 AND status = 'committed'
		ORDER BY created_at, id
	`
	return r.list(ctx, "select media by owner", query, string(kind), ownerID)
}

func (r *PostgresRepository) ListCommittedByMap(ctx context.Context, mapID string) ([]*models.MediaAsset, error) {
	query := `
		SELECT ` + assetColumns + ` FROM media_assets
		WHERE map_id = $1 AND status = 'committed'
		ORDER BY created_at, id
	`
	return r.list(ctx, "select media by map", query, mapID)
}

func (r *PostgresRepository) OrphanByMap(ctx context.Context, mapID string) (int64, error) {
	query := `
		UPDATE media_assets SET status = 'orphaned', updated_at = now()
		WHERE map_id = $1 AND status IN ('pending', 'committed')
	`
	return r.orphan(ctx, "orphan media by map", query, mapID)
}

func (r *PostgresRepository) OrphanByCollection(ctx context.Context, collectionID string) (int64, error) {
	query := `
		UPDATE media_assets SET status = 'orphaned', updated_at = now()
		WHERE status IN ('pending', 'committed') AND (
			(owner_kind = 'marker' AND owner_id IN (
				SELECT id FROM markers WHERE collection_id = $1))
			OR (owner_kind = 'article' AND owner_id IN (
				SELECT a.id FROM articles a JOIN markers m ON m.id = a.marker_id
				WHERE m.collection_id = $1))
		)
	`
	return r.orphan(ctx, "orphan media by collection", query, collectionID)
}

func (r *PostgresRepository) OrphanByMarker(ctx context.Context, markerID string) (int64, error) {
	query := `
		UPDATE media_assets SET status = 'orphaned', updated_at = now()
		WHERE status IN ('pending', 'committed') AND (
			(owner_kind = 'marker' AND owner_id = $1)
			OR (owner_kind = 'article' AND owner_id IN (
				SELECT id FROM articles WHERE marker_id = $1))
		)
	`
	return r.orphan(ctx, "orphan media by marker", query, markerID)
}

func (r *PostgresRepository) OrphanByArticle(ctx context.Context, articleID string) (int64, error) {
	query := `
		UPDATE media_assets SET status = 'orphaned', updated_at = now()
		WHERE owner_kind = 'article' AND owner_id = $1 AND status IN ('pending', 'committed')
	`
	return r.orphan(ctx, "orphan media by article", query, articleID)
}

func (r *PostgresRepository) OrphanSuperseded(ctx context.Context, kind models.OwnerKind, ownerID, keepID string) (int64, error) {
	query := `
		UPDATE media_assets SET status = 'orphaned', updated_at = now()
		WHERE owner_kind = $1 AND owner_id = $2 AND id <> $3 AND status = 'committed'
	`
	res, err := r.db.ExecContext(ctx, query, string(kind), ownerID, keepID)
	if err != nil {
		return 0, dbx.MapError("orphan superseded media", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.MapError("orphan superseded media", err)
	}
	return n, nil
}

func (r *PostgresRepository) Orphan(ctx context.Context, id string) error {
	query := `
		UPDATE media_assets SET status = 'orphaned', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'committed')
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return dbx.MapError("orphan media asset", err)
	}
	return dbx.ExpectOneRow("orphan media asset", res)
}

func (r *PostgresRepository) ClaimOrphaned(ctx context.Context, maxAttempts int, updatedBefore time.Time) (*models.MediaAsset, error) {
	query := `
		SELECT ` + assetColumns + ` FROM media_assets
		WHERE status = 'orphaned' AND updated_at < $1 AND ($2 <= 0 OR attempts < $2)
		ORDER BY updated_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	return r.one(ctx, "claim orphaned media", query, updatedBefore, maxAttempts)
}

func (r *PostgresRepository) CountOrphaned(ctx context.Context, maxAttempts int, updatedBefore time.Time) (int, error) {
	query := `
		SELECT count(*) FROM media_assets
		WHERE status = 'orphaned' AND updated_at < $1 AND ($2 <= 0 OR attempts < $2)
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, updatedBefore, maxAttempts).Scan(&n); err != nil {
		return 0, dbx.MapError("count orphaned media", err)
	}
	return n, nil
}

func (r *PostgresRepository) RecordFailure(ctx context.Context, id, lastError string) error {
	query := `
		UPDATE media_assets SET attempts = attempts + 1, last_error = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, lastError)
	if err != nil {
		return dbx.MapError("record media failure", err)
	}
	return dbx.ExpectOneRow("record media failure", res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media_assets WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError("delete media asset", err)
	}
	return dbx.ExpectOneRow("delete media asset", res)
}

func (r *PostgresRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.MediaAsset, error) {
	query := `
		SELECT ` + assetColumns + ` FROM media_assets
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, id
		LIMIT $2
	`
	return r.list(ctx, "select stale pending media", query, createdBefore, limit)
}

func (r *PostgresRepository) orphan(ctx context.Context, op, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, dbx.MapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.MapError(op, err)
	}
	return n, nil
}

func (r *PostgresRepository) one(ctx context.Context, op, query string, args ...any) (*models.MediaAsset, error) {
	a := &models.MediaAsset{}
	var kind, status string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(assetFields(a, &kind, &status)...); err != nil {
		return nil, dbx.MapError(op, err)
	}
	a.OwnerKind, a.Status = models.OwnerKind(kind), models.MediaStatus(status)
	return a, nil
}

func (r *PostgresRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.MediaAsset, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError(op, err)
	}
	defer rows.Close()

	var result []*models.MediaAsset
	for rows.Next() {
		a := &models.MediaAsset{}
		var kind, status string
		if err := rows.Scan(assetFields(a, &kind, &status)...); err != nil {
			return nil, dbx.MapError(op, err)
		}
		a.OwnerKind, a.Status = models.OwnerKind(kind), models.MediaStatus(status)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(op, err)
	}
	return result, nil
}

func assetFields(a *models.MediaAsset, kind, status *string) []any {
	return []any{
		&a.ID, &a.StorageKey, &a.MapID, kind, &a.OwnerID, &a.ContentType, &a.Size,
		status, &a.Attempts, &a.LastError, &a.CreatedAt, &a.UpdatedAt,
	}
}

package maps

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var mapCols = []string{"id", "owner_id", "title", "description", "visibility", "map_type", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+maps\s*\(owner_id,\s*title,\s*description,\s*visibility,\s*map_type\).*RETURNING\s+id`).
		WithArgs("u1", "Berlin Trip", "", "private", "osm").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("m1", now, now))

	m, err := repo.Create(context.Background(), &models.Map{OwnerID: "u1", Title: "Berlin Trip", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM\s+maps\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(mapCols).AddRow("m1", "u1", "Berlin Trip", "d", "public", "custom_image", now, now))

	m, err := repo.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, m.Visibility)
	assert.Equal(t, models.MapTypeCustomImage, m.Type)
	assert.Equal(t, "u1", m.OwnerID)

	mock.ExpectQuery(`FROM\s+maps`).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListAccessible(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+maps.*owner_id\s*=\s*\$1.*access_grants.*visibility\s*=\s*'public'`).
		WithArgs("u1", true).
		WillReturnRows(sqlmock.NewRows(mapCols).
			AddRow("m1", "u1", "a", "", "private", "osm", now, now).
			AddRow("m2", "u2", "b", "", "shared", "osm", now, now))

	got, err := repo.ListAccessible(context.Background(), "u1", true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[1].ID)
}

func TestListShared(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+maps\s+WHERE\s+owner_id\s*=\s*\$1\s+AND\s+EXISTS.*access_grants`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(mapCols).AddRow("m1", "u1", "a", "", "shared", "osm", now, now))

	got, err := repo.ListShared(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)

	mock.ExpectQuery(`FROM\s+maps`).WithArgs("u2").WillReturnError(sql.ErrConnDone)
	_, err = repo.ListShared(context.Background(), "u2")
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAndVisibility_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+maps\s+SET\s+title`).
		WithArgs("m1", "t", "d").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), &models.Map{ID: "m1", Title: "t", Description: "d"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectExec(`UPDATE\s+maps\s+SET\s+visibility`).
		WithArgs("m1", "public").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetVisibility(context.Background(), "m1", models.VisibilityPublic))
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+maps\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "m1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

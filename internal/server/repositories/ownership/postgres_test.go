package ownership

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

func TestOwningMap(t *testing.T) {
	tests := []struct {
		name    string
		ref     models.EntityRef
		pattern string
	}{
		{"map", models.MapRef("m1"), `SELECT\s+id\s+FROM\s+maps`},
		{"collection", models.CollectionRef("c1"), `SELECT\s+map_id\s+FROM\s+collections`},
		{"marker", models.MarkerRef("k1"), `(?s)FROM\s+markers\s+m\s+JOIN\s+collections`},
		{"article", models.ArticleRef("a1"), `(?s)FROM\s+articles\s+a\s+JOIN\s+markers\s+m.*JOIN\s+collections`},
		{"media", models.MediaRef("x1"), `SELECT\s+map_id\s+FROM\s+media_assets`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(tt.pattern).
				WithArgs(tt.ref.ID).
				WillReturnRows(sqlmock.NewRows([]string{"map_id"}).AddRow("m1"))

			got, err := repo.OwningMap(context.Background(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, "m1", got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOwningMap_Missing(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+markers`).WithArgs("gone").WillReturnError(sql.ErrNoRows)

	_, err := repo.OwningMap(context.Background(), models.MarkerRef("gone"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOwningMap_UnknownKind(t *testing.T) {
	repo, _ := newRepoWithMock(t)
	_, err := repo.OwningMap(context.Background(), models.EntityRef{Kind: "user", ID: "u1"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestMapAccess_Lock(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+maps\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+SHARE`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "visibility"}).AddRow("m1", "u1", "public"))

	a, err := repo.MapAccess(context.Background(), "m1", true)
	require.NoError(t, err)
	assert.Equal(t, "u1", a.OwnerID)
	assert.Equal(t, models.VisibilityPublic, a.Visibility)
}

func TestGrant(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+access_grants.*user_id\s*=\s*\$2$`).
		WithArgs("m1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"map_id", "user_id", "permission", "created_at"}).AddRow("m1", "u2", "view", now))

	g, err := repo.Grant(context.Background(), "m1", "u2", false)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionView, g.Permission)

	mock.ExpectQuery(`FOR\s+SHARE`).WithArgs("m1", "u3").WillReturnError(sql.ErrNoRows)
	_, err = repo.Grant(context.Background(), "m1", "u3", true)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLock(t *testing.T) {
	tests := []struct {
		name      string
		ref       models.EntityRef
		exclusive bool
		pattern   string
	}{
		{"shared marker holds its collection", models.MarkerRef("k1"), false,
			`(?s)SELECT\s+m\.id\s+FROM\s+markers\s+m\s+JOIN\s+collections\s+c.*FOR\s+SHARE$`},
		{"shared article holds marker and collection", models.ArticleRef("a1"), false,
			`(?s)FROM\s+articles\s+a\s+JOIN\s+markers\s+m.*JOIN\s+collections\s+c.*FOR\s+SHARE$`},
		{"shared map", models.MapRef("m1"), false, `FROM\s+maps\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+SHARE`},
		{"exclusive marker", models.MarkerRef("k1"), true, `SELECT\s+id\s+FROM\s+markers\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE`},
		{"exclusive map", models.MapRef("m1"), true, `SELECT\s+id\s+FROM\s+maps\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(tt.pattern).
				WithArgs(tt.ref.ID).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tt.ref.ID))

			require.NoError(t, repo.Lock(context.Background(), tt.ref, tt.exclusive))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLock_Gone(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs("k1").WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.Lock(context.Background(), models.MarkerRef("k1"), true), common.ErrNotFound)

	assert.ErrorIs(t, repo.Lock(context.Background(), models.MediaRef("x1"), false), common.ErrValidation)
}

// Package repomanager vends repository implementations bound to a DBTX so
// that services can run several repositories inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/articles"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/collections"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/folders"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/grants"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/maps"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/markers"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/media"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/ownership"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Maps(db dbx.DBTX) maps.Repository
	Grants(db dbx.DBTX) grants.Repository
	Collections(db dbx.DBTX) collections.Repository
	Markers(db dbx.DBTX) markers.Repository
	Articles(db dbx.DBTX) articles.Repository
	Media(db dbx.DBTX) media.Repository
	Ownership(db dbx.DBTX) ownership.Repository
	Folders(db dbx.DBTX) folders.Repository
}

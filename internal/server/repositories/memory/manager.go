package memory

import (
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
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/users"
)

var _ repomanager.RepositoryManager = (*Manager)(nil)

func (m *Manager) Users(dbx.DBTX) users.Repository { return &UserRepository{m.store} }

func (m *Manager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return &RefreshTokenRepository{m.store}
}

func (m *Manager) Maps(dbx.DBTX) maps.Repository { return &MapRepository{m.store} }

func (m *Manager) Grants(dbx.DBTX) grants.Repository { return &GrantRepository{m.store} }

func (m *Manager) Collections(dbx.DBTX) collections.Repository {
	return &CollectionRepository{m.store}
}

func (m *Manager) Markers(dbx.DBTX) markers.Repository { return &MarkerRepository{m.store} }

func (m *Manager) Articles(dbx.DBTX) articles.Repository { return &ArticleRepository{m.store} }

func (m *Manager) Media(dbx.DBTX) media.Repository { return &MediaRepository{m.store} }

func (m *Manager) Ownership(dbx.DBTX) ownership.Repository { return &OwnershipRepository{m.store} }

func (m *Manager) Folders(dbx.DBTX) folders.Repository { return &FolderRepository{m.store} }

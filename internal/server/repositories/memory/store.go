// Package memory is an in-process implementation of every repository,
// used for development mode and tests.
//
// All repositories share one Store. Store.InTx holds a global lock for the
// duration of the unit of work and restores a snapshot when it fails, which
// gives serializable transactions. Repositories must only be used inside
// InTx.
package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/google/uuid"
)

type grantKey struct {
	mapID  string
	userID string
}

type placementKey struct {
	userID string
	mapID  string
}

type placement struct {
	folderID string
}

type state struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	maps          map[string]*models.Map
	grants        map[grantKey]*models.AccessGrant
	collections   map[string]*models.Collection
	markers       map[string]*models.Marker
	articles      map[string]*models.Article
	media         map[string]*models.MediaAsset
	folders       map[string]*models.Folder
	placements    map[placementKey]*placement
}

func newState() *state {
	return &state{
		users:         map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		maps:          map[string]*models.Map{},
		grants:        map[grantKey]*models.AccessGrant{},
		collections:   map[string]*models.Collection{},
		markers:       map[string]*models.Marker{},
		articles:      map[string]*models.Article{},
		media:         map[string]*models.MediaAsset{},
		folders:       map[string]*models.Folder{},
		placements:    map[placementKey]*placement{},
	}
}

// clone deep-copies every row.
func (s *state) clone() *state {
	return &state{
		users:         cloneRows(s.users),
		refreshTokens: cloneRows(s.refreshTokens),
		maps:          cloneRows(s.maps),
		grants:        cloneRows(s.grants),
		collections:   cloneRows(s.collections),
		markers:       cloneRows(s.markers),
		articles:      cloneRows(s.articles),
		media:         cloneRows(s.media),
		folders:       cloneRows(s.folders),
		placements:    cloneRows(s.placements),
	}
}

func cloneRows[K comparable, V any](src map[K]*V) map[K]*V {
	dst := make(map[K]*V, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

// Store holds the data of all in-memory repositories.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{data: newState(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// InTx implements dbx.Transactor. fn receives a nil DBTX; the memory
// repositories ignore it.
func (s *Store) InTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, nil)
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// Manager implements repomanager.RepositoryManager over a Store.
type Manager struct {
	store *Store
}

func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

var _ dbx.Transactor = (*Store)(nil)

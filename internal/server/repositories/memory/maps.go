package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type MapRepository struct{ s *Store }

func (r *MapRepository) Create(_ context.Context, m *models.Map) (*models.Map, error) {
	if _, ok := r.s.data.users[m.OwnerID]; !ok {
		return nil, fmt.Errorf("insert map: %w", common.ErrNotFound)
	}
	if m.Type == "" {
		m.Type = models.MapTypeOSM
	}
	if !m.Visibility.Valid() || !m.Type.Valid() {
		return nil, fmt.Errorf("insert map: %w", common.ErrValidation)
	}
	now := r.s.now()
	m.ID, m.CreatedAt, m.UpdatedAt = r.s.newID(), now, now
	row := *m
	r.s.data.maps[m.ID] = &row
	return m, nil
}

func (r *MapRepository) Get(_ context.Context, id string) (*models.Map, error) {
	m, ok := r.s.data.maps[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (r *MapRepository) ListAccessible(_ context.Context, userID string, includePublic bool) ([]*models.Map, error) {
	var result []*models.Map
	for _, m := range r.s.data.maps {
		_, granted := r.s.data.grants[grantKey{m.ID, userID}]
		if m.OwnerID == userID || granted || (includePublic && m.Visibility == models.VisibilityPublic) {
			c := *m
			result = append(result, &c)
		}
	}
	sortMaps(result)
	return result, nil
}

func (r *MapRepository) ListShared(_ context.Context, ownerID string) ([]*models.Map, error) {
	granted := map[string]bool{}
	for k := range r.s.data.grants {
		granted[k.mapID] = true
	}
	var result []*models.Map
	for _, m := range r.s.data.maps {
		if m.OwnerID == ownerID && granted[m.ID] {
			c := *m
			result = append(result, &c)
		}
	}
	sortMaps(result)
	return result, nil
}

func sortMaps(maps []*models.Map) {
	slices.SortFunc(maps, func(a, b *models.Map) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

func (r *MapRepository) Update(_ context.Context, m *models.Map) error {
	row, ok := r.s.data.maps[m.ID]
	if !ok {
		return common.ErrNotFound
	}
	row.Title, row.Description, row.UpdatedAt = m.Title, m.Description, r.s.now()
	return nil
}

func (r *MapRepository) SetVisibility(_ context.Context, id string, v models.Visibility) error {
	row, ok := r.s.data.maps[id]
	if !ok {
		return common.ErrNotFound
	}
	if !v.Valid() {
		return fmt.Errorf("update map visibility: %w", common.ErrValidation)
	}
	row.Visibility, row.UpdatedAt = v, r.s.now()
	return nil
}

func (r *MapRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.s.data.maps[id]; !ok {
		return common.ErrNotFound
	}
	r.s.deleteMap(id)
	return nil
}

// deleteMap emulates ON DELETE CASCADE from maps down to articles.
func (s *Store) deleteMap(id string) {
	delete(s.data.maps, id)
	for k := range s.data.grants {
		if k.mapID == id {
			delete(s.data.grants, k)
		}
	}
	for k := range s.data.placements {
		if k.mapID == id {
			delete(s.data.placements, k)
		}
	}
	for cid, c := range s.data.collections {
		if c.MapID == id {
			s.deleteCollection(cid)
		}
	}
}

func (s *Store) deleteCollection(id string) {
	delete(s.data.collections, id)
	for mid, m := range s.data.markers {
		if m.CollectionID == id {
			s.deleteMarker(mid)
		}
	}
}

func (s *Store) deleteMarker(id string) {
	delete(s.data.markers, id)
	for aid, a := range s.data.articles {
		if a.MarkerID == id {
			delete(s.data.articles, aid)
		}
	}
}

type GrantRepository struct{ s *Store }

func (r *GrantRepository) Upsert(_ context.Context, g *models.AccessGrant) (*models.AccessGrant, error) {
	if _, ok := r.s.data.maps[g.MapID]; !ok {
		return nil, fmt.Errorf("upsert grant: %w", common.ErrNotFound)
	}
	if _, ok := r.s.data.users[g.UserID]; !ok {
		return nil, fmt.Errorf("upsert grant: %w", common.ErrNotFound)
	}
	if !g.Permission.Valid() {
		return nil, fmt.Errorf("upsert grant: %w", common.ErrValidation)
	}
	k := grantKey{g.MapID, g.UserID}
	if row, ok := r.s.data.grants[k]; ok {
		row.Permission = g.Permission
		g.CreatedAt = row.CreatedAt
		return g, nil
	}
	g.CreatedAt = r.s.now()
	row := *g
	row.UserName = ""
	r.s.data.grants[k] = &row
	return g, nil
}

func (r *GrantRepository) Delete(_ context.Context, mapID, userID string) error {
	k := grantKey{mapID, userID}
	if _, ok := r.s.data.grants[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.data.grants, k)
	return nil
}

func (r *GrantRepository) List(_ context.Context, mapID string) ([]*models.AccessGrant, error) {
	var result []*models.AccessGrant
	for k, g := range r.s.data.grants {
		if k.mapID != mapID {
			continue
		}
		c := *g
		if u, ok := r.s.data.users[k.userID]; ok {
			c.UserName = u.UserName
		}
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *models.AccessGrant) int { return cmp.Compare(a.UserName, b.UserName) })
	return result, nil
}

type OwnershipRepository struct{ s *Store }

func (r *OwnershipRepository) OwningMap(_ context.Context, ref models.EntityRef) (string, error) {
	d := r.s.data
	switch ref.Kind {
	case models.KindMap:
		if _, ok := d.maps[ref.ID]; ok {
			return ref.ID, nil
		}
	case models.KindCollection:
		if c, ok := d.collections[ref.ID]; ok {
			return c.MapID, nil
		}
	case models.KindMarker:
		if m, ok := d.markers[ref.ID]; ok {
			return d.collections[m.CollectionID].MapID, nil
		}
	case models.KindArticle:
		if a, ok := d.articles[ref.ID]; ok {
			return d.collections[d.markers[a.MarkerID].CollectionID].MapID, nil
		}
	case models.KindMedia:
		if a, ok := d.media[ref.ID]; ok {
			return a.MapID, nil
		}
	default:
		return "", fmt.Errorf("owning map of %s: %w", ref, common.ErrValidation)
	}
	return "", common.ErrNotFound
}

// MapAccess ignores lock: InTx already serializes all transactions.
func (r *OwnershipRepository) MapAccess(_ context.Context, mapID string, _ bool) (*models.MapAccess, error) {
	m, ok := r.s.data.maps[mapID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &models.MapAccess{MapID: m.ID, OwnerID: m.OwnerID, Visibility: m.Visibility}, nil
}

func (r *OwnershipRepository) Grant(_ context.Context, mapID, userID string, _ bool) (*models.AccessGrant, error) {
	g, ok := r.s.data.grants[grantKey{mapID, userID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *g
	return &c, nil
}

// Lock only checks that ref exists: InTx already serializes all transactions.
func (r *OwnershipRepository) Lock(ctx context.Context, ref models.EntityRef, _ bool) error {
	if ref.Kind == models.KindMedia {
		return fmt.Errorf("lock %s: %w", ref, common.ErrValidation)
	}
	_, err := r.OwningMap(ctx, ref)
	return err
}

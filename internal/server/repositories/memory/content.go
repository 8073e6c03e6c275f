package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type CollectionRepository struct{ s *Store }

func (r *CollectionRepository) siblings(mapID string) []*models.Collection {
	var result []*models.Collection
	for _, c := range r.s.data.collections {
		if c.MapID == mapID {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b *models.Collection) int { return cmp.Compare(a.Position, b.Position) })
	return result
}

func (r *CollectionRepository) nameTaken(mapID, name, exceptID string) bool {
	for _, c := range r.s.data.collections {
		if c.MapID == mapID && c.Name == name && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *CollectionRepository) Create(_ context.Context, c *models.Collection) (*models.Collection, error) {
	if _, ok := r.s.data.maps[c.MapID]; !ok {
		return nil, fmt.Errorf("insert collection: %w", common.ErrNotFound)
	}
	if r.nameTaken(c.MapID, c.Name, "") {
		return nil, fmt.Errorf("insert collection: %w", common.ErrConflict)
	}
	c.ID, c.Position, c.CreatedAt = r.s.newID(), len(r.siblings(c.MapID)), r.s.now()
	row := *c
	r.s.data.collections[c.ID] = &row
	return c, nil
}

func (r *CollectionRepository) Get(_ context.Context, id string) (*models.Collection, error) {
	c, ok := r.s.data.collections[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *CollectionRepository) ListByMap(_ context.Context, mapID string) ([]*models.Collection, error) {
	var result []*models.Collection
	for _, c := range r.siblings(mapID) {
		out := *c
		result = append(result, &out)
	}
	return result, nil
}

func (r *CollectionRepository) Rename(_ context.Context, id, name string) (*models.Collection, error) {
	c, ok := r.s.data.collections[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if r.nameTaken(c.MapID, name, id) {
		return nil, fmt.Errorf("rename collection: %w", common.ErrConflict)
	}
	c.Name = name
	out := *c
	return &out, nil
}

func (r *CollectionRepository) Move(_ context.Context, id string, position int) (*models.Collection, error) {
	c, ok := r.s.data.collections[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	sibs := r.siblings(c.MapID)
	sibs = slices.DeleteFunc(sibs, func(x *models.Collection) bool { return x.ID == id })
	position = max(0, min(position, len(sibs)))
	sibs = slices.Insert(sibs, position, c)
	for i, x := range sibs {
		x.Position = i
	}
	out := *c
	return &out, nil
}

func (r *CollectionRepository) Delete(_ context.Context, id string) error {
	c, ok := r.s.data.collections[id]
	if !ok {
		return common.ErrNotFound
	}
	r.s.deleteCollection(id)
	for i, x := range r.siblings(c.MapID) {
		x.Position = i
	}
	return nil
}

type MarkerRepository struct{ s *Store }

func (r *MarkerRepository) Create(_ context.Context, m *models.Marker) (*models.Marker, error) {
	if _, ok := r.s.data.collections[m.CollectionID]; !ok {
		return nil, fmt.Errorf("insert marker: %w", common.ErrNotFound)
	}
	if !models.ValidCoordinates(m.Lat, m.Lon) {
		return nil, fmt.Errorf("insert marker: %w", common.ErrValidation)
	}
	now := r.s.now()
	m.ID, m.CreatedAt, m.UpdatedAt = r.s.newID(), now, now
	row := *m
	r.s.data.markers[m.ID] = &row
	return m, nil
}

func (r *MarkerRepository) Get(_ context.Context, id string) (*models.Marker, error) {
	m, ok := r.s.data.markers[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (r *MarkerRepository) ListByCollection(_ context.Context, collectionID string) ([]*models.Marker, error) {
	var result []*models.Marker
	for _, m := range r.s.data.markers {
		if m.CollectionID == collectionID {
			out := *m
			result = append(result, &out)
		}
	}
	sortMarkers(result)
	return result, nil
}

func (r *MarkerRepository) ListByMap(_ context.Context, mapID string) ([]*models.Marker, error) {
	var result []*models.Marker
	for _, m := range r.s.data.markers {
		if c := r.s.data.collections[m.CollectionID]; c != nil && c.MapID == mapID {
			out := *m
			result = append(result, &out)
		}
	}
	cols := r.s.data.collections
	slices.SortStableFunc(result, func(a, b *models.Marker) int {
		return cmp.Or(
			cmp.Compare(cols[a.CollectionID].Position, cols[b.CollectionID].Position),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return result, nil
}

func (r *MarkerRepository) Update(_ context.Context, m *models.Marker) (*models.Marker, error) {
	row, ok := r.s.data.markers[m.ID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !models.ValidCoordinates(m.Lat, m.Lon) {
		return nil, fmt.Errorf("update marker: %w", common.ErrValidation)
	}
	row.Title, row.Lat, row.Lon, row.UpdatedAt = m.Title, m.Lat, m.Lon, r.s.now()
	out := *row
	return &out, nil
}

func (r *MarkerRepository) MoveToCollection(_ context.Context, id, collectionID string) (*models.Marker, error) {
	row, ok := r.s.data.markers[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if _, ok := r.s.data.collections[collectionID]; !ok {
		return nil, fmt.Errorf("move marker: %w", common.ErrNotFound)
	}
	row.CollectionID, row.UpdatedAt = collectionID, r.s.now()
	out := *row
	return &out, nil
}

func (r *MarkerRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.s.data.markers[id]; !ok {
		return common.ErrNotFound
	}
	r.s.deleteMarker(id)
	return nil
}

func sortMarkers(ms []*models.Marker) {
	slices.SortFunc(ms, func(a, b *models.Marker) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

type ArticleRepository struct{ s *Store }

func (r *ArticleRepository) Upsert(_ context.Context, markerID, body string) (*models.Article, error) {
	if _, ok := r.s.data.markers[markerID]; !ok {
		return nil, fmt.Errorf("upsert article: %w", common.ErrNotFound)
	}
	now := r.s.now()
	for _, a := range r.s.data.articles {
		if a.MarkerID == markerID {
			a.Body, a.UpdatedAt = body, now
			out := *a
			return &out, nil
		}
	}
	a := &models.Article{ID: r.s.newID(), MarkerID: markerID, Body: body, CreatedAt: now, UpdatedAt: now}
	r.s.data.articles[a.ID] = a
	out := *a
	return &out, nil
}

func (r *ArticleRepository) Get(_ context.Context, id string) (*models.Article, error) {
	a, ok := r.s.data.articles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *ArticleRepository) GetByMarker(_ context.Context, markerID string) (*models.Article, error) {
	for _, a := range r.s.data.articles {
		if a.MarkerID == markerID {
			out := *a
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *ArticleRepository) ListByMap(_ context.Context, mapID string) ([]*models.Article, error) {
	var result []*models.Article
	for _, a := range r.s.data.articles {
		m := r.s.data.markers[a.MarkerID]
		if m == nil {
			continue
		}
		if c := r.s.data.collections[m.CollectionID]; c != nil && c.MapID == mapID {
			out := *a
			result = append(result, &out)
		}
	}
	slices.SortFunc(result, func(a, b *models.Article) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

func (r *ArticleRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.s.data.articles[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.data.articles, id)
	return nil
}

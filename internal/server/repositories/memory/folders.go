package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
)

type FolderRepository struct{ s *Store }

// LockOwner only checks that the user exists.
func (r *FolderRepository) LockOwner(_ context.Context, ownerID string) error {
	if _, ok := r.s.data.users[ownerID]; !ok {
		return common.ErrNotFound
	}
	return nil
}

func (r *FolderRepository) Create(_ context.Context, f *models.Folder) (*models.Folder, error) {
	if _, ok := r.s.data.users[f.OwnerID]; !ok {
		return nil, fmt.Errorf("insert folder: %w", common.ErrNotFound)
	}
	if f.ParentID != "" {
		if _, ok := r.s.data.folders[f.ParentID]; !ok {
			return nil, fmt.Errorf("insert folder: %w", common.ErrNotFound)
		}
	}
	now := r.s.now()
	f.ID, f.CreatedAt, f.UpdatedAt = r.s.newID(), now, now
	row := *f
	r.s.data.folders[f.ID] = &row
	return f, nil
}

func (r *FolderRepository) Get(_ context.Context, id string) (*models.Folder, error) {
	f, ok := r.s.data.folders[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (r *FolderRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.Folder, error) {
	var result []*models.Folder
	for _, f := range r.s.data.folders {
		if f.OwnerID == ownerID {
			c := *f
			result = append(result, &c)
		}
	}
	slices.SortFunc(result, func(a, b *models.Folder) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

func (r *FolderRepository) Rename(_ context.Context, id, name string) error {
	f, ok := r.s.data.folders[id]
	if !ok {
		return common.ErrNotFound
	}
	f.Name, f.UpdatedAt = name, r.s.now()
	return nil
}

func (r *FolderRepository) IsDescendant(_ context.Context, id, candidate string) (bool, error) {
	for cur := candidate; cur != ""; {
		if cur == id {
			return true, nil
		}
		f, ok := r.s.data.folders[cur]
		if !ok {
			return false, nil
		}
		cur = f.ParentID
	}
	return false, nil
}

func (r *FolderRepository) SetParent(_ context.Context, id, parentID string) error {
	f, ok := r.s.data.folders[id]
	if !ok {
		return common.ErrNotFound
	}
	if parentID != "" {
		if _, ok := r.s.data.folders[parentID]; !ok {
			return fmt.Errorf("move folder: %w", common.ErrNotFound)
		}
	}
	f.ParentID, f.UpdatedAt = parentID, r.s.now()
	return nil
}

func (r *FolderRepository) Delete(_ context.Context, id string) error {
	f, ok := r.s.data.folders[id]
	if !ok {
		return common.ErrNotFound
	}
	now := r.s.now()
	for _, child := range r.s.data.folders {
		if child.ParentID == id {
			child.ParentID, child.UpdatedAt = f.ParentID, now
		}
	}
	for k, p := range r.s.data.placements {
		if p.folderID != id {
			continue
		}
		if f.ParentID == "" {
			delete(r.s.data.placements, k)
		} else {
			p.folderID = f.ParentID
		}
	}
	delete(r.s.data.folders, id)
	return nil
}

func (r *FolderRepository) PlaceMap(_ context.Context, userID, mapID, folderID string) error {
	k := placementKey{userID, mapID}
	if folderID == "" {
		delete(r.s.data.placements, k)
		return nil
	}
	if _, ok := r.s.data.maps[mapID]; !ok {
		return fmt.Errorf("place map: %w", common.ErrNotFound)
	}
	if _, ok := r.s.data.folders[folderID]; !ok {
		return fmt.Errorf("place map: %w", common.ErrNotFound)
	}
	r.s.data.placements[k] = &placement{folderID: folderID}
	return nil
}

func (r *FolderRepository) Placements(_ context.Context, userID string) (map[string]string, error) {
	result := map[string]string{}
	for k, p := range r.s.data.placements {
		if k.userID == userID {
			result[k.mapID] = p.folderID
		}
	}
	return result, nil
}

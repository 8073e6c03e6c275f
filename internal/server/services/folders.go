package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/validation"
)

type FolderInput struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	ParentID string `json:"parent_id" validate:"max=64"`
}

// FolderService manages each user's private library of folders. Folders of
// other users do not exist for the caller.
type FolderService struct {
	base
}

func NewFolderService(d Deps) *FolderService {
	return &FolderService{base{d}}
}

func (s *FolderService) owned(ctx context.Context, tx dbx.DBTX, actor, id string) (*models.Folder, error) {
	f, err := s.Repos.Folders(tx).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.OwnerID != actor {
		return nil, common.ErrNotFound
	}
	return f, nil
}

func (s *FolderService) List(ctx context.Context, actor string) ([]*models.Folder, error) {
	var result []*models.Folder
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = s.Repos.Folders(tx).ListByOwner(ctx, actor)
		return err
	})
	return result, err
}

// Tree returns the actor's top-level folders with everything below them.
func (s *FolderService) Tree(ctx context.Context, actor string) ([]*models.FolderTree, error) {
	var roots []*models.FolderTree
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Folders(tx)
		folders, err := repo.ListByOwner(ctx, actor)
		if err != nil {
			return err
		}
		placements, err := repo.Placements(ctx, actor)
		if err != nil {
			return err
		}
		roots = buildFolderTree(folders, placements)
		return nil
	})
	return roots, err
}

func buildFolderTree(folders []*models.Folder, placements map[string]string) []*models.FolderTree {
	nodes := make(map[string]*models.FolderTree, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &models.FolderTree{Folder: f, Children: []*models.FolderTree{}, MapIDs: []string{}}
	}
	for mapID, folderID := range placements {
		if n, ok := nodes[folderID]; ok {
			n.MapIDs = append(n.MapIDs, mapID)
		}
	}
	roots := []*models.FolderTree{}
	for _, f := range folders {
		n := nodes[f.ID]
		slices.Sort(n.MapIDs)
		if parent, ok := nodes[f.ParentID]; ok {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots
}

func (s *FolderService) Get(ctx context.Context, actor, id string) (*models.Folder, error) {
	var f *models.Folder
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		f, err = s.owned(ctx, tx, actor, id)
		return err
	})
	return f, err
}

// Content lists one level of the library. An empty id is the top level,
// which also holds every owned or granted map not placed in a folder. Maps
// the actor can no longer read are left out.
func (s *FolderService) Content(ctx context.Context, actor, id string) (*models.FolderContent, error) {
	out := &models.FolderContent{Folders: []*models.Folder{}, Maps: []*models.Map{}}
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Folders(tx)
		if id != "" {
			f, err := s.owned(ctx, tx, actor, id)
			if err != nil {
				return err
			}
			out.Folder = f
		}
		folders, err := repo.ListByOwner(ctx, actor)
		if err != nil {
			return err
		}
		for _, f := range folders {
			if f.ParentID == id {
				out.Folders = append(out.Folders, f)
			}
		}
		placements, err := repo.Placements(ctx, actor)
		if err != nil {
			return err
		}
		readable, err := s.Repos.Maps(tx).ListAccessible(ctx, actor, id != "")
		if err != nil {
			return err
		}
		for _, m := range readable {
			if placements[m.ID] == id {
				out.Maps = append(out.Maps, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FolderService) Create(ctx context.Context, actor string, in FolderInput) (*models.Folder, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var f *models.Folder
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if in.ParentID != "" {
			if _, err := s.owned(ctx, tx, actor, in.ParentID); err != nil {
				return err
			}
		}
		var err error
		f, err = s.Repos.Folders(tx).Create(ctx, &models.Folder{OwnerID: actor, ParentID: in.ParentID, Name: strings.TrimSpace(in.Name)})
		return err
	})
	return f, err
}

func (s *FolderService) Rename(ctx context.Context, actor, id string, in FolderInput) (*models.Folder, error) {
	in.ParentID = ""
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	var f *models.Folder
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.owned(ctx, tx, actor, id); err != nil {
			return err
		}
		repo := s.Repos.Folders(tx)
		if err := repo.Rename(ctx, id, strings.TrimSpace(in.Name)); err != nil {
			return err
		}
		var err error
		f, err = repo.Get(ctx, id)
		return err
	})
	return f, err
}

// Move puts the folder under parentID, or at the top level when parentID is
// empty. Moving a folder into itself or below itself is ErrValidation.
func (s *FolderService) Move(ctx context.Context, actor, id, parentID string) (*models.Folder, error) {
	var f *models.Folder
	err := s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Folders(tx)
		// Two concurrent moves could otherwise each pass the cycle check.
		if err := repo.LockOwner(ctx, actor); err != nil {
			return err
		}
		if _, err := s.owned(ctx, tx, actor, id); err != nil {
			return err
		}
		if parentID != "" {
			if _, err := s.owned(ctx, tx, actor, parentID); err != nil {
				return err
			}
			cycle, err := repo.IsDescendant(ctx, id, parentID)
			if err != nil {
				return err
			}
			if cycle {
				return fmt.Errorf("folder %s cannot move below itself: %w", id, common.ErrValidation)
			}
		}
		if err := repo.SetParent(ctx, id, parentID); err != nil {
			return err
		}
		var err error
		f, err = repo.Get(ctx, id)
		return err
	})
	return f, err
}

// Delete removes the folder. Its subfolders and maps move up to its parent;
// maps of a top-level folder return to the top level.
func (s *FolderService) Delete(ctx context.Context, actor, id string) error {
	return s.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Folders(tx)
		if err := repo.LockOwner(ctx, actor); err != nil {
			return err
		}
		if _, err := s.owned(ctx, tx, actor, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
}

// PlaceMap files a readable map in one of the actor's folders. An empty
// folderID returns the map to the top level.
func (s *FolderService) PlaceMap(ctx context.Context, actor, mapID, folderID string) error {
	return s.authorized(ctx, actor, authz.ActionView, models.MapRef(mapID), func(ctx context.Context, tx dbx.DBTX, _ *authz.Decision) error {
		if folderID != "" {
			if _, err := s.owned(ctx, tx, actor, folderID); err != nil {
				return err
			}
		}
		return s.Repos.Folders(tx).PlaceMap(ctx, actor, mapID, folderID)
	})
}

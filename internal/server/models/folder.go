package models

import "time"

// Folder is a node of a user's private map library. Folders never affect
// access: placing a map in a folder only organizes the owner's view.
type Folder struct {
	ID      string
	OwnerID string
	// ParentID is empty for top-level folders.
	ParentID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FolderTree is a folder with its subfolders and the maps placed in it.
type FolderTree struct {
	Folder   *Folder
	Children []*FolderTree
	MapIDs   []string
}

// FolderContent is one level of the library: the folder (nil at the top
// level), its direct subfolders and the maps placed directly in it.
type FolderContent struct {
	Folder  *Folder
	Folders []*Folder
	Maps    []*Map
}

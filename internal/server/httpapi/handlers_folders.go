package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type parentRequest struct {
	ParentID string `json:"parent_id"`
}

type placementRequest struct {
	FolderID string `json:"folder_id"`
}

func (h *handler) listFolders(w http.ResponseWriter, r *http.Request) {
	fs, err := h.Folders.List(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolders(fs))
}

func (h *handler) folderTree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.Folders.Tree(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderTrees(roots))
}

// folderContent serves both /folders/content (top level) and
// /folders/{id}/content.
func (h *handler) folderContent(w http.ResponseWriter, r *http.Request) {
	c, err := h.Folders.Content(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderContent(c))
}

func (h *handler) getFolder(w http.ResponseWriter, r *http.Request) {
	f, err := h.Folders.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolder(f))
}

func (h *handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var in services.FolderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	f, err := h.Folders.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFolder(f))
}

func (h *handler) renameFolder(w http.ResponseWriter, r *http.Request) {
	var in services.FolderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	f, err := h.Folders.Rename(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolder(f))
}

func (h *handler) moveFolder(w http.ResponseWriter, r *http.Request) {
	var in parentRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	f, err := h.Folders.Move(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in.ParentID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolder(f))
}

func (h *handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.Folders.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) placeMap(w http.ResponseWriter, r *http.Request) {
	var in placementRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.Folders.PlaceMap(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"), in.FolderID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

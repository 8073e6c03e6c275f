package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type visibilityRequest struct {
	Visibility models.Visibility `json:"visibility"`
}

type positionRequest struct {
	Position *int `json:"position"`
}

func (h *handler) listMaps(w http.ResponseWriter, r *http.Request) {
	includePublic := false
	if v := r.URL.Query().Get("public"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, h.log, common.ErrValidation)
			return
		}
		includePublic = b
	}
	maps, err := h.Maps.ListAccessible(r.Context(), UserID(r.Context()), includePublic)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaps(maps))
}

func (h *handler) listSharedMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := h.Maps.ListShared(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaps(maps))
}

func (h *handler) createMap(w http.ResponseWriter, r *http.Request) {
	var in services.MapInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.Maps.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMap(m))
}

func (h *handler) getMap(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Maps.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMapTree(tree))
}

func (h *handler) updateMap(w http.ResponseWriter, r *http.Request) {
	var in services.MapInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.Maps.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMap(m))
}

func (h *handler) deleteMap(w http.ResponseWriter, r *http.Request) {
	if err := h.Maps.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setVisibility(w http.ResponseWriter, r *http.Request) {
	var in visibilityRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.Maps.SetVisibility(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"), in.Visibility)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMap(m))
}

func (h *handler) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Grants.List(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrants(grants))
}

func (h *handler) grant(w http.ResponseWriter, r *http.Request) {
	var in services.GrantInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	g, err := h.Grants.Grant(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"), chi.URLParam(r, "username"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrant(g))
}

func (h *handler) revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.Grants.Revoke(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"), chi.URLParam(r, "username")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listCollections(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Collections.List(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollections(cs))
}

func (h *handler) createCollection(w http.ResponseWriter, r *http.Request) {
	var in services.CollectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	c, err := h.Collections.Create(r.Context(), UserID(r.Context()), chi.URLParam(r, "mapID"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCollection(c))
}

func (h *handler) renameCollection(w http.ResponseWriter, r *http.Request) {
	var in services.CollectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	c, err := h.Collections.Rename(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollection(c))
}

func (h *handler) moveCollection(w http.ResponseWriter, r *http.Request) {
	var in positionRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if in.Position == nil {
		writeError(w, r, h.log, common.ErrValidation)
		return
	}
	c, err := h.Collections.Move(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), *in.Position)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollection(c))
}

func (h *handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.Collections.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

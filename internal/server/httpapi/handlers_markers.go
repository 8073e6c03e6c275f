package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type moveMarkerRequest struct {
	CollectionID string `json:"collection_id"`
}

func (h *handler) listMarkers(w http.ResponseWriter, r *http.Request) {
	ms, err := h.Markers.List(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarkers(ms))
}

func (h *handler) createMarker(w http.ResponseWriter, r *http.Request) {
	var in services.MarkerInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.Markers.Create(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarker(m))
}

func (h *handler) getMarker(w http.ResponseWriter, r *http.Request) {
	d, err := h.Markers.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarkerDetail(d))
}

func (h *handler) updateMarker(w http.ResponseWriter, r *http.Request) {
	var in services.MarkerInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.Markers.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarker(m))
}

func (h *handler) moveMarker(w http.ResponseWriter, r *http.Request) {
	var in moveMarkerRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.Markers.Move(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in.CollectionID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarker(m))
}

func (h *handler) deleteMarker(w http.ResponseWriter, r *http.Request) {
	if err := h.Markers.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getArticle(w http.ResponseWriter, r *http.Request) {
	d, err := h.Articles.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleDetail(d))
}

func (h *handler) putArticle(w http.ResponseWriter, r *http.Request) {
	var in services.ArticleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	a, err := h.Articles.Put(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticle(a))
}

func (h *handler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := h.Articles.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func (h *handler) beginMarkerUpload(w http.ResponseWriter, r *http.Request) {
	h.beginUpload(w, r, models.OwnerMarker, chi.URLParam(r, "id"))
}

func (h *handler) beginArticleUpload(w http.ResponseWriter, r *http.Request) {
	h.beginUpload(w, r, models.OwnerArticle, chi.URLParam(r, "id"))
}

// beginMapImageUpload starts replacing the base image of a custom_image map.
func (h *handler) beginMapImageUpload(w http.ResponseWriter, r *http.Request) {
	h.beginUpload(w, r, models.OwnerMap, chi.URLParam(r, "mapID"))
}

func (h *handler) beginUpload(w http.ResponseWriter, r *http.Request, kind models.OwnerKind, ownerID string) {
	var in services.UploadInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ticket, err := h.Media.BeginUpload(r.Context(), UserID(r.Context()), kind, ownerID, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Asset: toMedia(ticket.Asset), Upload: toPresigned(ticket.Request)})
}

func (h *handler) completeMedia(w http.ResponseWriter, r *http.Request) {
	a, err := h.Media.Complete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedia(a))
}

func (h *handler) getMedia(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Media.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{Asset: toMedia(ticket.Asset), Download: toPresigned(ticket.Request)})
}

func (h *handler) deleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := h.Media.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

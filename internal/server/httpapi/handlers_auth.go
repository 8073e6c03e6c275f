package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	user, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.log.Info(r.Context(), "Registered", "username", user.UserName)
	writeJSON(w, http.StatusCreated, toUser(user))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	tokens, err := h.Users.Login(r.Context(), in.UserName, in.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokens(tokens))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	tokens, err := h.Users.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokens(tokens))
}

func (h *handler) lookupUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Lookup(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(user))
}

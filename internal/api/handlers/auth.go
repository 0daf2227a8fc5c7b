package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/rsvp/internal/auth"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
)

type AuthHandler struct {
	Users *users.Service
	Env   string
}

func NewAuthHandler(service *users.Service, env string) *AuthHandler {
	return &AuthHandler{Users: service, Env: env}
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type sessionResponse struct {
	userResponse
	Token string `json:"token"`
}

func newUserResponse(u users.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var params users.RegisterParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	session, err := h.Users.Register(r.Context(), params)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{userResponse: newUserResponse(session.User), Token: session.Token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var params users.LoginParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	session, err := h.Users.Login(r.Context(), params)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{userResponse: newUserResponse(session.User), Token: session.Token})
}

// Me returns the user behind the bearer token. A token whose user no longer
// exists is treated as unauthenticated.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), actorID(r))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			err = auth.ErrInvalidToken
		}
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(*user))
}

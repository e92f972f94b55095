package handlers

import (
	"context"
	"net/http"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/middleware"
	"github.com/pliu/roomlet/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login alike.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type AuthHandler struct {
	Credentials *auth.Credentials
	Sessions    *auth.Issuer
}

func tokenResponse(token string, user *models.User) TokenResponse {
	return TokenResponse{Token: token, UserID: user.ID, Email: user.Email, Name: user.Name}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.Credentials.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	// Registration and the first token succeed or fail together.
	token, err := h.Sessions.Issue(r.Context(), user)
	if err != nil {
		h.Credentials.Discard(context.WithoutCancel(r.Context()), user) //nolint:errcheck // logged by Discard
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse(token, user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.Credentials.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	token, err := h.Sessions.Issue(r.Context(), user)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(token, user))
}

// Logout revokes the token the request was made with. Other sessions of the
// same user stay valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Revoke(r.Context(), middleware.TokenFrom(r.Context())); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	if user == nil {
		WriteError(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

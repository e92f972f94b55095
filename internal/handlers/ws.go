package handlers

import (
	"net/http"

	"github.com/pliu/roomlet/internal/middleware"
	"github.com/pliu/roomlet/internal/ws"
)

type WSHandler struct {
	Auth middleware.Authenticator
	Hub  *ws.Hub
}

// Serve authenticates with ?token= (browsers cannot set headers on a
// websocket handshake) or the token header, then upgrades.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get(middleware.TokenHeader)
	}
	user, err := h.Auth.RequireUser(r.Context(), token)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	ws.ServeWs(h.Hub, w, r, user.ID)
}

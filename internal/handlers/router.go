package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/middleware"
	"github.com/pliu/roomlet/internal/rentals"
	"github.com/pliu/roomlet/internal/ws"
)

type Deps struct {
	Credentials *auth.Credentials
	Sessions    *auth.Issuer
	Guard       *auth.Guard
	Rooms       *rentals.Service
	Hub         *ws.Hub
	Logger      *zap.Logger

	UploadDir      string
	PublicPath     string
	MaxUploadBytes int64
	AllowedOrigins []string
}

// NewRouter wires every route. CORS wraps the router so preflight requests
// are answered before route matching.
func NewRouter(d Deps) http.Handler {
	authHandler := &AuthHandler{Credentials: d.Credentials, Sessions: d.Sessions}
	roomHandler := &RoomHandler{Rooms: d.Rooms, MaxUploadBytes: d.MaxUploadBytes}
	appHandler := &ApplicationHandler{Rooms: d.Rooms}
	wsHandler := &WSHandler{Auth: d.Guard, Hub: d.Hub}

	requireUser := middleware.RequireUser(d.Guard, WriteError)
	optionalUser := middleware.OptionalUser(d.Guard)
	private := func(h http.HandlerFunc) http.Handler { return requireUser(h) }
	public := func(h http.HandlerFunc) http.Handler { return optionalUser(h) }

	r := mux.NewRouter()
	r.Use(middleware.Logging(d.Logger))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, apperr.New(apperr.NotFound, "route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Code: "method_not_allowed", Detail: "method not allowed"})
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Auth
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.Handle("/auth/logout", private(authHandler.Logout)).Methods("POST")
	r.Handle("/auth/me", private(authHandler.Me)).Methods("GET")

	// Rooms
	r.HandleFunc("/rooms", roomHandler.ListRooms).Methods("GET")
	r.Handle("/rooms", private(roomHandler.CreateRoom)).Methods("POST")
	r.Handle("/my-rooms", private(roomHandler.MyRooms)).Methods("GET")
	r.Handle("/rooms/{id}", public(roomHandler.GetRoom)).Methods("GET")
	r.Handle("/rooms/{id}", private(roomHandler.UpdateRoom)).Methods("PUT")
	r.Handle("/rooms/{id}", private(roomHandler.DeleteRoom)).Methods("DELETE")
	r.Handle("/rooms/{id}/close", private(roomHandler.CloseRoom)).Methods("POST")
	r.Handle("/rooms/{id}/images", private(roomHandler.AddImage)).Methods("POST")
	r.Handle("/rooms/{id}/images/{image_id}", private(roomHandler.DeleteImage)).Methods("DELETE")

	// Applications
	r.HandleFunc("/rooms/{id}/applications", appHandler.CreateApplication).Methods("POST")
	r.Handle("/rooms/{id}/applications", private(appHandler.ListApplications)).Methods("GET")
	r.Handle("/rooms/{id}/applications/export", private(appHandler.ExportApplications)).Methods("GET")

	// WebSocket Endpoint
	if d.Hub != nil {
		r.HandleFunc("/ws", wsHandler.Serve).Methods("GET")
	}

	// Uploaded images
	if d.UploadDir != "" {
		prefix := strings.TrimRight(d.PublicPath, "/") + "/"
		r.PathPrefix(prefix).Handler(http.StripPrefix(prefix, noListing(http.FileServer(http.Dir(d.UploadDir))))).Methods("GET", "HEAD")
	}

	return middleware.CORS(d.AllowedOrigins)(r)
}

// noListing hides directory indexes and temp files of the blob directory.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") || strings.HasPrefix(r.URL.Path, ".") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		next.ServeHTTP(w, r)
	})
}

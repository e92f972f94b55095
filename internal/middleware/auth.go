package middleware

import (
	"context"
	"net/http"

	"github.com/pliu/roomlet/internal/models"
)

// TokenHeader carries the session token on every authenticated request.
const TokenHeader = "X-Auth-Token"

type contextKey string

const (
	userKey  contextKey = "user"
	tokenKey contextKey = "token"
)

// Authenticator resolves tokens to users.
type Authenticator interface {
	RequireUser(ctx context.Context, token string) (*models.User, error)
	OptionalUser(ctx context.Context, token string) *models.User
}

// ErrorWriter renders err as the response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func WithUser(ctx context.Context, user *models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

// UserFrom returns the user resolved for this request, or nil.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// TokenFrom returns the token the user was resolved from.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// RequireUser rejects requests without a valid token.
func RequireUser(a Authenticator, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			user, err := a.RequireUser(r.Context(), token)
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, token)))
		})
	}
}

// OptionalUser attaches the user when the token resolves and lets every
// request through.
func OptionalUser(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if user := a.OptionalUser(r.Context(), token); user != nil {
				r = r.WithContext(WithUser(r.Context(), user, token))
			}
			next.ServeHTTP(w, r)
		})
	}
}

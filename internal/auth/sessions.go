package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

// SessionStore persists session records keyed by token digest. Lookups that
// match nothing return store.ErrNotFound.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	RenewSession(ctx context.Context, tokenHash string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionConfig controls token lifetime. A zero TTL issues tokens that never expire.
type SessionConfig struct {
	TTL     time.Duration
	Rolling bool
	Secret  []byte
}

// Issuer mints, resolves and revokes session tokens. Sessions are per token:
// a user may hold any number of live tokens.
type Issuer struct {
	sessions SessionStore
	users    UserStore
	digester *Digester
	ttl      time.Duration
	rolling  bool
	logger   *zap.Logger

	now func() time.Time
}

func NewIssuer(sessions SessionStore, users UserStore, cfg SessionConfig, logger *zap.Logger) *Issuer {
	return &Issuer{
		sessions: sessions,
		users:    users,
		digester: NewDigester(cfg.Secret),
		ttl:      cfg.TTL,
		rolling:  cfg.Rolling && cfg.TTL > 0,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue returns a new token bound to user.
func (i *Issuer) Issue(ctx context.Context, user *models.User) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", apperr.Storage(err)
	}

	now := i.now()
	session := &models.Session{
		TokenHash: i.digester.Digest(token),
		UserID:    user.ID,
		CreatedAt: now,
	}
	if i.ttl > 0 {
		session.ExpiresAt = now.Add(i.ttl)
	}

	if err := i.sessions.CreateSession(ctx, session); err != nil {
		i.logger.Error("creating session failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", apperr.Storage(err)
	}
	return token, nil
}

// Revoke deletes the session for this exact token. Other tokens of the same
// user stay valid. Revoking an unknown token succeeds.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := i.sessions.DeleteSession(ctx, i.digester.Digest(token)); err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// Resolve returns the user a live token belongs to.
func (i *Issuer) Resolve(ctx context.Context, token string) (*models.User, error) {
	invalid := apperr.New(apperr.InvalidToken, "invalid token")
	if token == "" {
		return nil, invalid
	}

	digest := i.digester.Digest(token)
	session, err := i.sessions.GetSession(ctx, digest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperr.Storage(err)
	}

	now := i.now()
	if session.Expired(now) {
		if err := i.sessions.DeleteSession(ctx, digest); err != nil {
			i.logger.Warn("deleting expired session failed", zap.Error(err))
		}
		return nil, invalid
	}

	user, err := i.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperr.Storage(err)
	}

	// Rolling session: renew once past the halfway point of the lifetime.
	if i.rolling && session.ExpiresAt.Sub(now) < i.ttl/2 {
		if err := i.sessions.RenewSession(ctx, digest, now.Add(i.ttl)); err != nil {
			i.logger.Warn("renewing session failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	return user, nil
}

// PurgeExpired removes expired sessions and returns how many were removed.
func (i *Issuer) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := i.sessions.DeleteExpiredSessions(ctx, i.now())
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return n, nil
}

// Package session holds alternative session backends. The SQL store keeps
// sessions in the same database as everything else; RedisStore keeps them in
// Redis so several API instances can share them and expiry is handled by Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

const defaultPrefix = "roomlet:session:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// RedisStore implements auth.SessionStore on top of Redis string keys.
type RedisStore struct {
	c      *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(c *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{
		c:      c,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *RedisStore) key(tokenHash string) string {
	return r.prefix + tokenHash
}

// ttl converts an absolute expiry into a Redis TTL. Zero means no expiry.
// ok is false when the moment has already passed.
func (r *RedisStore) ttl(expiresAt time.Time) (ttl time.Duration, ok bool) {
	if expiresAt.IsZero() {
		return 0, true
	}
	ttl = expiresAt.Sub(r.now())
	return ttl, ttl > 0
}

func (r *RedisStore) put(ctx context.Context, session *models.Session) error {
	ttl, ok := r.ttl(session.ExpiresAt)
	if !ok {
		return r.c.Del(ctx, r.key(session.TokenHash)).Err()
	}
	// TokenHash is not serialized; the key carries it.
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.c.Set(ctx, r.key(session.TokenHash), data, ttl).Err()
}

// CreateSession stores a new session. SETNX makes the duplicate check and
// the write one command, like the primary key does for the SQL table.
func (r *RedisStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	ttl, ok := r.ttl(session.ExpiresAt)
	if !ok {
		// Already expired; there is nothing to keep.
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	created, err := r.c.SetNX(ctx, r.key(session.TokenHash), data, ttl).Result()
	if err != nil {
		return err
	}
	if !created {
		return store.ErrDuplicate
	}
	return nil
}

func (r *RedisStore) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	data, err := r.c.Get(ctx, r.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	session.TokenHash = tokenHash
	return &session, nil
}

func (r *RedisStore) RenewSession(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	session, err := r.GetSession(ctx, tokenHash)
	if err != nil {
		return err
	}
	session.ExpiresAt = expiresAt
	return r.put(ctx, session)
}

// DeleteSession removes the session. Deleting an unknown token is not an error.
func (r *RedisStore) DeleteSession(ctx context.Context, tokenHash string) error {
	return r.c.Del(ctx, r.key(tokenHash)).Err()
}

// DeleteExpiredSessions is a no-op: Redis drops expired keys itself.
func (r *RedisStore) DeleteExpiredSessions(ctx context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.c.Close()
}

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

// CreateUser inserts the user and fills in its ID and CreatedAt. A taken
// email is reported as store.ErrDuplicate by the unique constraint.
func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}
	query := s.rebind("INSERT INTO users (email, name, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id")
	err := s.db.QueryRowContext(ctx, query, user.Email, user.Name, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind("SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?")
	return s.getUser(ctx, query, email)
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := s.rebind("SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?")
	return s.getUser(ctx, query, id)
}

func (s *SQLStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("UPDATE users SET password_hash = ? WHERE id = ?"), hash, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// DeleteUser removes the user. Sessions, rooms and everything under them
// go with it through ON DELETE CASCADE.
func (s *SQLStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (s *SQLStore) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now()
	}
	query := s.rebind("INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, session.TokenHash, session.UserID, session.CreatedAt, nullTime(session.ExpiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	var (
		session   models.Session
		expiresAt sql.NullTime
	)
	query := s.rebind("SELECT token_hash, user_id, created_at, expires_at FROM sessions WHERE token_hash = ?")
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&session.TokenHash, &session.UserID, &session.CreatedAt, &expiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	if expiresAt.Valid {
		session.ExpiresAt = expiresAt.Time
	}
	return &session, nil
}

func (s *SQLStore) RenewSession(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	query := s.rebind("UPDATE sessions SET expires_at = ? WHERE token_hash = ?")
	result, err := s.db.ExecContext(ctx, query, nullTime(expiresAt), tokenHash)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// DeleteSession removes the session. Deleting an unknown token is not an error.
func (s *SQLStore) DeleteSession(ctx context.Context, tokenHash string) error {
	query := s.rebind("DELETE FROM sessions WHERE token_hash = ?")
	_, err := s.db.ExecContext(ctx, query, tokenHash)
	return err
}

func (s *SQLStore) DeleteExpiredSessions(ctx context.Context, at time.Time) (int64, error) {
	query := s.rebind("DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?")
	result, err := s.db.ExecContext(ctx, query, at.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

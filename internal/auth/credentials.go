package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

const (
	maxNameLength     = 255
	maxEmailLength    = 255
	minPasswordLength = 6
	maxPasswordLength = 128
)

// UserStore is the persistence the credential store needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// Credentials registers and authenticates users.
type Credentials struct {
	users  UserStore
	params PasswordParams
	logger *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentials(users UserStore, logger *zap.Logger) *Credentials {
	return &Credentials{users: users, params: DefaultPasswordParams, logger: logger}
}

// NormalizeEmail trims and lower-cases an address. Identity is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Uniqueness is left to the store's constraint;
// a violation becomes EmailTaken.
func (c *Credentials) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	switch {
	case name == "" || utf8.RuneCountInString(name) > maxNameLength:
		return nil, apperr.Newf(apperr.Invalid, "name must be 1-%d characters", maxNameLength)
	case email == "" || utf8.RuneCountInString(email) > maxEmailLength || !strings.Contains(email, "@"):
		return nil, apperr.New(apperr.Invalid, "a valid email address is required")
	case utf8.RuneCountInString(password) < minPasswordLength || utf8.RuneCountInString(password) > maxPasswordLength:
		return nil, apperr.Newf(apperr.Invalid, "password must be %d-%d characters", minPasswordLength, maxPasswordLength)
	}

	hash, err := c.params.Hash(password)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	user := &models.User{Email: email, Name: name, PasswordHash: hash}
	if err := c.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.New(apperr.EmailTaken, "email already registered")
		}
		c.logger.Error("creating user failed", zap.Error(err))
		return nil, apperr.Storage(err)
	}

	c.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password fail identically with InvalidCredentials.
func (c *Credentials) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := apperr.New(apperr.InvalidCredentials, "invalid email or password")

	user, err := c.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Storage(err)
		}
		// Spend the same hashing work as a real check.
		VerifyPassword(password, c.dummy()) //nolint:errcheck // result is discarded
		return nil, invalid
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		c.logger.Warn("stored password hash unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, invalid
	}
	if !ok {
		return nil, invalid
	}
	if NeedsRehash(user.PasswordHash, c.params) {
		c.rehash(ctx, user, password)
	}
	return user, nil
}

// rehash upgrades a stored hash to the current parameters. Failure leaves
// the old, still valid hash in place.
func (c *Credentials) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := c.params.Hash(password)
	if err == nil {
		err = c.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		c.logger.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	c.logger.Info("password rehashed", zap.Int64("user_id", user.ID))
}

// Discard removes an account whose registration could not be completed, so
// the email can be registered again.
func (c *Credentials) Discard(ctx context.Context, user *models.User) error {
	if err := c.users.DeleteUser(ctx, user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Error("discarding user failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return apperr.Storage(err)
	}
	c.logger.Info("user discarded", zap.Int64("user_id", user.ID))
	return nil
}

func (c *Credentials) dummy() string {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.params.Hash("roomlet-dummy-password") //nolint:errcheck // rand failure leaves an unverifiable hash
	})
	return c.dummyHash
}

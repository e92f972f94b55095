package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
)

type fakeResolver map[string]*models.User

func (f fakeResolver) Resolve(_ context.Context, token string) (*models.User, error) {
	if token == "broken" {
		return nil, apperr.Storage(errors.New("db down"))
	}
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, apperr.New(apperr.InvalidToken, "invalid token")
}

func TestGuard_RequireUser(t *testing.T) {
	alice := &models.User{ID: 1, Email: "a@x.com"}
	g := NewGuard(fakeResolver{"good": alice})
	ctx := context.Background()

	user, err := g.RequireUser(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, alice, user)

	_, err = g.RequireUser(ctx, "")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	_, err = g.RequireUser(ctx, "bad")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	_, err = g.RequireUser(ctx, "broken")
	assert.True(t, apperr.Is(err, apperr.StorageFailure))
}

func TestGuard_OptionalUser(t *testing.T) {
	alice := &models.User{ID: 1}
	g := NewGuard(fakeResolver{"good": alice})
	ctx := context.Background()

	assert.Equal(t, alice, g.OptionalUser(ctx, "good"))
	assert.Nil(t, g.OptionalUser(ctx, ""))
	assert.Nil(t, g.OptionalUser(ctx, "bad"))
	assert.Nil(t, g.OptionalUser(ctx, "broken"))
}

func TestGuard_RequireOwner(t *testing.T) {
	g := NewGuard(fakeResolver{})
	room := &models.Room{ID: 10, OwnerID: 1}

	assert.NoError(t, g.RequireOwner(room, &models.User{ID: 1}))
	assert.True(t, apperr.Is(g.RequireOwner(room, &models.User{ID: 2}), apperr.Forbidden))
	assert.True(t, apperr.Is(g.RequireOwner(room, nil), apperr.Unauthenticated))
	assert.True(t, apperr.Is(g.Authorize(room, &models.User{ID: 1}, Relation(99)), apperr.Forbidden))
}

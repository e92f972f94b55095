package auth

import (
	"context"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
)

// Relation is what a user must be to a resource for an operation to proceed.
type Relation int

const (
	// RelationOwner requires the resource's owner id to equal the user's id.
	RelationOwner Relation = iota
)

// Resource is anything with a single owning user.
type Resource interface {
	OwnerOf() int64
}

// TokenResolver maps a bearer token to its user.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

type Guard struct {
	tokens TokenResolver
}

func NewGuard(tokens TokenResolver) *Guard {
	return &Guard{tokens: tokens}
}

// RequireUser resolves token or fails with Unauthenticated. Storage faults
// are passed through unchanged.
func (g *Guard) RequireUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	user, err := g.tokens.Resolve(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.InvalidToken) {
			return nil, apperr.Wrap(apperr.Unauthenticated, "invalid or expired token", err)
		}
		return nil, err
	}
	return user, nil
}

// OptionalUser resolves token when it can and returns nil otherwise.
func (g *Guard) OptionalUser(ctx context.Context, token string) *models.User {
	if token == "" {
		return nil
	}
	user, err := g.tokens.Resolve(ctx, token)
	if err != nil {
		return nil
	}
	return user
}

// Authorize checks that user holds rel to res. The caller must already have
// established that res exists.
func (g *Guard) Authorize(res Resource, user *models.User, rel Relation) error {
	if user == nil {
		return apperr.New(apperr.Unauthenticated, "authentication required")
	}
	switch rel {
	case RelationOwner:
		if res.OwnerOf() != user.ID {
			return apperr.New(apperr.Forbidden, "you do not own this resource")
		}
		return nil
	default:
		return apperr.New(apperr.Forbidden, "unsupported relation")
	}
}

// RequireOwner is Authorize with RelationOwner.
func (g *Guard) RequireOwner(res Resource, user *models.User) error {
	return g.Authorize(res, user, RelationOwner)
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/pliu/roomlet/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
	// ErrClosed is returned when a room no longer accepts applications.
	ErrClosed = errors.New("closed")
)

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error

	// Session operations
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	RenewSession(ctx context.Context, tokenHash string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Room operations
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	CloseRoom(ctx context.Context, id int64) error
	DeleteRoom(ctx context.Context, id int64) ([]string, error)
	ListOpenRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	ListRoomsByOwner(ctx context.Context, ownerID int64) ([]models.Room, error)

	// Image operations
	CreateImage(ctx context.Context, image *models.RoomImage) error
	GetImage(ctx context.Context, roomID, imageID int64) (*models.RoomImage, error)
	DeleteImage(ctx context.Context, imageID int64) error

	// Application operations
	CreateApplication(ctx context.Context, app *models.Application) error
	ListApplications(ctx context.Context, roomID int64) ([]models.Application, error)

	Close() error
}

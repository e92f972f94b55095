// Package rentals implements ownership-scoped operations on rooms, their
// images and the applications submitted for them.
//
// Every mutating operation loads the room first and only then checks
// ownership, so a missing room is reported as NotFound even to callers who
// would not be allowed to touch it.
package rentals

import (
	"context"
	"errors"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

// Store is the persistence the service needs.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	CloseRoom(ctx context.Context, id int64) error
	DeleteRoom(ctx context.Context, id int64) ([]string, error)
	ListOpenRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	ListRoomsByOwner(ctx context.Context, ownerID int64) ([]models.Room, error)

	CreateImage(ctx context.Context, image *models.RoomImage) error
	GetImage(ctx context.Context, roomID, imageID int64) (*models.RoomImage, error)
	DeleteImage(ctx context.Context, imageID int64) error

	CreateApplication(ctx context.Context, app *models.Application) error
	ListApplications(ctx context.Context, roomID int64) ([]models.Application, error)
}

// FileStore holds image blobs by name.
type FileStore interface {
	Write(name string, data []byte) error
	Exists(name string) (bool, error)
	Delete(name string) error
}

// Authorizer decides whether a user may act on a resource.
type Authorizer interface {
	RequireOwner(res auth.Resource, user *models.User) error
}

// Notifier is told about every accepted application.
type Notifier interface {
	ApplicationCreated(ctx context.Context, room *models.Room, app *models.Application) error
}

type Options struct {
	// PublicPath is the URL prefix image blobs are served under.
	PublicPath string
	// MaxImageBytes caps a single upload.
	MaxImageBytes int64
	// NotifyTimeout bounds each notifier call. Zero means 10s.
	NotifyTimeout time.Duration
}

type Service struct {
	store         Store
	files         FileStore
	guard         Authorizer
	notifiers     []Notifier
	publicPath    string
	maxImageBytes int64
	notifyTimeout time.Duration
	logger        *zap.Logger

	newName func(ext string) string
}

func NewService(st Store, files FileStore, guard Authorizer, opts Options, logger *zap.Logger, notifiers ...Notifier) *Service {
	if opts.PublicPath == "" {
		opts.PublicPath = "/images"
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 10 << 20
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Service{
		store:         st,
		files:         files,
		guard:         guard,
		notifiers:     notifiers,
		publicPath:    opts.PublicPath,
		maxImageBytes: opts.MaxImageBytes,
		notifyTimeout: opts.NotifyTimeout,
		logger:        logger,
		newName:       randomName,
	}
}

// storeErr maps a store error for the named resource onto the failure kinds.
func storeErr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "%s not found", what)
	}
	return apperr.Storage(err)
}

func (s *Service) imageURL(filename string) string {
	return path.Join(s.publicPath, filename)
}

func (s *Service) decorate(room *models.Room) {
	if room.Images == nil {
		room.Images = []models.RoomImage{}
	}
	for i := range room.Images {
		room.Images[i].URL = s.imageURL(room.Images[i].Filename)
	}
}

// ownedRoom loads the room and checks that user owns it.
func (s *Service) ownedRoom(ctx context.Context, user *models.User, roomID int64) (*models.Room, error) {
	if user == nil {
		return nil, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err, "room")
	}
	if err := s.guard.RequireOwner(room, user); err != nil {
		return nil, err
	}
	s.decorate(room)
	return room, nil
}

// removeBlobs deletes blobs best-effort. Failures are logged and skipped.
func (s *Service) removeBlobs(names []string) {
	for _, name := range names {
		exists, err := s.files.Exists(name)
		if err != nil {
			s.logger.Warn("checking image blob failed", zap.String("filename", name), zap.Error(err))
			continue
		}
		if !exists {
			continue
		}
		if err := s.files.Delete(name); err != nil {
			s.logger.Warn("deleting image blob failed", zap.String("filename", name), zap.Error(err))
		}
	}
}

package rentals

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
)

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Upload is an image as received from a client. Filename is only consulted
// for its extension.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

func randomName(ext string) string {
	return uuid.NewString() + "." + ext
}

// extension picks the stored extension: the filename's when it has one,
// otherwise the one implied by the content type.
func extension(u Upload) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
	if ext == "" && u.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(u.ContentType); err == nil {
			ext = contentTypeExtensions[mt]
		}
	}
	if !allowedExtensions[ext] {
		return "", apperr.New(apperr.UnsupportedFormat, "image must be one of jpg, jpeg, png, webp, gif")
	}
	return ext, nil
}

// CanAddImage reports whether owner may attach images to the room, so a
// caller can refuse before receiving the upload. AddImage checks again.
func (s *Service) CanAddImage(ctx context.Context, owner *models.User, roomID int64) error {
	_, err := s.ownedRoom(ctx, owner, roomID)
	return err
}

// AddImage stores the upload under a generated name and attaches it to the room.
func (s *Service) AddImage(ctx context.Context, owner *models.User, roomID int64, upload Upload) (*models.RoomImage, error) {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return nil, err
	}
	ext, err := extension(upload)
	if err != nil {
		return nil, err
	}
	if upload.Body == nil {
		return nil, apperr.New(apperr.Invalid, "image body is required")
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxImageBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.Invalid, "reading image failed", err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, apperr.Newf(apperr.PayloadTooLarge, "image exceeds %d bytes", s.maxImageBytes)
	}

	name := s.newName(ext)
	if err := s.files.Write(name, data); err != nil {
		s.logger.Error("writing image blob failed", zap.String("filename", name), zap.Error(err))
		return nil, apperr.Storage(err)
	}

	image := &models.RoomImage{RoomID: room.ID, Filename: name}
	if err := s.store.CreateImage(ctx, image); err != nil {
		s.logger.Error("recording image failed", zap.Int64("room_id", room.ID), zap.Error(err))
		s.removeBlobs([]string{name})
		return nil, storeErr(err, "room")
	}
	image.URL = s.imageURL(name)
	return image, nil
}

// DeleteImage detaches the image from the room and removes its blob. The
// image must belong to roomID.
func (s *Service) DeleteImage(ctx context.Context, owner *models.User, roomID, imageID int64) error {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return err
	}
	image, err := s.store.GetImage(ctx, room.ID, imageID)
	if err != nil {
		return storeErr(err, "image")
	}
	if err := s.store.DeleteImage(ctx, image.ID); err != nil {
		return storeErr(err, "image")
	}
	s.removeBlobs([]string{image.Filename})
	return nil
}

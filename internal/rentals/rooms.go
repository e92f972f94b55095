package rentals

import (
	"context"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
)

// CreateRoom lists a new open room owned by owner.
func (s *Service) CreateRoom(ctx context.Context, owner *models.User, fields models.RoomFields) (*models.Room, error) {
	if owner == nil {
		return nil, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	fields, err := normalizeRoom(fields)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		Title:       fields.Title,
		Description: fields.Description,
		Location:    fields.Location,
		Price:       fields.Price,
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		OwnerEmail:  owner.Email,
		Images:      []models.RoomImage{},
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		s.logger.Error("creating room failed", zap.Int64("owner_id", owner.ID), zap.Error(err))
		return nil, apperr.Storage(err)
	}
	s.logger.Info("room created", zap.Int64("room_id", room.ID), zap.Int64("owner_id", owner.ID))
	return room, nil
}

// GetRoom returns a room to any caller while it is open. A closed room is
// only visible to its owner; everyone else gets NotFound.
func (s *Service) GetRoom(ctx context.Context, viewer *models.User, roomID int64) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err, "room")
	}
	if room.IsClosed && (viewer == nil || viewer.ID != room.OwnerID) {
		return nil, apperr.New(apperr.NotFound, "room not found")
	}
	s.decorate(room)
	return room, nil
}

// UpdateRoom changes the supplied fields only. An empty patch returns the
// room unchanged.
func (s *Service) UpdateRoom(ctx context.Context, owner *models.User, roomID int64, patch models.RoomPatch) (*models.Room, error) {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return room, nil
	}
	if err := applyPatch(room, patch); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		return nil, storeErr(err, "room")
	}
	return room, nil
}

// CloseRoom moves the room to the closed state. Closing a closed room
// succeeds and changes nothing.
func (s *Service) CloseRoom(ctx context.Context, owner *models.User, roomID int64) (*models.Room, error) {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed {
		return room, nil
	}
	if err := s.store.CloseRoom(ctx, room.ID); err != nil {
		return nil, storeErr(err, "room")
	}
	room.IsClosed = true
	s.logger.Info("room closed", zap.Int64("room_id", room.ID))
	return room, nil
}

// DeleteRoom removes the room with its images and applications. Rows go
// first in one transaction; blobs are removed afterwards and a blob that
// cannot be removed does not fail the call.
func (s *Service) DeleteRoom(ctx context.Context, owner *models.User, roomID int64) error {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return err
	}
	filenames, err := s.store.DeleteRoom(ctx, room.ID)
	if err != nil {
		s.logger.Error("deleting room failed", zap.Int64("room_id", room.ID), zap.Error(err))
		return storeErr(err, "room")
	}
	s.removeBlobs(filenames)
	s.logger.Info("room deleted", zap.Int64("room_id", room.ID), zap.Int("images", len(filenames)))
	return nil
}

// ListRooms returns open rooms, newest first, within inclusive price bounds.
func (s *Service) ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return []models.Room{}, nil
	}
	rooms, err := s.store.ListOpenRooms(ctx, filter)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	for i := range rooms {
		s.decorate(&rooms[i])
	}
	return rooms, nil
}

// ListMyRooms returns every room owner has listed, open or closed, newest first.
func (s *Service) ListMyRooms(ctx context.Context, owner *models.User) ([]models.Room, error) {
	if owner == nil {
		return nil, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	rooms, err := s.store.ListRoomsByOwner(ctx, owner.ID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	for i := range rooms {
		s.decorate(&rooms[i])
	}
	return rooms, nil
}

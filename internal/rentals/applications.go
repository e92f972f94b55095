package rentals

import (
	"bytes"
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/export"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

// CreateApplication records an application for an open room. Applicants
// are anonymous. The early read fails fast; the store repeats the open check
// atomically with the insert.
func (s *Service) CreateApplication(ctx context.Context, roomID int64, fields models.ApplicationFields) (*models.Application, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err, "room")
	}
	if room.IsClosed {
		return nil, apperr.New(apperr.Conflict, "room is closed to new applications")
	}
	fields, err = normalizeApplication(fields)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		RoomID:   room.ID,
		FullName: fields.FullName,
		Email:    fields.Email,
		Phone:    fields.Phone,
		Course:   fields.Course,
		Sex:      fields.Sex,
		Age:      fields.Age,
		Message:  fields.Message,
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		switch {
		case errors.Is(err, store.ErrClosed):
			return nil, apperr.New(apperr.Conflict, "room is closed to new applications")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.New(apperr.NotFound, "room not found")
		}
		s.logger.Error("saving application failed", zap.Int64("room_id", room.ID), zap.Error(err))
		return nil, apperr.Storage(err)
	}
	s.logger.Info("application received", zap.Int64("room_id", room.ID), zap.Int64("application_id", app.ID))

	s.notify(ctx, room, app)
	return app, nil
}

func (s *Service) notify(ctx context.Context, room *models.Room, app *models.Application) {
	for _, n := range s.notifiers {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		if err := n.ApplicationCreated(nctx, room, app); err != nil {
			s.logger.Warn("application notification failed",
				zap.Int64("room_id", room.ID),
				zap.Int64("application_id", app.ID),
				zap.Error(err))
		}
		cancel()
	}
}

// ListApplications returns the room's applications, oldest first.
func (s *Service) ListApplications(ctx context.Context, owner *models.User, roomID int64) ([]models.Application, error) {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return nil, err
	}
	apps, err := s.store.ListApplications(ctx, room.ID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return apps, nil
}

// ExportApplications renders the room's applications as an XLSX workbook.
func (s *Service) ExportApplications(ctx context.Context, owner *models.User, roomID int64) ([]byte, error) {
	room, err := s.ownedRoom(ctx, owner, roomID)
	if err != nil {
		return nil, err
	}
	apps, err := s.store.ListApplications(ctx, room.ID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	var buf bytes.Buffer
	if err := export.WriteApplications(&buf, room, apps); err != nil {
		s.logger.Error("exporting applications failed", zap.Int64("room_id", room.ID), zap.Error(err))
		return nil, apperr.Storage(err)
	}
	return buf.Bytes(), nil
}

package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/middleware"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/rentals"
)

// multipartOverhead is allowed on top of the image itself for form framing.
const multipartOverhead = 1 << 20

type RoomHandler struct {
	Rooms          *rentals.Service
	MaxUploadBytes int64
}

func priceParam(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Newf(apperr.Invalid, "%s must be a number", name)
	}
	return &v, nil
}

func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	var (
		filter models.RoomFilter
		err    error
	)
	if filter.MinPrice, err = priceParam(r, "min_price"); err != nil {
		WriteError(w, r, err)
		return
	}
	if filter.MaxPrice, err = priceParam(r, "max_price"); err != nil {
		WriteError(w, r, err)
		return
	}

	rooms, err := h.Rooms.ListRooms(r.Context(), filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	room, err := h.Rooms.GetRoom(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var fields models.RoomFields
	if err := decodeJSON(r, &fields); err != nil {
		WriteError(w, r, err)
		return
	}
	room, err := h.Rooms.CreateRoom(r.Context(), middleware.UserFrom(r.Context()), fields)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var patch models.RoomPatch
	if err := decodeJSON(r, &patch); err != nil {
		WriteError(w, r, err)
		return
	}
	room, err := h.Rooms.UpdateRoom(r.Context(), middleware.UserFrom(r.Context()), id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	room, err := h.Rooms.CloseRoom(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.Rooms.DeleteRoom(r.Context(), middleware.UserFrom(r.Context()), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) MyRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Rooms.ListMyRooms(r.Context(), middleware.UserFrom(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// AddImage accepts a multipart form with the image in field "file". The room
// and its owner are checked before any of the body is read.
func (h *RoomHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.Rooms.CanAddImage(r.Context(), middleware.UserFrom(r.Context()), id); err != nil {
		WriteError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, r, apperr.New(apperr.PayloadTooLarge, "image is too large"))
			return
		}
		WriteError(w, r, apperr.Wrap(apperr.Invalid, "multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	image, err := h.Rooms.AddImage(r.Context(), middleware.UserFrom(r.Context()), id, rentals.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, image)
}

func (h *RoomHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	imageID, err := pathID(r, "image_id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.Rooms.DeleteImage(r.Context(), middleware.UserFrom(r.Context()), roomID, imageID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pliu/roomlet/internal/middleware"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/rentals"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ApplicationHandler struct {
	Rooms *rentals.Service
}

// CreateApplication is public: applicants have no account.
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var fields models.ApplicationFields
	if err := decodeJSON(r, &fields); err != nil {
		WriteError(w, r, err)
		return
	}
	app, err := h.Rooms.CreateApplication(r.Context(), id, fields)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	apps, err := h.Rooms.ListApplications(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *ApplicationHandler) ExportApplications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	data, err := h.Rooms.ExportApplications(r.Context(), middleware.UserFrom(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"room-%d-applications.xlsx\"", id))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

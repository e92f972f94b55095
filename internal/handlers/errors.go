package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pliu/roomlet/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.Unauthenticated:    http.StatusUnauthorized,
	apperr.InvalidToken:       http.StatusUnauthorized,
	apperr.Forbidden:          http.StatusForbidden,
	apperr.NotFound:           http.StatusNotFound,
	apperr.Conflict:           http.StatusConflict,
	apperr.EmailTaken:         http.StatusConflict,
	apperr.InvalidCredentials: http.StatusUnauthorized,
	apperr.UnsupportedFormat:  http.StatusBadRequest,
	apperr.PayloadTooLarge:    http.StatusRequestEntityTooLarge,
	apperr.Invalid:            http.StatusBadRequest,
	apperr.StorageFailure:     http.StatusInternalServerError,
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code   apperr.Kind `json:"code"`
	Detail string      `json:"detail"`
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	if status, ok := statusByKind[apperr.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError renders err as JSON with the matching status code.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.InvalidToken {
		kind = apperr.Unauthenticated
	}
	writeJSON(w, StatusOf(err), ErrorResponse{Code: kind, Detail: apperr.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.New(apperr.PayloadTooLarge, "request body too large")
		}
		return apperr.Wrap(apperr.Invalid, "malformed JSON body", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.Invalid, "%s must be a positive integer", name)
	}
	return id, nil
}

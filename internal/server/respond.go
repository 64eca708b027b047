package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"secure-file-hub/internal/storage"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"detail": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}

// writeStorageError maps a store error onto its status code. Validation and
// lookup failures carry their own message; anything else is a 500 whose
// detail includes the cause.
func writeStorageError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid file name")
	case errors.Is(err, storage.ErrReservedName),
		errors.Is(err, storage.ErrDuplicateName),
		errors.Is(err, storage.ErrNotAFile):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrPermission):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, storage.ErrTooLarge), errors.As(err, &tooBig):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
	default:
		writeError(w, http.StatusInternalServerError, "storage error: "+err.Error())
	}
}

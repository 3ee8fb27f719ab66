package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"filebox/internal/database"
)

// Error kinds are stable, machine-checkable identifiers; the message is
// for humans. Internal details never leak into responses.
const (
	kindNotFound            = "not_found"
	kindConflict            = "conflict"
	kindForbidden           = "forbidden"
	kindPayloadTooLarge     = "payload_too_large"
	kindInsufficientStorage = "insufficient_storage"
	kindUnavailable         = "unavailable"
	kindInvalidRequest      = "invalid_request"
	kindInternal            = "internal"
)

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

// writeStoreError maps the database error taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrFolderNotFound),
		errors.Is(err, database.ErrFileNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, database.ErrFolderExists),
		errors.Is(err, database.ErrFileExists),
		errors.Is(err, database.ErrUsernameTaken),
		errors.Is(err, database.ErrEmailTaken):
		writeError(w, http.StatusConflict, kindConflict, err.Error())
	case errors.Is(err, database.ErrQuotaExceeded):
		writeError(w, http.StatusInsufficientStorage, kindInsufficientStorage, err.Error())
	case errors.Is(err, database.ErrRootFolder):
		writeError(w, http.StatusForbidden, kindForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
	}
}

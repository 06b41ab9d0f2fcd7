package couchkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNotFound not_found
	ErrNotFound = errors.New("not_found")
	// ErrConflict conflict
	ErrConflict = errors.New("conflict")
	// ErrSchemaMismatch schema_mismatch
	ErrSchemaMismatch = errors.New("schema_mismatch")
	// ErrTypeMismatch type_mismatch
	ErrTypeMismatch = errors.New("type_mismatch")
	// ErrSyncWrite sync_write_error
	ErrSyncWrite = errors.New("sync_write_error")
	// ErrDatabaseNotFound db_not_found
	ErrDatabaseNotFound = errors.New("db_not_found")
	// ErrDatabaseExists db_exists
	ErrDatabaseExists = errors.New("db_exists")
	// ErrDatabaseInvalidName invalid_db_name
	ErrDatabaseInvalidName = errors.New("invalid_db_name")
	// ErrDocumentInvalidID invalid_doc_id
	ErrDocumentInvalidID = errors.New("invalid_doc_id")
	// ErrDocumentInvalidInput doc_invalid_input
	ErrDocumentInvalidInput = errors.New("doc_invalid_input")
	// ErrViewNotFound view_not_found
	ErrViewNotFound = errors.New("view_not_found")
	// ErrBadJSON bad_json
	ErrBadJSON = errors.New("bad_json")
	// ErrBadCursor bad_cursor
	ErrBadCursor = errors.New("bad_cursor")
	// ErrInternalError internal_error
	ErrInternalError = errors.New("internal_error")

	// MessageNotFound error message for ErrNotFound
	MessageNotFound = "document not found"
	// MessageConflict error message for ErrConflict
	MessageConflict = "document revision conflict"
	// MessageDatabaseNotFound error message for ErrDatabaseNotFound
	MessageDatabaseNotFound = "database not found"
	// MessageDatabaseExists error message for ErrDatabaseExists
	MessageDatabaseExists = "database already exists"
	// MessageViewNotFound error message for ErrViewNotFound
	MessageViewNotFound = "view not found"
	// MessageInternalError error message for ErrInternalError
	MessageInternalError = "internal error"
)

func getErrorDescription(err error) string {
	e := errors.Unwrap(err)
	if e == nil {
		return err.Error()
	}
	return strings.Trim(strings.TrimRight(strings.ReplaceAll(err.Error(), e.Error(), ""), " "), ":")
}

func errorString(err error) (string, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error(), MessageNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict.Error(), MessageConflict
	case errors.Is(err, ErrSchemaMismatch):
		return ErrSchemaMismatch.Error(), getErrorDescription(err)
	case errors.Is(err, ErrTypeMismatch):
		return ErrTypeMismatch.Error(), getErrorDescription(err)
	case errors.Is(err, ErrSyncWrite):
		return ErrSyncWrite.Error(), getErrorDescription(err)
	case errors.Is(err, ErrDatabaseNotFound):
		return ErrDatabaseNotFound.Error(), MessageDatabaseNotFound
	case errors.Is(err, ErrDatabaseExists):
		return ErrDatabaseExists.Error(), MessageDatabaseExists
	case errors.Is(err, ErrDatabaseInvalidName):
		return ErrDatabaseInvalidName.Error(), getErrorDescription(err)
	case errors.Is(err, ErrDocumentInvalidID):
		return ErrDocumentInvalidID.Error(), getErrorDescription(err)
	case errors.Is(err, ErrDocumentInvalidInput):
		return ErrDocumentInvalidInput.Error(), getErrorDescription(err)
	case errors.Is(err, ErrViewNotFound):
		return ErrViewNotFound.Error(), MessageViewNotFound
	case errors.Is(err, ErrBadJSON):
		return ErrBadJSON.Error(), getErrorDescription(err)
	case errors.Is(err, ErrBadCursor):
		return ErrBadCursor.Error(), getErrorDescription(err)
	default:
		return ErrInternalError.Error(), getErrorDescription(err)
	}
}

// NotOK writes err as a CouchDB-style JSON error body with a matching
// HTTP status code.
func NotOK(err error, w http.ResponseWriter) {
	var statusCode int

	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, ErrDatabaseNotFound) || errors.Is(err, ErrViewNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		statusCode = http.StatusConflict
	case errors.Is(err, ErrDatabaseExists) || errors.Is(err, ErrDatabaseInvalidName):
		statusCode = http.StatusPreconditionFailed
	case errors.Is(err, ErrBadJSON) || errors.Is(err, ErrBadCursor) ||
		errors.Is(err, ErrDocumentInvalidID) || errors.Is(err, ErrDocumentInvalidInput) ||
		errors.Is(err, ErrSchemaMismatch) || errors.Is(err, ErrTypeMismatch):
		statusCode = http.StatusBadRequest
	}

	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	code, reason := errorString(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "reason": reason})
}

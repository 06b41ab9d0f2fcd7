package couchkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorString(t *testing.T) {
	code, reason := errorString(ErrNotFound)
	if code != "not_found" || reason != MessageNotFound {
		t.Errorf("unexpected pair %s/%s", code, reason)
	}

	code, reason = errorString(fmt.Errorf("rev went stale: %w", ErrConflict))
	if code != "conflict" || reason != MessageConflict {
		t.Errorf("unexpected pair %s/%s", code, reason)
	}

	code, reason = errorString(fmt.Errorf("field age: want integer: %w", ErrSchemaMismatch))
	if code != "schema_mismatch" {
		t.Errorf("unexpected code %s", code)
	}
	if reason != "field age: want integer" {
		t.Errorf("expected the wrapping description, got %q", reason)
	}

	code, _ = errorString(fmt.Errorf("some io failure"))
	if code != "internal_error" {
		t.Errorf("unexpected fallback code %s", code)
	}
}

func TestNotOKStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrDatabaseNotFound, http.StatusNotFound},
		{ErrViewNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrDatabaseExists, http.StatusPreconditionFailed},
		{ErrDatabaseInvalidName, http.StatusPreconditionFailed},
		{ErrBadJSON, http.StatusBadRequest},
		{ErrBadCursor, http.StatusBadRequest},
		{ErrDocumentInvalidID, http.StatusBadRequest},
		{ErrDocumentInvalidInput, http.StatusBadRequest},
		{ErrSchemaMismatch, http.StatusBadRequest},
		{ErrTypeMismatch, http.StatusBadRequest},
		{ErrSyncWrite, http.StatusInternalServerError},
		{ErrInternalError, http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		NotOK(fmt.Errorf("boom: %w", c.err), rec)
		if rec.Code != c.status {
			t.Errorf("%v: expected status %d, got %d", c.err, c.status, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%v: unexpected content type %q", c.err, ct)
		}
	}
}

func TestNotOKBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NotOK(fmt.Errorf("post1 is gone: %w", ErrNotFound), rec)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if body["error"] != "not_found" || body["reason"] != MessageNotFound {
		t.Errorf("unexpected body %v", body)
	}
}

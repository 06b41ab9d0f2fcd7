package couchkit

import (
	"errors"
	"strings"
	"testing"
)

func testSQLiteServer(t *testing.T) *SQLiteServer {
	t.Helper()
	srv, err := NewSQLiteServer(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestSQLiteCreateDatabase(t *testing.T) {
	srv := testSQLiteServer(t)

	ok, err := srv.HasDatabase("things")
	if err != nil || ok {
		t.Fatalf("expected no database yet")
	}
	if err := srv.CreateDatabase("things"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ok, _ = srv.HasDatabase("things")
	if !ok {
		t.Errorf("expected database file to exist")
	}
	if err := srv.CreateDatabase("things"); !errors.Is(err, ErrDatabaseExists) {
		t.Errorf("expected to fail with %s, got %v", ErrDatabaseExists, err)
	}
}

func TestSQLitePutGetRoundTrip(t *testing.T) {
	srv := testSQLiteServer(t)
	srv.CreateDatabase("things")
	db := srv.Database("things")

	id, rev, err := db.Put("a", "", []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if id != "a" || !strings.HasPrefix(rev, "1-") {
		t.Errorf("expected assigned first revision, got %s/%s", id, rev)
	}

	body, err := db.Get("a")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	raw, _ := unmarshalDoc(body)
	if raw["_id"] != "a" || raw["_rev"] != rev {
		t.Errorf("expected meta keys on get, got %s", body)
	}

	absent, err := db.Get("missing")
	if err != nil || absent != nil {
		t.Errorf("expected absence, got %s (%v)", absent, err)
	}
}

func TestSQLiteRevisionConflicts(t *testing.T) {
	srv := testSQLiteServer(t)
	srv.CreateDatabase("things")
	db := srv.Database("things")

	_, rev1, _ := db.Put("a", "", []byte(`{"n":1}`))
	if _, _, err := db.Put("a", rev1, []byte(`{"n":2}`)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, _, err := db.Put("a", rev1, []byte(`{"n":3}`)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected to fail with %s, got %v", ErrConflict, err)
	}
}

func TestSQLiteDeleteTombstones(t *testing.T) {
	srv := testSQLiteServer(t)
	srv.CreateDatabase("things")
	db := srv.Database("things")

	_, rev, _ := db.Put("a", "", []byte(`{"n":1}`))
	if err := db.Delete("a", rev); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	body, err := db.Get("a")
	if err != nil || body != nil {
		t.Errorf("expected absence after delete, got %s (%v)", body, err)
	}

	_, rev3, err := db.Put("a", "", []byte(`{"n":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.HasPrefix(rev3, "3-") {
		t.Errorf("expected the revision line to continue, got %s", rev3)
	}
}

func TestSQLiteQueryRunsRegisteredView(t *testing.T) {
	srv := testSQLiteServer(t)
	srv.CreateDatabase("things")
	srv.Index().Register("blog", "by_author", emitByAuthor, nil)
	db := srv.Database("things")

	db.Put("1", "", []byte(`{"doc_type":"blogpost","author":"steve","title":"N1"}`))
	db.Put("2", "", []byte(`{"doc_type":"blogpost","author":"fred","title":"N2"}`))

	rows, err := db.Query("blog", "by_author", QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(rows) != 2 || rows[0].Key != "fred" {
		t.Errorf("expected ordered rows, got %v", rows)
	}
}

func TestSQLiteDeleteDatabase(t *testing.T) {
	srv := testSQLiteServer(t)
	srv.CreateDatabase("things")

	if err := srv.DeleteDatabase("things"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ok, _ := srv.HasDatabase("things")
	if ok {
		t.Errorf("expected database files to be gone")
	}
	if err := srv.DeleteDatabase("things"); !errors.Is(err, ErrDatabaseNotFound) {
		t.Errorf("expected to fail with %s, got %v", ErrDatabaseNotFound, err)
	}
}

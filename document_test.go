package couchkit

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testBlogType() *DocType {
	return NewDocType("blogpost", NewSchema(
		Text("title"),
		Text("author"),
		List("tags", Text("tag")),
		DateTime("created").DefaultFunc(func() interface{} { return time.Now().UTC() }),
	))
}

func testDB(t *testing.T) Database {
	t.Helper()
	srv := NewMemoryServer()
	if err := srv.CreateDatabase("test"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return srv.Database("test")
}

func TestStoreAssignsIDAndRev(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()

	doc := blog.New()
	doc.Set("title", "Hello")

	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if doc.ID == "" {
		t.Errorf("expected store to assign an id")
	}
	if doc.Rev == "" {
		t.Errorf("expected store to assign a revision")
	}
}

func TestStoreThenLoad(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()

	doc := blog.New()
	doc.ID = "hello"
	doc.Set("title", "Hello")
	doc.Set("author", "Steve Person")
	doc.Set("tags", []interface{}{"greetings", "first"})
	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	loaded, err := blog.Load(db, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if loaded == nil {
		t.Fatalf("expected a document")
	}
	if loaded.ID != "hello" || loaded.Rev != doc.Rev {
		t.Errorf("expected id/rev to survive, got %s/%s", loaded.ID, loaded.Rev)
	}
	title, _ := loaded.Get("title")
	if title != "Hello" {
		t.Errorf("expected Hello, got %v", title)
	}
	tags, _ := loaded.Get("tags")
	if got := tags.([]interface{}); len(got) != 2 || got[0] != "greetings" {
		t.Errorf("expected tags to survive, got %v", tags)
	}
}

func TestStoreWritesDocTypeDiscriminator(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()

	doc := blog.New()
	doc.ID = "x"
	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	body, err := db.Get("x")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	raw, err := unmarshalDoc(body)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if raw["doc_type"] != "blogpost" {
		t.Errorf("expected doc_type blogpost, got %v", raw["doc_type"])
	}
}

func TestLoadAbsentIsNilNotError(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()

	doc, err := blog.Load(db, "goodbye")
	if err != nil {
		t.Fatalf("expected absence, got error %s", err)
	}
	if doc != nil {
		t.Errorf("expected nil document, got %v", doc)
	}
}

func TestLoadWrongDocType(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()
	other := NewDocType("comment", NewSchema(Text("text")))

	doc := blog.New()
	doc.ID = "post"
	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	_, err := other.Load(db, "post")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected to fail with %s, got %v", ErrTypeMismatch, err)
	}
}

func TestStoreConflictLeavesStoredCopy(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()

	doc := blog.New()
	doc.ID = "post"
	doc.Set("title", "v1")
	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// a concurrent writer moves the revision forward
	rival, _ := blog.Load(db, "post")
	rival.Set("title", "v2")
	if err := rival.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	doc.Set("title", "stale write")
	err := doc.Store(db)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected to fail with %s, got %v", ErrConflict, err)
	}

	current, _ := blog.Load(db, "post")
	title, _ := current.Get("title")
	if title != "v2" {
		t.Errorf("conflicting write modified the stored copy: %v", title)
	}
}

func TestStoreRoundTripsDecimalAndLong(t *testing.T) {
	db := testDB(t)
	money := NewDocType("ledger", NewSchema(Decimal("amount"), Long("serial")))

	doc := money.New()
	doc.ID = "entry"
	doc.Set("amount", "3.000000000000000000001")
	doc.Set("serial", int64(9007199254740993))
	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	loaded, err := money.Load(db, "entry")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	amount, _ := loaded.Get("amount")
	if amount.(decimal.Decimal).String() != "3.000000000000000000001" {
		t.Errorf("decimal lost precision: %v", amount)
	}
	serial, _ := loaded.Get("serial")
	if serial != int64(9007199254740993) {
		t.Errorf("long lost precision: %v", serial)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	blog := testBlogType()

	doc := blog.New()
	doc.ID = "gone"
	if err := doc.Store(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := doc.Delete(db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	loaded, err := blog.Load(db, "gone")
	if err != nil || loaded != nil {
		t.Errorf("expected absence after delete, got %v (%v)", loaded, err)
	}
}

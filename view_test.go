package couchkit

import (
	"errors"
	"testing"
)

func TestQueryOptionsMerge(t *testing.T) {
	defaults := QueryOptions{Limit: 20, Group: true}

	merged := defaults.merge(QueryOptions{})
	if merged.Limit != 20 || !merged.Group {
		t.Errorf("defaults did not survive an empty call: %+v", merged)
	}

	merged = defaults.merge(QueryOptions{StartKey: "a", Limit: 5, Skip: 2})
	if merged.StartKey != "a" || merged.Limit != 5 || merged.Skip != 2 {
		t.Errorf("call options did not win: %+v", merged)
	}
	if !merged.Group {
		t.Errorf("untouched defaults should persist")
	}
}

func TestQueryOptionsMergeDescendingFlips(t *testing.T) {
	asc := QueryOptions{}
	desc := QueryOptions{Descending: true}

	if m := asc.merge(QueryOptions{Descending: true}); !m.Descending {
		t.Errorf("call-time descending should turn on")
	}
	if m := desc.merge(QueryOptions{}); !m.Descending {
		t.Errorf("configured descending should survive an empty call")
	}
	// a descending call on a descending view walks it the other way
	if m := desc.merge(QueryOptions{Descending: true}); m.Descending {
		t.Errorf("descending over descending should read forward")
	}
}

func TestViewDefinitionAccessors(t *testing.T) {
	vd := NewViewDefinition("blog", "by_author", "function (doc) { emit(doc.author, doc); }", "_count")
	if vd.Design() != "blog" || vd.Name() != "by_author" {
		t.Errorf("unexpected identity %s/%s", vd.Design(), vd.Name())
	}
	if vd.MapFunc() == "" || vd.ReduceFunc() != "_count" {
		t.Errorf("function bodies lost")
	}
}

func TestWrapRowFromValue(t *testing.T) {
	note := NewDocType("note", NewSchema(Text("text")))
	vd := NewViewDefinition("n", "all", "x", "").WithWrapper(note)

	doc, err := vd.WrapRow(Row{
		ID:    "n1",
		Key:   "n1",
		Value: map[string]interface{}{"_id": "n1", "_rev": "1-abc", "doc_type": "note", "text": "hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if doc.ID != "n1" || doc.Rev != "1-abc" {
		t.Errorf("meta keys lost: %s %s", doc.ID, doc.Rev)
	}
	if text, _ := doc.Get("text"); text != "hi" {
		t.Errorf("unexpected field %v", text)
	}
}

func TestWrapRowPrefersIncludedDoc(t *testing.T) {
	note := NewDocType("note", NewSchema(Text("text")))
	vd := NewViewDefinition("n", "all", "x", "").WithWrapper(note)

	doc, err := vd.WrapRow(Row{
		ID:    "n1",
		Value: map[string]interface{}{"text": "from value"},
		Doc:   []byte(`{"_id":"n1","_rev":"2-def","doc_type":"note","text":"from doc"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if text, _ := doc.Get("text"); text != "from doc" {
		t.Errorf("expected the source document to win, got %v", text)
	}
}

func TestWrapRowWithoutWrapper(t *testing.T) {
	vd := NewViewDefinition("n", "all", "x", "")
	doc, err := vd.WrapRow(Row{ID: "n1", Value: 42})
	if doc != nil || err != nil {
		t.Errorf("expected nil, nil without a wrapper, got %v %v", doc, err)
	}
}

func TestWrapRowNonDocumentValue(t *testing.T) {
	note := NewDocType("note", NewSchema(Text("text")))
	vd := NewViewDefinition("n", "all", "x", "").WithWrapper(note)

	if _, err := vd.WrapRow(Row{ID: "n1", Value: 42}); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

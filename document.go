package couchkit

import (
	"encoding/json"
	"fmt"
)

// docTypeKey is the discriminator key written on typed documents.
const docTypeKey = "doc_type"

// DocType describes one "type" of document: a schema, an optional
// discriminator value, and the views attached to the type. Descriptors are
// declared once at startup, like schemas.
type DocType struct {
	name   string
	schema *Schema
	views  []*ViewDefinition
}

// NewDocType declares a document type. name is the doc_type discriminator
// written on every stored document; "" declares an untyped document.
func NewDocType(name string, schema *Schema) *DocType {
	return &DocType{name: name, schema: schema}
}

// Name returns the doc_type discriminator value.
func (dt *DocType) Name() string { return dt.name }

// Schema returns the underlying schema.
func (dt *DocType) Schema() *Schema { return dt.schema }

// View declares a view owned by this document type and attaches it. The
// view's wrapper defaults to the owning type.
func (dt *DocType) View(design, name, mapFn, reduceFn string) *ViewDefinition {
	vd := NewViewDefinition(design, name, mapFn, reduceFn).WithWrapper(dt)
	dt.views = append(dt.views, vd)
	return vd
}

// Views returns the views attached to this type, in declaration order.
func (dt *DocType) Views() []*ViewDefinition { return dt.views }

// New builds an in-memory document with field defaults applied. No
// identifier is required until store time.
func (dt *DocType) New() *Document {
	return &Document{Record: dt.schema.New(), docType: dt}
}

// Load fetches the document with the given identifier and wraps it into
// this type. An absent identifier yields (nil, nil), never an error.
// A stored document whose doc_type discriminator differs fails with
// ErrTypeMismatch.
func (dt *DocType) Load(db Database, id string) (*Document, error) {
	body, err := db.Get(id)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return dt.wrapBody(body)
}

func (dt *DocType) wrapBody(body []byte) (*Document, error) {
	raw, err := unmarshalDoc(body)
	if err != nil {
		return nil, err
	}
	return dt.wrapRaw(raw)
}

func (dt *DocType) wrapRaw(raw map[string]interface{}) (*Document, error) {
	id, _ := raw["_id"].(string)
	rev, _ := raw["_rev"].(string)
	delete(raw, "_id")
	delete(raw, "_rev")

	if dt.name != "" {
		stored, _ := raw[docTypeKey].(string)
		if stored != dt.name {
			return nil, fmt.Errorf("expected doc_type %q, got %q: %w", dt.name, stored, ErrTypeMismatch)
		}
	}

	rec, err := dt.schema.Wrap(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Record: rec, docType: dt, ID: id, Rev: rev}, nil
}

// Document is a record bound to a persistent identifier and revision.
type Document struct {
	*Record

	ID  string
	Rev string

	docType *DocType
}

// Type returns the document's type descriptor.
func (doc *Document) Type() *DocType { return doc.docType }

// Store persists the document. A missing identifier is assigned by the
// store; the doc_type discriminator is written unconditionally. On success
// the document's ID and Rev reflect the post-write state. A concurrent
// modification surfaces as ErrConflict, never retried here.
func (doc *Document) Store(db Database) error {
	body := doc.Record.Unwrap()
	if doc.docType.name != "" {
		body[docTypeKey] = doc.docType.name
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: %w", err, ErrBadJSON)
	}

	id, rev, err := db.Put(doc.ID, doc.Rev, data)
	if err != nil {
		return err
	}

	doc.ID = id
	doc.Rev = rev
	if doc.docType.name != "" {
		doc.Record.data[docTypeKey] = doc.docType.name
	}
	return nil
}

// Delete removes the document from the store at its held revision.
func (doc *Document) Delete(db Database) error {
	return db.Delete(doc.ID, doc.Rev)
}

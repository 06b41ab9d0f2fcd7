package couchkit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Schema is an ordered set of uniquely named fields. Schemas are built once
// at startup and treated as immutable descriptors afterwards.
type Schema struct {
	fields []*Field
	byName map[string]*Field
}

// NewSchema builds a schema from the given fields. It panics on an empty or
// duplicate field name, since schemas are package-level declarations.
func NewSchema(fields ...*Field) *Schema {
	s := &Schema{byName: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		if f.name == "" {
			panic("couchkit: schema field with empty name")
		}
		if _, ok := s.byName[f.name]; ok {
			panic(fmt.Sprintf("couchkit: duplicate schema field %q", f.name))
		}
		s.fields = append(s.fields, f)
		s.byName[f.name] = f
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []*Field {
	return s.fields
}

// Field returns the declared field with the given name, or nil.
func (s *Schema) Field(name string) *Field {
	return s.byName[name]
}

// New builds a record, applying field defaults. Default producers run fresh
// on every call.
func (s *Schema) New() *Record {
	rec := &Record{schema: s, data: make(map[string]interface{})}
	for _, f := range s.fields {
		v, ok := f.defaultValue()
		if !ok {
			continue
		}
		enc, err := f.Encode(v)
		if err != nil {
			panic(fmt.Sprintf("couchkit: default for field %q does not encode: %v", f.name, err))
		}
		rec.data[f.name] = enc
	}
	return rec
}

// Wrap builds a record from persisted JSON data. Every declared field
// present in raw must decode; undeclared keys are retained verbatim so that
// unwrapping never drops unknown data.
func (s *Schema) Wrap(raw map[string]interface{}) (*Record, error) {
	data := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		data[k] = v
	}
	for _, f := range s.fields {
		v, ok := data[f.name]
		if !ok {
			continue
		}
		if _, err := f.Decode(v); err != nil {
			return nil, err
		}
	}
	return &Record{schema: s, data: data}, nil
}

// Record is a schema-backed instance over an untyped key/value store.
type Record struct {
	schema *Schema
	data   map[string]interface{}
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema {
	return r.schema
}

// Get decodes the named field. An unset field resolves to its
// type-appropriate zero value.
func (r *Record) Get(name string) (interface{}, error) {
	f := r.schema.byName[name]
	if f == nil {
		return nil, fmt.Errorf("field %q: not declared: %w", name, ErrSchemaMismatch)
	}
	raw, ok := r.data[name]
	if !ok || raw == nil {
		return f.zeroValue(), nil
	}
	return f.Decode(raw)
}

// Set encodes and stores a value for the named field.
func (r *Record) Set(name string, v interface{}) error {
	f := r.schema.byName[name]
	if f == nil {
		return fmt.Errorf("field %q: not declared: %w", name, ErrSchemaMismatch)
	}
	enc, err := f.Encode(v)
	if err != nil {
		return err
	}
	r.data[name] = enc
	return nil
}

// Unwrap returns a copy of the raw backing data, declared and undeclared
// keys alike.
func (r *Record) Unwrap() map[string]interface{} {
	out := make(map[string]interface{}, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// unmarshalDoc parses a JSON object keeping numbers as json.Number, so
// long integers survive the trip without float64 truncation.
func unmarshalDoc(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
	}
	return raw, nil
}

package couchkit

import "fmt"

// QueryOptions are the options a view query accepts. The zero value means
// "from the beginning, every row, ascending".
type QueryOptions struct {
	StartKey      interface{}
	StartKeyDocID string
	EndKey        interface{}
	Limit         int
	Skip          int
	Descending    bool
	Group         bool
	IncludeDocs   bool
}

// merge lays opts over defaults. Non-zero fields of opts win. A call-time
// Descending flips the view's configured direction, so pagination can walk
// a descending-by-default view backwards; the other boolean defaults
// cannot be switched back off at call time.
func (defaults QueryOptions) merge(opts QueryOptions) QueryOptions {
	out := defaults
	if opts.StartKey != nil {
		out.StartKey = opts.StartKey
	}
	if opts.StartKeyDocID != "" {
		out.StartKeyDocID = opts.StartKeyDocID
	}
	if opts.EndKey != nil {
		out.EndKey = opts.EndKey
	}
	if opts.Limit != 0 {
		out.Limit = opts.Limit
	}
	if opts.Skip != 0 {
		out.Skip = opts.Skip
	}
	out.Descending = out.Descending != opts.Descending
	out.Group = out.Group || opts.Group
	out.IncludeDocs = out.IncludeDocs || opts.IncludeDocs
	return out
}

// Row is one emitted view result: its key, emitted value and the
// identifier of the document that produced it. Doc carries the full source
// document when the query asked for include_docs.
type Row struct {
	ID    string
	Key   interface{}
	Value interface{}
	Doc   []byte
}

// ViewDefinition identifies one view inside a design document and holds
// its map and optional reduce function bodies.
type ViewDefinition struct {
	design   string
	name     string
	mapFn    string
	reduceFn string
	language string
	defaults QueryOptions
	wrapper  *DocType
}

// NewViewDefinition declares a view. The function bodies are published to
// the store verbatim on sync.
func NewViewDefinition(design, name, mapFn, reduceFn string) *ViewDefinition {
	return &ViewDefinition{
		design:   design,
		name:     name,
		mapFn:    mapFn,
		reduceFn: reduceFn,
		language: "javascript",
	}
}

// WithDefaults sets query options applied implicitly on every invocation.
func (vd *ViewDefinition) WithDefaults(opts QueryOptions) *ViewDefinition {
	vd.defaults = opts
	return vd
}

// WithLanguage overrides the design document language, "javascript" by
// default.
func (vd *ViewDefinition) WithLanguage(language string) *ViewDefinition {
	vd.language = language
	return vd
}

// WithWrapper sets the document type view values are coerced into by
// WrapRow.
func (vd *ViewDefinition) WithWrapper(dt *DocType) *ViewDefinition {
	vd.wrapper = dt
	return vd
}

// Design returns the design document name.
func (vd *ViewDefinition) Design() string { return vd.design }

// Name returns the view name.
func (vd *ViewDefinition) Name() string { return vd.name }

// MapFunc returns the map function body.
func (vd *ViewDefinition) MapFunc() string { return vd.mapFn }

// ReduceFunc returns the reduce function body, "" when the view has none.
func (vd *ViewDefinition) ReduceFunc() string { return vd.reduceFn }

// Query runs the view against db, with the definition's default options
// underneath the given ones.
func (vd *ViewDefinition) Query(db Database, opts QueryOptions) ([]Row, error) {
	return db.Query(vd.design, vd.name, vd.defaults.merge(opts))
}

// Bind fixes the database, giving a callable view suitable for Paginate.
func (vd *ViewDefinition) Bind(db Database) ViewFunc {
	return func(opts QueryOptions) ([]Row, error) {
		return vd.Query(db, opts)
	}
}

// WrapRow coerces a row into the view's wrapper document type. The source
// document from include_docs wins over the emitted value.
func (vd *ViewDefinition) WrapRow(row Row) (*Document, error) {
	if vd.wrapper == nil {
		return nil, nil
	}
	if row.Doc != nil {
		return vd.wrapper.wrapBody(row.Doc)
	}
	value, ok := row.Value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("view %s/%s: row value is not a document: %w", vd.design, vd.name, ErrSchemaMismatch)
	}
	return vd.wrapper.wrapRaw(value)
}

// DesignDocView is one view entry inside a published design document.
type DesignDocView struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

// DesignDoc is the store-side container grouping view definitions.
type DesignDoc struct {
	ID       string                   `json:"_id,omitempty"`
	Rev      string                   `json:"_rev,omitempty"`
	Language string                   `json:"language,omitempty"`
	Views    map[string]DesignDocView `json:"views"`
}

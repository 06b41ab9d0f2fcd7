package couchkit

// Server is the store-side entry point: a place databases live.
type Server interface {
	// HasDatabase reports whether the named database exists.
	HasDatabase(name string) (bool, error)
	// CreateDatabase creates the named database.
	CreateDatabase(name string) error
	// Database returns a handle on the named database. Handle creation
	// never touches the server; operations on a missing database fail
	// with ErrDatabaseNotFound.
	Database(name string) Database
}

// Database is the identifier-keyed document store this extension is built
// against.
//
// Get returns the full stored document, _id and _rev included, or nil when
// no document with that identifier exists. Put takes the body without meta
// keys plus the expected revision ("" for a new document) and returns the
// assigned identifier and new revision; a stale revision fails with
// ErrConflict. Query runs a named view and returns its rows in key order.
type Database interface {
	Name() string
	Get(id string) ([]byte, error)
	Put(id, rev string, body []byte) (string, string, error)
	Delete(id, rev string) error
	Query(design, view string, opts QueryOptions) ([]Row, error)
}

package couchkit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryServer is an in-memory Server, used for tests and embedded
// deployments. View queries run registered Go map/reduce functions.
type MemoryServer struct {
	mu    sync.RWMutex
	dbs   map[string]*memoryDatabase
	index *MapIndex
}

func NewMemoryServer() *MemoryServer {
	return &MemoryServer{
		dbs:   make(map[string]*memoryDatabase),
		index: NewMapIndex(),
	}
}

// Index exposes the server's view function registry.
func (srv *MemoryServer) Index() *MapIndex { return srv.index }

func (srv *MemoryServer) HasDatabase(name string) (bool, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	_, ok := srv.dbs[name]
	return ok, nil
}

func (srv *MemoryServer) CreateDatabase(name string) error {
	if !validateDBName(name) {
		return fmt.Errorf("%q: %w", name, ErrDatabaseInvalidName)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, ok := srv.dbs[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrDatabaseExists)
	}
	srv.dbs[name] = &memoryDatabase{docs: make(map[string]*memoryDoc)}
	return nil
}

func (srv *MemoryServer) Database(name string) Database {
	return &memoryHandle{srv: srv, name: name}
}

// DeleteDatabase drops the named database and its contents.
func (srv *MemoryServer) DeleteDatabase(name string) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, ok := srv.dbs[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrDatabaseNotFound)
	}
	delete(srv.dbs, name)
	return nil
}

type memoryDoc struct {
	id      string
	rev     string
	deleted bool
	body    []byte
}

type memoryDatabase struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
}

// memoryHandle binds a database name lazily; operations fail with
// ErrDatabaseNotFound once the database is gone.
type memoryHandle struct {
	srv  *MemoryServer
	name string
}

func (h *memoryHandle) Name() string { return h.name }

func (h *memoryHandle) database() (*memoryDatabase, error) {
	h.srv.mu.RLock()
	defer h.srv.mu.RUnlock()
	db, ok := h.srv.dbs[h.name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", h.name, ErrDatabaseNotFound)
	}
	return db, nil
}

func (h *memoryHandle) Get(id string) ([]byte, error) {
	db, err := h.database()
	if err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	doc, ok := db.docs[id]
	if !ok || doc.deleted {
		return nil, nil
	}
	return withMeta(doc.id, doc.rev, doc.body), nil
}

func (h *memoryHandle) Put(id, rev string, body []byte) (string, string, error) {
	db, err := h.database()
	if err != nil {
		return "", "", err
	}

	if id == "" {
		id = uuid.NewString()
	}
	if !validateDocID(id) {
		return "", "", fmt.Errorf("%q: %w", id, ErrDocumentInvalidID)
	}

	stripped, err := normalizeBody(body)
	if err != nil {
		return "", "", err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	current := db.docs[id]
	if current != nil && !current.deleted && current.rev != rev {
		return "", "", fmt.Errorf("%q: %w", id, ErrConflict)
	}
	if current == nil && rev != "" {
		return "", "", fmt.Errorf("%q: %w", id, ErrConflict)
	}

	base := rev
	if current != nil && current.deleted {
		base = current.rev
	}

	newRev := nextRev(base, stripped)
	db.docs[id] = &memoryDoc{id: id, rev: newRev, body: stripped}
	return id, newRev, nil
}

func (h *memoryHandle) Delete(id, rev string) error {
	db, err := h.database()
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	current, ok := db.docs[id]
	if !ok || current.deleted {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if current.rev != rev {
		return fmt.Errorf("%q: %w", id, ErrConflict)
	}

	// tombstone, so a later Put on the same id continues the rev line
	current.deleted = true
	current.rev = nextRev(current.rev, []byte("{}"))
	return nil
}

func (h *memoryHandle) Query(design, view string, opts QueryOptions) ([]Row, error) {
	db, err := h.database()
	if err != nil {
		return nil, err
	}

	db.mu.RLock()
	docs := make([]map[string]interface{}, 0, len(db.docs))
	for _, doc := range db.docs {
		if doc.deleted || strings.HasPrefix(doc.id, "_design/") {
			continue
		}
		raw, err := unmarshalDoc(withMeta(doc.id, doc.rev, doc.body))
		if err != nil {
			db.mu.RUnlock()
			return nil, err
		}
		docs = append(docs, raw)
	}
	db.mu.RUnlock()

	return h.srv.index.Run(docs, design, view, opts)
}

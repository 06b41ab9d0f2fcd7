package couchkit

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const dbExt = ".db"

const sqliteBuildScript = `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id  TEXT PRIMARY KEY,
		rev     TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		data    TEXT NOT NULL
	) WITHOUT ROWID;
`

// SQLiteServer keeps one SQLite file per database under a directory. View
// queries run registered Go map/reduce functions over the stored rows.
type SQLiteServer struct {
	path  string
	mu    sync.Mutex
	conns map[string]*sql.DB
	index *MapIndex
}

func NewSQLiteServer(path string) (*SQLiteServer, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &SQLiteServer{
		path:  path,
		conns: make(map[string]*sql.DB),
		index: NewMapIndex(),
	}, nil
}

// Index exposes the server's view function registry.
func (srv *SQLiteServer) Index() *MapIndex { return srv.index }

// Close closes every open database connection.
func (srv *SQLiteServer) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	var firstErr error
	for name, conn := range srv.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(srv.conns, name)
	}
	return firstErr
}

func (srv *SQLiteServer) filePath(name string) string {
	return filepath.Join(srv.path, name+dbExt)
}

func (srv *SQLiteServer) HasDatabase(name string) (bool, error) {
	_, err := os.Lstat(srv.filePath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (srv *SQLiteServer) CreateDatabase(name string) error {
	if !validateDBName(name) {
		return fmt.Errorf("%q: %w", name, ErrDatabaseInvalidName)
	}

	ok, err := srv.HasDatabase(name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%q: %w", name, ErrDatabaseExists)
	}

	conn, err := srv.open(name)
	if err != nil {
		return err
	}
	_, err = conn.Exec(sqliteBuildScript)
	return err
}

func (srv *SQLiteServer) Database(name string) Database {
	return &sqliteHandle{srv: srv, name: name}
}

// DeleteDatabase closes the database and removes its files.
func (srv *SQLiteServer) DeleteDatabase(name string) error {
	ok, err := srv.HasDatabase(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrDatabaseNotFound)
	}

	srv.mu.Lock()
	if conn, open := srv.conns[name]; open {
		conn.Close()
		delete(srv.conns, name)
	}
	srv.mu.Unlock()

	path := srv.filePath(name)
	os.Remove(path + "-shm")
	os.Remove(path + "-wal")
	return os.Remove(path)
}

func (srv *SQLiteServer) open(name string) (*sql.DB, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if conn, ok := srv.conns[name]; ok {
		return conn, nil
	}
	conn, err := sql.Open("sqlite3", srv.filePath(name)+"?_journal=WAL")
	if err != nil {
		return nil, err
	}
	srv.conns[name] = conn
	return conn, nil
}

func (srv *SQLiteServer) connection(name string) (*sql.DB, error) {
	ok, err := srv.HasDatabase(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrDatabaseNotFound)
	}
	return srv.open(name)
}

type sqliteHandle struct {
	srv  *SQLiteServer
	name string
}

func (h *sqliteHandle) Name() string { return h.name }

func (h *sqliteHandle) Get(id string) ([]byte, error) {
	conn, err := h.srv.connection(h.name)
	if err != nil {
		return nil, err
	}

	var (
		rev     string
		deleted bool
		data    string
	)
	row := conn.QueryRow("SELECT rev, deleted, data FROM documents WHERE doc_id = ?", id)
	if err := row.Scan(&rev, &deleted, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deleted {
		return nil, nil
	}
	return withMeta(id, rev, []byte(data)), nil
}

func (h *sqliteHandle) Put(id, rev string, body []byte) (string, string, error) {
	conn, err := h.srv.connection(h.name)
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

	tx, err := conn.Begin()
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback()

	var (
		currentRev     string
		currentDeleted bool
		exists         = true
	)
	row := tx.QueryRow("SELECT rev, deleted FROM documents WHERE doc_id = ?", id)
	if err := row.Scan(&currentRev, &currentDeleted); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", "", err
		}
		exists = false
	}

	if exists && !currentDeleted && currentRev != rev {
		return "", "", fmt.Errorf("%q: %w", id, ErrConflict)
	}
	if !exists && rev != "" {
		return "", "", fmt.Errorf("%q: %w", id, ErrConflict)
	}

	base := rev
	if exists && currentDeleted {
		base = currentRev
	}
	newRev := nextRev(base, stripped)

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO documents (doc_id, rev, deleted, data) VALUES (?, ?, 0, ?)",
		id, newRev, string(stripped),
	)
	if err != nil {
		return "", "", err
	}
	if err := tx.Commit(); err != nil {
		return "", "", err
	}

	return id, newRev, nil
}

func (h *sqliteHandle) Delete(id, rev string) error {
	conn, err := h.srv.connection(h.name)
	if err != nil {
		return err
	}

	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		currentRev     string
		currentDeleted bool
	)
	row := tx.QueryRow("SELECT rev, deleted FROM documents WHERE doc_id = ?", id)
	if err := row.Scan(&currentRev, &currentDeleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%q: %w", id, ErrNotFound)
		}
		return err
	}
	if currentDeleted {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if currentRev != rev {
		return fmt.Errorf("%q: %w", id, ErrConflict)
	}

	_, err = tx.Exec(
		"UPDATE documents SET deleted = 1, rev = ? WHERE doc_id = ?",
		nextRev(currentRev, []byte("{}")), id,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (h *sqliteHandle) Query(design, view string, opts QueryOptions) ([]Row, error) {
	conn, err := h.srv.connection(h.name)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query("SELECT doc_id, rev, data FROM documents WHERE deleted = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []map[string]interface{}
	for rows.Next() {
		var id, rev, data string
		if err := rows.Scan(&id, &rev, &data); err != nil {
			return nil, err
		}
		if strings.HasPrefix(id, "_design/") {
			continue
		}
		raw, err := unmarshalDoc(withMeta(id, rev, []byte(data)))
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return h.srv.index.Run(docs, design, view, opts)
}

package couchkit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SyncCallback runs after every successful sync with the live database.
// Callbacks run in registration order.
type SyncCallback func(db Database) error

// Manager collects document types and view definitions at application
// setup and reconciles them against the store. The registry is populated
// once at startup and treated as read-only afterwards.
type Manager struct {
	autoSync  bool
	viewdefs  []*ViewDefinition
	docTypes  []*DocType
	callbacks []SyncCallback
	logger    *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAutoSync controls whether the request middleware syncs before every
// request. On by default.
func WithAutoSync(autoSync bool) ManagerOption {
	return func(m *Manager) { m.autoSync = autoSync }
}

// WithLogger sets the manager's logger. Nop by default.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{autoSync: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddDocType registers a document type: every view attached to it will be
// published on the next sync.
func (m *Manager) AddDocType(dts ...*DocType) {
	for _, dt := range dts {
		m.docTypes = append(m.docTypes, dt)
		m.viewdefs = append(m.viewdefs, dt.views...)
	}
}

// AddViewDef registers standalone view definitions.
func (m *Manager) AddViewDef(vds ...*ViewDefinition) {
	m.viewdefs = append(m.viewdefs, vds...)
}

// OnSync registers a callback to run after the design documents are
// written. Callbacks see the live database and run in registration order
// on every sync, so seeding work must be idempotent.
func (m *Manager) OnSync(fn SyncCallback) {
	m.callbacks = append(m.callbacks, fn)
}

// AllViewDefs returns every registered view definition in registration
// order, document-class views included.
func (m *Manager) AllViewDefs() []*ViewDefinition {
	out := make([]*ViewDefinition, len(m.viewdefs))
	copy(out, m.viewdefs)
	return out
}

// designDocs folds the registry into design documents. A later
// registration of the same (design, view) pair silently wins.
func (m *Manager) designDocs() map[string]*DesignDoc {
	docs := make(map[string]*DesignDoc)
	for _, vd := range m.viewdefs {
		doc, ok := docs[vd.design]
		if !ok {
			doc = &DesignDoc{Language: vd.language, Views: make(map[string]DesignDocView)}
			docs[vd.design] = doc
		}
		doc.Views[vd.name] = DesignDocView{Map: vd.mapFn, Reduce: vd.reduceFn}
	}
	return docs
}

// Sync reconciles the registry with the store: the database is created if
// absent, then each design document is fetched, compared against the
// registered definitions and written back only when its content differs.
// Re-running with an unchanged registry issues no writes. Post-sync
// callbacks run after all design documents are written.
func (m *Manager) Sync(srv Server, dbName string) error {
	ok, err := srv.HasDatabase(dbName)
	if err != nil {
		return err
	}
	if !ok {
		if err := srv.CreateDatabase(dbName); err != nil {
			return err
		}
		m.logger.Info("created database", zap.String("db", dbName))
	}

	db := srv.Database(dbName)

	docs := m.designDocs()
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.syncDesignDoc(db, name, docs[name]); err != nil {
			return err
		}
	}

	for _, fn := range m.callbacks {
		if err := fn(db); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) syncDesignDoc(db Database, name string, desired *DesignDoc) error {
	id := "_design/" + name

	stored, err := db.Get(id)
	if err != nil {
		return err
	}

	var rev string
	if stored != nil {
		var current DesignDoc
		if err := json.Unmarshal(stored, &current); err != nil {
			return fmt.Errorf("%s: %s: %w", id, err, ErrBadJSON)
		}
		rev = current.Rev
		if viewsEqual(current.Views, desired.Views) && current.Language == desired.Language {
			m.logger.Debug("design document unchanged", zap.String("id", id))
			return nil
		}
	}

	body, err := json.Marshal(DesignDoc{Language: desired.Language, Views: desired.Views})
	if err != nil {
		return fmt.Errorf("%s: %s: %w", id, err, ErrBadJSON)
	}

	if msgs := validateDesignDoc(body); len(msgs) > 0 {
		return fmt.Errorf("%s: %s: %w", id, strings.Join(msgs, "; "), ErrSyncWrite)
	}

	if _, _, err := db.Put(id, rev, body); err != nil {
		return fmt.Errorf("%s: %s: %w", id, err, ErrSyncWrite)
	}

	m.logger.Info("published design document",
		zap.String("id", id), zap.Int("views", len(desired.Views)))
	return nil
}

// viewsEqual compares stored and computed view bodies byte for byte, via
// the canonical (sorted-key) JSON encoding.
func viewsEqual(a, b map[string]DesignDocView) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

package couchkit

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

type contextKey int

const databaseKey contextKey = 0

// RequestDatabase returns the database handle the middleware attached to
// the request context, or nil outside a managed request.
func RequestDatabase(ctx context.Context) Database {
	db, _ := ctx.Value(databaseKey).(Database)
	return db
}

// Middleware returns a handler wrapper that runs before every request:
// it syncs the registry when the manager is in auto-sync mode (unless the
// configuration disables it) and attaches the database handle to the
// request context. The signature matches mux.MiddlewareFunc, so it plugs
// straight into router.Use.
func (m *Manager) Middleware(srv Server, cfg *Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.autoSync && !cfg.DisableAutoSync {
				if err := m.Sync(srv, cfg.Database); err != nil {
					NotOK(err, w)
					return
				}
			}
			ctx := context.WithValue(r.Context(), databaseKey, srv.Database(cfg.Database))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Setup wires the manager into a router and runs the initial sync. Returns
// the first sync error, with the middleware installed either way.
func (m *Manager) Setup(router *mux.Router, srv Server, cfg *Config) error {
	router.Use(m.Middleware(srv, cfg))
	if err := cfg.Validate(); err != nil {
		return err
	}
	return m.Sync(srv, cfg.Database)
}

// Package couchkit binds a web application's request lifecycle to a
// document database: declarative schemas over JSON documents, typed
// documents with optimistic-concurrency stores, idempotent synchronization
// of view definitions into design documents, and cursor-based pagination
// over view results.
//
// A document type is declared once at startup with an explicit schema
// builder, its views attached by name:
//
//	post := couchkit.NewDocType("blogpost", couchkit.NewSchema(
//		couchkit.Text("title"),
//		couchkit.Text("author"),
//		couchkit.List("tags", couchkit.Text("tag")),
//		couchkit.DateTime("created").DefaultFunc(func() interface{} { return time.Now().UTC() }),
//	))
//	byAuthor := post.View("blog", "by_author", `function (doc) {
//		if (doc.doc_type == 'blogpost') { emit(doc.author, doc); }
//	}`, "")
//
// A Manager collects the registered types and standalone view definitions
// and reconciles them with the store, writing only the design documents
// whose content actually changed:
//
//	manager := couchkit.NewManager()
//	manager.AddDocType(post)
//	if err := manager.Sync(server, "blog"); err != nil { ... }
//
// At request time documents load and store through an explicit database
// handle, and view results page with opaque cursors:
//
//	db := server.Database("blog")
//	page, err := couchkit.Paginate(byAuthor.Bind(db), 10, r.FormValue("start"))
//
// The package consumes any Server/Database implementation; an HTTP CouchDB
// client, an in-memory store and a SQLite-backed store are included.
package couchkit

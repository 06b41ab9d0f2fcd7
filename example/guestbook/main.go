// A simple guestbook people can sign. Signatures live in CouchDB, newest
// first, five to a page.
package main

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"couchkit"
)

var signature = couchkit.NewDocType("signature", couchkit.NewSchema(
	couchkit.Text("message"),
	couchkit.Text("author"),
	couchkit.DateTime("time").DefaultFunc(func() interface{} { return time.Now().UTC() }),
))

var allSignatures = signature.View("guestbook", "all", `
	function (doc) {
		if (doc.doc_type == 'signature') {
			emit(doc.time, doc);
		};
	}`, "").WithDefaults(couchkit.QueryOptions{Descending: true})

func display(w http.ResponseWriter, r *http.Request) {
	db := couchkit.RequestDatabase(r.Context())

	page, err := couchkit.Paginate(allSignatures.Bind(db), 5, r.FormValue("start"))
	if err != nil {
		couchkit.NotOK(err, w)
		return
	}
	docs, err := page.WrapRows(allSignatures)
	if err != nil {
		couchkit.NotOK(err, w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<h1>Guestbook</h1>")
	for _, doc := range docs {
		author, _ := doc.Get("author")
		message, _ := doc.Get("message")
		fmt.Fprintf(w, "<p><b>%s</b>: %s</p>",
			html.EscapeString(author.(string)), html.EscapeString(message.(string)))
	}
	if page.Next != "" {
		fmt.Fprintf(w, `<a href="/?start=%s">older</a> `, page.Next)
	}
	if page.Prev != "" {
		fmt.Fprintf(w, `<a href="/?start=%s">newer</a>`, page.Prev)
	}
	fmt.Fprint(w, `<form method="post">
		<input name="author" placeholder="name">
		<input name="message" placeholder="message">
		<button>Sign</button></form>`)
}

func post(w http.ResponseWriter, r *http.Request) {
	db := couchkit.RequestDatabase(r.Context())

	author := r.FormValue("author")
	message := r.FormValue("message")
	if author == "" || message == "" {
		http.Error(w, "you must fill in both a message and an author", http.StatusBadRequest)
		return
	}

	doc := signature.New()
	doc.Set("author", author)
	doc.Set("message", message)
	if err := doc.Store(db); err != nil {
		couchkit.NotOK(err, w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func main() {
	cfg, err := couchkit.LoadConfig("")
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Database == "" {
		cfg.Database = "example-guestbook"
	}

	server := couchkit.NewCouchServer(cfg.Server, nil)

	manager := couchkit.NewManager()
	manager.AddDocType(signature)

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", display).Methods("GET")
	router.HandleFunc("/", post).Methods("POST")

	if err := manager.Setup(router, server, cfg); err != nil {
		log.Fatal(err)
	}

	log.Fatal(http.ListenAndServe(":8080", router))
}

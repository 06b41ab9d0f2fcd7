package couchkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

// CouchServer talks to a CouchDB server over HTTP. It implements Server.
type CouchServer struct {
	baseURL string
	client  *http.Client
}

// NewCouchServer builds a server handle for the given address, e.g.
// "http://localhost:5984/". client may be nil for http.DefaultClient.
func NewCouchServer(address string, client *http.Client) *CouchServer {
	if client == nil {
		client = http.DefaultClient
	}
	return &CouchServer{baseURL: strings.TrimRight(address, "/"), client: client}
}

func (srv *CouchServer) HasDatabase(name string) (bool, error) {
	resp, err := srv.do("HEAD", "/"+url.PathEscape(name), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, decodeCouchError(resp)
}

func (srv *CouchServer) CreateDatabase(name string) error {
	resp, err := srv.do("PUT", "/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted {
		return nil
	}
	return decodeCouchError(resp)
}

func (srv *CouchServer) Database(name string) Database {
	return &couchDatabase{srv: srv, name: name}
}

func (srv *CouchServer) do(method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return srv.client.Do(req)
}

type couchDatabase struct {
	srv  *CouchServer
	name string
}

func (db *couchDatabase) Name() string { return db.name }

func (db *couchDatabase) path(id string) string {
	// design document ids keep their path shape
	if strings.HasPrefix(id, "_design/") {
		return "/" + url.PathEscape(db.name) + "/_design/" + url.PathEscape(strings.TrimPrefix(id, "_design/"))
	}
	return "/" + url.PathEscape(db.name) + "/" + url.PathEscape(id)
}

func (db *couchDatabase) Get(id string) ([]byte, error) {
	resp, err := db.srv.do("GET", db.path(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeCouchError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (db *couchDatabase) Put(id, rev string, body []byte) (string, string, error) {
	stripped, err := normalizeBody(body)
	if err != nil {
		return "", "", err
	}
	if rev != "" {
		stripped = withRev(rev, stripped)
	}

	var resp *http.Response
	if id == "" {
		resp, err = db.srv.do("POST", "/"+url.PathEscape(db.name), stripped)
	} else {
		resp, err = db.srv.do("PUT", db.path(id), stripped)
	}
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", "", decodeCouchError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	var result struct {
		ID  string `json:"id"`
		Rev string `json:"rev"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", "", fmt.Errorf("%s: %w", err, ErrBadJSON)
	}
	return result.ID, result.Rev, nil
}

func (db *couchDatabase) Delete(id, rev string) error {
	resp, err := db.srv.do("DELETE", db.path(id)+"?rev="+url.QueryEscape(rev), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeCouchError(resp)
}

func (db *couchDatabase) Query(design, view string, opts QueryOptions) ([]Row, error) {
	params := url.Values{}
	if opts.StartKey != nil {
		key, err := json.Marshal(opts.StartKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
		}
		params.Set("startkey", string(key))
	}
	if opts.StartKeyDocID != "" {
		params.Set("startkey_docid", opts.StartKeyDocID)
	}
	if opts.EndKey != nil {
		key, err := json.Marshal(opts.EndKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
		}
		params.Set("endkey", string(key))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Skip > 0 {
		params.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Descending {
		params.Set("descending", "true")
	}
	if opts.Group {
		params.Set("group", "true")
	}
	if opts.IncludeDocs {
		params.Set("include_docs", "true")
	}

	path := "/" + url.PathEscape(db.name) + "/_design/" + url.PathEscape(design) +
		"/_view/" + url.PathEscape(view)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := db.srv.do("GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeCouchError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseViewRows(data)
}

// parseViewRows decodes a CouchDB view response body into rows.
func parseViewRows(data []byte) ([]Row, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
	}

	items := v.GetArray("rows")
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		var row Row
		if idv := item.Get("id"); idv != nil {
			id, _ := idv.StringBytes()
			row.ID = string(id)
		}
		if keyv := item.Get("key"); keyv != nil && keyv.Type() != fastjson.TypeNull {
			raw, err := jsonValue(keyv.MarshalTo(nil))
			if err != nil {
				return nil, err
			}
			row.Key = raw
		}
		if valv := item.Get("value"); valv != nil && valv.Type() != fastjson.TypeNull {
			raw, err := jsonValue(valv.MarshalTo(nil))
			if err != nil {
				return nil, err
			}
			row.Value = raw
		}
		if docv := item.Get("doc"); docv != nil && docv.Type() != fastjson.TypeNull {
			row.Doc = docv.MarshalTo(nil)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// jsonValue decodes arbitrary JSON keeping numbers as json.Number.
func jsonValue(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
	}
	return v, nil
}

// withRev splices a _rev key into the front of a JSON object body.
func withRev(rev string, body []byte) []byte {
	var meta string
	if len(body) == 2 {
		meta = fmt.Sprintf(`{"_rev":%s`, quoteJSON(rev))
	} else {
		meta = fmt.Sprintf(`{"_rev":%s,`, quoteJSON(rev))
	}
	data := make([]byte, len(meta), len(meta)+len(body)-1)
	copy(data, meta)
	return append(data, body[1:]...)
}

// decodeCouchError maps a CouchDB error response onto the local taxonomy.
func decodeCouchError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var body struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	json.Unmarshal(data, &body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		if body.Reason == "no_db_file" {
			return fmt.Errorf("%s: %w", body.Reason, ErrDatabaseNotFound)
		}
		return fmt.Errorf("%s: %w", body.Reason, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", body.Reason, ErrConflict)
	case http.StatusPreconditionFailed:
		return fmt.Errorf("%s: %w", body.Reason, ErrDatabaseExists)
	}
	return fmt.Errorf("%d %s %s: %w", resp.StatusCode, body.Error, body.Reason, ErrInternalError)
}

package couchkit

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

func formatRev(version int, hash string) string {
	return fmt.Sprintf("%d-%s", version, hash)
}

func parseRev(rev string) (int, string) {
	fields := strings.SplitN(strings.ReplaceAll(rev, `"`, ""), "-", 2)
	if len(fields) != 2 {
		return 0, ""
	}
	version, _ := strconv.Atoi(fields[0])
	return version, fields[1]
}

func nextRev(rev string, body []byte) string {
	version, _ := parseRev(rev)
	return formatRev(version+1, fmt.Sprintf("%x", md5.Sum(body)))
}

// withMeta splices _id and _rev into the front of a stored JSON object.
func withMeta(id, rev string, body []byte) []byte {
	var meta string
	if len(body) == 2 {
		meta = fmt.Sprintf(`{"_id":%s,"_rev":%s`, quoteJSON(id), quoteJSON(rev))
	} else {
		meta = fmt.Sprintf(`{"_id":%s,"_rev":%s,`, quoteJSON(id), quoteJSON(rev))
	}
	data := make([]byte, len(meta), len(meta)+len(body)-1)
	copy(data, meta)
	return append(data, body[1:]...)
}

func quoteJSON(s string) string {
	return strconv.Quote(s)
}

// normalizeBody checks that body is a JSON object and strips any _id, _rev
// or _deleted meta keys a caller left in, returning the bare body.
func normalizeBody(body []byte) ([]byte, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
	}
	if v.GetObject() == nil {
		return nil, fmt.Errorf("%s: %w", "payload expected as json object", ErrDocumentInvalidInput)
	}

	for _, key := range []string{"_id", "_rev", "_deleted"} {
		if v.Exists(key) {
			v.Del(key)
		}
	}

	return v.MarshalTo(nil), nil
}

func validateDBName(name string) bool {
	if len(name) == 0 || strings.Contains(name, "$") || strings.Contains(name, "/") || name[0] == '_' {
		return false
	}
	return true
}

func validateDocID(id string) bool {
	id = strings.Trim(id, " ")
	if len(id) > 0 && !strings.HasPrefix(id, "_design/") && id[0] == '_' {
		return false
	}
	return true
}

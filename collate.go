package couchkit

import (
	"encoding/json"
	"sort"
	"strings"
)

// collationRank orders JSON values by type the way CouchDB views do:
// null < booleans < numbers < strings < arrays < objects.
func collationRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int64, float64, json.Number:
		return 2
	case string:
		return 3
	case []interface{}:
		return 4
	case map[string]interface{}:
		return 5
	}
	return 6
}

// collateJSON compares two view keys. Strings compare bytewise, a
// simplification of CouchDB's ICU collation that keeps ASCII keys ordered
// identically.
func collateJSON(a, b interface{}) int {
	ra, rb := collationRank(a), collationRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		af, _ := rawFloat64(a)
		bf, _ := rawFloat64(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 4:
		as, bs := a.([]interface{}), b.([]interface{})
		for i := 0; i < len(as) && i < len(bs); i++ {
			if c := collateJSON(as[i], bs[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(as) < len(bs):
			return -1
		case len(as) > len(bs):
			return 1
		default:
			return 0
		}
	case 5:
		return strings.Compare(canonicalObject(a), canonicalObject(b))
	}
	return 0
}

// canonicalObject renders an object key with sorted members, good enough
// for a stable object ordering.
func canonicalObject(v interface{}) string {
	m := v.(map[string]interface{})
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		sb.Write(kb)
		sb.WriteByte(':')
		sb.Write(vb)
	}
	sb.WriteByte('}')
	return sb.String()
}

// collateRow orders rows by (key, doc id), the view's natural order.
func collateRow(a, b Row) int {
	if c := collateJSON(a.Key, b.Key); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

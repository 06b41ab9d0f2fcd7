package couchkit

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MapFunc emits zero or more (key, value) pairs for one document. The
// document includes its _id and _rev meta keys.
type MapFunc func(doc map[string]interface{}, emit func(key, value interface{}))

// ReduceFunc combines mapped values. With rereduce set it receives
// already-reduced intermediate values instead of raw mapped ones.
type ReduceFunc func(keys []interface{}, values []interface{}, rereduce bool) interface{}

// reduceBatch bounds how many values a single reduce invocation sees
// before intermediates are combined with a rereduce pass.
const reduceBatch = 100

// CountReduce is the _count builtin: the number of mapped values.
func CountReduce(keys []interface{}, values []interface{}, rereduce bool) interface{} {
	if !rereduce {
		return len(values)
	}
	total := 0
	for _, v := range values {
		n, _ := rawInt64(v)
		total += int(n)
	}
	return total
}

// SumReduce is the _sum builtin: the numeric sum of mapped values.
func SumReduce(keys []interface{}, values []interface{}, rereduce bool) interface{} {
	total := 0.0
	for _, v := range values {
		f, _ := rawFloat64(v)
		total += f
	}
	return total
}

type indexedView struct {
	mapFn    MapFunc
	reduceFn ReduceFunc
}

// MapIndex evaluates registered Go view functions over a backend's
// documents. The embedded backends publish map/reduce bodies like any
// store but execute these functions; registration mirrors the view names
// the sync engine publishes.
type MapIndex struct {
	mu    sync.RWMutex
	views map[string]indexedView
}

func NewMapIndex() *MapIndex {
	return &MapIndex{views: make(map[string]indexedView)}
}

// Register binds Go functions to the (design, view) pair. A nil reduceFn
// declares a map-only view.
func (ix *MapIndex) Register(design, view string, mapFn MapFunc, reduceFn ReduceFunc) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.views[design+"/"+view] = indexedView{mapFn: mapFn, reduceFn: reduceFn}
}

// Run maps every document, sorts rows in collation order and applies the
// query options. docs hold their _id meta key.
func (ix *MapIndex) Run(docs []map[string]interface{}, design, view string, opts QueryOptions) ([]Row, error) {
	ix.mu.RLock()
	iv, ok := ix.views[design+"/"+view]
	ix.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", design, view, ErrViewNotFound)
	}

	var rows []Row
	for _, doc := range docs {
		id, _ := doc["_id"].(string)
		iv.mapFn(doc, func(key, value interface{}) {
			rows = append(rows, Row{ID: id, Key: key, Value: value})
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return collateRow(rows[i], rows[j]) < 0
	})

	if iv.reduceFn != nil {
		rows = reduceRows(rows, iv.reduceFn, opts.Group)
	}

	rows = applyWindow(rows, opts)

	if opts.IncludeDocs && iv.reduceFn == nil {
		byID := make(map[string][]byte, len(docs))
		for _, doc := range docs {
			id, _ := doc["_id"].(string)
			data, err := json.Marshal(doc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", err, ErrBadJSON)
			}
			byID[id] = data
		}
		for i := range rows {
			rows[i].Doc = byID[rows[i].ID]
		}
	}

	return rows, nil
}

func reduceRows(rows []Row, reduceFn ReduceFunc, group bool) []Row {
	if !group {
		if len(rows) == 0 {
			return nil
		}
		keys := make([]interface{}, len(rows))
		values := make([]interface{}, len(rows))
		for i, r := range rows {
			keys[i] = r.Key
			values[i] = r.Value
		}
		return []Row{{Key: nil, Value: reduceValues(keys, values, reduceFn)}}
	}

	var out []Row
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && collateJSON(rows[i].Key, rows[start].Key) == 0 {
			continue
		}
		grp := rows[start:i]
		keys := make([]interface{}, len(grp))
		values := make([]interface{}, len(grp))
		for j, r := range grp {
			keys[j] = r.Key
			values[j] = r.Value
		}
		out = append(out, Row{Key: grp[0].Key, Value: reduceValues(keys, values, reduceFn)})
		start = i
	}
	return out
}

// reduceValues reduces in bounded batches, combining intermediates with a
// rereduce pass when more than one batch was needed.
func reduceValues(keys, values []interface{}, reduceFn ReduceFunc) interface{} {
	if len(values) <= reduceBatch {
		return reduceFn(keys, values, false)
	}
	var partials []interface{}
	for start := 0; start < len(values); start += reduceBatch {
		end := start + reduceBatch
		if end > len(values) {
			end = len(values)
		}
		partials = append(partials, reduceFn(keys[start:end], values[start:end], false))
	}
	return reduceFn(nil, partials, true)
}

// applyWindow applies ordering direction, start/end bounds, skip and
// limit. Bounds are inclusive, as in the view query protocol.
func applyWindow(rows []Row, opts QueryOptions) []Row {
	if opts.Descending {
		rev := make([]Row, len(rows))
		for i, r := range rows {
			rev[len(rows)-1-i] = r
		}
		rows = rev
	}

	if opts.StartKey != nil {
		start := Row{Key: opts.StartKey, ID: opts.StartKeyDocID}
		i := 0
		for ; i < len(rows); i++ {
			if inRangeFrom(rows[i], start, opts.Descending) {
				break
			}
		}
		rows = rows[i:]
	}

	if opts.EndKey != nil {
		end := Row{Key: opts.EndKey}
		i := 0
		for ; i < len(rows); i++ {
			c := collateJSON(rows[i].Key, end.Key)
			if (!opts.Descending && c > 0) || (opts.Descending && c < 0) {
				break
			}
		}
		rows = rows[:i]
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[opts.Skip:]
		}
	}

	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}

	return rows
}

// inRangeFrom reports whether row is at or past the start bound in the
// traversal direction. Without a start doc id only keys compare, so a
// descending query starts at the last row of the start key.
func inRangeFrom(row, start Row, descending bool) bool {
	c := collateJSON(row.Key, start.Key)
	if c == 0 && start.ID != "" {
		switch {
		case row.ID == start.ID:
			c = 0
		case row.ID < start.ID:
			c = -1
		default:
			c = 1
		}
	}
	if descending {
		return c <= 0
	}
	return c >= 0
}

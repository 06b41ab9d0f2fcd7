package couchkit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ViewFunc is a callable view query: ordered rows for the given options.
type ViewFunc func(opts QueryOptions) ([]Row, error)

// Page is one window over an ordered view, with opaque cursors into the
// neighboring windows. An absent cursor is "".
type Page struct {
	Rows []Row
	Prev string
	Next string
}

// WrapRows coerces the page's rows through vd's wrapper document type.
func (p *Page) WrapRows(vd *ViewDefinition) ([]*Document, error) {
	docs := make([]*Document, len(p.Rows))
	for i, row := range p.Rows {
		doc, err := vd.WrapRow(row)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	return docs, nil
}

// encodeCursor renders a row's identity as an opaque url-safe token. The
// doc id rides along so ties on key stay unambiguous.
func encodeCursor(row Row) string {
	data, _ := json.Marshal([2]interface{}{row.Key, row.ID})
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(cursor string) (interface{}, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", err, ErrBadCursor)
	}
	v, err := jsonValue(data)
	if err != nil {
		return nil, "", fmt.Errorf("malformed cursor: %w", ErrBadCursor)
	}
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, "", fmt.Errorf("malformed cursor: %w", ErrBadCursor)
	}
	id, ok := pair[1].(string)
	if !ok {
		return nil, "", fmt.Errorf("malformed cursor: %w", ErrBadCursor)
	}
	return pair[0], id, nil
}

// Paginate fetches one page of pageSize rows from a view, starting at
// cursor ("" for the beginning). Cursors are pure functions of row
// identity, never positional, so rows inserted or deleted elsewhere in the
// view do not shift a page already in hand.
func Paginate(view ViewFunc, pageSize int, cursor string) (*Page, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("paginate: page size must be positive, got %d", pageSize)
	}

	var (
		startKey interface{}
		startID  string
	)
	if cursor != "" {
		var err error
		startKey, startID, err = decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	// one extra row tells us whether a next page exists
	rows, err := view(QueryOptions{
		StartKey:      startKey,
		StartKeyDocID: startID,
		Limit:         pageSize + 1,
	})
	if err != nil {
		return nil, err
	}

	page := &Page{}
	if len(rows) > pageSize {
		page.Next = encodeCursor(rows[pageSize])
		rows = rows[:pageSize]
	}
	page.Rows = rows

	if cursor != "" {
		prev, err := prevCursor(view, startKey, startID, pageSize)
		if err != nil {
			return nil, err
		}
		page.Prev = prev
	}
	return page, nil
}

// prevCursor finds the start of the preceding page with a single bounded
// reverse query: walk backwards from the current start (exclusive) for at
// most pageSize rows; the last one reached is where the previous page
// begins.
func prevCursor(view ViewFunc, startKey interface{}, startID string, pageSize int) (string, error) {
	rows, err := view(QueryOptions{
		StartKey:      startKey,
		StartKeyDocID: startID,
		Descending:    true,
		Skip:          1,
		Limit:         pageSize,
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return encodeCursor(rows[len(rows)-1]), nil
}

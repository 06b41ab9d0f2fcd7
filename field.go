package couchkit

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the semantic type tag of a Field.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindLong
	KindFloat
	KindDecimal
	KindBoolean
	KindDateTime
	KindDate
	KindTime
	KindList
	KindDict
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Field is a named, typed accessor on a Schema. Values pass through the
// field codec on the way in and out of the raw document.
type Field struct {
	name   string
	kind   Kind
	def    interface{}
	defFn  func() interface{}
	elem   *Field
	nested *Schema
}

func newField(name string, kind Kind) *Field {
	return &Field{name: name, kind: kind}
}

// Text declares a string field.
func Text(name string) *Field { return newField(name, KindText) }

// Integer declares an int field.
func Integer(name string) *Field { return newField(name, KindInteger) }

// Long declares an int64 field.
func Long(name string) *Field { return newField(name, KindLong) }

// Float declares a float64 field.
func Float(name string) *Field { return newField(name, KindFloat) }

// Decimal declares an arbitrary-precision decimal field, stored as text.
func Decimal(name string) *Field { return newField(name, KindDecimal) }

// Boolean declares a bool field.
func Boolean(name string) *Field { return newField(name, KindBoolean) }

// DateTime declares a time.Time field stored as RFC 3339 text.
func DateTime(name string) *Field { return newField(name, KindDateTime) }

// Date declares a calendar-date field stored as "2006-01-02" text.
func Date(name string) *Field { return newField(name, KindDate) }

// Time declares a time-of-day field stored as "15:04:05" text.
func Time(name string) *Field { return newField(name, KindTime) }

// List declares a homogeneous list field. The element field's own name is
// ignored.
func List(name string, elem *Field) *Field {
	f := newField(name, KindList)
	f.elem = elem
	return f
}

// Dict declares an untyped mapping field, passed through unchanged.
func Dict(name string) *Field { return newField(name, KindDict) }

// DictOf declares a mapping field whose members are encoded and decoded
// through the given schema.
func DictOf(name string, schema *Schema) *Field {
	f := newField(name, KindDict)
	f.nested = schema
	return f
}

// Default sets a static default value, applied when an instance is built.
func (f *Field) Default(v interface{}) *Field {
	f.def = v
	f.defFn = nil
	return f
}

// DefaultFunc sets a default producer, invoked fresh for every instance.
func (f *Field) DefaultFunc(fn func() interface{}) *Field {
	f.defFn = fn
	f.def = nil
	return f
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Kind returns the field's semantic type tag.
func (f *Field) Kind() Kind { return f.kind }

func (f *Field) mismatch(detail string) error {
	return fmt.Errorf("field %q: %s: %w", f.name, detail, ErrSchemaMismatch)
}

func (f *Field) defaultValue() (interface{}, bool) {
	if f.defFn != nil {
		return f.defFn(), true
	}
	if f.def != nil {
		return f.def, true
	}
	return nil, false
}

func (f *Field) zeroValue() interface{} {
	switch f.kind {
	case KindText:
		return ""
	case KindInteger:
		return 0
	case KindLong:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindDecimal:
		return decimal.Zero
	case KindBoolean:
		return false
	case KindDateTime, KindDate, KindTime:
		return time.Time{}
	case KindList:
		return []interface{}(nil)
	case KindDict:
		if f.nested != nil {
			return nil
		}
		return map[string]interface{}(nil)
	}
	return nil
}

// Encode converts a typed value into a JSON-compatible primitive.
func (f *Field) Encode(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f.kind {
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected string, got %T", v))
		}
		return s, nil
	case KindInteger:
		n, err := toInt64(v)
		if err != nil {
			return nil, f.mismatch(err.Error())
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, f.mismatch(fmt.Sprintf("value %d out of integer range", n))
		}
		return int(n), nil
	case KindLong:
		n, err := toInt64(v)
		if err != nil {
			return nil, f.mismatch(err.Error())
		}
		return n, nil
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
		return nil, f.mismatch(fmt.Sprintf("expected float, got %T", v))
	case KindDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x.String(), nil
		case string:
			d, err := decimal.NewFromString(x)
			if err != nil {
				return nil, f.mismatch(err.Error())
			}
			return d.String(), nil
		}
		return nil, f.mismatch(fmt.Sprintf("expected decimal, got %T", v))
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected bool, got %T", v))
		}
		return b, nil
	case KindDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected time.Time, got %T", v))
		}
		return t.Format(time.RFC3339Nano), nil
	case KindDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected time.Time, got %T", v))
		}
		return t.Format(dateLayout), nil
	case KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected time.Time, got %T", v))
		}
		return t.Format(timeLayout), nil
	case KindList:
		items, ok := v.([]interface{})
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected list, got %T", v))
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			enc, err := f.elem.Encode(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case KindDict:
		if f.nested != nil {
			rec, ok := v.(*Record)
			if !ok {
				return nil, f.mismatch(fmt.Sprintf("expected *Record, got %T", v))
			}
			return rec.Unwrap(), nil
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected map, got %T", v))
		}
		return m, nil
	}
	return nil, f.mismatch("unknown field kind")
}

// Decode converts a stored JSON primitive back into its typed value.
func (f *Field) Decode(raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.kind {
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected string, got %T", raw))
		}
		return s, nil
	case KindInteger:
		n, err := rawInt64(raw)
		if err != nil {
			return nil, f.mismatch(err.Error())
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, f.mismatch(fmt.Sprintf("value %d out of integer range", n))
		}
		return int(n), nil
	case KindLong:
		n, err := rawInt64(raw)
		if err != nil {
			return nil, f.mismatch(err.Error())
		}
		return n, nil
	case KindFloat:
		x, err := rawFloat64(raw)
		if err != nil {
			return nil, f.mismatch(err.Error())
		}
		return x, nil
	case KindDecimal:
		s, ok := raw.(string)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected decimal text, got %T", raw))
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, f.mismatch(err.Error())
		}
		return d, nil
	case KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected bool, got %T", raw))
		}
		return b, nil
	case KindDateTime:
		return f.parseTime(raw, time.RFC3339Nano)
	case KindDate:
		return f.parseTime(raw, dateLayout)
	case KindTime:
		return f.parseTime(raw, timeLayout)
	case KindList:
		items, ok := raw.([]interface{})
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected list, got %T", raw))
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			dec, err := f.elem.Decode(item)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	case KindDict:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, f.mismatch(fmt.Sprintf("expected map, got %T", raw))
		}
		if f.nested != nil {
			return f.nested.Wrap(m)
		}
		return m, nil
	}
	return nil, f.mismatch("unknown field kind")
}

func (f *Field) parseTime(raw interface{}, layout string) (interface{}, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, f.mismatch(fmt.Sprintf("expected time text, got %T", raw))
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil, f.mismatch(err.Error())
	}
	return t, nil
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

// rawInt64 accepts the integer shapes a stored document can produce:
// plain Go ints set locally, json.Number from the lossless decode path,
// and float64 from callers using the default json decoder.
func rawInt64(raw interface{}) (int64, error) {
	switch x := raw.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case json.Number:
		return x.Int64()
	case float64:
		n := int64(x)
		if float64(n) != x {
			return 0, fmt.Errorf("expected integer, got %v", x)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}

func rawFloat64(raw interface{}) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	}
	return 0, fmt.Errorf("expected float, got %T", raw)
}

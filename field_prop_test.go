package couchkit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Round-trip law: decode(encode(x)) == x for every supported scalar type.
func TestPropertyCodecRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("text round-trips", prop.ForAll(
		func(s string) bool {
			f := Text("x")
			enc, err := f.Encode(s)
			if err != nil {
				return false
			}
			dec, err := f.Decode(enc)
			return err == nil && dec == s
		},
		gen.AnyString(),
	))

	properties.Property("long round-trips", prop.ForAll(
		func(n int64) bool {
			f := Long("x")
			enc, err := f.Encode(n)
			if err != nil {
				return false
			}
			dec, err := f.Decode(enc)
			return err == nil && dec == n
		},
		gen.Int64(),
	))

	properties.Property("float round-trips", prop.ForAll(
		func(x float64) bool {
			f := Float("x")
			enc, err := f.Encode(x)
			if err != nil {
				return false
			}
			dec, err := f.Decode(enc)
			return err == nil && dec == x
		},
		gen.Float64(),
	))

	properties.Property("boolean round-trips", prop.ForAll(
		func(b bool) bool {
			f := Boolean("x")
			enc, err := f.Encode(b)
			if err != nil {
				return false
			}
			dec, err := f.Decode(enc)
			return err == nil && dec == b
		},
		gen.Bool(),
	))

	properties.Property("decimal round-trips without float drift", prop.ForAll(
		func(unscaled int64, scale int32) bool {
			d := decimal.New(unscaled, scale%30)
			f := Decimal("x")
			enc, err := f.Encode(d)
			if err != nil {
				return false
			}
			dec, err := f.Decode(enc)
			return err == nil && dec.(decimal.Decimal).Equal(d)
		},
		gen.Int64(),
		gen.Int32(),
	))

	properties.Property("datetime round-trips", prop.ForAll(
		func(sec int64, nsec int32) bool {
			in := time.Unix(sec%4102444800, int64(nsec)).UTC()
			f := DateTime("x")
			enc, err := f.Encode(in)
			if err != nil {
				return false
			}
			dec, err := f.Decode(enc)
			return err == nil && dec.(time.Time).Equal(in)
		},
		gen.Int64Range(0, 4102444800),
		gen.Int32Range(0, 999999999),
	))

	properties.TestingRun(t)
}

package couchkit

import (
	"encoding/json"
	"testing"
)

func TestCollateTypeOrder(t *testing.T) {
	// null < booleans < numbers < strings < arrays < objects
	ordered := []interface{}{
		nil,
		false,
		true,
		float64(-1),
		json.Number("0"),
		float64(10),
		"",
		"a",
		"b",
		[]interface{}{"a"},
		[]interface{}{"a", "b"},
		map[string]interface{}{"a": 1},
	}
	for i := 0; i < len(ordered)-1; i++ {
		if collateJSON(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected %v < %v", ordered[i], ordered[i+1])
		}
	}
}

func TestCollateEqual(t *testing.T) {
	if collateJSON("x", "x") != 0 {
		t.Errorf("expected equal strings to collate equal")
	}
	if collateJSON(json.Number("5"), float64(5)) != 0 {
		t.Errorf("expected equal numbers to collate equal across shapes")
	}
	if collateJSON(nil, nil) != 0 {
		t.Errorf("expected nulls to collate equal")
	}
}

func TestCollateArraysElementwise(t *testing.T) {
	a := []interface{}{"author", float64(1)}
	b := []interface{}{"author", float64(2)}
	if collateJSON(a, b) >= 0 {
		t.Errorf("expected elementwise array comparison")
	}
}

func TestCollateRowBreaksTiesOnID(t *testing.T) {
	a := Row{Key: "k", ID: "a"}
	b := Row{Key: "k", ID: "b"}
	if collateRow(a, b) >= 0 {
		t.Errorf("expected doc id to break key ties")
	}
}

package order

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"sitecheckout/internal/catalog"
)

var fixedNow = func() time.Time { return time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC) }

func testCatalog() *catalog.Catalog {
	return catalog.New(catalog.Payload{
		ItemsAndTypes: map[string][]string{
			"Gloves":  {"Leather", "Rubber"},
			"T-shirt": {"Orange(worker)", "Red(foreman)"},
			"Helmet":  {},
			"Tape":    {},
		},
		ItemsSizes: map[string]map[string][]catalog.SizeQuantity{
			"Gloves": {
				"Leather": {{Size: "M", Quantity: 2}},
			},
			"T-shirt": {
				"Orange(worker)": {{Size: "S", Quantity: 10}, {Size: "M", Quantity: 20}, {Size: "L", Quantity: 0}},
				"Red(foreman)":   {{Size: "S", Quantity: 5}},
			},
			"Helmet": {
				"": {{Size: "One", Quantity: 3}},
			},
		},
	})
}

// fill drives a row through the whole cascade and fails the test on any error.
func fill(t *testing.T, f *Form, rowID, item, typ, size, qty string) {
	t.Helper()
	steps := []struct {
		name string
		call func() error
	}{
		{"name", func() error { return f.OnNameChanged(rowID, "Worker One") }},
		{"foreman", func() error { return f.OnForemanChanged(rowID, "Ivanov") }},
		{"item", func() error { return f.OnItemChanged(rowID, item) }},
		{"type", func() error {
			if typ == "" {
				return nil
			}
			return f.OnTypeChanged(rowID, typ)
		}},
		{"size", func() error { return f.OnSizeChanged(rowID, size) }},
		{"quantity", func() error { return f.OnQuantityChanged(rowID, qty) }},
	}
	for _, s := range steps {
		if err := s.call(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
	}
}

func mustRow(t *testing.T, f *Form, id string) Row {
	t.Helper()
	r, err := f.Row(id)
	if err != nil {
		t.Fatalf("Row(%s): %v", id, err)
	}
	return r
}

func TestNewFormStartsWithOneBlankRow(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	rows := f.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.ID == "" {
		t.Error("row should have an ID")
	}
	if r.Date != "2024-07-15" {
		t.Errorf("date should default to today, got %q", r.Date)
	}
	if r.Item != "" || r.QuantitySet || r.Bounded {
		t.Errorf("row should be blank, got %+v", r)
	}
}

func TestNewFormNilCatalog(t *testing.T) {
	f := NewForm(nil, nil)
	if f.Catalog() == nil || f.Catalog().Len() != 0 {
		t.Error("nil catalog should become an empty one")
	}
}

func TestDeleteLastRowIsNoOp(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID

	err := f.DeleteRow(id)
	if !errors.Is(err, ErrLastRow) {
		t.Fatalf("expected ErrLastRow, got %v", err)
	}
	if f.Len() != 1 || f.Rows()[0].ID != id {
		t.Error("last row must survive")
	}
}

func TestDeleteRow(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	first := f.Rows()[0].ID
	second := f.AddRow().ID

	if err := f.DeleteRow("nope"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
	if err := f.DeleteRow(first); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if rows := f.Rows(); len(rows) != 1 || rows[0].ID != second {
		t.Errorf("unexpected rows after delete: %+v", rows)
	}
}

func TestItemChangeResetsDownstream(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	fill(t, f, id, "T-shirt", "Orange(worker)", "M", "4")

	if err := f.OnItemChanged(id, "Gloves"); err != nil {
		t.Fatal(err)
	}
	r := mustRow(t, f, id)
	if r.Type != "" || r.Size != "" {
		t.Errorf("type and size should reset, got type=%q size=%q", r.Type, r.Size)
	}
	if !reflect.DeepEqual(r.TypeOptions, []string{"Leather", "Rubber"}) {
		t.Errorf("type options = %v", r.TypeOptions)
	}
	if len(r.SizeOptions) != 0 {
		t.Errorf("size options should be empty, got %v", r.SizeOptions)
	}
	if r.Bounded {
		t.Error("incomplete row must not be bounded")
	}

	if err := f.OnItemChanged(id, ""); err != nil {
		t.Fatal(err)
	}
	r = mustRow(t, f, id)
	if len(r.TypeOptions) != 0 || len(r.SizeOptions) != 0 {
		t.Errorf("clearing the item should empty both lists, got %v / %v", r.TypeOptions, r.SizeOptions)
	}
}

func TestTypeChangeResetsSize(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	fill(t, f, id, "T-shirt", "Orange(worker)", "S", "1")

	if err := f.OnTypeChanged(id, "Red(foreman)"); err != nil {
		t.Fatal(err)
	}
	r := mustRow(t, f, id)
	if r.Size != "" {
		t.Errorf("size should reset, got %q", r.Size)
	}
	if !reflect.DeepEqual(r.SizeOptions, []string{"S"}) {
		t.Errorf("size options = %v", r.SizeOptions)
	}
}

func TestSizeOptionsSkipEmptyStock(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	f.OnItemChanged(id, "T-shirt")
	f.OnTypeChanged(id, "Orange(worker)")

	r := mustRow(t, f, id)
	if !reflect.DeepEqual(r.SizeOptions, []string{"S", "M"}) {
		t.Errorf("size options = %v", r.SizeOptions)
	}
	if err := f.OnSizeChanged(id, "L"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("out-of-stock size should be rejected, got %v", err)
	}
}

func TestTypelessItemOffersSizes(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	if err := f.OnItemChanged(id, "Helmet"); err != nil {
		t.Fatal(err)
	}
	r := mustRow(t, f, id)
	if len(r.TypeOptions) != 0 {
		t.Errorf("Helmet has no types, got %v", r.TypeOptions)
	}
	if !reflect.DeepEqual(r.SizeOptions, []string{"One"}) {
		t.Errorf("size options = %v", r.SizeOptions)
	}
}

func TestTypelessItemKeepsSizesOnEmptyType(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	if err := f.OnItemChanged(id, "Helmet"); err != nil {
		t.Fatal(err)
	}
	if err := f.OnTypeChanged(id, ""); err != nil {
		t.Fatal(err)
	}
	r := mustRow(t, f, id)
	if !reflect.DeepEqual(r.SizeOptions, []string{"One"}) {
		t.Errorf("size options = %v", r.SizeOptions)
	}
	if err := f.OnSizeChanged(id, "One"); err != nil {
		t.Errorf("size should still be selectable: %v", err)
	}

	// Clearing the type of a typed item still empties its sizes.
	fill(t, f, id, "T-shirt", "Orange(worker)", "S", "1")
	if err := f.OnTypeChanged(id, ""); err != nil {
		t.Fatal(err)
	}
	if r := mustRow(t, f, id); len(r.SizeOptions) != 0 {
		t.Errorf("typed item without a type should offer no sizes, got %v", r.SizeOptions)
	}
}

func TestInvalidOptionsRejected(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID

	if err := f.OnItemChanged(id, "Boots"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("unknown item: %v", err)
	}
	f.OnItemChanged(id, "Gloves")
	if err := f.OnTypeChanged(id, "Cotton"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("unknown type: %v", err)
	}
	if err := f.OnSizeChanged(id, "M"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("size before type should be rejected: %v", err)
	}
	if err := f.OnNameChanged("missing", "x"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("unknown row: %v", err)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw     string
		wantQty int
		wantSet bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"7", 7, true},
		{" 12 ", 12, true},
		{"abc", 0, true},
		{"-3", 0, true},
		{"2.5", 0, true},
	}
	for _, tt := range tests {
		qty, set := ParseQuantity(tt.raw)
		if qty != tt.wantQty || set != tt.wantSet {
			t.Errorf("ParseQuantity(%q) = (%d, %v), want (%d, %v)", tt.raw, qty, set, tt.wantQty, tt.wantSet)
		}
	}
}

func TestResetLeavesSingleBlankRow(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	first := f.Rows()[0].ID
	fill(t, f, first, "Gloves", "Leather", "M", "1")
	f.AddRow()
	f.AddRow()

	f.Reset()
	rows := f.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ID == first {
		t.Error("reset should create a fresh row")
	}
	if rows[0].Item != "" || rows[0].Name != "" || rows[0].QuantitySet {
		t.Errorf("row should be blank: %+v", rows[0])
	}
}

func TestRowsReturnsSnapshot(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	f.OnItemChanged(id, "Gloves")

	rows := f.Rows()
	rows[0].TypeOptions[0] = "Changed"
	rows[0].Item = "Changed"

	r := mustRow(t, f, id)
	if r.Item != "Gloves" || r.TypeOptions[0] != "Leather" {
		t.Error("Rows() must not expose internal state")
	}
}

func TestFormEntries(t *testing.T) {
	f := NewForm(testCatalog(), fixedNow)
	id := f.Rows()[0].ID
	fill(t, f, id, "Gloves", "Leather", "M", "2")

	entries, err := f.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := Entry{Date: "2024-07-15", Name: "Worker One", Foreman: "Ivanov", Item: "Gloves", Type: "Leather", Size: "M", Quantity: 2}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("entries = %+v", entries)
	}
}

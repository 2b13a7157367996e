package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sitecheckout/internal/catalog"
)

// ErrIncomplete is matched by every validation failure.
var ErrIncomplete = errors.New("please fill out all fields")

// FieldError names the first row and field that blocked a batch.
type FieldError struct {
	Row   int // 1-based position in the batch
	RowID string
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d: field '%s' is required", e.Row, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrIncomplete }

// Validate checks every row and returns the batch in wire form. The first incomplete row
// rejects the whole batch.
//
// Type is only required when the item lists types, and size only when the chosen item
// type lists sizes. An item missing from the catalog is reported on the item field.
func Validate(c *catalog.Catalog, rows []Row) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		if field := missingField(c, r); field != "" {
			return nil, &FieldError{Row: i + 1, RowID: r.ID, Field: field}
		}
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func missingField(c *catalog.Catalog, r *Row) string {
	switch {
	case r.Date == "":
		return "date"
	case !validDate(r.Date):
		return "date"
	case strings.TrimSpace(r.Name) == "":
		return "name"
	case strings.TrimSpace(r.Foreman) == "":
		return "foreman"
	case r.Item == "" || !c.HasItem(r.Item):
		return "item"
	case r.Type == "" && len(c.Types(r.Item)) > 0:
		return "type"
	case r.Size == "" && c.ListsSizes(r.Item, r.Type):
		return "size"
	case !r.QuantitySet:
		return "quantity"
	}
	return ""
}

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

package order

import (
	"strconv"
	"strings"

	"sitecheckout/internal/catalog"
)

// DateLayout is the wire format of order dates.
const DateLayout = "2006-01-02"

// Row is one order line of the pending batch, bound to its dropdown chain.
type Row struct {
	ID      string
	Date    string
	Name    string
	Foreman string
	Item    string
	Type    string
	Size    string

	// Quantity is the coerced entered value; QuantitySet is false while the field is empty.
	Quantity    int
	QuantitySet bool

	TypeOptions []string
	SizeOptions []string

	// MaxQuantity is the most this row may request. It is only meaningful when Bounded,
	// which holds exactly while the row has a complete stock key.
	MaxQuantity int
	Bounded     bool
}

// Entry is a validated row in the form posted to /submit.
type Entry struct {
	Date     string `json:"date"`
	Name     string `json:"name"`
	Foreman  string `json:"foreman"`
	Item     string `json:"item"`
	Type     string `json:"type"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// key returns the stock pool of the row once item, type and size are all chosen. Items
// that list no types are complete without one.
func (r *Row) key(c *catalog.Catalog) (catalog.Key, bool) {
	if r.Item == "" || r.Size == "" {
		return catalog.Key{}, false
	}
	if r.Type == "" && len(c.Types(r.Item)) > 0 {
		return catalog.Key{}, false
	}
	return catalog.Key{Item: r.Item, Type: r.Type, Size: r.Size}, true
}

func (r *Row) clone() Row {
	cp := *r
	cp.TypeOptions = append([]string(nil), r.TypeOptions...)
	cp.SizeOptions = append([]string(nil), r.SizeOptions...)
	return cp
}

func (r *Row) entry() Entry {
	return Entry{
		Date:     r.Date,
		Name:     r.Name,
		Foreman:  r.Foreman,
		Item:     r.Item,
		Type:     r.Type,
		Size:     r.Size,
		Quantity: r.Quantity,
	}
}

// ParseQuantity coerces raw input. Empty input is unset; anything that is not a
// non-negative integer counts as 0.
func ParseQuantity(raw string) (qty int, set bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, true
	}
	return n, true
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

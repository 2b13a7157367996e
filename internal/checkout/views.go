package checkout

import (
	"sitecheckout/internal/catalog"
	"sitecheckout/internal/order"
	"sitecheckout/internal/session"
)

// RowView is the JSON shape of one order row. Quantity is null while the field is empty
// and MaxQuantity is null until the row has a complete stock key.
type RowView struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Name        string   `json:"name"`
	Foreman     string   `json:"foreman"`
	Item        string   `json:"item"`
	Type        string   `json:"type"`
	Size        string   `json:"size"`
	Quantity    *int     `json:"quantity"`
	TypeOptions []string `json:"type_options"`
	SizeOptions []string `json:"size_options"`
	MaxQuantity *int     `json:"max_quantity"`
}

// StateView is everything a page needs to redraw a session.
type StateView struct {
	Session    string    `json:"session"`
	Items      []string  `json:"items"`
	Foremen    []string  `json:"foremen"`
	Rows       []RowView `json:"rows"`
	LoadErrors []string  `json:"load_errors,omitempty"`
}

// CatalogView is the reference data in the backend's get_items_and_types shape.
type CatalogView struct {
	catalog.Payload
	Foremen []string `json:"foremen"`
}

func newRowView(r order.Row) RowView {
	v := RowView{
		ID:          r.ID,
		Date:        r.Date,
		Name:        r.Name,
		Foreman:     r.Foreman,
		Item:        r.Item,
		Type:        r.Type,
		Size:        r.Size,
		TypeOptions: nonNil(r.TypeOptions),
		SizeOptions: nonNil(r.SizeOptions),
	}
	if r.QuantitySet {
		q := r.Quantity
		v.Quantity = &q
	}
	if r.Bounded {
		m := r.MaxQuantity
		v.MaxQuantity = &m
	}
	return v
}

// snapshot must run inside Session.Do.
func snapshot(s *session.Session, f *order.Form) StateView {
	rows := f.Rows()
	view := StateView{
		Session: s.ID,
		Items:   nonNil(f.Catalog().Items()),
		Foremen: nonNil(s.Cache.Foremen()),
		Rows:    make([]RowView, 0, len(rows)),
	}
	for _, r := range rows {
		view.Rows = append(view.Rows, newRowView(r))
	}
	for _, err := range s.Cache.Errors() {
		view.LoadErrors = append(view.LoadErrors, err.Error())
	}
	return view
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

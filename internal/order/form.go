package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"sitecheckout/internal/catalog"
)

var (
	ErrRowNotFound   = errors.New("row not found")
	ErrLastRow       = errors.New("at least one row must remain")
	ErrInvalidOption = errors.New("value is not one of the offered options")
)

// RowController receives the field edits of the hosting UI, one call per input event.
type RowController interface {
	OnDateChanged(rowID, date string) error
	OnNameChanged(rowID, name string) error
	OnForemanChanged(rowID, foreman string) error
	OnItemChanged(rowID, item string) error
	OnTypeChanged(rowID, typ string) error
	OnSizeChanged(rowID, size string) error
	OnQuantityChanged(rowID, raw string) error
}

// Form is the pending batch of one checkout session. It is not safe for concurrent use;
// callers serialize edits the way a single UI thread would.
type Form struct {
	catalog *catalog.Catalog
	rows    []*Row
	now     func() time.Time
}

var _ RowController = (*Form)(nil)

// NewForm starts a batch with one blank row. A nil clock means time.Now.
func NewForm(c *catalog.Catalog, now func() time.Time) *Form {
	if c == nil {
		c = catalog.Empty()
	}
	if now == nil {
		now = time.Now
	}
	f := &Form{catalog: c, now: now}
	f.rows = []*Row{f.blankRow()}
	return f
}

func (f *Form) blankRow() *Row {
	return &Row{
		ID:   uuid.NewString(),
		Date: f.now().Format(DateLayout),
	}
}

func (f *Form) Catalog() *catalog.Catalog {
	return f.catalog
}

// Rows returns a snapshot of the batch in display order.
func (f *Form) Rows() []Row {
	out := make([]Row, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.clone()
	}
	return out
}

func (f *Form) Len() int {
	return len(f.rows)
}

func (f *Form) Row(rowID string) (Row, error) {
	r, err := f.find(rowID)
	if err != nil {
		return Row{}, err
	}
	return r.clone(), nil
}

func (f *Form) find(rowID string) (*Row, error) {
	for _, r := range f.rows {
		if r.ID == rowID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
}

// AddRow appends a blank row dated today.
func (f *Form) AddRow() Row {
	r := f.blankRow()
	f.rows = append(f.rows, r)
	f.reconcile(nil)
	return r.clone()
}

// DeleteRow removes a row. The last remaining row is never removed.
func (f *Form) DeleteRow(rowID string) error {
	if _, err := f.find(rowID); err != nil {
		return err
	}
	if len(f.rows) <= 1 {
		return ErrLastRow
	}
	for i, r := range f.rows {
		if r.ID == rowID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	f.reconcile(nil)
	return nil
}

// Reset drops every row and leaves a single blank one, as after a successful submit.
func (f *Form) Reset() {
	f.rows = []*Row{f.blankRow()}
}

// Entries validates the batch and returns it in wire form.
func (f *Form) Entries() ([]Entry, error) {
	return Validate(f.catalog, f.Rows())
}

func (f *Form) reconcile(focus *Row) {
	Reconcile(f.catalog, f.rows, focus)
}

func (f *Form) OnDateChanged(rowID, date string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	r.Date = strings.TrimSpace(date)
	return nil
}

func (f *Form) OnNameChanged(rowID, name string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	r.Name = name
	return nil
}

func (f *Form) OnForemanChanged(rowID, foreman string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	r.Foreman = foreman
	return nil
}

// OnItemChanged resets type and size and repopulates the type options. Items that list
// no types get their size options right away.
func (f *Form) OnItemChanged(rowID, item string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	if item != "" && !f.catalog.HasItem(item) {
		return fmt.Errorf("%w: item %q", ErrInvalidOption, item)
	}

	r.Item = item
	r.Type = ""
	r.Size = ""
	r.TypeOptions = nil
	r.SizeOptions = nil
	if item != "" {
		r.TypeOptions = f.catalog.Types(item)
		if len(r.TypeOptions) == 0 {
			r.SizeOptions = f.catalog.Sizes(item, "")
		}
	}
	f.reconcile(nil)
	return nil
}

// OnTypeChanged resets size and repopulates the size options with stocked sizes. For an
// item without types the options come from type "".
func (f *Form) OnTypeChanged(rowID, typ string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	if typ != "" && !contains(r.TypeOptions, typ) {
		return fmt.Errorf("%w: type %q", ErrInvalidOption, typ)
	}

	r.Type = typ
	r.Size = ""
	r.SizeOptions = nil
	if typ != "" || (r.Item != "" && len(r.TypeOptions) == 0) {
		r.SizeOptions = f.catalog.Sizes(r.Item, typ)
	}
	f.reconcile(nil)
	return nil
}

// OnSizeChanged completes the stock key; the row's quantity is bound from here on.
func (f *Form) OnSizeChanged(rowID, size string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	if size != "" && !contains(r.SizeOptions, size) {
		return fmt.Errorf("%w: size %q", ErrInvalidOption, size)
	}

	r.Size = size
	f.reconcile(r)
	return nil
}

// OnQuantityChanged stores the coerced quantity, clamped to what the other rows leave over.
func (f *Form) OnQuantityChanged(rowID, raw string) error {
	r, err := f.find(rowID)
	if err != nil {
		return err
	}
	r.Quantity, r.QuantitySet = ParseQuantity(raw)
	f.reconcile(r)
	return nil
}

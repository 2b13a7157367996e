package order

import "sitecheckout/internal/catalog"

// Reconcile recomputes every row's maximum against the shared stock pools.
//
// The focus row, when given, is the one just edited: it is clamped to what the other rows
// leave over before anything else so that an edit never takes stock from another row. Any
// oversubscription that remains is taken back from the latest rows first. Rows without a
// complete stock key neither contribute nor get bounded.
func Reconcile(c *catalog.Catalog, rows []*Row, focus *Row) {
	used := make(map[catalog.Key]int)
	for _, r := range rows {
		if k, ok := r.key(c); ok {
			used[k] += r.Quantity
		}
	}

	if focus != nil {
		if k, ok := focus.key(c); ok {
			available := c.Quantity(k) - (used[k] - focus.Quantity)
			if available < 0 {
				available = 0
			}
			if focus.Quantity > available {
				used[k] -= focus.Quantity - available
				focus.Quantity = available
			}
		}
	}

	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		k, ok := r.key(c)
		if !ok {
			continue
		}
		if excess := used[k] - c.Quantity(k); excess > 0 {
			cut := min(excess, r.Quantity)
			r.Quantity -= cut
			used[k] -= cut
		}
	}

	for _, r := range rows {
		k, ok := r.key(c)
		if !ok {
			r.MaxQuantity = 0
			r.Bounded = false
			continue
		}
		r.MaxQuantity = max(c.Quantity(k)-used[k]+r.Quantity, 0)
		r.Bounded = true
	}
}

package catalog

import (
	"sort"
)

// SizeQuantity is one size of an item type together with the pieces in stock.
type SizeQuantity struct {
	Size     string `json:"size" yaml:"size"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// Payload is the reference data as served by GET /get_items_and_types.
type Payload struct {
	ItemsAndTypes map[string][]string                  `json:"items_and_types" yaml:"items_and_types"`
	ItemsSizes    map[string]map[string][]SizeQuantity `json:"items_sizes" yaml:"items_sizes"`
}

// Key identifies one stock pool.
type Key struct {
	Item string
	Type string
	Size string
}

// Catalog is the read-only stock catalog of one checkout session.
type Catalog struct {
	items  []string
	types  map[string][]string
	sizes  map[string]map[string][]SizeQuantity
	counts map[Key]int
}

// Empty returns a catalog with no items, the state left behind by a failed fetch.
func Empty() *Catalog {
	return New(Payload{})
}

// New builds a catalog from a payload. The payload is copied; negative quantities become 0
// and repeated sizes of the same item type are summed.
func New(p Payload) *Catalog {
	c := &Catalog{
		types:  make(map[string][]string),
		sizes:  make(map[string]map[string][]SizeQuantity),
		counts: make(map[Key]int),
	}

	seen := make(map[string]bool)
	addItem := func(item string) {
		if item != "" && !seen[item] {
			seen[item] = true
			c.items = append(c.items, item)
		}
	}

	for item, types := range p.ItemsAndTypes {
		addItem(item)
		c.types[item] = dedupe(types)
	}

	for item, byType := range p.ItemsSizes {
		addItem(item)
		for typ, list := range byType {
			if c.sizes[item] == nil {
				c.sizes[item] = make(map[string][]SizeQuantity)
			}
			var merged []SizeQuantity
			index := make(map[string]int)
			for _, sq := range list {
				if sq.Size == "" {
					continue
				}
				qty := sq.Quantity
				if qty < 0 {
					qty = 0
				}
				if i, ok := index[sq.Size]; ok {
					merged[i].Quantity += qty
				} else {
					index[sq.Size] = len(merged)
					merged = append(merged, SizeQuantity{Size: sq.Size, Quantity: qty})
				}
			}
			c.sizes[item][typ] = merged
			for _, sq := range merged {
				c.counts[Key{Item: item, Type: typ, Size: sq.Size}] = sq.Quantity
			}
		}
	}

	sort.Strings(c.items)
	return c
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Items returns the item names in sorted order.
func (c *Catalog) Items() []string {
	return append([]string(nil), c.items...)
}

func (c *Catalog) HasItem(item string) bool {
	_, hasTypes := c.types[item]
	_, hasSizes := c.sizes[item]
	return hasTypes || hasSizes
}

// Types returns the type options of an item. Items that are sized directly have none.
func (c *Catalog) Types(item string) []string {
	return append([]string(nil), c.types[item]...)
}

// HasType reports whether typ is a type option of item.
func (c *Catalog) HasType(item, typ string) bool {
	for _, t := range c.types[item] {
		if t == typ {
			return true
		}
	}
	return false
}

// Sizes returns the sizes of (item, typ) that still have stock, in catalog order.
func (c *Catalog) Sizes(item, typ string) []string {
	var out []string
	for _, sq := range c.sizes[item][typ] {
		if sq.Quantity > 0 {
			out = append(out, sq.Size)
		}
	}
	return out
}

// ListsSizes reports whether the catalog knows any size of (item, typ), stocked or not.
func (c *Catalog) ListsSizes(item, typ string) bool {
	return len(c.sizes[item][typ]) > 0
}

// Quantity returns the stock of a pool; unknown pools have none.
func (c *Catalog) Quantity(k Key) int {
	return c.counts[k]
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Payload returns a copy of the catalog in wire form.
func (c *Catalog) Payload() Payload {
	p := Payload{
		ItemsAndTypes: make(map[string][]string, len(c.items)),
		ItemsSizes:    make(map[string]map[string][]SizeQuantity, len(c.sizes)),
	}
	for _, item := range c.items {
		p.ItemsAndTypes[item] = append([]string{}, c.types[item]...)
	}
	for item, byType := range c.sizes {
		p.ItemsSizes[item] = make(map[string][]SizeQuantity, len(byType))
		for typ, list := range byType {
			p.ItemsSizes[item][typ] = append([]SizeQuantity(nil), list...)
		}
	}
	return p
}

// Pools returns every known pool with its quantity, ordered by item, type and catalog size order.
func (c *Catalog) Pools() []Pool {
	var out []Pool
	for _, item := range c.items {
		types := make([]string, 0, len(c.sizes[item]))
		for typ := range c.sizes[item] {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			for _, sq := range c.sizes[item][typ] {
				out = append(out, Pool{Key: Key{Item: item, Type: typ, Size: sq.Size}, Quantity: sq.Quantity})
			}
		}
	}
	return out
}

// Pool is a stock pool and its quantity.
type Pool struct {
	Key
	Quantity int
}

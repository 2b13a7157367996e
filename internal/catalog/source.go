package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source supplies the reference data of a checkout session.
type Source interface {
	LoadCatalog(ctx context.Context) (*Catalog, error)
	LoadForemen(ctx context.Context) ([]string, error)
}

// StockEntry is one row of the backend stock table.
type StockEntry struct {
	Item     string `json:"item" yaml:"item"`
	ItemType string `json:"item_type" yaml:"item_type"`
	Size     string `json:"size" yaml:"size"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// FromStock groups flat stock rows the way the backend does for /get_items_and_types:
// empty types are left out of the type list and sizes without stock are dropped.
func FromStock(entries []StockEntry) Payload {
	p := Payload{
		ItemsAndTypes: make(map[string][]string),
		ItemsSizes:    make(map[string]map[string][]SizeQuantity),
	}
	seenType := make(map[[2]string]bool)
	for _, e := range entries {
		if e.Item == "" {
			continue
		}
		if _, ok := p.ItemsAndTypes[e.Item]; !ok {
			p.ItemsAndTypes[e.Item] = []string{}
		}
		pair := [2]string{e.Item, e.ItemType}
		if !seenType[pair] {
			seenType[pair] = true
			if e.ItemType != "" {
				p.ItemsAndTypes[e.Item] = append(p.ItemsAndTypes[e.Item], e.ItemType)
			}
			if p.ItemsSizes[e.Item] == nil {
				p.ItemsSizes[e.Item] = make(map[string][]SizeQuantity)
			}
			p.ItemsSizes[e.Item][e.ItemType] = []SizeQuantity{}
		}
		if e.Quantity > 0 {
			p.ItemsSizes[e.Item][e.ItemType] = append(p.ItemsSizes[e.Item][e.ItemType],
				SizeQuantity{Size: e.Size, Quantity: e.Quantity})
		}
	}
	return p
}

// Fixture is the on-disk form of offline reference data. Either the payload maps or the
// flat stock list may be given; the stock list wins when both are present.
type Fixture struct {
	Payload `yaml:",inline"`
	Stock   []StockEntry `json:"stock,omitempty" yaml:"stock,omitempty"`
	Foremen []string     `json:"foremen" yaml:"foremen"`
}

// LoadFile reads a .json, .yaml or .yml fixture.
func LoadFile(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var fx Fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fx)
	case ".json":
		err = json.Unmarshal(data, &fx)
	default:
		return Fixture{}, fmt.Errorf("unsupported catalog file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	if len(fx.Stock) > 0 {
		fx.Payload = FromStock(fx.Stock)
	}
	return fx, nil
}

// FileSource serves a fixture file. The file is read on every load so edits show up in
// the next session.
type FileSource struct {
	Path string
}

func (s FileSource) LoadCatalog(ctx context.Context) (*Catalog, error) {
	fx, err := LoadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return New(fx.Payload), nil
}

func (s FileSource) LoadForemen(ctx context.Context) ([]string, error) {
	fx, err := LoadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return fx.Foremen, nil
}

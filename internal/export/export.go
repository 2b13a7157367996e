package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"sitecheckout/internal/catalog"
	"sitecheckout/internal/order"
)

const (
	BatchSheet = "Checkout"
	StockSheet = "Stock"
)

var batchHeaders = []string{"Date", "Name", "Foreman", "Item", "Type", "Size", "Quantity", "Available"}

// WriteBatchWorkbook writes the pending rows as an xlsx sheet. Unset quantities
// and unbounded rows are left blank.
func WriteBatchWorkbook(w io.Writer, rows []order.Row) error {
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		var qty, avail interface{}
		if r.QuantitySet {
			qty = r.Quantity
		}
		if r.Bounded {
			avail = r.MaxQuantity
		}
		data = append(data, []interface{}{r.Date, r.Name, r.Foreman, r.Item, r.Type, r.Size, qty, avail})
	}
	return writeSheet(w, BatchSheet, batchHeaders, data)
}

// WriteStockWorkbook lays the catalog out like the stock sheet: one row per size,
// one column per "<item> <type>" pair, missing combinations as 0.
func WriteStockWorkbook(w io.Writer, c *catalog.Catalog) error {
	type column struct{ item, typ string }

	pools := c.Pools()
	qty := make(map[catalog.Key]int, len(pools))
	sizeSet := make(map[string]struct{})
	colSet := make(map[column]struct{})
	for _, p := range pools {
		qty[p.Key] = p.Quantity
		sizeSet[p.Size] = struct{}{}
		colSet[column{p.Item, p.Type}] = struct{}{}
	}

	sizes := make([]string, 0, len(sizeSet))
	for s := range sizeSet {
		sizes = append(sizes, s)
	}
	sort.Strings(sizes)

	cols := make([]column, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].item != cols[j].item {
			return cols[i].item < cols[j].item
		}
		return cols[i].typ < cols[j].typ
	})

	headers := []string{"Size"}
	for _, col := range cols {
		headers = append(headers, strings.TrimSpace(col.item+" "+col.typ))
	}

	data := make([][]interface{}, 0, len(sizes))
	for _, size := range sizes {
		row := []interface{}{size}
		for _, col := range cols {
			row = append(row, qty[catalog.Key{Item: col.item, Type: col.typ, Size: size}])
		}
		data = append(data, row)
	}
	return writeSheet(w, StockSheet, headers, data)
}

func writeSheet(w io.Writer, sheetName string, headers []string, data [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	if len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		f.SetColWidth(sheetName, "A", last, 15)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

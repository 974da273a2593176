// Package export writes receipts as CSV or as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"artemisa_pos/internal/receipts"
	"artemisa_pos/internal/sales"
)

// SheetName is the worksheet holding the receipts.
const SheetName = "Recibos"

// Row is one exported sale.
type Row struct {
	Day           string `csv:"dia"`
	Consecutive   int    `csv:"consecutivo"`
	ID            string `csv:"id"`
	Created       string `csv:"fecha"`
	PayType       string `csv:"metodo_pago"`
	Items         int    `csv:"articulos"`
	Products      string `csv:"productos"`
	Total         string `csv:"total"`
	MoneyReturned string `csv:"cambio"`
	Wholesale     bool   `csv:"por_mayor"`
}

var header = []string{"Día", "Consecutivo", "ID", "Fecha", "Método de pago", "Artículos", "Productos", "Total", "Cambio", "Por mayor"}

// Rows flattens grouped receipts, keeping the group order.
func Rows(groups []receipts.Group, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}
	var rows []Row
	for _, g := range groups {
		for _, s := range g.Sales {
			rows = append(rows, row(g.Day, s, loc))
		}
	}
	return rows
}

func row(day string, s sales.Sale, loc *time.Location) Row {
	items := 0
	names := make([]string, 0, len(s.Products))
	for _, it := range s.Products {
		items += it.Quantity
		names = append(names, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
	}
	r := Row{
		Day:         day,
		Consecutive: s.Consecutive,
		ID:          s.ID,
		Created:     s.Created.In(loc).Format("2006-01-02 15:04:05"),
		PayType:     string(s.PayType),
		Items:       items,
		Products:    strings.Join(names, ", "),
		Total:       s.TotalPrice.StringFixed(2),
		Wholesale:   s.IsForAll,
	}
	if s.MoneyReturned.Valid {
		r.MoneyReturned = s.MoneyReturned.Decimal.StringFixed(2)
	}
	return r
}

// CSV writes rows with a header line.
func CSV(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// XLSX writes rows to a single-sheet workbook with a bold header and a
// totals line.
func XLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", head); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			r.Day, r.Consecutive, r.ID, r.Created, r.PayType, r.Items, r.Products,
			number(r.Total), number(r.MoneyReturned), r.Wholesale,
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if len(rows) > 0 {
		last := len(rows) + 1
		cell, _ := excelize.CoordinatesToCellName(1, last+1)
		totals := []interface{}{
			excelize.Cell{StyleID: bold, Value: "Total"}, nil, nil, nil, nil, nil, nil,
			excelize.Cell{StyleID: bold, Formula: fmt.Sprintf("SUM(H2:H%d)", last)},
		}
		if err := sw.SetRow(cell, totals); err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// number keeps amounts numeric in the workbook; blanks stay blank.
func number(s string) interface{} {
	if s == "" {
		return nil
	}
	var f float64
	if _, err := fmt.Sscan(s, &f); err != nil {
		return s
	}
	return f
}

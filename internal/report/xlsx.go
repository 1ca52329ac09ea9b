package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/apdupes/internal/detect"
)

// Sheet names of the exported workbook.
const (
	SheetSummary = "Summary"
	SheetGroups  = "Groups"
	SheetRows    = "Rows"
)

// GroupColumns is the header of the Groups sheet.
var GroupColumns = []string{
	"Group ID",
	"Confidence",
	"Rule",
	"Fields Matched",
	"Vendor Key Source",
	"Rows",
	"Total Amount",
	"Exposure",
}

// amountFormat is the built-in "#,##0.00" number format.
const amountFormat = 4

// WriteXLSX writes a workbook with Summary, Groups and Rows sheets.
// rawHeaders are listed on the Summary sheet; pass nil to omit them.
func WriteXLSX(w io.Writer, r *detect.Report, rawHeaders []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetGroups, SheetRows} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: amountFormat})
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}

	b := &builder{f: f, bold: bold, money: money}
	b.summary(r.Summary, rawHeaders)
	b.groups(r.Groups)
	b.rows(r.Rows)
	if b.err != nil {
		return b.err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// builder keeps the first error so sheet code reads straight through.
type builder struct {
	f     *excelize.File
	bold  int
	money int
	err   error
}

func (b *builder) setRow(sheet string, row int, values []any) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		b.err = err
		return
	}
	if err := b.f.SetSheetRow(sheet, cell, &values); err != nil {
		b.err = fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
}

func (b *builder) style(sheet string, fromCol, fromRow, toCol, toRow, style int) {
	if b.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		b.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		b.err = err
		return
	}
	if err := b.f.SetCellStyle(sheet, from, to, style); err != nil {
		b.err = fmt.Errorf("style %s!%s:%s: %w", sheet, from, to, err)
	}
}

func (b *builder) header(sheet string, columns []string) {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	b.setRow(sheet, 1, values)
	b.style(sheet, 1, 1, len(columns), 1, b.bold)
}

func (b *builder) summary(s detect.Summary, rawHeaders []string) {
	lines := [][]any{
		{"Total rows", s.TotalRows},
		{"Duplicate groups", s.DuplicateGroups},
		{"High confidence", s.ByConfidence.High},
		{"Medium confidence", s.ByConfidence.Medium},
		{"Exposure", number(s.Exposure)},
	}
	if rawHeaders != nil {
		lines = append(lines, []any{"Source columns", strings.Join(rawHeaders, ", ")})
	}

	for i, line := range lines {
		b.setRow(SheetSummary, i+1, line)
	}
	b.style(SheetSummary, 1, 1, 1, len(lines), b.bold)
	b.style(SheetSummary, 2, 5, 2, 5, b.money)
}

func (b *builder) groups(groups []detect.Group) {
	b.header(SheetGroups, GroupColumns)
	for i, g := range groups {
		indexes := make([]string, len(g.RowIndexes))
		for j, idx := range g.RowIndexes {
			indexes[j] = fmt.Sprint(idx)
		}
		b.setRow(SheetGroups, i+2, []any{
			g.ID,
			string(g.Confidence),
			g.Rule,
			strings.Join(g.FieldsMatched, ", "),
			string(g.VendorKeySource),
			strings.Join(indexes, ", "),
			number(g.TotalAmount),
			number(g.Exposure),
		})
	}
	if len(groups) > 0 {
		b.style(SheetGroups, 7, 2, 8, len(groups)+1, b.money)
	}
}

func (b *builder) rows(rows []detect.Row) {
	b.header(SheetRows, RowColumns)
	for i, row := range rows {
		var amount any = ""
		if row.Amount.Valid {
			amount = number(row.Amount.Decimal)
		}
		b.setRow(SheetRows, i+2, []any{
			row.GroupID,
			string(row.Confidence),
			row.Reason,
			row.RowIndex,
			row.Vendor,
			string(row.VendorKeySource),
			row.InvoiceNumber,
			amount,
			row.InvoiceDate,
			deref(row.PONumber),
			deref(row.PaymentReference),
			deref(row.BankAccount),
		})
	}
	if len(rows) > 0 {
		b.style(SheetRows, 8, 2, 8, len(rows)+1, b.money)
	}
}

// number converts for display; the workbook is not used for matching.
func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

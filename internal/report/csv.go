// Package report exports detection results as CSV or Excel workbooks.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/apdupes/internal/detect"
)

// RowColumns is the header of the per-row export.
var RowColumns = []string{
	"Group ID",
	"Confidence",
	"Reason",
	"Row",
	"Vendor",
	"Vendor Key Source",
	"Invoice Number",
	"Amount",
	"Invoice Date",
	"PO Number",
	"Payment Reference",
	"Bank Account",
}

// WriteCSV writes one line per duplicate row, group by group.
func WriteCSV(w io.Writer, r *detect.Report) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(RowColumns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, row := range r.Rows {
		if err := writer.Write(rowRecord(row)); err != nil {
			return fmt.Errorf("write CSV row %d: %w", row.RowIndex, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func rowRecord(row detect.Row) []string {
	return []string{
		row.GroupID,
		string(row.Confidence),
		row.Reason,
		strconv.Itoa(row.RowIndex),
		row.Vendor,
		string(row.VendorKeySource),
		row.InvoiceNumber,
		formatAmount(row.Amount),
		row.InvoiceDate,
		deref(row.PONumber),
		deref(row.PaymentReference),
		deref(row.BankAccount),
	}
}

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

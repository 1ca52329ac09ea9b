// Package ledger turns raw ledger rows into normalized invoice records.
//
// Normalization never fails a row. Values that cannot be used are left
// empty or absent and the row is later skipped by matching, see
// ParsedRow.Eligible.
package ledger

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// KeySource records which column produced a row's vendor key.
type KeySource string

const (
	KeySourceID   KeySource = "id"
	KeySourceName KeySource = "name"
)

// ParsedRow is one normalized data row. It is never modified after
// Normalize returns it.
type ParsedRow struct {
	RowIndex          int                 `json:"rowIndex"`
	VendorID          string              `json:"vendorId"`
	VendorName        string              `json:"vendorName"`
	VendorKey         string              `json:"vendorKey"`
	VendorKeySource   KeySource           `json:"vendorKeySource"`
	InvoiceNumber     string              `json:"invoiceNumber"`
	InvoiceNumberNorm string              `json:"invoiceNumberNorm"`
	Amount            decimal.NullDecimal `json:"amount"`
	InvoiceDate       string              `json:"invoiceDate"`
	InvoiceDateMs     *int64              `json:"invoiceDateMs"`
	PONumber          string              `json:"poNumber"`
	PaymentReference  string              `json:"paymentReference"`
	BankAccount       string              `json:"bankAccount"`
	Raw               map[string]string   `json:"raw"`
}

// Eligible reports whether the row can take part in duplicate matching.
func (r ParsedRow) Eligible() bool {
	return r.VendorKey != "" && r.InvoiceNumberNorm != "" && r.Amount.Valid
}

// Normalize maps one raw row through m. rowIndex is the 1-based position of
// the row among data rows. Cells are trimmed; cells past the last header are
// ignored and missing cells read as "".
func Normalize(headers, fields []string, m ColumnMapping, rowIndex int) ParsedRow {
	raw := make(map[string]string, len(headers))
	for i, h := range headers {
		v := ""
		if i < len(fields) {
			v = strings.TrimSpace(fields[i])
		}
		raw[h] = v
	}

	get := func(header string) string {
		if header == "" {
			return ""
		}
		return raw[header]
	}

	row := ParsedRow{
		RowIndex:         rowIndex,
		VendorID:         get(m.VendorID),
		VendorName:       get(m.VendorName),
		InvoiceNumber:    get(m.InvoiceNumber),
		Amount:           ParseAmount(get(m.Amount)),
		InvoiceDate:      get(m.InvoiceDate),
		PONumber:         get(m.PONumber),
		PaymentReference: get(m.PaymentReference),
		BankAccount:      get(m.BankAccount),
		Raw:              raw,
	}

	if row.VendorID != "" {
		row.VendorKey = row.VendorID
		row.VendorKeySource = KeySourceID
	} else {
		row.VendorKey = NormalizeVendorName(row.VendorName)
		row.VendorKeySource = KeySourceName
	}
	row.InvoiceNumberNorm = NormalizeInvoiceNumber(row.InvoiceNumber)

	if ms, ok := ParseDate(row.InvoiceDate); ok {
		row.InvoiceDateMs = &ms
	}

	return row
}

var (
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

	// everything but the characters an amount may contain
	amountStrip = regexp.MustCompile(`[^0-9.\-]`)

	// amountPrefix is the longest leading decimal number.
	amountPrefix = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)

	dayMonthYear = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})$`)
)

// NormalizeVendorName lower-cases s and collapses every run of characters
// outside [a-z0-9] to one space.
func NormalizeVendorName(s string) string {
	return strings.TrimSpace(nonAlnumRun.ReplaceAllString(strings.ToLower(s), " "))
}

// NormalizeInvoiceNumber lower-cases s and drops every character outside
// [a-z0-9], so "INV-001" and "inv 001" compare equal.
func NormalizeInvoiceNumber(s string) string {
	return nonAlnumRun.ReplaceAllString(strings.ToLower(s), "")
}

// ParseAmount keeps digits, '.' and '-' and reads the leading number of what
// remains: "$1,234.50" is 1234.50, "1.2.3" is 1.2. Anything else is absent,
// never zero.
func ParseAmount(s string) decimal.NullDecimal {
	cleaned := amountStrip.ReplaceAllString(s, "")
	num := amountPrefix.FindString(cleaned)
	if num == "" {
		return decimal.NullDecimal{}
	}

	num = strings.TrimSuffix(num, ".")
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// Full-date layouts tried before the day/month/year fallback. Layouts
// without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-1-2",
	"2006/1/2",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006",
	"Mon Jan 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
}

// ParseDate returns the UTC epoch milliseconds of s.
//
// ISO and named-month forms are tried first. Otherwise s must be D/M/Y or
// D-M-Y with a 1-2 digit day and month; a 2-digit year means 20YY. Out of
// range days and months roll over the way time.Date normalizes them.
func ParseDate(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}

	m := dayMonthYear.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.UnixMilli(), true
}

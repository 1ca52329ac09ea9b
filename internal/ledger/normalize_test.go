package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVendorName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Acme Corp", "acme corp"},
		{"ACME CORP", "acme corp"},
		{"  Acme,  Corp. ", "acme corp"},
		{"A&B--Supplies", "a b supplies"},
		{"Café Noir", "caf noir"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVendorName(tt.input))
		})
	}
}

func TestNormalizeInvoiceNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"INV-001", "inv001"},
		{"inv001", "inv001"},
		{" A-1 ", "a1"},
		{"#12/34.5", "12345"},
		{"", ""},
		{"--", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeInvoiceNumber(tt.input))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"100.00", "100"},
		{"$1,234.50", "1234.5"},
		{"USD 99", "99"},
		{"-42.10", "-42.1"},
		{"(15.00)", "15"},
		{"1.2.3", "1.2"},
		{"5.", "5"},
		{".75", "0.75"},
		{"0", "0"},
		{"12-3", "12"},
		{"0.1", "0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmount(tt.input)
			require.True(t, got.Valid)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal), "got %s", got.Decimal)
		})
	}
}

func TestParseAmountAbsent(t *testing.T) {
	for _, input := range []string{"", "N/A", "-", ".", "--5", "$", "-.-"} {
		t.Run(input, func(t *testing.T) {
			assert.False(t, ParseAmount(input).Valid)
		})
	}
}

func TestParseAmountIsExact(t *testing.T) {
	a := ParseAmount("0.10")
	b := ParseAmount("0.20")
	sum := a.Decimal.Add(b.Decimal)
	assert.True(t, sum.Equal(decimal.RequireFromString("0.3")))
}

func utcMillis(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"2024-03-05", utcMillis(2024, time.March, 5)},
		{"2024-3-5", utcMillis(2024, time.March, 5)},
		{"2024/03/05", utcMillis(2024, time.March, 5)},
		{"2024-03-05T10:00:00Z", utcMillis(2024, time.March, 5) + 10*3600*1000},
		{"2024-03-05T12:00:00+02:00", utcMillis(2024, time.March, 5) + 10*3600*1000},
		{"Mar 5, 2024", utcMillis(2024, time.March, 5)},
		{"March 5, 2024", utcMillis(2024, time.March, 5)},
		{"5 Mar 2024", utcMillis(2024, time.March, 5)},
		{"05-Mar-2024", utcMillis(2024, time.March, 5)},
		{"05/03/2024", utcMillis(2024, time.March, 5)},
		{"5-3-2024", utcMillis(2024, time.March, 5)},
		{"5/3/24", utcMillis(2024, time.March, 5)},
		{"31/12/99", utcMillis(2099, time.December, 31)},
		{"32/01/2024", utcMillis(2024, time.February, 1)},
		{"1/13/2024", utcMillis(2025, time.January, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateAbsent(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2024-13-45", "5/3", "123/4/2024", "5.3.2024"} {
		t.Run(input, func(t *testing.T) {
			_, ok := ParseDate(input)
			assert.False(t, ok)
		})
	}
}

var testHeaders = []string{"Vendor ID", "Vendor", "Invoice #", "Amount", "Date", "PO", "Payment Ref", "Bank"}

var testMapping = ColumnMapping{
	VendorID:         "Vendor ID",
	VendorName:       "Vendor",
	InvoiceNumber:    "Invoice #",
	Amount:           "Amount",
	InvoiceDate:      "Date",
	PONumber:         "PO",
	PaymentReference: "Payment Ref",
	BankAccount:      "Bank",
}

func TestNormalize(t *testing.T) {
	fields := []string{" V1 ", "Acme Corp", "INV-001", "$1,000.00", "2024-01-15", "PO-9", "ACH123", "12 3456 7890"}
	row := Normalize(testHeaders, fields, testMapping, 3)

	assert.Equal(t, 3, row.RowIndex)
	assert.Equal(t, "V1", row.VendorID)
	assert.Equal(t, "V1", row.VendorKey)
	assert.Equal(t, KeySourceID, row.VendorKeySource)
	assert.Equal(t, "INV-001", row.InvoiceNumber)
	assert.Equal(t, "inv001", row.InvoiceNumberNorm)
	require.True(t, row.Amount.Valid)
	assert.Equal(t, "1000.00", row.Amount.Decimal.StringFixed(2))
	assert.Equal(t, "2024-01-15", row.InvoiceDate)
	require.NotNil(t, row.InvoiceDateMs)
	assert.Equal(t, utcMillis(2024, time.January, 15), *row.InvoiceDateMs)
	assert.Equal(t, "PO-9", row.PONumber)
	assert.Equal(t, "ACH123", row.PaymentReference)
	assert.Equal(t, "12 3456 7890", row.BankAccount)
	assert.Equal(t, "V1", row.Raw["Vendor ID"])
	assert.True(t, row.Eligible())
}

func TestNormalizeFallsBackToVendorName(t *testing.T) {
	fields := []string{"", "  ACME, Corp. ", "a1", "50", "", "", "", ""}
	row := Normalize(testHeaders, fields, testMapping, 1)

	assert.Equal(t, "acme corp", row.VendorKey)
	assert.Equal(t, KeySourceName, row.VendorKeySource)
	assert.Nil(t, row.InvoiceDateMs)
	assert.True(t, row.Eligible())
}

func TestNormalizeKeepsUnusableRows(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{name: "no vendor", fields: []string{"", "", "INV1", "10"}},
		{name: "no invoice", fields: []string{"V1", "", "--", "10"}},
		{name: "no amount", fields: []string{"V1", "", "INV1", "n/a"}},
		{name: "short row", fields: []string{"V1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Normalize(testHeaders, tt.fields, testMapping, 7)
			assert.Equal(t, 7, row.RowIndex)
			assert.False(t, row.Eligible())
			assert.Len(t, row.Raw, len(testHeaders))
		})
	}
}

func TestNormalizeUnmappedFieldsAreEmpty(t *testing.T) {
	row := Normalize([]string{"a", "b"}, []string{"1", "2", "extra"}, ColumnMapping{InvoiceNumber: "missing"}, 1)

	assert.Empty(t, row.VendorKey)
	assert.Empty(t, row.InvoiceNumber)
	assert.False(t, row.Amount.Valid)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, row.Raw)
}

func TestColumnMappingValidate(t *testing.T) {
	require.NoError(t, testMapping.Validate(testHeaders))
	require.NoError(t, ColumnMapping{}.Validate(nil))

	err := ColumnMapping{VendorID: "Vendor ID", Amount: "Total"}.Validate(testHeaders)
	require.ErrorIs(t, err, ErrUnknownColumn)
	assert.Contains(t, err.Error(), `amount="Total"`)
}

func TestColumnMappingFields(t *testing.T) {
	m := ColumnMapping{Amount: "Amt", VendorName: "Supplier"}
	assert.Equal(t, []MappedField{
		{Field: "vendorName", Header: "Supplier"},
		{Field: "amount", Header: "Amt"},
	}, m.Fields())
	assert.False(t, m.IsZero())
	assert.True(t, ColumnMapping{}.IsZero())
}

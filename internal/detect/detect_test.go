package detect

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/apdupes/internal/ledger"
)

var headers = []string{"vendor_id", "vendor_name", "invoice", "amount", "date", "bank"}

var mapping = ledger.ColumnMapping{
	VendorID:      "vendor_id",
	VendorName:    "vendor_name",
	InvoiceNumber: "invoice",
	Amount:        "amount",
	InvoiceDate:   "date",
	BankAccount:   "bank",
}

func rowsOf(lines ...[]string) []ledger.ParsedRow {
	rows := make([]ledger.ParsedRow, len(lines))
	for i, fields := range lines {
		rows[i] = ledger.Normalize(headers, fields, mapping, i+1)
	}
	return rows
}

func opts(days int, tolerance string) Options {
	return Options{DateWindowDays: days, AmountTolerance: decimal.RequireFromString(tolerance)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExactMatchByVendorID(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "INV-001", "100.00", "2024-01-01", ""},
		[]string{"V1", "", "inv001", "100.00", "2024-06-30", ""},
	)

	report := Run(rows, opts(0, "0"))

	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, "HIGH-1", g.ID)
	assert.Equal(t, High, g.Confidence)
	assert.Equal(t, ledger.KeySourceID, g.VendorKeySource)
	assert.Equal(t, "Exact match on vendor ID, invoice number, and amount", g.Rule)
	assert.Equal(t, []string{"vendor ID", "invoice number", "amount"}, g.FieldsMatched)
	assert.Equal(t, []int{1, 2}, g.RowIndexes)
	assert.True(t, g.TotalAmount.Equal(dec("200.00")), "total %s", g.TotalAmount)
	assert.True(t, g.Exposure.Equal(dec("100.00")), "exposure %s", g.Exposure)

	assert.Equal(t, 2, report.Summary.TotalRows)
	assert.Equal(t, 1, report.Summary.DuplicateGroups)
	assert.Equal(t, ConfidenceCounts{High: 1}, report.Summary.ByConfidence)
	assert.True(t, report.Summary.Exposure.Equal(dec("100")))
}

func TestExactMatchRoundsToCents(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "A", "10.001", "", ""},
		[]string{"V1", "", "A", "10.004", "", ""},
		[]string{"V1", "", "A", "10.01", "", ""},
	)

	report := Run(rows, opts(0, "0"))

	require.Len(t, report.Groups, 1)
	assert.Equal(t, []int{1, 2}, report.Groups[0].RowIndexes)
}

func TestExactMatchWithNameKeyIsMedium(t *testing.T) {
	rows := rowsOf(
		[]string{"", "Acme Corp", "A-1", "50", "", ""},
		[]string{"", "ACME CORP.", "a1", "50.00", "", ""},
	)

	report := Run(rows, opts(0, "0"))

	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, "MED-1", g.ID)
	assert.Equal(t, Medium, g.Confidence)
	assert.Equal(t, ledger.KeySourceName, g.VendorKeySource)
	assert.Equal(t, "Exact match on vendor name, invoice number, and amount (name-only match)", g.Rule)
	assert.Equal(t, ConfidenceCounts{Medium: 1}, report.Summary.ByConfidence)
}

func TestFuzzyMatchByVendorName(t *testing.T) {
	rows := rowsOf(
		[]string{"", "Acme Corp", "A-1", "50.00", "2024-03-01", ""},
		[]string{"", "ACME CORP", "a1", "52.00", "2024-03-04", ""},
	)

	report := Run(rows, opts(5, "5"))

	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, "MED-1", g.ID)
	assert.Equal(t, Medium, g.Confidence)
	assert.Equal(t, "Match on vendor name, normalized invoice number, amount tolerance, and invoice date within 5 days (name-only match)", g.Rule)
	assert.Equal(t, []string{
		"vendor name",
		"normalized invoice number",
		"amount within ±5.00",
		"invoice date within 5 days",
	}, g.FieldsMatched)
	assert.True(t, g.TotalAmount.Equal(dec("102")))
	assert.True(t, g.Exposure.Equal(dec("50")))
	assert.Equal(t, ConfidenceCounts{Medium: 1}, report.Summary.ByConfidence)
}

func TestFuzzyRuleByVendorID(t *testing.T) {
	rows := rowsOf(
		[]string{"V9", "", "X", "10", "2024-03-01", ""},
		[]string{"V9", "", "X", "11", "2024-03-02", ""},
	)

	report := Run(rows, opts(3, "1"))

	require.Len(t, report.Groups, 1)
	assert.Equal(t, "Match on vendor ID, normalized invoice number, amount tolerance, and invoice date within 3 days", report.Groups[0].Rule)
	assert.Equal(t, ledger.KeySourceID, report.Groups[0].VendorKeySource)
	assert.Equal(t, Medium, report.Groups[0].Confidence)
}

func TestTierExclusivity(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "INV1", "100", "2024-01-01", ""},
		[]string{"V1", "", "INV1", "100", "2024-01-02", ""},
		[]string{"V1", "", "INV1", "101", "2024-01-03", ""},
		[]string{"V1", "", "INV1", "102", "2024-01-04", ""},
	)

	report := Run(rows, opts(10, "5"))

	require.Len(t, report.Groups, 2)
	assert.Equal(t, "HIGH-1", report.Groups[0].ID)
	assert.Equal(t, []int{1, 2}, report.Groups[0].RowIndexes)
	assert.Equal(t, "MED-2", report.Groups[1].ID)
	assert.Equal(t, []int{3, 4}, report.Groups[1].RowIndexes)

	seen := map[int]string{}
	for _, g := range report.Groups {
		for _, idx := range g.RowIndexes {
			prev, dup := seen[idx]
			assert.False(t, dup, "row %d in %s and %s", idx, prev, g.ID)
			seen[idx] = g.ID
		}
	}
}

func TestFuzzyMatchIsTransitive(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "INV1", "100", "2024-01-01", ""},
		[]string{"V1", "", "INV1", "104", "2024-01-04", ""},
		[]string{"V1", "", "INV1", "108", "2024-01-07", ""},
	)

	report := Run(rows, opts(3, "4"))

	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, []int{1, 2, 3}, g.RowIndexes)
	assert.True(t, g.TotalAmount.Equal(dec("312")))
	assert.True(t, g.Exposure.Equal(dec("204")), "exposure %s", g.Exposure)
}

func TestFuzzyBoundaryIsInclusive(t *testing.T) {
	tests := []struct {
		name    string
		amountB string
		dateB   string
		want    int
	}{
		{name: "both at limit", amountB: "102.50", dateB: "2024-01-06", want: 1},
		{name: "amount one cent over", amountB: "102.51", dateB: "2024-01-06", want: 0},
		{name: "date one day over", amountB: "102.50", dateB: "2024-01-07", want: 0},
		{name: "date one ms over", amountB: "100", dateB: "2024-01-06T00:00:00.001Z", want: 0},
		{name: "negative direction", amountB: "97.50", dateB: "2023-12-27", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := rowsOf(
				[]string{"V1", "", "INV1", "100", "2024-01-01", ""},
				[]string{"V1", "", "INV1", tt.amountB, tt.dateB, ""},
			)
			report := Run(rows, opts(5, "2.50"))
			assert.Len(t, report.Groups, tt.want)
		})
	}
}

func TestExactAmountComparison(t *testing.T) {
	// difference equals the tolerance exactly
	rows := rowsOf(
		[]string{"V1", "", "INV1", "0.3", "2024-01-01", ""},
		[]string{"V1", "", "INV1", "0.0", "2024-01-01", ""},
	)

	report := Run(rows, opts(0, "0.3"))
	assert.Len(t, report.Groups, 1)
}

func TestMissingDateOrAmountNeverMatches(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "INV1", "100", "", ""},
		[]string{"V1", "", "INV1", "101", "2024-01-01", ""},
		[]string{"V1", "", "INV1", "n/a", "2024-01-01", ""},
	)

	report := Run(rows, opts(30, "10"))

	assert.Empty(t, report.Groups)
	assert.Empty(t, report.Rows)
	assert.Equal(t, 3, report.Summary.TotalRows)
	assert.True(t, report.Summary.Exposure.IsZero())
}

func TestIneligibleRowsAreCountedButSkipped(t *testing.T) {
	rows := rowsOf(
		[]string{"", "", "INV1", "100", "", ""},
		[]string{"", "", "INV1", "100", "", ""},
		[]string{"V1", "", "", "100", "", ""},
		[]string{"V1", "", "", "100", "", ""},
	)

	report := Run(rows, opts(0, "0"))

	assert.Empty(t, report.Groups)
	assert.Equal(t, 4, report.Summary.TotalRows)
}

func TestMixedKeySourceExactGroupIsMedium(t *testing.T) {
	rows := rowsOf(
		[]string{"acme", "", "INV1", "10", "", ""},
		[]string{"", "ACME", "INV1", "10", "", ""},
	)

	report := Run(rows, opts(0, "0"))

	require.Len(t, report.Groups, 1)
	assert.Equal(t, Medium, report.Groups[0].Confidence)
	assert.Equal(t, "MED-1", report.Groups[0].ID)
	assert.Equal(t, ledger.KeySourceName, report.Groups[0].VendorKeySource)
}

func TestGroupIDsShareOneCounter(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "A", "10", "2024-01-01", ""},
		[]string{"V1", "", "A", "10", "2024-01-01", ""},
		[]string{"", "Beta", "B", "5", "2024-01-01", ""},
		[]string{"", "beta", "B", "5", "2024-01-01", ""},
		[]string{"V2", "", "C", "7", "2024-01-01", ""},
		[]string{"V2", "", "C", "8", "2024-01-02", ""},
	)

	report, next := Detect(rows, opts(1, "1"), 41)

	var ids []string
	for _, g := range report.Groups {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"HIGH-41", "MED-42", "MED-43"}, ids)
	assert.Equal(t, Sequence(44), next)
	assert.Equal(t, ConfidenceCounts{High: 1, Medium: 2}, report.Summary.ByConfidence)
}

func TestRowsProjection(t *testing.T) {
	rows := rowsOf(
		[]string{"", "Acme", "INV-7", "1,200.00", "05/03/2024", "DE44 5001 0517 5407 3249 31"},
		[]string{"", "acme", "inv7", "1200", "", "123"},
	)

	report := Run(rows, opts(0, "0"))

	require.Len(t, report.Rows, 2)
	first := report.Rows[0]
	assert.Equal(t, "MED-1", first.GroupID)
	assert.Equal(t, 1, first.RowIndex)
	assert.Equal(t, report.Groups[0].Rule, first.Reason)
	assert.Equal(t, "Acme", first.Vendor)
	assert.Equal(t, "INV-7", first.InvoiceNumber)
	assert.Equal(t, "05/03/2024", first.InvoiceDate)
	assert.Nil(t, first.PONumber)
	assert.Nil(t, first.PaymentReference)
	require.NotNil(t, first.BankAccount)
	assert.Equal(t, "******************4931", *first.BankAccount)

	second := report.Rows[1]
	require.NotNil(t, second.BankAccount)
	assert.Equal(t, "123", *second.BankAccount)
	assert.Equal(t, report.Groups[0].Rows, report.Rows)
}

func TestDetectIsIdempotent(t *testing.T) {
	rows := rowsOf(
		[]string{"V1", "", "A", "10", "2024-01-01", ""},
		[]string{"V1", "", "A", "10", "2024-01-01", ""},
		[]string{"V2", "", "B", "7", "2024-01-01", ""},
		[]string{"V2", "", "B", "8", "2024-01-02", ""},
		[]string{"V2", "", "B", "9", "2024-01-03", ""},
		[]string{"", "Gamma", "C", "1", "2024-01-01", ""},
	)

	first := Run(rows, opts(1, "1"))
	second := Run(rows, opts(1, "1"))
	assert.Equal(t, first, second)
}

func TestEmptyInput(t *testing.T) {
	report := Run(nil, opts(5, "1"))
	assert.Empty(t, report.Groups)
	assert.NotNil(t, report.Groups)
	assert.Equal(t, Summary{Exposure: decimal.Zero}, report.Summary)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, opts(0, "0").Validate())
	require.NoError(t, opts(30, "12.5").Validate())
	assert.ErrorIs(t, opts(-1, "0").Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, opts(1, "-0.01").Validate(), ErrInvalidOptions)
}

func TestWindowMillis(t *testing.T) {
	assert.Equal(t, (5 * 24 * time.Hour).Milliseconds(), opts(5, "0").windowMillis())
}

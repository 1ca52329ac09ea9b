package profile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
)

const sample = `
name: netsuite-ap
mapping:
  vendor_id: Vendor ID
  vendor_name: Vendor
  invoice_number: "Invoice #"
  amount: Amount (USD)
  invoice_date: Date
options:
  date_window_days: 3
  amount_tolerance: "0.50"
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "netsuite-ap", p.Name)
	assert.Equal(t, ledger.ColumnMapping{
		VendorID:      "Vendor ID",
		VendorName:    "Vendor",
		InvoiceNumber: "Invoice #",
		Amount:        "Amount (USD)",
		InvoiceDate:   "Date",
	}, p.Mapping)

	opts, err := p.DetectOptions(detect.Options{DateWindowDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DateWindowDays)
	assert.True(t, opts.AmountTolerance.Equal(decimal.RequireFromString("0.5")))
}

func TestDetectOptionsDefaults(t *testing.T) {
	p, err := Parse([]byte("mapping:\n  amount: Total\n"))
	require.NoError(t, err)

	defaults := detect.Options{DateWindowDays: 7, AmountTolerance: decimal.RequireFromString("1.00")}
	opts, err := p.DetectOptions(defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, opts)
}

func TestDetectOptionsZeroWindowOverrides(t *testing.T) {
	p, err := Parse([]byte("mapping:\n  amount: Total\noptions:\n  date_window_days: 0\n"))
	require.NoError(t, err)

	opts, err := p.DetectOptions(detect.Options{DateWindowDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, opts.DateWindowDays)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "mapping: [unclosed"},
		{"no mapping", "name: empty\n"},
		{"bad tolerance", "mapping:\n  amount: A\noptions:\n  amount_tolerance: lots\n"},
		{"negative window", "mapping:\n  amount: A\noptions:\n  date_window_days: -2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))

	again, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, p.Mapping, again.Mapping)
	assert.Equal(t, "0.50", again.Options.AmountTolerance)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFromOptions(t *testing.T) {
	o := FromOptions(detect.Options{DateWindowDays: 4, AmountTolerance: decimal.RequireFromString("2.25")})
	require.NotNil(t, o.DateWindowDays)
	assert.Equal(t, 4, *o.DateWindowDays)
	assert.Equal(t, "2.25", o.AmountTolerance)
}

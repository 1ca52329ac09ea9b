package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColumn is returned when a mapping names a header the file lacks.
var ErrUnknownColumn = errors.New("mapped column not found in headers")

// ColumnMapping names the source header for each semantic field.
// An empty value leaves the field unmapped.
type ColumnMapping struct {
	VendorID         string `json:"vendorId,omitempty" yaml:"vendor_id,omitempty"`
	VendorName       string `json:"vendorName,omitempty" yaml:"vendor_name,omitempty"`
	InvoiceNumber    string `json:"invoiceNumber,omitempty" yaml:"invoice_number,omitempty"`
	Amount           string `json:"amount,omitempty" yaml:"amount,omitempty"`
	InvoiceDate      string `json:"invoiceDate,omitempty" yaml:"invoice_date,omitempty"`
	PONumber         string `json:"poNumber,omitempty" yaml:"po_number,omitempty"`
	PaymentReference string `json:"paymentReference,omitempty" yaml:"payment_reference,omitempty"`
	BankAccount      string `json:"bankAccount,omitempty" yaml:"bank_account,omitempty"`
}

// MappedField pairs a semantic field name with the header mapped to it.
type MappedField struct {
	Field  string
	Header string
}

// Fields returns the mapped fields in a fixed order, skipping unmapped ones.
func (m ColumnMapping) Fields() []MappedField {
	all := []MappedField{
		{"vendorId", m.VendorID},
		{"vendorName", m.VendorName},
		{"invoiceNumber", m.InvoiceNumber},
		{"amount", m.Amount},
		{"invoiceDate", m.InvoiceDate},
		{"poNumber", m.PONumber},
		{"paymentReference", m.PaymentReference},
		{"bankAccount", m.BankAccount},
	}

	fields := all[:0]
	for _, f := range all {
		if f.Header != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsZero reports whether nothing is mapped.
func (m ColumnMapping) IsZero() bool {
	return m == ColumnMapping{}
}

// Validate checks that every mapped header exists in headers.
// Header names are compared exactly, as Normalize looks them up.
func (m ColumnMapping) Validate(headers []string) error {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	var missing []string
	for _, f := range m.Fields() {
		if _, ok := present[f.Header]; !ok {
			missing = append(missing, fmt.Sprintf("%s=%q", f.Field, f.Header))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, strings.Join(missing, ", "))
	}
	return nil
}

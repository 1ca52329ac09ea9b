// Package detect finds groups of invoices that were probably recorded more
// than once.
//
// Detection runs in two tiers. Tier 1 groups rows whose vendor key,
// normalized invoice number and amount (to the cent) are identical. Rows
// left over are bucketed by vendor key and invoice number, and within a
// bucket any two rows whose amounts and dates are both within tolerance are
// joined; groups are the connected components, so matching is transitive.
// A row claimed by tier 1 never reaches tier 2.
package detect

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/apdupes/internal/ledger"
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid detection options")

// Confidence ranks how much a group should be trusted.
type Confidence string

const (
	High   Confidence = "High"
	Medium Confidence = "Medium"
)

func (c Confidence) prefix() string {
	if c == High {
		return "HIGH"
	}
	return "MED"
}

// Options tune tier 2. Both bounds are inclusive.
type Options struct {
	DateWindowDays  int             `json:"dateWindowDays"`
	AmountTolerance decimal.Decimal `json:"amountTolerance"`
}

// Validate rejects negative bounds.
func (o Options) Validate() error {
	if o.DateWindowDays < 0 {
		return fmt.Errorf("%w: dateWindowDays must be >= 0, got %d", ErrInvalidOptions, o.DateWindowDays)
	}
	if o.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: amountTolerance must be >= 0, got %s", ErrInvalidOptions, o.AmountTolerance)
	}
	return nil
}

func (o Options) windowMillis() int64 {
	return int64(o.DateWindowDays) * 24 * 60 * 60 * 1000
}

// Group is one detected duplicate cluster.
type Group struct {
	ID              string           `json:"id"`
	Confidence      Confidence       `json:"confidence"`
	Rule            string           `json:"rule"`
	FieldsMatched   []string         `json:"fieldsMatched"`
	VendorKeySource ledger.KeySource `json:"vendorKeySource"`
	RowIndexes      []int            `json:"rowIndexes"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	Exposure        decimal.Decimal  `json:"exposure"`
	Rows            []Row            `json:"rows"`
}

// Row is the display projection of one group member. Optional text fields
// are nil when the source cell was empty; BankAccount is masked.
type Row struct {
	GroupID          string              `json:"groupId"`
	RowIndex         int                 `json:"rowIndex"`
	Confidence       Confidence          `json:"confidence"`
	Reason           string              `json:"reason"`
	Vendor           string              `json:"vendor"`
	InvoiceNumber    string              `json:"invoiceNumber"`
	Amount           decimal.NullDecimal `json:"amount"`
	InvoiceDate      string              `json:"invoiceDate"`
	VendorKeySource  ledger.KeySource    `json:"vendorKeySource"`
	PONumber         *string             `json:"poNumber"`
	PaymentReference *string             `json:"paymentReference"`
	BankAccount      *string             `json:"bankAccount"`
}

// ConfidenceCounts counts groups per confidence.
type ConfidenceCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// Summary aggregates a detection run. TotalRows counts every input row,
// eligible or not.
type Summary struct {
	TotalRows       int              `json:"totalRows"`
	DuplicateGroups int              `json:"duplicateGroups"`
	Exposure        decimal.Decimal  `json:"exposure"`
	ByConfidence    ConfidenceCounts `json:"byConfidence"`
}

// Report is the full output of one detection run. Rows lists the members
// of every group, group by group.
type Report struct {
	Groups  []Group `json:"groups"`
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Sequence is the number the next group ID will carry. It is threaded
// through Detect instead of living in package state so concurrent runs
// never share it.
type Sequence int

// FirstSequence is where a fresh run starts numbering groups.
const FirstSequence Sequence = 1

func (s Sequence) id(c Confidence) string {
	return fmt.Sprintf("%s-%d", c.prefix(), int(s))
}

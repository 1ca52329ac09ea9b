package detect

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/apdupes/internal/ledger"
)

type exactKey struct {
	vendor  string
	invoice string
	amount  string
}

type fuzzyKey struct {
	vendor  string
	invoice string
}

// bucketer groups rows by key while remembering the order in which keys
// first appeared, so output does not depend on map iteration.
type bucketer[K comparable] struct {
	order   []K
	buckets map[K][]ledger.ParsedRow
}

func newBucketer[K comparable]() *bucketer[K] {
	return &bucketer[K]{buckets: make(map[K][]ledger.ParsedRow)}
}

func (b *bucketer[K]) add(k K, row ledger.ParsedRow) {
	if _, ok := b.buckets[k]; !ok {
		b.order = append(b.order, k)
	}
	b.buckets[k] = append(b.buckets[k], row)
}

// Run detects duplicates with group IDs numbered from FirstSequence.
func Run(rows []ledger.ParsedRow, opts Options) *Report {
	report, _ := Detect(rows, opts, FirstSequence)
	return report
}

// Detect runs both tiers over rows and returns the report together with the
// sequence value following the last assigned group ID. rows is not modified.
// Options are assumed valid; see Options.Validate.
func Detect(rows []ledger.ParsedRow, opts Options, seq Sequence) (*Report, Sequence) {
	report := &Report{
		Groups: []Group{},
		Rows:   []Row{},
		Summary: Summary{
			TotalRows: len(rows),
			Exposure:  decimal.Zero,
		},
	}

	// Tier 1
	exact := newBucketer[exactKey]()
	for _, row := range rows {
		if !row.Eligible() {
			continue
		}
		exact.add(exactKey{
			vendor:  row.VendorKey,
			invoice: row.InvoiceNumberNorm,
			amount:  row.Amount.Decimal.StringFixed(2),
		}, row)
	}

	consumed := make(map[int]struct{})
	for _, k := range exact.order {
		members := exact.buckets[k]
		if len(members) < 2 {
			continue
		}

		source := keySource(members)
		confidence := Medium
		if source == ledger.KeySourceID {
			confidence = High
		}

		report.add(newGroup(seq.id(confidence), confidence, exactRule(source), exactFields(source), source, members))
		seq++

		for _, m := range members {
			consumed[m.RowIndex] = struct{}{}
		}
	}

	// Tier 2
	fuzzy := newBucketer[fuzzyKey]()
	for _, row := range rows {
		if !row.Eligible() {
			continue
		}
		if _, ok := consumed[row.RowIndex]; ok {
			continue
		}
		fuzzy.add(fuzzyKey{vendor: row.VendorKey, invoice: row.InvoiceNumberNorm}, row)
	}

	for _, k := range fuzzy.order {
		bucket := fuzzy.buckets[k]
		if len(bucket) < 2 {
			continue
		}

		for _, members := range cluster(bucket, opts) {
			if len(members) < 2 {
				continue
			}
			source := keySource(members)
			report.add(newGroup(seq.id(Medium), Medium, fuzzyRule(source, opts), fuzzyFields(source, opts), source, members))
			seq++
		}
	}

	return report, seq
}

// cluster links every pair of rows within tolerance and returns the
// connected components. Comparison is pairwise within the bucket.
func cluster(bucket []ledger.ParsedRow, opts Options) [][]ledger.ParsedRow {
	set := newDisjointSet(len(bucket))
	window := opts.windowMillis()

	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			if withinTolerance(bucket[i], bucket[j], opts.AmountTolerance, window) {
				set.union(i, j)
			}
		}
	}

	comps := set.components()
	out := make([][]ledger.ParsedRow, len(comps))
	for i, comp := range comps {
		out[i] = make([]ledger.ParsedRow, len(comp))
		for j, idx := range comp {
			out[i][j] = bucket[idx]
		}
	}
	return out
}

// withinTolerance requires both amounts and both dates; a missing value
// means the pair cannot be compared.
func withinTolerance(a, b ledger.ParsedRow, tolerance decimal.Decimal, windowMs int64) bool {
	if !a.Amount.Valid || !b.Amount.Valid {
		return false
	}
	if a.InvoiceDateMs == nil || b.InvoiceDateMs == nil {
		return false
	}

	if a.Amount.Decimal.Sub(b.Amount.Decimal).Abs().GreaterThan(tolerance) {
		return false
	}

	diff := *a.InvoiceDateMs - *b.InvoiceDateMs
	if diff < 0 {
		diff = -diff
	}
	return diff <= windowMs
}

func keySource(rows []ledger.ParsedRow) ledger.KeySource {
	for _, r := range rows {
		if r.VendorKeySource != ledger.KeySourceID {
			return ledger.KeySourceName
		}
	}
	return ledger.KeySourceID
}

func newGroup(id string, confidence Confidence, rule string, fields []string, source ledger.KeySource, members []ledger.ParsedRow) Group {
	g := Group{
		ID:              id,
		Confidence:      confidence,
		Rule:            rule,
		FieldsMatched:   fields,
		VendorKeySource: source,
		RowIndexes:      make([]int, len(members)),
		Rows:            make([]Row, len(members)),
	}

	amounts := make([]decimal.Decimal, len(members))
	for i, m := range members {
		g.RowIndexes[i] = m.RowIndex
		g.Rows[i] = newRow(m, id, confidence, rule)
		amounts[i] = m.Amount.Decimal
	}

	g.TotalAmount = decimal.Sum(decimal.Zero, amounts...)
	g.Exposure = g.TotalAmount.Sub(decimal.Max(amounts[0], amounts[1:]...))
	return g
}

func (r *Report) add(g Group) {
	r.Groups = append(r.Groups, g)
	r.Rows = append(r.Rows, g.Rows...)

	r.Summary.DuplicateGroups++
	r.Summary.Exposure = r.Summary.Exposure.Add(g.Exposure)
	switch g.Confidence {
	case High:
		r.Summary.ByConfidence.High++
	case Medium:
		r.Summary.ByConfidence.Medium++
	}
}

func newRow(p ledger.ParsedRow, groupID string, confidence Confidence, rule string) Row {
	vendor := p.VendorID
	if vendor == "" {
		vendor = p.VendorName
	}

	return Row{
		GroupID:          groupID,
		RowIndex:         p.RowIndex,
		Confidence:       confidence,
		Reason:           rule,
		Vendor:           vendor,
		InvoiceNumber:    p.InvoiceNumber,
		Amount:           p.Amount,
		InvoiceDate:      p.InvoiceDate,
		VendorKeySource:  p.VendorKeySource,
		PONumber:         optional(p.PONumber),
		PaymentReference: optional(p.PaymentReference),
		BankAccount:      MaskBankAccount(p.BankAccount),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MaskBankAccount strips whitespace and replaces all but the last four
// characters with '*'. Values of four characters or fewer are returned
// unmasked. An empty input yields nil.
func MaskBankAccount(s string) *string {
	if s == "" {
		return nil
	}

	cleaned := []rune(strings.Join(strings.Fields(s), ""))
	if len(cleaned) <= 4 {
		out := string(cleaned)
		return &out
	}

	out := strings.Repeat("*", len(cleaned)-4) + string(cleaned[len(cleaned)-4:])
	return &out
}

func vendorField(source ledger.KeySource) string {
	if source == ledger.KeySourceID {
		return "vendor ID"
	}
	return "vendor name"
}

func exactRule(source ledger.KeySource) string {
	if source == ledger.KeySourceID {
		return "Exact match on vendor ID, invoice number, and amount"
	}
	return "Exact match on vendor name, invoice number, and amount (name-only match)"
}

func exactFields(source ledger.KeySource) []string {
	return []string{vendorField(source), "invoice number", "amount"}
}

func fuzzyRule(source ledger.KeySource, opts Options) string {
	rule := fmt.Sprintf("Match on %s, normalized invoice number, amount tolerance, and invoice date within %d days",
		vendorField(source), opts.DateWindowDays)
	if source != ledger.KeySourceID {
		rule += " (name-only match)"
	}
	return rule
}

func fuzzyFields(source ledger.KeySource, opts Options) []string {
	return []string{
		vendorField(source),
		"normalized invoice number",
		"amount within ±" + opts.AmountTolerance.StringFixed(2),
		fmt.Sprintf("invoice date within %d days", opts.DateWindowDays),
	}
}

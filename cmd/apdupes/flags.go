package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
	"github.com/JonMunkholm/apdupes/internal/profile"
)

// Defaults match the server's ANALYSIS_DATE_WINDOW_DAYS and
// ANALYSIS_AMOUNT_TOLERANCE defaults.
const defaultDateWindowDays = 7

// ledgerFlags are the mapping and option flags shared by analyze and
// profile.
type ledgerFlags struct {
	profile   string
	mapping   ledger.ColumnMapping
	window    int
	tolerance string
}

func (f *ledgerFlags) register(cmd *cobra.Command, withProfile bool) {
	fs := cmd.Flags()
	if withProfile {
		fs.StringVar(&f.profile, "profile", "", "YAML profile with mapping and options")
	}

	fs.StringVar(&f.mapping.VendorID, "vendor-id", "", "Column holding the vendor ID")
	fs.StringVar(&f.mapping.VendorName, "vendor-name", "", "Column holding the vendor name")
	fs.StringVar(&f.mapping.InvoiceNumber, "invoice-number", "", "Column holding the invoice number")
	fs.StringVar(&f.mapping.Amount, "amount", "", "Column holding the invoice amount")
	fs.StringVar(&f.mapping.InvoiceDate, "invoice-date", "", "Column holding the invoice date")
	fs.StringVar(&f.mapping.PONumber, "po-number", "", "Column holding the PO number")
	fs.StringVar(&f.mapping.PaymentReference, "payment-reference", "", "Column holding the payment reference")
	fs.StringVar(&f.mapping.BankAccount, "bank-account", "", "Column holding the bank account")

	fs.IntVar(&f.window, "date-window", defaultDateWindowDays, "Days two invoice dates may differ in a fuzzy match")
	fs.StringVar(&f.tolerance, "tolerance", "0.00", "Amount difference allowed in a fuzzy match")
}

// resolve merges profile and flags. Explicit flags win over the profile,
// and the profile wins over defaults.
func (f *ledgerFlags) resolve(cmd *cobra.Command) (ledger.ColumnMapping, detect.Options, error) {
	opts := detect.Options{
		DateWindowDays:  defaultDateWindowDays,
		AmountTolerance: decimal.Zero,
	}
	var mapping ledger.ColumnMapping

	if f.profile != "" {
		p, err := profile.Load(f.profile)
		if err != nil {
			return mapping, opts, err
		}
		mapping = p.Mapping
		if opts, err = p.DetectOptions(opts); err != nil {
			return mapping, opts, err
		}
	}

	fs := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	override("vendor-id", &mapping.VendorID, f.mapping.VendorID)
	override("vendor-name", &mapping.VendorName, f.mapping.VendorName)
	override("invoice-number", &mapping.InvoiceNumber, f.mapping.InvoiceNumber)
	override("amount", &mapping.Amount, f.mapping.Amount)
	override("invoice-date", &mapping.InvoiceDate, f.mapping.InvoiceDate)
	override("po-number", &mapping.PONumber, f.mapping.PONumber)
	override("payment-reference", &mapping.PaymentReference, f.mapping.PaymentReference)
	override("bank-account", &mapping.BankAccount, f.mapping.BankAccount)

	if fs.Changed("date-window") {
		opts.DateWindowDays = f.window
	}
	if fs.Changed("tolerance") {
		tol, err := decimal.NewFromString(f.tolerance)
		if err != nil {
			return mapping, opts, fmt.Errorf("--tolerance %q: %w", f.tolerance, err)
		}
		opts.AmountTolerance = tol
	}

	if err := opts.Validate(); err != nil {
		return mapping, opts, err
	}
	return mapping, opts, nil
}

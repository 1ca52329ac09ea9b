// Package profile loads saved column mappings and detection options from
// YAML, so a ledger export that arrives every month is mapped the same way
// each time.
//
//	name: netsuite-ap
//	mapping:
//	  vendor_id: Vendor ID
//	  vendor_name: Vendor
//	  invoice_number: Invoice #
//	  amount: Amount (USD)
//	  invoice_date: Date
//	options:
//	  date_window_days: 7
//	  amount_tolerance: "0.50"
package profile

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
)

// Profile is a named mapping plus optional detection options.
type Profile struct {
	Name    string               `yaml:"name,omitempty"`
	Mapping ledger.ColumnMapping `yaml:"mapping"`
	Options OptionsYAML          `yaml:"options,omitempty"`
}

// OptionsYAML is the on-disk form of detect.Options. Unset fields fall back
// to the caller's defaults. The tolerance is a string so it stays exact.
type OptionsYAML struct {
	DateWindowDays  *int   `yaml:"date_window_days,omitempty"`
	AmountTolerance string `yaml:"amount_tolerance,omitempty"`
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if p.Mapping.IsZero() {
		return nil, fmt.Errorf("profile %q maps no columns", p.Name)
	}
	if _, err := p.DetectOptions(detect.Options{}); err != nil {
		return nil, err
	}
	return &p, nil
}

// DetectOptions overlays the profile's options on defaults.
func (p *Profile) DetectOptions(defaults detect.Options) (detect.Options, error) {
	opts := defaults
	if p.Options.DateWindowDays != nil {
		opts.DateWindowDays = *p.Options.DateWindowDays
	}
	if p.Options.AmountTolerance != "" {
		tol, err := decimal.NewFromString(p.Options.AmountTolerance)
		if err != nil {
			return detect.Options{}, fmt.Errorf("amount_tolerance %q: %w", p.Options.AmountTolerance, err)
		}
		opts.AmountTolerance = tol
	}
	if err := opts.Validate(); err != nil {
		return detect.Options{}, err
	}
	return opts, nil
}

// Write encodes p as YAML.
func (p *Profile) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return enc.Close()
}

// FromOptions builds the on-disk form of opts.
func FromOptions(opts detect.Options) OptionsYAML {
	days := opts.DateWindowDays
	return OptionsYAML{
		DateWindowDays:  &days,
		AmountTolerance: opts.AmountTolerance.String(),
	}
}

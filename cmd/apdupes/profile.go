package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/apdupes/internal/profile"
)

func newProfileCmd() *cobra.Command {
	var (
		flags ledgerFlags
		name  string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Write a YAML profile from mapping flags",
		Long: `Write the given mapping and detection options as a YAML profile that
"apdupes analyze --profile" can reuse.

Example:
  apdupes profile --name netsuite --vendor-id "Vendor ID" --invoice-number "Invoice #" \
    --amount "Amount (USD)" --invoice-date Date --tolerance 0.50 -o netsuite.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, opts, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if mapping.IsZero() {
				return errors.New("no columns mapped")
			}

			p := &profile.Profile{
				Name:    name,
				Mapping: mapping,
				Options: profile.FromOptions(opts),
			}

			if out == "" {
				return p.Write(cmd.OutOrStdout())
			}
			return writeFile(out, func(f *os.File) error {
				return p.Write(f)
			})
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&name, "name", "", "Profile name")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the profile to a file instead of stdout")
	return cmd
}

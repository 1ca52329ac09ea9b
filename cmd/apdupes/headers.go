package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/apdupes/internal/core"
)

func newHeadersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "headers FILE",
		Short: "Print the column headers of a ledger",
		Long: `Print the sanitized header row of a ledger CSV, one per line, so the
column names can be copied into mapping flags or a profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			headers, err := core.Engine{}.Headers(core.File{Name: args[0], Reader: f})
			if err != nil {
				return fmt.Errorf("reading headers: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(core.HeadersMessage(headers))
			}
			for _, h := range headers {
				fmt.Fprintln(out, h)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a headers message as JSON")
	return cmd
}

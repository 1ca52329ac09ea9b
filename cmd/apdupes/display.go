package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/JonMunkholm/apdupes/internal/core"
	"github.com/JonMunkholm/apdupes/internal/detect"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	highColor   = color.New(color.FgRed, color.Bold)
	mediumColor = color.New(color.FgYellow)
	okColor     = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
	faintColor  = color.New(color.Faint)
)

func printResult(w io.Writer, r fileResult) {
	headerColor.Fprintf(w, "\n=== %s ===\n", r.File)

	if r.err != nil {
		errColor.Fprintf(w, "✗ %s\n", core.FormatUserError(r.err))
		faintColor.Fprintf(w, "  %s\n", r.err)
		return
	}

	s := r.Result.Summary
	fmt.Fprintf(w, "Rows analyzed:     %d\n", s.TotalRows)
	fmt.Fprintf(w, "Duplicate groups:  %d (%s, %s)\n",
		s.DuplicateGroups,
		highColor.Sprintf("%d high", s.ByConfidence.High),
		mediumColor.Sprintf("%d medium", s.ByConfidence.Medium),
	)
	fmt.Fprintf(w, "Exposure:          %s\n", s.Exposure.StringFixed(2))

	if len(r.Result.Groups) == 0 {
		okColor.Fprintln(w, "✓ No duplicates found")
		return
	}

	for _, g := range r.Result.Groups {
		printGroup(w, g)
	}
}

func printGroup(w io.Writer, g detect.Group) {
	c := mediumColor
	if g.Confidence == detect.High {
		c = highColor
	}

	fmt.Fprintln(w)
	c.Fprintf(w, "%-8s %-6s", g.ID, g.Confidence)
	fmt.Fprintf(w, " total %s, exposure %s\n", g.TotalAmount.StringFixed(2), g.Exposure.StringFixed(2))
	faintColor.Fprintf(w, "  %s\n", g.Rule)

	for _, row := range g.Rows {
		amount := ""
		if row.Amount.Valid {
			amount = row.Amount.Decimal.StringFixed(2)
		}
		fmt.Fprintf(w, "  row %-6d %-24s %-16s %12s  %s\n",
			row.RowIndex, row.Vendor, row.InvoiceNumber, amount, row.InvoiceDate)
	}
}

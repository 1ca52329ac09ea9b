package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/apdupes/internal/core"
	"github.com/JonMunkholm/apdupes/internal/csvchunk"
	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
	"github.com/JonMunkholm/apdupes/internal/report"
)

// fileResult is the outcome for one ledger. Exactly one of Result and Error
// is set.
type fileResult struct {
	File   string       `json:"file"`
	Result *core.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`

	err error
}

type analyzeOptions struct {
	flags     ledgerFlags
	asJSON    bool
	xlsxPath  string
	csvPath   string
	parallel  int
	strict    bool
	chunkSize int
}

func newAnalyzeCmd() *cobra.Command {
	var o analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Detect duplicate invoices in one or more ledgers",
		Long: `Analyze each ledger independently and print its duplicate groups.

Columns are mapped with --profile, with mapping flags, or both (flags win).
Files are analyzed concurrently; each file gets its own group numbering.
With several files, --xlsx and --csv paths get the ledger name appended.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	o.flags.register(cmd, true)
	fs := cmd.Flags()
	fs.BoolVar(&o.asJSON, "json", false, "Print results as JSON")
	fs.StringVar(&o.xlsxPath, "xlsx", "", "Write an Excel report")
	fs.StringVar(&o.csvPath, "csv", "", "Write duplicate rows as CSV")
	fs.IntVar(&o.parallel, "parallel", 4, "Number of files analyzed at once")
	fs.BoolVar(&o.strict, "strict", false, "Fail when a mapped column is missing from a file")
	fs.IntVar(&o.chunkSize, "chunk-size", csvchunk.DefaultChunkSize, "Bytes parsed per step")
	return cmd
}

func (o *analyzeOptions) run(cmd *cobra.Command, files []string) error {
	mapping, opts, err := o.flags.resolve(cmd)
	if err != nil {
		return err
	}
	if mapping.IsZero() {
		return errors.New("no columns mapped: use --profile or mapping flags such as --vendor-id")
	}
	if o.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", o.parallel)
	}

	engine := core.Engine{ChunkSize: o.chunkSize, StrictMapping: o.strict}
	results := make([]fileResult, len(files))

	// A failed analysis is reported per file; a failed export stops the run.
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(o.parallel)

	for i, path := range files {
		g.Go(func() error {
			res, err := analyzeFile(ctx, engine, path, mapping, opts)
			results[i] = fileResult{File: path, Result: res, err: err}
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			return o.export(path, len(files) > 1, res)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printResult(out, r)
		}
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func analyzeFile(ctx context.Context, engine core.Engine, path string, m ledger.ColumnMapping, opts detect.Options) (*core.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	logger := slog.With("file", path)
	start := time.Now()

	result, err := engine.Process(ctx, core.File{
		Name:   filepath.Base(path),
		Size:   info.Size(),
		Reader: f,
	}, m, opts, func(stage string, pct int) {
		logger.Debug("progress", "stage", stage, "progress", pct)
	})
	if err != nil {
		logger.Warn("analysis failed", "error", err)
		return nil, err
	}

	logger.Info("analysis finished",
		"rows", result.Summary.TotalRows,
		"groups", result.Summary.DuplicateGroups,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (o *analyzeOptions) export(source string, multiple bool, res *core.Result) error {
	rep := &detect.Report{Groups: res.Groups, Rows: res.Rows, Summary: res.Summary}

	if o.xlsxPath != "" {
		err := writeFile(exportPath(o.xlsxPath, source, multiple), func(f *os.File) error {
			return report.WriteXLSX(f, rep, res.RawHeaders)
		})
		if err != nil {
			return fmt.Errorf("writing xlsx for %s: %w", source, err)
		}
	}

	if o.csvPath != "" {
		err := writeFile(exportPath(o.csvPath, source, multiple), func(f *os.File) error {
			return report.WriteCSV(f, rep)
		})
		if err != nil {
			return fmt.Errorf("writing csv for %s: %w", source, err)
		}
	}
	return nil
}

// exportPath appends the ledger's base name when several ledgers share
// one output flag: out.xlsx + jan.csv -> out-jan.xlsx.
func exportPath(target, source string, multiple bool) string {
	if !multiple {
		return target
	}
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return strings.TrimSuffix(target, ext) + "-" + base + ext
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

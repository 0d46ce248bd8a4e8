package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/leonardomso/shortener/internal/fixer"
	"github.com/leonardomso/shortener/internal/helpers"
	"github.com/leonardomso/shortener/internal/markdown"
	"github.com/leonardomso/shortener/internal/output"
	"github.com/leonardomso/shortener/internal/scanner"
	"github.com/leonardomso/shortener/internal/shortener"
	"github.com/leonardomso/shortener/internal/stats"
)

// Rewrite command flag variables.
var (
	rewriteTypes     []string
	rewriteInclude   []string
	rewriteExclude   []string
	rewriteMaxSize   int64
	rewriteDryRun    bool
	rewriteFormat    string
	rewriteOutput    string
	rewriteShowStats bool
	rewriteAddTags   []string
	rewriteCode      bool
)

// rewriteCmd represents the rewrite command.
var rewriteCmd = &cobra.Command{
	Use:   "rewrite [path]",
	Short: "Shorten allow-listed links in files, in place",
	Long: `Scan a directory for text files and replace allow-listed links with
short links. Only the links change: indentation and spacing are kept.

If no path is provided, scans the current directory.
By default, scans markdown and plain text files.
Links inside Markdown code blocks are left alone unless --include-code is set.
Files changed on disk after they were scanned are left alone.

Exit codes:
  0 - Every allow-listed link was shortened, cached or ignored
  1 - Some links were unreachable or could not be shortened, or an error occurred

Examples:
  shortener rewrite                          # Rewrite files in the current directory
  shortener rewrite ./docs --dry-run         # Preview the changes
  shortener rewrite --types=md,html          # Scan markdown and HTML files
  shortener rewrite --exclude="vendor/**"    # Skip files matching a glob
  shortener rewrite --format=json --dry-run  # Report to stdout
  shortener rewrite --output=report.md       # Write a Markdown report
  shortener rewrite --output=links.junit.xml # Write JUnit XML for CI/CD
  shortener rewrite --stats                  # Show run statistics

Note: --format and --output are mutually exclusive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

func init() {
	rootCmd.AddCommand(rewriteCmd)

	// File selection
	rewriteCmd.Flags().StringSliceVarP(&rewriteTypes, "types", "T", scanner.DefaultTypes,
		"File types to scan (comma-separated), e.g. md, txt, html, yaml")
	rewriteCmd.Flags().StringSliceVar(&rewriteInclude, "include", nil,
		"Only rewrite files matching these globs (relative to path)")
	rewriteCmd.Flags().StringSliceVar(&rewriteExclude, "exclude", nil,
		"Skip files matching these globs (relative to path)")
	rewriteCmd.Flags().Int64Var(&rewriteMaxSize, "max-size", 0,
		"Skip files larger than this many bytes (0 = no limit)")

	// Mode
	rewriteCmd.Flags().BoolVarP(&rewriteDryRun, "dry-run", "n", false,
		"Preview changes without modifying files")
	rewriteCmd.Flags().StringSliceVar(&rewriteAddTags, "tag-add", nil,
		"Tags appended to the configured tags")
	rewriteCmd.Flags().BoolVar(&rewriteCode, "include-code", false,
		"Also rewrite links inside Markdown code blocks")

	// Output options
	rewriteCmd.Flags().StringVarP(&rewriteFormat, "format", "f", "",
		"Report format for stdout: json, yaml, junit, markdown")
	rewriteCmd.Flags().StringVarP(&rewriteOutput, "output", "o", "",
		"Write report to file (format inferred from extension: .json, .yaml, .junit.xml, .md)")
	rewriteCmd.Flags().BoolVar(&rewriteShowStats, "stats", false,
		"Show detailed run statistics")
}

// errLinksFailed reports allow-listed links that were left unchanged.
type errLinksFailed struct{ n int }

func (e errLinksFailed) Error() string {
	return fmt.Sprintf("%s could not be shortened", helpers.Plural(e.n, "link"))
}

// runRewrite is the main entry point for the rewrite command.
func runRewrite(cmd *cobra.Command, args []string) error {
	if err := validateRewriteFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	path := getPathArg(args)
	structured := rewriteFormat != ""
	out := cmd.OutOrStdout()
	perf := stats.New()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Phase 1: Scan for files
	perf.StartScan()
	files, err := scanner.Find(scanner.Options{
		Root:    path,
		Types:   rewriteTypes,
		Include: rewriteInclude,
		Exclude: rewriteExclude,
		MaxSize: rewriteMaxSize,
	})
	if err != nil {
		return fmt.Errorf("scanning directory: %w", err)
	}
	perf.EndScan(len(files))

	if !structured {
		fmt.Fprintf(out, "Found %s of type(s): %s\n",
			helpers.Plural(len(files), "file"), strings.Join(rewriteTypes, ", "))
	}

	// Phase 2: Shorten links line by line
	report := &output.Report{
		GeneratedAt: time.Now(),
		Files:       files,
		DryRun:      rewriteDryRun,
	}

	var opts []shortener.Option
	if len(rewriteAddTags) > 0 {
		opts = append(opts, shortener.WithAdditionalTags(rewriteAddTags...))
	}
	fx := fixer.New(a.shortener, opts...)
	if !rewriteCode {
		fx.SkipLines(markdown.SkipLines)
	}

	perf.StartProcess()
	changes, err := fx.FindFixes(cmd.Context(), files, func(file string, line int, r *shortener.Report) {
		perf.Record(r)
		report.Add(file, line, r)
	})
	perf.EndProcess()
	if err != nil {
		return err
	}

	// Phase 3: Apply
	if rewriteDryRun {
		if !structured {
			fmt.Fprint(out, "\n"+fx.Preview(changes))
		}
	} else {
		results := fx.ApplyAll(changes)
		for _, r := range results {
			if r.Applied > 0 {
				perf.FileChanged()
			}
		}
		if !structured {
			fmt.Fprint(out, "\n"+fixer.DetailedSummary(results))
		}
	}

	// Phase 4: Report
	if err := writeRewriteReport(out, report, structured); err != nil {
		return err
	}
	if rewriteShowStats && !structured {
		fmt.Fprint(out, perf.String())
	}

	if failed := report.Summary.Failed(); failed > 0 {
		if !structured {
			printFailed(out, report)
		}
		return errLinksFailed{n: failed}
	}
	return nil
}

// validateRewriteFlags checks for invalid flag combinations.
func validateRewriteFlags() error {
	if rewriteFormat != "" && rewriteOutput != "" {
		return fmt.Errorf("--format and --output are mutually exclusive; " +
			"use --format for stdout output, or --output for file output")
	}
	if rewriteFormat != "" && !output.IsValidFormat(rewriteFormat) {
		return fmt.Errorf("invalid format %q; valid formats: %s",
			rewriteFormat, strings.Join(output.ValidFormats(), ", "))
	}
	if rewriteMaxSize < 0 {
		return fmt.Errorf("--max-size must not be negative, got %d", rewriteMaxSize)
	}
	return nil
}

// writeRewriteReport prints the structured report or writes it to the output file.
func writeRewriteReport(w io.Writer, report *output.Report, structured bool) error {
	switch {
	case structured:
		data, err := output.FormatReport(report, output.Format(rewriteFormat))
		if err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		_, err = w.Write(data)
		return err

	case rewriteOutput != "":
		if err := output.WriteToFile(report, rewriteOutput); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nWrote report to %s\n", rewriteOutput)
	}
	return nil
}

// printFailed lists the links left unchanged because they failed.
func printFailed(w io.Writer, report *output.Report) {
	fmt.Fprintf(w, "\n%s\n", ErrorStyle.Render(fmt.Sprintf("=== Left Unchanged (%d) ===", report.Summary.Failed())))
	for _, e := range report.Entries {
		if e.Status != shortener.StatusUnreachable && e.Status != shortener.StatusUnshortened {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", statusBadge(e.Status), helpers.TruncateURL(e.Original, 70))
		fmt.Fprintf(w, "   %s\n", MutedStyle.Render(fmt.Sprintf("%s:%d", e.File, e.Line)))
		if e.Reason != "" {
			fmt.Fprintf(w, "   %s\n", MutedStyle.Render(e.Reason))
		}
	}
}

// getPathArg returns the path argument or "." as default.
func getPathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

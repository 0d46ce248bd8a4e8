// Package fixer rewrites allow-listed links in text files to their short form.
//
// Files are processed line by line so that only the link tokens change:
// indentation, spacing and line endings are kept as they were.
package fixer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leonardomso/shortener/internal/helpers"
	"github.com/leonardomso/shortener/internal/shortener"
)

// ErrFileChanged is returned by ApplyToFile when the file no longer has the
// content it had when its fixes were computed.
var ErrFileChanged = errors.New("file changed since it was scanned")

// Processor is the part of the shortener the fixer needs.
type Processor interface {
	ProcessDetailed(ctx context.Context, text string, opts ...shortener.Option) (*shortener.Report, error)
}

// ReportFunc receives the detailed outcome of every processed line that
// contained at least one allow-listed link.
type ReportFunc func(file string, line int, report *shortener.Report)

// LineSkipper returns the 1-based lines of a file that must be left as
// they are. A nil result skips nothing.
type LineSkipper func(path string, content []byte) map[int]bool

// Fix represents a single link replacement to be made.
type Fix struct {
	FilePath string // File containing the link
	OldURL   string // Original long link
	NewURL   string // Short link that replaces it
	Line     int    // Line number where the link appears
	Status   shortener.Status
}

// FileChanges groups all fixes for a single file.
type FileChanges struct {
	FilePath   string
	Fixes      []Fix
	TotalFixes int

	original  []byte
	rewritten []byte
}

// FixResult represents the outcome of applying fixes to a file.
type FixResult struct {
	Error       error
	FilePath    string
	ChangedURLs []URLChange
	Applied     int
	Skipped     int
}

// URLChange represents a single link that was changed.
type URLChange struct {
	OldURL string
	NewURL string
	Line   int
}

// Fixer finds and applies link replacements in files.
type Fixer struct {
	proc Processor
	opts []shortener.Option
	skip LineSkipper
}

// New creates a Fixer that runs every line through proc with opts.
func New(proc Processor, opts ...shortener.Option) *Fixer {
	return &Fixer{proc: proc, opts: opts}
}

// SkipLines makes the fixer leave the lines chosen by fn untouched.
func (f *Fixer) SkipLines(fn LineSkipper) *Fixer {
	f.skip = fn
	return f
}

// FindFixes processes every file and returns the files that would change,
// in input order. onReport may be nil. A processing error aborts the scan.
func (f *Fixer) FindFixes(ctx context.Context, files []string, onReport ReportFunc) ([]FileChanges, error) {
	var changes []FileChanges

	for _, path := range files {
		fc, err := f.FindFileFixes(ctx, path, onReport)
		if err != nil {
			return nil, err
		}
		if fc.TotalFixes > 0 {
			changes = append(changes, fc)
		}
	}

	return changes, nil
}

// FindFileFixes processes a single file.
func (f *Fixer) FindFileFixes(ctx context.Context, path string, onReport ReportFunc) (FileChanges, error) {
	fc := FileChanges{FilePath: path}

	content, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading file: %w", err)
	}
	fc.original = content

	var skip map[int]bool
	if f.skip != nil {
		skip = f.skip(path, content)
	}

	lines := bytes.SplitAfter(content, []byte("\n"))
	var out bytes.Buffer
	out.Grow(len(content))

	for i, raw := range lines {
		line := string(raw)
		lineNo := i + 1

		if skip[lineNo] || strings.TrimSpace(line) == "" {
			out.WriteString(line)
			continue
		}

		report, err := f.proc.ProcessDetailed(ctx, line, f.opts...)
		if err != nil {
			return fc, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}

		if len(report.Replacements) > 0 && onReport != nil {
			onReport(path, lineNo, report)
		}

		rewritten, fixes := rewriteLine(line, report.Replacements)
		for _, fix := range fixes {
			fix.FilePath = path
			fix.Line = lineNo
			fc.Fixes = append(fc.Fixes, fix)
		}
		out.WriteString(rewritten)
	}

	fc.TotalFixes = len(fc.Fixes)
	fc.rewritten = out.Bytes()
	return fc, nil
}

// rewriteLine substitutes changed tokens in place, keeping the whitespace
// between them. Token indexes follow strings.Fields.
func rewriteLine(line string, reps []shortener.Replacement) (string, []Fix) {
	changed := make(map[int]shortener.Replacement, len(reps))
	for _, r := range reps {
		if r.Changed() {
			changed[r.Index] = r
		}
	}
	if len(changed) == 0 {
		return line, nil
	}

	var (
		b     strings.Builder
		fixes []Fix
		last  int
	)
	b.Grow(len(line))

	for idx, span := range fieldSpans(line) {
		r, ok := changed[idx]
		if !ok || line[span[0]:span[1]] != r.Original {
			continue
		}
		b.WriteString(line[last:span[0]])
		b.WriteString(r.Result)
		last = span[1]
		fixes = append(fixes, Fix{OldURL: r.Original, NewURL: r.Result, Status: r.Status})
	}
	b.WriteString(line[last:])

	return b.String(), fixes
}

// fieldSpans returns the byte offsets of the fields strings.Fields would return.
func fieldSpans(s string) [][2]int {
	var spans [][2]int
	start := -1

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(s)})
	}

	return spans
}

// Preview returns a formatted string showing what changes would be made.
func (*Fixer) Preview(changes []FileChanges) string {
	if len(changes) == 0 {
		return "No links to shorten."
	}

	var b strings.Builder
	totalFixes := 0
	for _, fc := range changes {
		totalFixes += fc.TotalFixes
	}

	fmt.Fprintf(&b, "Found %s to shorten across %s:\n\n",
		helpers.Plural(totalFixes, "link"), helpers.Plural(len(changes), "file"))

	for _, fc := range changes {
		fmt.Fprintf(&b, "%s (%s)\n", fc.FilePath, helpers.Plural(fc.TotalFixes, "change"))

		for _, fix := range fc.Fixes {
			fmt.Fprintf(&b, "  Line %d: %s\n", fix.Line, helpers.TruncateURL(fix.OldURL, 60))
			fmt.Fprintf(&b, "          -> %s", fix.NewURL)
			if fix.Status == shortener.StatusCached {
				b.WriteString(" (cached)")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ApplyToFile writes the rewritten content of a single file.
// The file is left alone if it changed after FindFixes read it.
func (*Fixer) ApplyToFile(fc FileChanges) (*FixResult, error) {
	result := &FixResult{
		FilePath:    fc.FilePath,
		ChangedURLs: []URLChange{},
	}

	if fc.TotalFixes == 0 {
		return result, nil
	}

	info, err := os.Stat(fc.FilePath)
	if err != nil {
		result.Error = fmt.Errorf("reading file: %w", err)
		return result, result.Error
	}

	current, err := os.ReadFile(fc.FilePath)
	if err != nil {
		result.Error = fmt.Errorf("reading file: %w", err)
		return result, result.Error
	}

	if !bytes.Equal(current, fc.original) {
		result.Skipped = fc.TotalFixes
		result.Error = ErrFileChanged
		return result, result.Error
	}

	if err := os.WriteFile(fc.FilePath, fc.rewritten, info.Mode().Perm()); err != nil {
		result.Error = fmt.Errorf("writing file: %w", err)
		return result, result.Error
	}

	for _, fix := range fc.Fixes {
		result.Applied++
		result.ChangedURLs = append(result.ChangedURLs, URLChange{
			Line:   fix.Line,
			OldURL: fix.OldURL,
			NewURL: fix.NewURL,
		})
	}

	return result, nil
}

// ApplyAll applies fixes to all files and returns results.
func (f *Fixer) ApplyAll(changes []FileChanges) []FixResult {
	results := make([]FixResult, 0, len(changes))

	for _, fc := range changes {
		result, _ := f.ApplyToFile(fc)
		results = append(results, *result)
	}

	return results
}

// Summary returns a formatted summary of fix results.
func Summary(results []FixResult) string {
	var b strings.Builder

	totalApplied := 0
	totalSkipped := 0
	filesModified := 0
	var errs []string

	for _, r := range results {
		totalApplied += r.Applied
		totalSkipped += r.Skipped
		if r.Applied > 0 {
			filesModified++
		}
		if r.Error != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.FilePath, r.Error))
		}
	}

	if totalApplied == 0 && len(errs) == 0 {
		return "No changes made."
	}

	fmt.Fprintf(&b, "Shortened %s across %s.\n",
		helpers.Plural(totalApplied, "link"), helpers.Plural(filesModified, "file"))

	if totalSkipped > 0 {
		fmt.Fprintf(&b, "Skipped %s.\n", helpers.Plural(totalSkipped, "link"))
	}

	if len(errs) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}

	return b.String()
}

// DetailedSummary returns a detailed summary showing each change.
func DetailedSummary(results []FixResult) string {
	var b strings.Builder

	totalApplied := 0
	filesModified := 0

	for _, r := range results {
		if r.Applied > 0 {
			totalApplied += r.Applied
			filesModified++
		}
	}

	if totalApplied == 0 {
		return Summary(results)
	}

	fmt.Fprintf(&b, "Shortened %s across %s:\n\n",
		helpers.Plural(totalApplied, "link"), helpers.Plural(filesModified, "file"))

	for _, r := range results {
		for _, change := range r.ChangedURLs {
			fmt.Fprintf(&b, "  %s:%d\n", r.FilePath, change.Line)
			fmt.Fprintf(&b, "    %s\n", helpers.TruncateURL(change.OldURL, 70))
			fmt.Fprintf(&b, "    -> %s\n", change.NewURL)
		}
	}

	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(&b, "\nError in %s: %v\n", r.FilePath, r.Error)
		}
	}

	return b.String()
}

// Package output provides formatting and file writing for shortening reports.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leonardomso/shortener/internal/shortener"
)

// Format represents an output format type.
type Format string

const (
	// FormatJSON outputs as JSON.
	FormatJSON Format = "json"
	// FormatYAML outputs as YAML.
	FormatYAML Format = "yaml"
	// FormatJUnit outputs as JUnit XML for CI/CD integration.
	FormatJUnit Format = "junit"
	// FormatMarkdown outputs as a Markdown report.
	FormatMarkdown Format = "markdown"
)

// ValidFormats returns all valid format strings.
func ValidFormats() []string {
	return []string{
		string(FormatJSON),
		string(FormatYAML),
		string(FormatJUnit),
		string(FormatMarkdown),
	}
}

// IsValidFormat checks if a format string is valid.
func IsValidFormat(s string) bool {
	switch Format(strings.ToLower(s)) {
	case FormatJSON, FormatYAML, FormatJUnit, FormatMarkdown:
		return true
	default:
		return false
	}
}

// Entry is one allow-listed link and where it was found.
// File and Line are empty for text that did not come from a file.
type Entry struct {
	File string
	Line int
	shortener.Replacement
}

// Summary counts entries by status.
type Summary struct {
	Tokens      int
	Matched     int
	Shortened   int
	Cached      int
	Unreachable int
	Ignored     int
	Unshortened int
}

// Replaced returns the number of links rewritten in the output.
func (s Summary) Replaced() int {
	return s.Shortened + s.Cached
}

// Failed returns the number of allow-listed links left as they were
// because they could not be shortened or reached.
func (s Summary) Failed() int {
	return s.Unreachable + s.Unshortened
}

// Report contains all data needed for output formatting.
type Report struct {
	GeneratedAt time.Time
	Files       []string
	DryRun      bool
	Summary     Summary
	Entries     []Entry
}

// Add appends the replacements of one Process call found at file:line.
func (r *Report) Add(file string, line int, pr *shortener.Report) {
	if pr == nil {
		return
	}
	r.Summary.Tokens += pr.Tokens
	for _, rep := range pr.Replacements {
		r.Entries = append(r.Entries, Entry{File: file, Line: line, Replacement: rep})
		r.Summary.Matched++
		switch rep.Status {
		case shortener.StatusShortened:
			r.Summary.Shortened++
		case shortener.StatusCached:
			r.Summary.Cached++
		case shortener.StatusUnreachable:
			r.Summary.Unreachable++
		case shortener.StatusIgnored:
			r.Summary.Ignored++
		case shortener.StatusUnshortened:
			r.Summary.Unshortened++
		}
	}
}

// Formatter is the interface that output formatters implement.
type Formatter interface {
	Format(report *Report) ([]byte, error)
}

// GetFormatter returns the appropriate formatter for a format.
func GetFormatter(format Format) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJUnit:
		return &JUnitFormatter{}, nil
	case FormatMarkdown:
		return &MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// FormatReport formats a report using the specified format.
func FormatReport(report *Report, format Format) ([]byte, error) {
	formatter, err := GetFormatter(format)
	if err != nil {
		return nil, err
	}
	return formatter.Format(report)
}

// InferFormat determines the output format from a filename extension.
func InferFormat(filename string) (Format, error) {
	// Handle special case for JUnit
	if strings.HasSuffix(strings.ToLower(filename), ".junit.xml") {
		return FormatJUnit, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xml":
		return FormatJUnit, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf(
			"cannot infer format from extension %q (supported: .json, .yaml, .yml, .xml, .junit.xml, .md, .markdown)",
			ext,
		)
	}
}

// WriteToFile writes a formatted report to a file.
func WriteToFile(report *Report, filename string) error {
	format, err := InferFormat(filename)
	if err != nil {
		return err
	}

	data, err := FormatReport(report, format)
	if err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// filterByStatus returns entries with one of the given statuses.
func filterByStatus(entries []Entry, statuses ...shortener.Status) []Entry {
	statusSet := map[shortener.Status]bool{}
	for _, s := range statuses {
		statusSet[s] = true
	}

	var filtered []Entry
	for _, e := range entries {
		if statusSet[e.Status] {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// location formats file:line, or "-" for inline text.
func location(e Entry) string {
	if e.File == "" {
		return "-"
	}
	if e.Line == 0 {
		return e.File
	}
	return fmt.Sprintf("%s:%d", e.File, e.Line)
}

package output

import (
	"fmt"
	"strings"

	"github.com/leonardomso/shortener/internal/shortener"
)

// MarkdownFormatter formats reports as Markdown.
type MarkdownFormatter struct{}

// Format implements Formatter.
func (*MarkdownFormatter) Format(report *Report) ([]byte, error) {
	// Pre-grow builder: estimate ~160 bytes per entry + ~500 bytes header
	var b strings.Builder
	b.Grow(len(report.Entries)*160 + 500)

	title := "# Link Shortening Report"
	if report.DryRun {
		title += " (dry run)"
	}
	b.WriteString(title + "\n\n")
	fmt.Fprintf(&b, "**Generated:** %s  \n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Files Scanned:** %d  \n", len(report.Files))
	fmt.Fprintf(&b, "**Tokens:** %d  \n", report.Summary.Tokens)
	fmt.Fprintf(&b, "**Allow-listed Links:** %d\n\n", report.Summary.Matched)

	// Summary table
	b.WriteString("## Summary\n\n")
	b.WriteString("| Status | Count |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Shortened | %d |\n", report.Summary.Shortened)
	fmt.Fprintf(&b, "| Cached | %d |\n", report.Summary.Cached)
	fmt.Fprintf(&b, "| Unreachable | %d |\n", report.Summary.Unreachable)
	fmt.Fprintf(&b, "| Unshortened | %d |\n", report.Summary.Unshortened)
	if report.Summary.Ignored > 0 {
		fmt.Fprintf(&b, "| Ignored | %d |\n", report.Summary.Ignored)
	}
	b.WriteString("\n")

	replaced := filterByStatus(report.Entries, shortener.StatusShortened, shortener.StatusCached)
	if len(replaced) > 0 {
		fmt.Fprintf(&b, "## Shortened Links (%d)\n\n", len(replaced))
		b.WriteString("| Original | Short | Source | Location |\n")
		b.WriteString("|----------|-------|--------|----------|\n")
		for _, e := range replaced {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				escapeMarkdown(truncateText(e.Original, 60)),
				escapeMarkdown(e.Result),
				e.Status,
				location(e))
		}
		b.WriteString("\n")
	}

	failed := filterByStatus(report.Entries, shortener.StatusUnreachable, shortener.StatusUnshortened)
	if len(failed) > 0 {
		fmt.Fprintf(&b, "## Left Unchanged (%d)\n\n", len(failed))
		b.WriteString("| Status | URL | Location | Attempts |\n")
		b.WriteString("|--------|-----|----------|----------|\n")
		for _, e := range failed {
			fmt.Fprintf(&b, "| %s | %s | %s | %d |\n",
				strings.ToUpper(string(e.Status)),
				escapeMarkdown(truncateText(e.Original, 60)),
				location(e),
				e.Attempts)
		}
		b.WriteString("\n")

		b.WriteString("### Details\n\n")
		for _, e := range failed {
			fmt.Fprintf(&b, "#### %s\n\n", escapeMarkdown(e.Original))
			fmt.Fprintf(&b, "- **Domain:** %s\n", e.Domain)
			fmt.Fprintf(&b, "- **Location:** `%s`\n", location(e))
			if e.Reason != "" {
				fmt.Fprintf(&b, "- **Reason:** %s\n", e.Reason)
			}
			b.WriteString("\n")
		}
	}

	ignored := filterByStatus(report.Entries, shortener.StatusIgnored)
	if len(ignored) > 0 {
		fmt.Fprintf(&b, "## Ignored URLs (%d)\n\n", len(ignored))
		b.WriteString("| URL | Location | Reason |\n")
		b.WriteString("|-----|----------|--------|\n")
		for _, e := range ignored {
			fmt.Fprintf(&b, "| %s | %s | `%s` |\n",
				escapeMarkdown(truncateText(e.Original, 60)),
				location(e),
				e.Reason)
		}
		b.WriteString("\n")
	}

	return []byte(b.String()), nil
}

// escapeMarkdown escapes special markdown characters in a string.
func escapeMarkdown(s string) string {
	// Escape pipe characters which break tables
	s = strings.ReplaceAll(s, "|", "\\|")
	// Escape backticks
	s = strings.ReplaceAll(s, "`", "\\`")
	return s
}

// truncateText shortens text to maxLen characters, adding "..." if truncated.
func truncateText(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen-3] + "..."
}

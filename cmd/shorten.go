package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/leonardomso/shortener/internal/shortener"
)

// Shorten command flag variables.
var (
	shortenAddTags []string
	shortenReport  bool
)

// shortenCmd represents the shorten command.
var shortenCmd = &cobra.Command{
	Use:   "shorten [text...]",
	Short: "Shorten allow-listed links in text",
	Long: `Replace every allow-listed link in the given text with a short link.

Text is taken from the arguments, joined by spaces, or from stdin when
no arguments are given. The processed text is printed to stdout.
Tokens are split on whitespace and joined back with single spaces.

Examples:
  shortener shorten -d leafly.com "Visit https://www.leafly.com/strains"
  cat post.txt | shortener shorten -d leafly.com --strip-protocol
  shortener shorten --tag-add campaign "https://leafly.com/deals"
  shortener shorten --report "https://leafly.com/a https://leafly.com/b"`,
	RunE: runShorten,
}

func init() {
	rootCmd.AddCommand(shortenCmd)

	shortenCmd.Flags().StringSliceVar(&shortenAddTags, "tag-add", nil,
		"Tags appended to the configured tags for this call")
	shortenCmd.Flags().BoolVar(&shortenReport, "report", false,
		"Print what happened to each link on stderr")
}

// runShorten is the main entry point for the shorten command.
func runShorten(cmd *cobra.Command, args []string) error {
	text, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []shortener.Option
	if len(shortenAddTags) > 0 {
		opts = append(opts, shortener.WithAdditionalTags(shortenAddTags...))
	}

	report, err := a.shortener.ProcessDetailed(cmd.Context(), text, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Text)

	if shortenReport {
		printReplacements(cmd.ErrOrStderr(), report)
	}
	return nil
}

// readInput returns the arguments joined by spaces, or all of stdin.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no text given: pass it as arguments or pipe it on stdin")
		}
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// printReplacements writes one line per allow-listed link.
func printReplacements(w io.Writer, report *shortener.Report) {
	if len(report.Replacements) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No allow-listed links found."))
		return
	}

	for _, r := range report.Replacements {
		line := fmt.Sprintf("%s %s", statusBadge(r.Status), r.Original)
		if r.Changed() {
			line += " -> " + SuccessStyle.Render(r.Result)
		}
		if r.Reason != "" {
			line += " " + MutedStyle.Render("("+r.Reason+")")
		}
		fmt.Fprintln(w, line)
	}
}

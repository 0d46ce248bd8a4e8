package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leonardomso/shortener/internal/shortener"
)

// Color palette.
var (
	PrimaryColor = lipgloss.Color("205") // Pink
	SuccessColor = lipgloss.Color("82")  // Green
	ErrorColor   = lipgloss.Color("196") // Red
	WarningColor = lipgloss.Color("214") // Orange
	MutedColor   = lipgloss.Color("245") // Dimmed text
)

// Text styles.
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)
)

// Badge styles for link statuses.
var (
	badgeBase = lipgloss.NewStyle().Padding(0, 1)

	BadgeShortened   = badgeBase.Foreground(lipgloss.Color("0")).Background(SuccessColor)
	BadgeCached      = badgeBase.Foreground(lipgloss.Color("255")).Background(PrimaryColor)
	BadgeIgnored     = badgeBase.Foreground(lipgloss.Color("0")).Background(MutedColor)
	BadgeUnreachable = badgeBase.Foreground(lipgloss.Color("255")).Background(ErrorColor)
	BadgeUnshortened = badgeBase.Foreground(lipgloss.Color("0")).Background(WarningColor)
)

// statusBadge returns a styled badge for a link status.
func statusBadge(s shortener.Status) string {
	label := strings.ToUpper(string(s))

	switch s {
	case shortener.StatusShortened:
		return BadgeShortened.Render(label)
	case shortener.StatusCached:
		return BadgeCached.Render(label)
	case shortener.StatusIgnored:
		return BadgeIgnored.Render(label)
	case shortener.StatusUnreachable:
		return BadgeUnreachable.Render(label)
	case shortener.StatusUnshortened:
		return BadgeUnshortened.Render(label)
	default:
		return BadgeIgnored.Render("???")
	}
}

// Package helpers provides small display utilities shared by the commands.
package helpers

import "fmt"

// TruncateURL shortens a URL to the specified maximum length for display purposes.
// Adds "..." suffix if the URL exceeds maxLen.
func TruncateURL(url string, maxLen int) string {
	if maxLen < 4 || len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}

// CountUniqueStrings returns the number of unique strings in a slice.
func CountUniqueStrings(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item] = struct{}{}
	}
	return len(seen)
}

// Plural formats a count with a noun, adding "s" when n != 1.
func Plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

package util

import (
	"fmt"
	"strings"
)

// Truncate cuts s to max runes, marking the cut with an ellipsis.
func Truncate(input string, max int) string {
	r := []rune(input)
	if max <= 0 || len(r) <= max {
		return input
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// OrPlaceholder substitutes placeholder for blank strings.
func OrPlaceholder(input, placeholder string) string {
	if strings.TrimSpace(input) == "" {
		return placeholder
	}
	return input
}

// FormatElapsed renders a duration in seconds as 1h02m03s, dropping leading
// zero units.
func FormatElapsed(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Package strings holds text helpers for terminal output.
package strings

import (
	"strings"
)

// DefaultCellMaxLen is the default width of free-text table cells such as
// responses and error messages.
const DefaultCellMaxLen = 60

// MinTruncateLen is the smallest maxLen TruncateCell honors; it leaves room
// for one character plus "...".
const MinTruncateLen = 4

// SingleLine collapses every run of whitespace, newlines included, into one
// space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateCell flattens s with SingleLine and cuts it to maxLen runes,
// ending in "..." when cut. maxLen is clamped to MinTruncateLen.
func TruncateCell(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = SingleLine(s)
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// MaskSecret keeps the first and last four characters of a secret such as
// an access token. Secrets of twelve characters or fewer are fully masked.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 12:
		return "****"
	default:
		return secret[:4] + "..." + secret[len(secret)-4:]
	}
}

package validators

import "strings"

// SanitizeString trims surrounding whitespace and truncates to maxLen
// runes. Truncation is rune-aware so multi-byte client refs and item
// names are never cut mid-character.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}

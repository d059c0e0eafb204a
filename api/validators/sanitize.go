package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters other than newline and
// tab, and cuts it to at most maxRunes runes. maxRunes <= 0 means no limit.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, strings.TrimSpace(input))

	if maxRunes > 0 {
		if runes := []rune(cleaned); len(runes) > maxRunes {
			cleaned = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}
	return cleaned
}

// SanitizeOptional applies SanitizeString to an optional field such as ledger
// notes; blank results become nil.
func SanitizeOptional(input *string, maxRunes int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxRunes)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

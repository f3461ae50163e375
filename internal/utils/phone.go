package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	nonPhoneRunes = regexp.MustCompile(`[^\d+]`)
)

func IsValidPhone(phone string) bool {
	cleaned := nonPhoneRunes.ReplaceAllString(phone, "")

	// Basic E.164 format validation
	return phoneRegex.MatchString(cleaned)
}

// NormalizePhone strips spaces, dashes and parentheses and ensures a
// leading +.
func NormalizePhone(phone string) string {
	normalized := nonPhoneRunes.ReplaceAllString(phone, "")

	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}

	return normalized
}

// MaskPhone hides all but the last two digits, for logs and responses.
func MaskPhone(phone string) string {
	normalized := NormalizePhone(phone)
	if len(normalized) <= 4 {
		return normalized
	}
	return normalized[:3] + strings.Repeat("*", len(normalized)-5) + normalized[len(normalized)-2:]
}

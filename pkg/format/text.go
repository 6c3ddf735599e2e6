package format

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// TitleCase lower-cases the input and capitalises every word.
func TitleCase(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(text))
}

// Truncate shortens text to length runes, appending "...".
func Truncate(text string, length int) string {
	if length <= 0 {
		length = 50
	}
	runes := []rune(text)
	if len(runes) <= length {
		return text
	}
	return string(runes[:length]) + "..."
}

// FormatPhoneNumber renders Indian mobile numbers as "+91 98765 43210". Other
// shapes are returned unchanged.
func FormatPhoneNumber(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) == 10 {
		return "+91 " + digits[:5] + " " + digits[5:]
	}
	return phone
}

package cnab

import (
	"strings"
	"unicode/utf8"

	"github.com/csg33k/remessa-generator/internal/domain"
)

// FormatText truncates value to width characters and right-pads it with
// spaces. Width is counted in characters, not bytes: the payload is written
// as ISO-8859-1 where every character is one byte.
func FormatText(value string, width int) string {
	if width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(value)
	if n > width {
		runes := []rune(value)
		return string(runes[:width])
	}
	return value + strings.Repeat(" ", width-n)
}

// FormatNumeric strips every non-digit and left-pads with zeros to exactly
// width digits. A value with more significant digits than width is an error;
// digits are never dropped.
func FormatNumeric(value string, width int) (string, error) {
	digits := strings.TrimLeft(onlyDigits(value), "0")
	if len(digits) > width {
		return "", &domain.FieldOverflowError{Width: width, Value: digits}
	}
	return strings.Repeat("0", width-len(digits)) + digits, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

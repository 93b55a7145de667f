package otp

import (
	"strings"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
)

const (
	countryCode = "+27"
	localDigits = 10
)

// FormatDisplay keeps the digits of raw, truncated to 10, grouped 3/3/4 with single spaces.
func FormatDisplay(raw string) string {
	digits := core.Digits(raw)
	if len(digits) > localDigits {
		digits = digits[:localDigits]
	}
	var b strings.Builder
	for i, r := range digits {
		if i == 3 || i == 6 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToE164 drops the first digit whatever it is and prefixes the South African country code.
// Numbers that are not in the local 0XXXXXXXXX form come out wrong.
func ToE164(raw string) string {
	digits := core.Digits(raw)
	if digits == "" {
		return ""
	}
	return countryCode + digits[1:]
}

// ValidLocal reports whether raw holds exactly 10 digits.
func ValidLocal(raw string) bool {
	return len(core.Digits(raw)) == localDigits
}

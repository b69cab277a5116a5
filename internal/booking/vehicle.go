package booking

import (
	"regexp"
	"strings"
)

// plateRegex accepts country-style plates: two letters, one or two digits,
// one or two letters and one to four digits, optionally separated by a
// dash or a space (e.g. "KA-01-AB-1234", "ab12cd3456").
var plateRegex = regexp.MustCompile(`(?i)^[A-Z]{2}[- ]?[0-9]{1,2}[- ]?[A-Z]{1,2}[- ]?[0-9]{1,4}$`)

// ValidateVehicleNumber returns ErrInvalidVehicleNumber unless raw matches
// the plate format after trimming surrounding whitespace.
func ValidateVehicleNumber(raw string) error {
	if !plateRegex.MatchString(strings.TrimSpace(raw)) {
		return ErrInvalidVehicleNumber
	}
	return nil
}

// NormalizeVehicleNumber uppercases a plate and strips separators so that
// "ka-01 ab-1234" and "KA01AB1234" are stored identically.
func NormalizeVehicleNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

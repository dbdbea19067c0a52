package fare

import (
	"regexp"
	"strconv"
)

var (
	leadingNumberRe = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)`)
	hoursRe         = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*hour`)
	minutesRe       = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*min`)
)

// ParseDistanceMiles extracts the leading decimal number from a mapping
// provider distance string ("5.2 mi" -> 5.2). ok is false when no number
// leads the string.
func ParseDistanceMiles(s string) (float64, bool) {
	m := leadingNumberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDurationMinutes sums the "N hour" and "N min" components of a
// duration string ("1 hour 22 mins" -> 82). ok is false when neither
// component is present.
func ParseDurationMinutes(s string) (float64, bool) {
	var total float64
	found := false
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			total += v * 60
			found = true
		}
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			total += v
			found = true
		}
	}
	return total, found
}

package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatAmount renders an amount in cents as the decimal XXXXX.XX string
// the PayGate API expects.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ParseAmount converts a decimal amount string like "1.00" or "20" into
// cents. Fractions beyond two digits are rejected rather than rounded.
func ParseAmount(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	// checked on the raw input: "-0.5" would survive an integer-part check
	if strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("negative amount: %s", value)
	}
	whole, fraction, _ := strings.Cut(trimmed, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", value)
	}
	switch len(fraction) {
	case 0:
		return units * 100, nil
	case 1:
		fraction += "0"
	case 2:
	default:
		return 0, fmt.Errorf("invalid amount precision: %s", value)
	}
	cents, err := strconv.ParseInt(fraction, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", value)
	}
	return units*100 + cents, nil
}

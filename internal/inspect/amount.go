package inspect

import (
	"fmt"
	"strconv"
	"strings"
)

// Decimals is the number of fractional digits in one display unit.
const Decimals = 9

const unit = 1_000_000_000

// FormatAmount renders base units as a decimal with up to 9 fractional digits,
// trailing zeros trimmed: 1500000000 -> "1.5", 1 -> "0.000000001".
func FormatAmount(v uint64) string {
	whole := v / unit
	frac := v % unit
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, f)
}

// ParseAmount is the inverse of FormatAmount. A plain integer is whole units;
// more than 9 fractional digits is an error.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount cannot be empty")
	}

	wholePart, fracPart, hasDot := strings.Cut(s, ".")
	if hasDot && fracPart == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(fracPart) > Decimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, Decimals)
	}
	if wholePart == "" {
		wholePart = "0"
	}

	whole, err := strconv.ParseUint(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var frac uint64
	if fracPart != "" {
		frac, err = strconv.ParseUint(fracPart+strings.Repeat("0", Decimals-len(fracPart)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}

	if whole > (^uint64(0)-frac)/unit {
		return 0, fmt.Errorf("amount %q is too large", s)
	}
	return whole*unit + frac, nil
}

// ParseBaseUnits accepts either a decimal amount ("1.5") or a raw base-unit
// integer with a trailing "u" ("1500u").
func ParseBaseUnits(s string) (uint64, error) {
	if raw, ok := strings.CutSuffix(strings.TrimSpace(s), "u"); ok {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid base-unit amount %q", s)
		}
		return v, nil
	}
	return ParseAmount(s)
}

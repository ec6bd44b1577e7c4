// Package core provides money parsing and formatting utilities.
//
// Amounts are whole Rupiah. There is no minor unit, so Money is a plain
// integer and formatting only needs thousands grouping.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount in Rupiah.
type Money int64

var idPrinter = message.NewPrinter(language.Indonesian)

// SanitizeDigits keeps only the digits of s and strips leading zeros.
// An input without digits becomes "0".
//
// Examples:
//
//	SanitizeDigits("Rp 1.500") -> "1500"
//	SanitizeDigits("007")      -> "7"
//	SanitizeDigits("abc")      -> "0"
func SanitizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), "0")
	if out == "" {
		return "0"
	}
	return out
}

// ParseAmount sanitizes s and returns it as Money.
func ParseAmount(s string) (Money, error) {
	v, err := strconv.ParseInt(SanitizeDigits(s), 10, 64)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	return Money(v), nil
}

// ParseQuantity sanitizes s and returns it as a count.
func ParseQuantity(s string) int64 {
	v, err := strconv.ParseInt(SanitizeDigits(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatRupiah renders v with Indonesian grouping and the "Rp " prefix.
//
//	FormatRupiah(1500000) -> "Rp 1.500.000"
//	FormatRupiah(0)       -> "Rp 0"
func FormatRupiah(v Money) string {
	return "Rp " + FormatRupiahPlain(v)
}

// FormatRupiahPlain renders v with Indonesian grouping and no prefix.
func FormatRupiahPlain(v Money) string {
	return idPrinter.Sprintf("%d", int64(v))
}

// UnmarshalJSON accepts a JSON number or a numeric string. Strings keep
// their leading integer, so "150000.00" decodes as 150000 and text without
// digits as 0. Fractional numbers are truncated.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("money: %w", err)
		}
		v, err := leadingInt(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*m = Money(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("money: invalid number %q", raw)
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return ErrAmountTooLarge
	}
	*m = Money(int64(f))
	return nil
}

func leadingInt(s string) (Money, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	if neg {
		v = -v
	}
	return Money(v), nil
}

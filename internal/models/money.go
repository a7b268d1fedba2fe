package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a monetary amount in cents. The backend serializes amounts as
// plain decimal numbers with two-digit precision (e.g. 150.50), so Money
// marshals to and from that representation instead of float64 to keep
// comparisons exact.
type Money int64

// ParseMoney parses a decimal string like "150.50" into cents. Values with
// more than two decimal digits are rounded half away from zero.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	cents := math.Round(f * 100)
	if math.IsNaN(cents) || cents > math.MaxInt64 || cents < math.MinInt64 {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return Money(cents), nil
}

// String formats the amount as a decimal with two digits, e.g. "150.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float64 returns the amount in currency units.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// MarshalJSON writes the amount as a JSON number with two decimal digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts any JSON number the server may emit (150, 150.5,
// 150.50) and converts it to cents.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = 0
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

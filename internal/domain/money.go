package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in minor units. All arithmetic inside the codec
// happens on Cents; decimal strings exist only at the edges.
type Cents int64

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string ("150.50", "75", "1234,56") into cents.
// More than two decimal places is rejected rather than rounded so that a typo
// never silently changes the debited value. Thousands separators are not
// accepted; locale-formatted display strings are not amounts.
func ParseAmount(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts an amount in currency units into cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidAmount, d.String())
	}
	return Cents(scaled.IntPart()), nil
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders "150.50". Presentation only.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Digits renders the bare integer used in numeric fields, e.g. 15050.
func (c Cents) Digits() string {
	return strconv.FormatInt(int64(c), 10)
}

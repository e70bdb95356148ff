package payment_vo

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// maxIntegerDigits and maxFractionalDigits bound the 36.18 fixed-point
// decimal this engine requires. Amount wraps shopspring/decimal rather
// than int64 cents because int64 cents cannot represent 18 fractional
// digits exactly.
const (
	maxIntegerDigits    = 36
	maxFractionalDigits = 18
)

type Amount struct {
	d decimal.Decimal
}

// NewAmount parses s exactly; it rejects input that decimal.NewFromString
// cannot parse exactly (no float round-tripping) and input exceeding the
// 36.18 digit budget.
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("amount %q does not parse as an exact decimal: %w", s, err)
	}
	if d.Exponent() < -maxFractionalDigits {
		return Amount{}, fmt.Errorf("amount %q has more than %d fractional digits", s, maxFractionalDigits)
	}
	intDigits := d.NumDigits() + int(d.Exponent())
	if intDigits > maxIntegerDigits {
		return Amount{}, fmt.Errorf("amount %q has more than %d integer digits", s, maxIntegerDigits)
	}
	return Amount{d: d}, nil
}

func MustAmount(s string) Amount {
	a, err := NewAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d}
}

func Zero() Amount {
	return Amount{d: decimal.Zero}
}

func (a Amount) Decimal() decimal.Decimal { return a.d }
func (a Amount) String() string           { return a.d.String() }
func (a Amount) IsZero() bool             { return a.d.IsZero() }
func (a Amount) IsPositive() bool         { return a.d.IsPositive() }
func (a Amount) IsNegative() bool         { return a.d.IsNegative() }

func (a Amount) Add(b Amount) Amount      { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Subtract(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

func (a Amount) Equals(b Amount) bool             { return a.d.Equal(b.d) }
func (a Amount) GreaterThan(b Amount) bool        { return a.d.GreaterThan(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) LessThan(b Amount) bool           { return a.d.LessThan(b.d) }
func (a Amount) LessThanOrEqual(b Amount) bool     { return a.d.LessThanOrEqual(b.d) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.d.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

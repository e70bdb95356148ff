package payment_vo

import "fmt"

// Currency is a member of the configured enum (MVP: {ETH, USDT}).
type Currency string

const (
	CurrencyETH  Currency = "ETH"
	CurrencyUSDT Currency = "USDT"
)

func ParseCurrency(s string) (Currency, error) {
	switch Currency(s) {
	case CurrencyETH, CurrencyUSDT:
		return Currency(s), nil
	default:
		return "", fmt.Errorf("unknown currency %q", s)
	}
}

func (c Currency) IsNative() bool {
	return c == CurrencyETH
}

func (c Currency) Decimals() int32 {
	switch c {
	case CurrencyETH:
		return 18
	case CurrencyUSDT:
		return 6
	default:
		return 18
	}
}

package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern keeps digits, separators and an optional sign; everything
// else (currency marks, 원, whitespace) is stripped before parsing.
var amountPattern = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)

// ParseAmount normalizes a human or OCR-extracted amount string into a
// decimal. Accepts thousands separators and trailing currency markers,
// e.g. "1,200,000원" or "₩35,000".
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	match := amountPattern.FindString(trimmed)
	if match == "" {
		return decimal.Zero, fmt.Errorf("no numeric value in %q", raw)
	}
	cleaned := strings.ReplaceAll(match, ",", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	return amount, nil
}

// TokensToFiat converts a token amount to KRW using the platform rate.
func TokensToFiat(tokens, rate decimal.Decimal) decimal.Decimal {
	return tokens.Mul(rate)
}

// FiatToTokens converts a KRW amount to tokens, rounded to 4 decimal places
// to match the ledger column precision.
func FiatToTokens(fiat, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsZero() {
		return decimal.Zero, fmt.Errorf("token rate must be non-zero")
	}
	return fiat.DivRound(rate, 4), nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.Sign() > 0
}

package money

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrTooManyDecimals      = errors.New("amount has too many decimal places")
	ErrInvalidPercentage    = errors.New("invalid prize percentage")
	ErrDistributionOverflow = errors.New("prize distribution exceeds 100 percent")
)

var hundred = decimal.NewFromInt(100)

// ParseRupees parses a positive INR amount with at most two decimal places.
func ParseRupees(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.Exponent() < -2 && !value.Equal(value.Truncate(2)) {
		return decimal.Zero, ErrTooManyDecimals
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

func FormatRupees(value decimal.Decimal) string {
	return value.StringFixed(2)
}

// ValidateDistribution checks that every position carries a percentage in
// (0, 100] and that the total does not exceed 100.
func ValidateDistribution(distribution map[string]decimal.Decimal) error {
	total := decimal.Zero
	for _, pct := range distribution {
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return ErrInvalidPercentage
		}
		total = total.Add(pct)
	}
	if total.GreaterThan(hundred) {
		return ErrDistributionOverflow
	}
	return nil
}

// SplitPrizePool divides pool by percentage per position. Shares are
// truncated to paise so the payout never exceeds the pool.
func SplitPrizePool(pool decimal.Decimal, distribution map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	if err := ValidateDistribution(distribution); err != nil {
		return nil, err
	}
	shares := make(map[string]decimal.Decimal, len(distribution))
	for _, position := range SortedPositions(distribution) {
		share := pool.Mul(distribution[position]).Div(hundred).Truncate(2)
		if share.IsPositive() {
			shares[position] = share
		}
	}
	return shares, nil
}

// SortedPositions returns map keys in stable order so payouts are deterministic.
func SortedPositions[T any](positions map[string]T) []string {
	keys := make([]string, 0, len(positions))
	for key := range positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Package billing models the two-phase charge protocol: a reviewable,
// expiring preview and its irreversible commit. Amounts use integer math in
// minor currency units to avoid floating point errors.
package billing

import (
	"fmt"
)

// Money represents a monetary value in a specific currency.
type Money struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"` // ISO 4217 code
}

// NewMoney creates a new Money instance.
func NewMoney(amount int64, currency string) Money {
	return Money{AmountMinor: amount, Currency: currency}
}

// Add adds two Money amounts. Returns error on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{AmountMinor: m.AmountMinor + other.AmountMinor, Currency: m.Currency}, nil
}

// IsZero returns true if the amount is 0.
func (m Money) IsZero() bool {
	return m.AmountMinor == 0
}

// IsPositive returns true if the amount is > 0.
func (m Money) IsPositive() bool {
	return m.AmountMinor > 0
}

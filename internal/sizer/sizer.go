// Package sizer turns a copy signal into a concrete position size using
// one of three strategies: proportional, fixed, or half-Kelly.
package sizer

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/types"
)

// estimatedWhaleBankrollMultiple is the rough heuristic that a whale's
// single trade is ~1/20th of their total bankroll.
var estimatedWhaleBankrollMultiple = decimal.NewFromInt(20)
var halfKelly = decimal.NewFromFloat(0.5)

// CalculateSize computes a position size under the given strategy, clamped
// to [0, bankroll].
func CalculateSize(strategy types.SizingStrategy, bankroll, whaleNotional, whaleWinRate, whaleKelly, baseAmount, signalStrength decimal.Decimal) decimal.Decimal {
	var raw decimal.Decimal
	switch strategy {
	case types.SizingProportional:
		raw = proportionalSize(whaleNotional, bankroll)
	case types.SizingKelly:
		raw = kellySize(bankroll, whaleKelly)
	default:
		raw = fixedSize(baseAmount, signalStrength)
	}

	if raw.IsNegative() {
		raw = decimal.Zero
	}
	return decimal.Min(raw, bankroll)
}

// proportionalSize mirrors the whale's position as a percentage of our
// own bankroll, assuming the whale's bankroll is ~20x its single trade.
func proportionalSize(whaleNotional, myBankroll decimal.Decimal) decimal.Decimal {
	estimatedWhaleBankroll := whaleNotional.Mul(estimatedWhaleBankrollMultiple)
	if estimatedWhaleBankroll.IsZero() {
		return decimal.Zero
	}
	whalePct := whaleNotional.Div(estimatedWhaleBankroll)
	return myBankroll.Mul(whalePct)
}

// fixedSize is a base amount scaled by signal strength (0..1).
func fixedSize(baseAmount, signalStrength decimal.Decimal) decimal.Decimal {
	return baseAmount.Mul(signalStrength)
}

// kellySize applies half of the whale's Kelly fraction to our bankroll,
// halved for safety against estimation error.
func kellySize(bankroll, kellyFraction decimal.Decimal) decimal.Decimal {
	if !kellyFraction.IsPositive() {
		return decimal.Zero
	}
	return bankroll.Mul(kellyFraction.Mul(halfKelly))
}

// Package riskcheck validates a proposed order against portfolio state and
// configured limits before it reaches the order executor. Pure functions
// only — the stateful bookkeeping (open position counts, daily PnL) lives
// in the store.
package riskcheck

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/types"
)

// Sentinel errors so callers can branch on the failure class without
// string matching. Wrapped with fmt.Errorf for the concrete numbers.
var (
	ErrPositionTooLarge  = errors.New("position size exceeds max")
	ErrTooManyPositions  = errors.New("too many open positions")
	ErrDailyLossExceeded = errors.New("daily loss limit exceeded")
	ErrSpreadTooNarrow   = errors.New("spread too narrow")
	ErrSlippageTooHigh   = errors.New("slippage too high")
)

// Check runs all risk checks on a pending order. Returns nil if every
// check passes.
func Check(order types.PendingOrder, portfolio types.PortfolioSnapshot, limits types.RiskLimits) error {
	maxSize := portfolio.Bankroll.Mul(limits.MaxPositionPct)
	if order.Size.GreaterThan(maxSize) {
		return fmt.Errorf("%w: size %s exceeds max %s (%s%% of bankroll)",
			ErrPositionTooLarge, order.Size, maxSize, limits.MaxPositionPct.Mul(decimal.NewFromInt(100)))
	}

	if int64(portfolio.OpenPositions) >= int64(limits.MaxOpenPositions) {
		return fmt.Errorf("%w: %d/%d", ErrTooManyPositions, portfolio.OpenPositions, limits.MaxOpenPositions)
	}

	if portfolio.DailyPnL.LessThan(limits.MaxDailyLoss.Neg()) {
		return fmt.Errorf("%w: PnL %s, limit -%s", ErrDailyLossExceeded, portfolio.DailyPnL, limits.MaxDailyLoss)
	}

	distance := decimal.Min(order.Price, decimal.NewFromInt(1).Sub(order.Price))
	if distance.LessThan(limits.MinSpreadToResolution) {
		return fmt.Errorf("%w: distance %s, min %s", ErrSpreadTooNarrow, distance, limits.MinSpreadToResolution)
	}

	return nil
}

// CheckSlippage compares a fill price to the order's target price and
// returns the realized slippage fraction, or an error if it exceeds the
// configured maximum.
func CheckSlippage(targetPrice, actualPrice decimal.Decimal, limits types.RiskLimits) (decimal.Decimal, error) {
	if targetPrice.IsZero() {
		return decimal.Zero, nil
	}

	slippage := actualPrice.Sub(targetPrice).Div(targetPrice).Abs()

	if slippage.GreaterThan(limits.MaxSlippagePct) {
		return decimal.Zero, fmt.Errorf("%w: %s%% > max %s%%",
			ErrSlippageTooHigh,
			slippage.Mul(decimal.NewFromInt(100)),
			limits.MaxSlippagePct.Mul(decimal.NewFromInt(100)))
	}

	return slippage, nil
}

// Package scorer computes performance statistics for a wallet's trade
// history: Sharpe ratio, win rate, Kelly fraction, expected value, and
// decay detection. Pure functions only — no I/O, no store access.
package scorer

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/types"
)

var (
	decZero    = decimal.Zero
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// Score computes every metric in types.WalletScore from a wallet's trade
// history.
func Score(trades []types.TradeResult) types.WalletScore {
	totalPnL := decZero
	for _, t := range trades {
		totalPnL = totalPnL.Add(t.Profit)
	}

	wr := WinRate(trades)
	ev := ExpectedValue(trades)
	kf := KellyFraction(wr, avgOdds(trades))

	return types.WalletScore{
		Sharpe:        SharpeRatio(trades),
		WinRate:       wr,
		KellyFraction: kf,
		ExpectedValue: ev,
		TotalTrades:   len(trades),
		TotalPnL:      totalPnL,
		IsDecaying:    IsDecaying(trades),
	}
}

// SharpeRatio is mean(returns) / stddev(returns). Returns zero if there
// are fewer than two trades, or if the standard deviation is zero.
func SharpeRatio(trades []types.TradeResult) decimal.Decimal {
	if len(trades) < 2 {
		return decZero
	}

	n := decimal.NewFromInt(int64(len(trades)))
	sum := decZero
	for _, t := range trades {
		sum = sum.Add(t.Profit)
	}
	mean := sum.Div(n)

	variance := decZero
	for _, t := range trades {
		diff := t.Profit.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(n)

	stdDev, ok := sqrt(variance)
	if !ok {
		stdDev = decOne
	}
	if stdDev.IsZero() {
		return decZero
	}

	return mean.Div(stdDev)
}

// WinRate is the fraction of all trades with positive profit.
func WinRate(trades []types.TradeResult) decimal.Decimal {
	return RollingWinRate(trades, len(trades))
}

// RollingWinRate is the win rate over the most recent `window` trades.
func RollingWinRate(trades []types.TradeResult, window int) decimal.Decimal {
	if len(trades) == 0 {
		return decZero
	}

	start := len(trades) - window
	if start < 0 {
		start = 0
	}
	recent := trades[start:]

	wins := 0
	for _, t := range recent {
		if t.Profit.IsPositive() {
			wins++
		}
	}

	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(recent))))
}

// IsDecaying flags performance decay: the 30-trade rolling win rate has
// dropped below 55%, or below 80% of the all-time win rate. Never flags
// decay with fewer than 30 trades.
func IsDecaying(trades []types.TradeResult) bool {
	if len(trades) < 30 {
		return false
	}

	allTimeWR := RollingWinRate(trades, len(trades))
	recentWR := RollingWinRate(trades, 30)

	thresholdAbsolute := decimal.NewFromFloat(0.55)
	thresholdRelative := allTimeWR.Mul(decimal.NewFromFloat(80)).Div(decHundred)

	return recentWR.LessThan(thresholdAbsolute) || recentWR.LessThan(thresholdRelative)
}

// ExpectedValue is the average expected profit per trade.
func ExpectedValue(trades []types.TradeResult) decimal.Decimal {
	if len(trades) == 0 {
		return decZero
	}

	var wins, losses []types.TradeResult
	for _, t := range trades {
		if t.Profit.IsPositive() {
			wins = append(wins, t)
		} else {
			losses = append(losses, t)
		}
	}

	if len(wins) == 0 {
		sum := decZero
		for _, t := range trades {
			sum = sum.Add(t.Profit)
		}
		return sum.Div(decimal.NewFromInt(int64(len(trades))))
	}

	wr := decimal.NewFromInt(int64(len(wins))).Div(decimal.NewFromInt(int64(len(trades))))
	avgWin := sumProfit(wins).Div(decimal.NewFromInt(int64(len(wins))))

	if len(losses) == 0 {
		return wr.Mul(avgWin)
	}

	avgLoss := sumAbsProfit(losses).Div(decimal.NewFromInt(int64(len(losses))))

	return wr.Mul(avgWin).Sub(decOne.Sub(wr).Mul(avgLoss))
}

// KellyFraction is the optimal bet fraction f = (p*b - q) / b, where
// p = winRate, q = 1-p, b = avgOdds. Clamped to be non-negative.
func KellyFraction(winRate, avgOdds decimal.Decimal) decimal.Decimal {
	if avgOdds.IsZero() || winRate.IsZero() {
		return decZero
	}

	q := decOne.Sub(winRate)
	f := winRate.Mul(avgOdds).Sub(q).Div(avgOdds)

	if f.IsNegative() {
		return decZero
	}
	return f
}

func avgOdds(trades []types.TradeResult) decimal.Decimal {
	var wins, losses []types.TradeResult
	for _, t := range trades {
		if t.Profit.IsPositive() {
			wins = append(wins, t)
		} else if t.Profit.IsNegative() {
			losses = append(losses, t)
		}
	}

	if len(wins) == 0 || len(losses) == 0 {
		return decOne
	}

	avgWin := sumProfit(wins).Div(decimal.NewFromInt(int64(len(wins))))
	avgLoss := sumAbsProfit(losses).Div(decimal.NewFromInt(int64(len(losses))))

	if avgLoss.IsZero() {
		return decOne
	}

	return avgWin.Div(avgLoss)
}

func sumProfit(trades []types.TradeResult) decimal.Decimal {
	sum := decZero
	for _, t := range trades {
		sum = sum.Add(t.Profit)
	}
	return sum
}

func sumAbsProfit(trades []types.TradeResult) decimal.Decimal {
	sum := decZero
	for _, t := range trades {
		sum = sum.Add(t.Profit.Abs())
	}
	return sum
}

// sqrt computes the square root of a non-negative decimal via Newton's
// method, since shopspring/decimal has no built-in Sqrt. Mirrors
// rust_decimal's sqrt().unwrap_or(ONE) fallback on negative input.
func sqrt(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsNegative() {
		return decZero, false
	}
	if d.IsZero() {
		return decZero, true
	}

	x := d
	two := decimal.NewFromInt(2)
	for i := 0; i < 64; i++ {
		next := x.Add(d.Div(x)).Div(two)
		if next.Sub(x).Abs().LessThan(decimal.NewFromFloat(0.0000000001)) {
			x = next
			break
		}
		x = next
	}
	return x, true
}

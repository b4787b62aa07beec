// Package classifier buckets a wallet into informed/market_maker/bot based
// on its trade history. Pure functions only — no I/O, no store access.
package classifier

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/types"
)

// Classify rules, in order: MarketMaker (dual-side in most markets) beats
// Bot (>100 trades/month) beats Informed (everything else). Empty history
// classifies as Informed.
func Classify(trades []types.WhaleTrade) types.Classification {
	if len(trades) == 0 {
		return types.ClassInformed
	}

	if isMarketMaker(trades) {
		return types.ClassMarketMaker
	}
	if isBot(trades) {
		return types.ClassBot
	}
	return types.ClassInformed
}

// isMarketMaker flags a wallet holding both BUY and SELL in the same
// market for more than half of the markets it has touched.
func isMarketMaker(trades []types.WhaleTrade) bool {
	buyMarkets := map[string]bool{}
	sellMarkets := map[string]bool{}

	for _, t := range trades {
		switch strings.ToUpper(string(t.Side)) {
		case "BUY":
			buyMarkets[t.MarketID] = true
		case "SELL":
			sellMarkets[t.MarketID] = true
		}
	}

	dualSide := 0
	allMarkets := map[string]bool{}
	for m := range buyMarkets {
		allMarkets[m] = true
	}
	for m := range sellMarkets {
		allMarkets[m] = true
		if buyMarkets[m] {
			dualSide++
		}
	}

	if len(allMarkets) == 0 {
		return false
	}

	ratio := decimal.NewFromInt(int64(dualSide)).Div(decimal.NewFromInt(int64(len(allMarkets))))
	return ratio.GreaterThan(decimal.NewFromFloat(0.50))
}

// isBot flags average trade frequency above 100/month. Needs at least
// 10 trades to evaluate.
func isBot(trades []types.WhaleTrade) bool {
	if len(trades) < 10 {
		return false
	}

	oldest, newest := trades[0].TradedAt, trades[0].TradedAt
	for _, t := range trades {
		if t.TradedAt.Before(oldest) {
			oldest = t.TradedAt
		}
		if t.TradedAt.After(newest) {
			newest = t.TradedAt
		}
	}

	spanDays := int64(newest.Sub(oldest) / (24 * time.Hour))
	if spanDays < 1 {
		spanDays = 1
	}
	months := decimal.NewFromInt(spanDays).Div(decimal.NewFromInt(30))

	if months.IsZero() {
		return len(trades) > 100
	}

	perMonth := decimal.NewFromInt(int64(len(trades))).Div(months)
	return perMonth.GreaterThan(decimal.NewFromInt(100))
}

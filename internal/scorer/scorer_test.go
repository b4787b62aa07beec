package scorer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polybot/types"
)

func makeTrades(profits ...int64) []types.TradeResult {
	out := make([]types.TradeResult, len(profits))
	now := time.Unix(1700000000, 0)
	for i, p := range profits {
		out[i] = types.TradeResult{Profit: decimal.NewFromInt(p), TradedAt: now}
	}
	return out
}

func TestWinRateBasic(t *testing.T) {
	trades := makeTrades(100, -50, 200, -30, 150)
	wr := WinRate(trades)
	assert.True(t, wr.Equal(decimal.NewFromFloat(0.6)), "got %s", wr)
}

func TestWinRateEmpty(t *testing.T) {
	assert.True(t, WinRate(nil).IsZero())
}

func TestSharpeRatioPositive(t *testing.T) {
	trades := makeTrades(10, 20, 15, 25)
	assert.True(t, SharpeRatio(trades).IsPositive())
}

func TestSharpeRatioInsufficientData(t *testing.T) {
	trades := makeTrades(10)
	assert.True(t, SharpeRatio(trades).IsZero())
}

func TestKellyFractionPositiveEdge(t *testing.T) {
	kf := KellyFraction(decimal.NewFromFloat(0.60), decimal.NewFromFloat(1.5))
	assert.True(t, kf.IsPositive())
	assert.True(t, kf.LessThan(decimal.NewFromInt(1)))
}

func TestKellyFractionNoEdge(t *testing.T) {
	kf := KellyFraction(decimal.NewFromFloat(0.40), decimal.NewFromInt(1))
	assert.True(t, kf.IsZero())
}

func TestExpectedValuePositive(t *testing.T) {
	trades := makeTrades(100, -50, 200, -30, 150)
	assert.True(t, ExpectedValue(trades).IsPositive())
}

func TestIsDecayingNotEnoughData(t *testing.T) {
	trades := makeTrades(100, -50, 200)
	assert.False(t, IsDecaying(trades))
}

func TestIsDecayingDetected(t *testing.T) {
	profits := make([]int64, 0, 80)
	for i := 0; i < 50; i++ {
		profits = append(profits, 100)
	}
	for i := 0; i < 30; i++ {
		profits = append(profits, -100)
	}
	assert.True(t, IsDecaying(makeTrades(profits...)))
}

func TestScoreWalletIntegration(t *testing.T) {
	trades := makeTrades(100, -50, 200, -30, 150, 80, -20, 300)
	s := Score(trades)
	assert.False(t, s.Sharpe.IsZero())
	assert.True(t, s.WinRate.IsPositive())
	assert.Equal(t, 8, s.TotalTrades)
	assert.False(t, s.IsDecaying)
}

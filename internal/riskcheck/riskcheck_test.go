package riskcheck

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polybot/types"
)

func defaultPortfolio() types.PortfolioSnapshot {
	return types.PortfolioSnapshot{
		Bankroll:      decimal.NewFromInt(10000),
		OpenPositions: 0,
		DailyPnL:      decimal.Zero,
	}
}

func TestRiskCheckPasses(t *testing.T) {
	order := types.PendingOrder{Size: decimal.NewFromInt(400), Price: decimal.NewFromFloat(0.45)}
	assert.NoError(t, Check(order, defaultPortfolio(), types.DefaultRiskLimits()))
}

func TestPositionTooLarge(t *testing.T) {
	order := types.PendingOrder{Size: decimal.NewFromInt(2500), Price: decimal.NewFromFloat(0.50)}
	err := Check(order, defaultPortfolio(), types.DefaultRiskLimits())
	assert.ErrorIs(t, err, ErrPositionTooLarge)
}

func TestTooManyPositions(t *testing.T) {
	p := defaultPortfolio()
	p.OpenPositions = 10
	order := types.PendingOrder{Size: decimal.NewFromInt(100), Price: decimal.NewFromFloat(0.50)}
	err := Check(order, p, types.DefaultRiskLimits())
	assert.ErrorIs(t, err, ErrTooManyPositions)
}

func TestDailyLossExceeded(t *testing.T) {
	p := defaultPortfolio()
	p.DailyPnL = decimal.NewFromInt(-600)
	order := types.PendingOrder{Size: decimal.NewFromInt(100), Price: decimal.NewFromFloat(0.50)}
	err := Check(order, p, types.DefaultRiskLimits())
	assert.ErrorIs(t, err, ErrDailyLossExceeded)
}

func TestSpreadTooNarrow(t *testing.T) {
	order := types.PendingOrder{Size: decimal.NewFromInt(100), Price: decimal.NewFromFloat(0.97)}
	err := Check(order, defaultPortfolio(), types.DefaultRiskLimits())
	assert.ErrorIs(t, err, ErrSpreadTooNarrow)
}

func TestSlippageOK(t *testing.T) {
	s, err := CheckSlippage(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.51), types.DefaultRiskLimits())
	assert.NoError(t, err)
	assert.True(t, s.Equal(decimal.NewFromFloat(0.02)))
}

func TestSlippageTooHigh(t *testing.T) {
	_, err := CheckSlippage(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.55), types.DefaultRiskLimits())
	assert.True(t, errors.Is(err, ErrSlippageTooHigh))
}

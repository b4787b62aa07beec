package classifier

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polybot/types"
)

func makeTrade(market string, side types.Side, daysAgo int) types.WhaleTrade {
	return types.WhaleTrade{
		MarketID: market,
		Side:     side,
		TradedAt: time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestClassifyInformed(t *testing.T) {
	var trades []types.WhaleTrade
	for i := 0; i < 5; i++ {
		trades = append(trades, makeTrade(fmt.Sprintf("market_%d", i), types.Buy, i*30))
	}
	assert.Equal(t, types.ClassInformed, Classify(trades))
}

func TestClassifyMarketMaker(t *testing.T) {
	trades := []types.WhaleTrade{
		makeTrade("market_A", types.Buy, 10),
		makeTrade("market_A", types.Sell, 9),
		makeTrade("market_B", types.Buy, 8),
		makeTrade("market_B", types.Sell, 7),
	}
	assert.Equal(t, types.ClassMarketMaker, Classify(trades))
}

func TestClassifyBot(t *testing.T) {
	var trades []types.WhaleTrade
	for i := 0; i < 200; i++ {
		trades = append(trades, makeTrade("market_X", types.Buy, 0))
	}
	assert.Equal(t, types.ClassBot, Classify(trades))
}

func TestClassifyEmpty(t *testing.T) {
	assert.Equal(t, types.ClassInformed, Classify(nil))
}

package executor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/types"
)

type fakeBook struct {
	book *OrderBook
	err  error
}

func (f *fakeBook) GetOrderBook(string) (*OrderBook, error) { return f.book, f.err }

type fakeTrading struct {
	orderID string
	err     error
	calls   int
}

func (f *fakeTrading) PlaceOrderWithType(string, decimal.Decimal, decimal.Decimal, string, string, bool) (string, error) {
	f.calls++
	return f.orderID, f.err
}

func TestExecuteDryRunReturnsSuccess(t *testing.T) {
	e := New(nil, nil, types.DefaultRiskLimits(), true)
	r, err := e.Execute("12345", "BUY", decimal.NewFromInt(50), decimal.NewFromFloat(0.55))
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.True(t, r.FillPrice.Equal(decimal.NewFromFloat(0.55)))
	assert.True(t, r.Slippage.IsZero())
	assert.Empty(t, r.OrderID)
}

func TestExecuteNoTradingClientAutoDryRun(t *testing.T) {
	e := New(nil, nil, types.DefaultRiskLimits(), false)
	r, err := e.Execute("12345", "SELL", decimal.NewFromInt(100), decimal.NewFromFloat(0.40))
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Empty(t, r.OrderID)
}

func TestExecuteLiveUsesBestAsk(t *testing.T) {
	book := &fakeBook{book: &OrderBook{
		Asks: []BookLevel{{Price: decimal.NewFromFloat(0.51)}},
		Bids: []BookLevel{{Price: decimal.NewFromFloat(0.49)}},
	}}
	trading := &fakeTrading{orderID: "abc123"}
	e := New(book, trading, types.DefaultRiskLimits(), false)

	r, err := e.Execute("tok", "BUY", decimal.NewFromInt(10), decimal.NewFromFloat(0.50))
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, "abc123", r.OrderID)
	assert.True(t, r.FillPrice.Equal(decimal.NewFromFloat(0.51)))
	assert.Equal(t, 1, trading.calls)
}

func TestExecuteEmptyOrderBookErrors(t *testing.T) {
	book := &fakeBook{book: &OrderBook{}}
	trading := &fakeTrading{orderID: "x"}
	e := New(book, trading, types.DefaultRiskLimits(), false)

	_, err := e.Execute("tok", "BUY", decimal.NewFromInt(10), decimal.NewFromFloat(0.5))
	require.Error(t, err)
}

func TestExecuteOrderBookErrorFallsBackToTarget(t *testing.T) {
	book := &fakeBook{err: assertErr{}}
	trading := &fakeTrading{orderID: "fallback"}
	e := New(book, trading, types.DefaultRiskLimits(), false)

	r, err := e.Execute("tok", "BUY", decimal.NewFromInt(10), decimal.NewFromFloat(0.5))
	require.NoError(t, err)
	assert.True(t, r.FillPrice.Equal(decimal.NewFromFloat(0.5)))
}

type assertErr struct{}

func (assertErr) Error() string { return "book fetch failed" }

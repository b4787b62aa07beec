package resolution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/marketdata"
	"github.com/web3guy0/polybot/types"
)

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

func closedBool(v bool) *bool { return &v }

func TestWinningResolutionYes(t *testing.T) {
	market := &marketdata.Market{
		Closed: closedBool(true),
		Tokens: []marketdata.Token{
			{Outcome: "Yes", Winner: closedBool(true)},
			{Outcome: "No", Winner: closedBool(false)},
		},
	}
	res, ok := winningResolution(market)
	require.True(t, ok)
	require.Equal(t, types.ResolutionYes, res)
}

func TestWinningResolutionNoWinnerYet(t *testing.T) {
	market := &marketdata.Market{
		Closed: closedBool(true),
		Tokens: []marketdata.Token{
			{Outcome: "Yes", Winner: closedBool(false)},
			{Outcome: "No", Winner: closedBool(false)},
		},
	}
	_, ok := winningResolution(market)
	require.False(t, ok)
}

func TestSettlementPnLWinningYesPosition(t *testing.T) {
	pnl := settlementPnL(types.OutcomeYes, types.ResolutionYes, decimal.NewFromInt(100), decimal.NewFromFloat(0.40))
	require.True(t, pnl.Equal(decimal.NewFromFloat(60)))
}

func TestSettlementPnLLosingYesPosition(t *testing.T) {
	pnl := settlementPnL(types.OutcomeYes, types.ResolutionNo, decimal.NewFromInt(100), decimal.NewFromFloat(0.40))
	require.True(t, pnl.Equal(decimal.NewFromFloat(-40)))
}

func TestSettlementPnLWinningNoPosition(t *testing.T) {
	pnl := settlementPnL(types.OutcomeNo, types.ResolutionNo, decimal.NewFromInt(100), decimal.NewFromFloat(0.30))
	require.True(t, pnl.Equal(decimal.NewFromFloat(70)))
}

func TestSettlementPnLLosingNoPosition(t *testing.T) {
	pnl := settlementPnL(types.OutcomeNo, types.ResolutionYes, decimal.NewFromInt(100), decimal.NewFromFloat(0.30))
	require.True(t, pnl.Equal(decimal.NewFromFloat(-30)))
}

type fakeMarketData struct {
	market *marketdata.Market
	err    error
}

func (f *fakeMarketData) GetMarketForResolution(string) (*marketdata.Market, error) {
	return f.market, f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(message string) { f.messages = append(f.messages, message) }

func TestCheckMarketResolvesAndSettlesPosition(t *testing.T) {
	db := testDB(t)
	_, err := db.UpsertPosition("market-1", "token-yes", types.OutcomeYes, types.Buy, decimal.NewFromInt(100), decimal.NewFromFloat(0.40))
	require.NoError(t, err)

	// market-1 must exist as an unresolved MarketOutcome for ResolveMarket to flip it.
	_, err = db.EnsureMarketOutcome("market-1", "token-yes")
	require.NoError(t, err)

	market := &marketdata.Market{
		Question: "Will it happen?",
		Closed:   closedBool(true),
		Tokens: []marketdata.Token{
			{TokenID: "token-yes", Outcome: "Yes", Winner: closedBool(true)},
			{TokenID: "token-no", Outcome: "No", Winner: closedBool(false)},
		},
	}
	notifier := &fakeNotifier{}
	p := New(db, &fakeMarketData{market: market}, notifier)
	resolved := p.checkMarket("market-1")
	require.True(t, resolved)

	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Empty(t, positions)
	require.Len(t, notifier.messages, 1)
}

func TestCheckMarketStillOpenDoesNothing(t *testing.T) {
	db := testDB(t)
	_, err := db.EnsureMarketOutcome("market-2", "token-yes")
	require.NoError(t, err)

	market := &marketdata.Market{Closed: closedBool(false)}
	p := New(db, &fakeMarketData{market: market}, nil)
	resolved := p.checkMarket("market-2")
	require.False(t, resolved)

	mo, err := db.GetMarketOutcome("market-2")
	require.NoError(t, err)
	require.Equal(t, string(types.ResolutionUnresolved), mo.Outcome)
}

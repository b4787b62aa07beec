package discovery

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/marketdata"
	"github.com/web3guy0/polybot/internal/tokenset"
)

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

type fakeMarketData struct {
	pages [][]marketdata.Market
	calls int
}

func (f *fakeMarketData) GetActiveMarketsPage(limit, offset int) ([]marketdata.Market, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.pages) {
		return nil, nil
	}
	return f.pages[idx], nil
}

func TestScanOncePersistsAndBroadcastsQualifyingMarkets(t *testing.T) {
	db := testDB(t)
	data := &fakeMarketData{
		pages: [][]marketdata.Market{
			{
				{
					ConditionID: "m1",
					Question:    "Will bitcoin hit $100k?",
					Volume:      decimal.NewFromInt(20000),
					Liquidity:   decimal.NewFromInt(8000),
					Tokens: []marketdata.Token{
						{TokenID: "tok-yes", Outcome: "Yes"},
						{TokenID: "tok-no", Outcome: "No"},
					},
				},
				{
					ConditionID: "m2",
					Question:    "Low volume market",
					Volume:      decimal.NewFromInt(100),
					Liquidity:   decimal.NewFromInt(100),
					Tokens:      []marketdata.Token{{TokenID: "tok-low"}},
				},
			},
		},
	}
	tokens := tokenset.New()
	d := New(db, data, tokens, decimal.NewFromInt(10000), decimal.NewFromInt(5000))
	d.scanOnce()

	require.Equal(t, []string{"tok-no", "tok-yes"}, tokens.Latest())

	question, err := db.GetMarketQuestion("m1")
	require.NoError(t, err)
	require.Equal(t, "Will bitcoin hit $100k?", question)

	_, err = db.GetMarketQuestion("m2")
	require.Error(t, err) // filtered out by volume/liquidity floor
}

func TestDedupeSorted(t *testing.T) {
	out := dedupeSorted([]string{"b", "a", "b", "c", "a"})
	require.Equal(t, []string{"a", "b", "c"}, out)
}

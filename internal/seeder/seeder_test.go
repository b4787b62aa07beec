package seeder

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/dataapi"
	"github.com/web3guy0/polybot/internal/database"
)

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

func testConfig() Config {
	return Config{
		SkipTopN:        0,
		MinTrades:       10,
		RecencyDays:     90,
		MaxWallets:      5,
		MaxInactiveDays: 30,
	}
}

type fakeLeaderboard struct {
	entries []dataapi.LeaderboardEntry
	trades  map[string][]dataapi.UserTrade
}

func (f *fakeLeaderboard) GetLeaderboard(int) ([]dataapi.LeaderboardEntry, error) {
	return f.entries, nil
}

func (f *fakeLeaderboard) GetUserTrades(wallet string, _ int) ([]dataapi.UserTrade, error) {
	return f.trades[wallet], nil
}

func recentTrades(n int, market string) []dataapi.UserTrade {
	trades := make([]dataapi.UserTrade, 0, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(i) * 6 * time.Hour)
		side := "BUY"
		trades = append(trades, dataapi.UserTrade{
			TokenID:   "token-1",
			Side:      side,
			Size:      decimal.NewFromInt(10),
			Price:     decimal.NewFromFloat(0.5),
			Timestamp: ts.Unix(),
			Market:    market,
		})
	}
	return trades
}

func TestSeedAndCleanupSeedsNewWhale(t *testing.T) {
	db := testDB(t)
	lb := &fakeLeaderboard{
		entries: []dataapi.LeaderboardEntry{
			{Address: "0xabc", Volume: decimal.NewFromInt(50000), PnL: decimal.NewFromInt(20000)},
		},
		trades: map[string][]dataapi.UserTrade{
			"0xabc": recentTrades(30, "market-1"),
		},
	}
	s := New(db, lb, testConfig())
	s.seedAndCleanup()

	whale, err := db.GetWhaleByAddress("0xabc")
	require.NoError(t, err)
	require.Equal(t, "high_performer", whale.Classification)
	require.True(t, whale.IsActive)

	trades, err := db.GetTradesByWhale(whale.ID)
	require.NoError(t, err)
	require.Len(t, trades, 30)
}

func TestSeedAndCleanupSkipsAlreadyTracked(t *testing.T) {
	db := testDB(t)
	_, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)

	lb := &fakeLeaderboard{
		entries: []dataapi.LeaderboardEntry{
			{Address: "0xabc", Volume: decimal.NewFromInt(50000), PnL: decimal.NewFromInt(20000)},
		},
	}
	s := New(db, lb, testConfig())
	s.seedAndCleanup()

	active, err := db.GetActiveWhales()
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestSeedAndCleanupSkipsLowTradeCount(t *testing.T) {
	db := testDB(t)
	lb := &fakeLeaderboard{
		entries: []dataapi.LeaderboardEntry{
			{Address: "0xabc", Volume: decimal.NewFromInt(50000), PnL: decimal.NewFromInt(20000)},
		},
		trades: map[string][]dataapi.UserTrade{
			"0xabc": recentTrades(3, "market-1"),
		},
	}
	s := New(db, lb, testConfig())
	s.seedAndCleanup()

	_, err := db.GetWhaleByAddress("0xabc")
	require.Error(t, err)
}

func TestDetectBotOrMMFlagsHighFrequency(t *testing.T) {
	trades := make([]dataapi.UserTrade, 0, 150)
	now := time.Now()
	for i := 0; i < 150; i++ {
		trades = append(trades, dataapi.UserTrade{
			Market:    "market-1",
			Side:      "BUY",
			Timestamp: now.Add(-time.Duration(i) * time.Hour).Unix(),
		})
	}
	reason := detectBotOrMM(trades)
	require.Contains(t, reason, "bot")
}

func TestDetectBotOrMMFlagsDualSideMarketMaker(t *testing.T) {
	trades := make([]dataapi.UserTrade, 0, 40)
	now := time.Now()
	for i := 0; i < 20; i++ {
		market := "market-" + string(rune('A'+i%5))
		trades = append(trades, dataapi.UserTrade{Market: market, Side: "BUY", Timestamp: now.Add(-time.Duration(i) * 48 * time.Hour).Unix()})
		trades = append(trades, dataapi.UserTrade{Market: market, Side: "SELL", Timestamp: now.Add(-time.Duration(i) * 48 * time.Hour).Unix()})
	}
	reason := detectBotOrMM(trades)
	require.Contains(t, reason, "market_maker")
}

func TestDetectBotOrMMPassesDirectionalTrader(t *testing.T) {
	trades := recentTrades(25, "market-1")
	reason := detectBotOrMM(trades)
	require.Empty(t, reason)
}

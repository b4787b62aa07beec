package ingestion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/dataapi"
	"github.com/web3guy0/polybot/types"
)

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

type fakeWalletData struct {
	trades map[string][]dataapi.UserTrade
}

func (f *fakeWalletData) GetUserTrades(wallet string, limit int) ([]dataapi.UserTrade, error) {
	return f.trades[wallet], nil
}

func TestWalletPollerEmitsOnlyTradesAfterLastSeen(t *testing.T) {
	db := testDB(t)
	whale, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)
	require.NotNil(t, whale)

	out := make(chan types.TradeEvent, 10)
	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()

	data := &fakeWalletData{trades: map[string][]dataapi.UserTrade{
		"0xabc": {
			{TokenID: "tok1", Side: "BUY", Size: decimal.NewFromInt(10), Price: decimal.NewFromFloat(0.5), Timestamp: past, Market: "m1"},
			{TokenID: "tok2", Side: "SELL", Size: decimal.NewFromInt(5), Price: decimal.NewFromFloat(0.6), Timestamp: future, Market: "m2"},
		},
	}}

	p := NewWalletPoller(db, data, out, 10)

	p.mu.Lock()
	p.lastSeen["0xabc"] = time.Now()
	p.mu.Unlock()

	found := p.pollWallet("0xabc")
	require.Equal(t, 1, found)

	select {
	case event := <-out:
		require.Equal(t, "0xabc", event.Wallet)
		require.Equal(t, "m2", event.MarketID)
		require.Equal(t, types.Sell, event.Side)
	default:
		t.Fatal("expected an emitted trade event")
	}
}

func TestWalletPollerSkipsUnknownSide(t *testing.T) {
	db := testDB(t)
	_, err := db.UpsertWhale("0xdef")
	require.NoError(t, err)

	out := make(chan types.TradeEvent, 10)
	data := &fakeWalletData{trades: map[string][]dataapi.UserTrade{
		"0xdef": {
			{TokenID: "tok1", Side: "WEIRD", Size: decimal.NewFromInt(1), Price: decimal.NewFromFloat(0.5), Timestamp: time.Now().Add(time.Hour).Unix()},
		},
	}}

	p := NewWalletPoller(db, data, out, 10)
	p.mu.Lock()
	p.lastSeen["0xdef"] = time.Now()
	p.mu.Unlock()

	found := p.pollWallet("0xdef")
	require.Equal(t, 0, found)
}

func TestOrUnknown(t *testing.T) {
	require.Equal(t, "unknown", orUnknown(""))
	require.Equal(t, "m1", orUnknown("m1"))
}

package positionmonitor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/types"
)

type fakeBook struct {
	book *OrderBook
	err  error
}

func (f *fakeBook) GetOrderBook(string) (*OrderBook, error) { return f.book, f.err }

type fakeTrading struct {
	orderID string
	calls   int
}

func (f *fakeTrading) PlaceOrderWithType(string, decimal.Decimal, decimal.Decimal, string, string, bool) (string, error) {
	f.calls++
	return f.orderID, nil
}

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

func openPosition(t *testing.T, db *database.Database, entryPrice decimal.Decimal) *database.Position {
	t.Helper()
	pos, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(100), entryPrice)
	require.NoError(t, err)
	return pos
}

func TestCheckPositionStopLossDryRunCloses(t *testing.T) {
	db := testDB(t)
	openPosition(t, db, decimal.NewFromFloat(0.50))

	book := &fakeBook{book: &OrderBook{Bids: []BookLevel{{Price: decimal.NewFromFloat(0.40)}}}}
	m := New(db, book, nil, nil, true, nil)
	m.checkOnce()

	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestCheckPositionWithinBoundsNoAction(t *testing.T) {
	db := testDB(t)
	openPosition(t, db, decimal.NewFromFloat(0.50))

	book := &fakeBook{book: &OrderBook{Bids: []BookLevel{{Price: decimal.NewFromFloat(0.51)}}}}
	m := New(db, book, nil, nil, true, nil)
	m.checkOnce()

	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestCheckPositionTakeProfitLiveMarksExiting(t *testing.T) {
	db := testDB(t)
	openPosition(t, db, decimal.NewFromFloat(0.30))

	book := &fakeBook{book: &OrderBook{Bids: []BookLevel{{Price: decimal.NewFromFloat(0.50)}}}}
	trading := &fakeTrading{orderID: "exit-1"}
	m := New(db, book, trading, nil, false, nil)
	m.checkOnce()

	require.Equal(t, 1, trading.calls)
	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Empty(t, positions) // exiting, not open
}

func TestCheckPositionNoBidsSkipsUpdate(t *testing.T) {
	db := testDB(t)
	openPosition(t, db, decimal.NewFromFloat(0.50))

	book := &fakeBook{book: &OrderBook{}}
	m := New(db, book, nil, nil, true, nil)
	m.checkOnce()

	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

package fillpoller

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/capitalpool"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/types"
)

type fakeTrading struct {
	statuses map[string]*OrderStatus
	errs     map[string]error
	cancels  []string
}

func (f *fakeTrading) GetOrderStatus(id string) (*OrderStatus, error) {
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.statuses[id], nil
}

func (f *fakeTrading) CancelOrder(id string) error {
	f.cancels = append(f.cancels, id)
	return nil
}

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

func TestReconcileMatchedUpsertsPosition(t *testing.T) {
	db := testDB(t)
	pool := capitalpool.New(decimal.NewFromInt(1000))

	wtID := mustWhaleTradeID(t, db)
	order, err := db.InsertOrder(&wtID, "market-1", "token-1", types.Buy, decimal.NewFromInt(50), decimal.NewFromFloat(0.5), "fixed")
	require.NoError(t, err)
	require.NoError(t, db.MarkOrderSubmitted(order.ID, "clob-1"))
	pool.Reserve(wtID, decimal.NewFromInt(25))

	trading := &fakeTrading{statuses: map[string]*OrderStatus{
		"clob-1": {Status: StatusMatched, Price: decimal.NewFromFloat(0.52), SizeMatched: decimal.NewFromInt(50), OriginalSize: decimal.NewFromInt(50)},
	}}

	poller := New(db, trading, pool, decimal.NewFromFloat(15), decimal.NewFromFloat(50), 5*time.Minute)

	orders, err := db.GetSubmittedOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	poller.reconcile(&orders[0])

	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.True(t, pool.Available().Equal(decimal.NewFromInt(975)))
}

func TestReconcileMissingExternalIDCancelsLocally(t *testing.T) {
	db := testDB(t)
	pool := capitalpool.New(decimal.NewFromInt(1000))

	wtID := mustWhaleTradeID(t, db)
	order, err := db.InsertOrder(&wtID, "market-1", "token-1", types.Buy, decimal.NewFromInt(50), decimal.NewFromFloat(0.5), "fixed")
	require.NoError(t, err)
	require.NoError(t, db.MarkOrderSubmitted(order.ID, ""))
	pool.Reserve(wtID, decimal.NewFromInt(25))

	poller := New(db, &fakeTrading{}, pool, decimal.NewFromFloat(15), decimal.NewFromFloat(50), 5*time.Minute)

	orders, err := db.GetSubmittedOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	poller.reconcile(&orders[0])

	require.True(t, pool.Available().Equal(decimal.NewFromInt(1000)))
}

func mustWhaleTradeID(t *testing.T, db *database.Database) uuid.UUID {
	t.Helper()
	whale, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)
	trade, err := db.InsertTrade(whale.ID, "market-1", "token-1", types.Buy, decimal.NewFromInt(50), decimal.NewFromFloat(0.5), decimal.NewFromInt(25), time.Now())
	require.NoError(t, err)
	return trade.ID
}

package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/types"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	return db
}

func TestUpsertWhaleCreatesThenReturnsExisting(t *testing.T) {
	db := testDB(t)

	w1, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", w1.Address)
	assert.True(t, w1.IsActive)

	w2, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)
	assert.Equal(t, w1.ID, w2.ID, "second upsert of the same address must return the existing row")
}

func TestUpsertPositionOpensNewPosition(t *testing.T) {
	db := testDB(t)

	pos, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(100), decimal.NewFromFloat(0.50))
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(100)))
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromFloat(0.50)))
	assert.Equal(t, string(types.PositionOpen), pos.Status)
}

// TestUpsertPositionWeightedAverageEntryPrice covers the additional-fill
// path: a second buy at a different price must weight the new average entry
// price by each fill's size, not simply average the two prices.
func TestUpsertPositionWeightedAverageEntryPrice(t *testing.T) {
	db := testDB(t)

	_, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(100), decimal.NewFromFloat(0.40))
	require.NoError(t, err)

	pos, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(300), decimal.NewFromFloat(0.60))
	require.NoError(t, err)

	// (100*0.40 + 300*0.60) / 400 = 0.55
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromFloat(0.55)), "got %s", pos.AvgEntryPrice)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(400)))
}

func TestUpsertPositionPartialSellReducesSize(t *testing.T) {
	db := testDB(t)

	_, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(100), decimal.NewFromFloat(0.50))
	require.NoError(t, err)

	pos, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Sell, decimal.NewFromInt(40), decimal.NewFromFloat(0.55))
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(60)))
	// A partial sell does not move the average entry price.
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromFloat(0.50)))
}

func TestUpsertPositionFullSellDeletesPosition(t *testing.T) {
	db := testDB(t)

	_, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(100), decimal.NewFromFloat(0.50))
	require.NoError(t, err)

	pos, err := db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Sell, decimal.NewFromInt(100), decimal.NewFromFloat(0.55))
	require.NoError(t, err)
	assert.Nil(t, pos)

	open, err := db.GetOpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestResolveMarketIsOnceOnly(t *testing.T) {
	db := testDB(t)

	_, err := db.EnsureMarketOutcome("market-1", "token-1")
	require.NoError(t, err)

	require.NoError(t, db.ResolveMarket("market-1", types.ResolutionYes))

	mo, err := db.GetMarketOutcome("market-1")
	require.NoError(t, err)
	assert.Equal(t, string(types.ResolutionYes), mo.Outcome)

	// Resolving again must be a no-op: unresolved -> resolved is a one-way
	// transition, so a second resolved_no call must not overwrite it.
	require.NoError(t, db.ResolveMarket("market-1", types.ResolutionNo))

	mo, err = db.GetMarketOutcome("market-1")
	require.NoError(t, err)
	assert.Equal(t, string(types.ResolutionYes), mo.Outcome)
}

func TestCreateBasketAndMembership(t *testing.T) {
	db := testDB(t)

	w, err := db.UpsertWhale("0xabc")
	require.NoError(t, err)

	basket := &WhaleBasket{
		Name:               "politics-core",
		Category:           "politics",
		ConsensusThreshold: decimal.NewFromFloat(0.80),
		TimeWindowHours:    24,
		MinWallets:         3,
		MaxWallets:         10,
		IsActive:           true,
	}
	require.NoError(t, db.CreateBasket(basket))
	require.NotEqual(t, uuid.Nil, basket.ID)

	require.NoError(t, db.AddWhaleToBasket(basket.ID, w.ID))

	members, err := db.GetActiveBasketMembers(basket.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, w.ID, members[0].ID)
}

func TestCountOpenPositions(t *testing.T) {
	db := testDB(t)

	count, err := db.CountOpenPositions()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = db.UpsertPosition("market-1", "token-1", types.OutcomeYes, types.Buy, decimal.NewFromInt(10), decimal.NewFromFloat(0.5))
	require.NoError(t, err)

	count, err = db.CountOpenPositions()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

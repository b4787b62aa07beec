package capitalpool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReserveAndRelease(t *testing.T) {
	pool := New(decimal.NewFromInt(1000))
	id1, id2 := uuid.New(), uuid.New()

	assert.True(t, pool.Reserve(id1, decimal.NewFromInt(600)))
	assert.True(t, pool.Available().Equal(decimal.NewFromInt(400)))

	assert.False(t, pool.Reserve(id2, decimal.NewFromInt(500)))

	pool.Release(id1)
	assert.True(t, pool.Available().Equal(decimal.NewFromInt(1000)))
}

func TestConfirmReducesBalance(t *testing.T) {
	pool := New(decimal.NewFromInt(1000))
	id := uuid.New()

	assert.True(t, pool.Reserve(id, decimal.NewFromInt(300)))
	pool.Confirm(id)

	assert.True(t, pool.Available().Equal(decimal.NewFromInt(700)))
}

func TestSyncBalance(t *testing.T) {
	pool := New(decimal.NewFromInt(1000))
	pool.SyncBalance(decimal.NewFromInt(1500))
	assert.True(t, pool.Available().Equal(decimal.NewFromInt(1500)))
}

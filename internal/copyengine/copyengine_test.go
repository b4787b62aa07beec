package copyengine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/internal/capitalpool"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/executor"
	"github.com/web3guy0/polybot/types"
)

type fakeExecutor struct {
	result types.OrderResult
	err    error
	calls  int
}

func (f *fakeExecutor) Execute(string, string, decimal.Decimal, decimal.Decimal) (types.OrderResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(msg string) { f.messages = append(f.messages, msg) }

func testDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

func testConfig() Config {
	return Config{
		Strategy:             types.SizingFixed,
		Bankroll:             decimal.NewFromInt(1000),
		BaseAmount:           decimal.NewFromInt(100),
		RiskLimits:           types.DefaultRiskLimits(),
		DryRun:               true,
		DefaultStopLossPct:   decimal.NewFromFloat(15),
		DefaultTakeProfitPct: decimal.NewFromFloat(50),
	}
}

func testSignal() types.CopySignal {
	return types.CopySignal{
		WhaleTradeID:  uuid.New(),
		Wallet:        "0xabc",
		MarketID:      "market-1",
		AssetID:       "token-1",
		Side:          types.Buy,
		Price:         decimal.NewFromFloat(0.5),
		WhaleWinRate:  decimal.NewFromFloat(0.7),
		WhaleKelly:    decimal.NewFromFloat(0.1),
		WhaleNotional: decimal.NewFromInt(5000),
	}
}

func TestProcessSignalDryRunFillsOrderAndUpsertsPosition(t *testing.T) {
	db := testDB(t)
	pool := capitalpool.New(decimal.NewFromInt(1000))
	exec := &fakeExecutor{result: types.OrderResult{FillPrice: decimal.NewFromFloat(0.5), Success: true}}
	notifier := &fakeNotifier{}

	engine := New(db, pool, exec, nil, notifier, testConfig())
	err := engine.ProcessSignal(context.Background(), testSignal())
	require.NoError(t, err)
	require.Equal(t, 1, exec.calls)
	require.Len(t, notifier.messages, 1)

	positions, err := db.GetOpenPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestProcessSignalZeroSizeSkips(t *testing.T) {
	db := testDB(t)
	pool := capitalpool.New(decimal.NewFromInt(1000))
	exec := &fakeExecutor{}
	cfg := testConfig()
	cfg.Strategy = types.SizingKelly

	signal := testSignal()
	signal.WhaleKelly = decimal.Zero

	engine := New(db, pool, exec, nil, nil, cfg)
	err := engine.ProcessSignal(context.Background(), signal)
	require.NoError(t, err)
	require.Equal(t, 0, exec.calls)
}

func TestProcessSignalExecutionFailureReleasesPoolAndFailsOrder(t *testing.T) {
	db := testDB(t)
	pool := capitalpool.New(decimal.NewFromInt(1000))
	exec := &fakeExecutor{err: errors.New("rejected")}
	notifier := &fakeNotifier{}

	engine := New(db, pool, exec, nil, notifier, testConfig())
	err := engine.ProcessSignal(context.Background(), testSignal())
	require.NoError(t, err)
	require.Len(t, notifier.messages, 1)

	// Reservation should have been released back to available capital.
	require.True(t, pool.Available().Equal(decimal.NewFromInt(1000)))
}

func TestProcessSignalRetriesClobErrorThenSucceeds(t *testing.T) {
	db := testDB(t)
	pool := capitalpool.New(decimal.NewFromInt(1000))
	exec := &retryingExecutor{failuresLeft: 1, ok: types.OrderResult{FillPrice: decimal.NewFromFloat(0.5), Success: true}}

	engine := New(db, pool, exec, nil, nil, testConfig())
	err := engine.ProcessSignal(context.Background(), testSignal())
	require.NoError(t, err)
	require.Equal(t, 2, exec.calls)
}

type retryingExecutor struct {
	failuresLeft int
	ok           types.OrderResult
	calls        int
}

func (r *retryingExecutor) Execute(string, string, decimal.Decimal, decimal.Decimal) (types.OrderResult, error) {
	r.calls++
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return types.OrderResult{}, errors.Join(executor.ErrClobError, errors.New("timeout"))
	}
	return r.ok, nil
}

// Package copyengine consumes copy signals from the pipeline and turns
// them into real (or simulated) orders: size, balance-check, risk-check,
// reserve capital, execute with retry, and record the outcome.
package copyengine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/capitalpool"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/executor"
	"github.com/web3guy0/polybot/internal/metrics"
	"github.com/web3guy0/polybot/internal/riskcheck"
	"github.com/web3guy0/polybot/internal/sizer"
	"github.com/web3guy0/polybot/types"
)

// maxRetries bounds the total executor attempts for RETRYABLE failures
// (ErrClobError). Any other error (empty order book, slippage too high)
// fails immediately. executor.Execute wraps every order-placement error,
// venue rejections included, as ErrClobError, so those are retried too.
const maxRetries = 3

// retryBase is the base backoff; attempt n sleeps retryBase * 2^n.
const retryBase = 500 * time.Millisecond

// Config bundles the copy engine's tunables.
type Config struct {
	Strategy             types.SizingStrategy
	Bankroll             decimal.Decimal
	BaseAmount           decimal.Decimal
	RiskLimits           types.RiskLimits
	DryRun               bool
	DefaultStopLossPct   decimal.Decimal
	DefaultTakeProfitPct decimal.Decimal
}

// Executor is the subset of executor.Executor the engine needs.
type Executor interface {
	Execute(tokenID, side string, size, targetPrice decimal.Decimal) (types.OrderResult, error)
}

// BalanceChecker is the pre-trade on-chain balance oracle. Optional; when
// nil the balance pre-check is skipped entirely (as in dry-run).
type BalanceChecker interface {
	GetUSDCBalance() (decimal.Decimal, error)
	GetTokenBalance(tokenID string) (decimal.Decimal, error)
}

// Notifier reports order outcomes. Failures to notify are logged, never
// propagated — a dead notifier must not stop trading.
type Notifier interface {
	Notify(message string)
}

// Broadcaster pushes a dashboard event to connected WebSocket clients
// (SPEC_FULL.md §6's order_update message). Optional; nil disables it.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Engine wires signals to orders.
type Engine struct {
	db          *database.Database
	pool        *capitalpool.Pool
	executor    Executor
	balance     BalanceChecker
	notifier    Notifier
	broadcaster Broadcaster
	cfg         Config
	paused      atomic.Bool
}

// New builds a copy engine. balance and notifier may be nil.
func New(db *database.Database, pool *capitalpool.Pool, exec Executor, balance BalanceChecker, notifier Notifier, cfg Config) *Engine {
	return &Engine{db: db, pool: pool, executor: exec, balance: balance, notifier: notifier, cfg: cfg}
}

// SetBroadcaster wires an optional dashboard event sink after construction,
// since the HTTP API (which owns the WebSocket hub) is built after the
// engine in the composition root.
func (e *Engine) SetBroadcaster(b Broadcaster) { e.broadcaster = b }

func (e *Engine) broadcast(eventType string, data interface{}) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Broadcast(eventType, data)
}

// Pause stops the engine from processing further signals until Resume.
// In-flight processing is unaffected.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume re-enables signal processing.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports the current pause state.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Run consumes signals until the channel closes or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, in <-chan types.CopySignal) {
	log.Info().
		Str("strategy", string(e.cfg.Strategy)).
		Str("bankroll", e.cfg.Bankroll.StringFixed(2)).
		Bool("dry_run", e.cfg.DryRun).
		Msg("🚀 copy engine started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 copy engine stopping — context cancelled")
			return
		case signal, ok := <-in:
			if !ok {
				log.Warn().Msg("🛑 copy engine channel closed — shutting down")
				return
			}
			if e.Paused() {
				log.Info().
					Str("wallet", signal.Wallet).
					Str("market_id", signal.MarketID).
					Msg("⏸️ copy engine paused — skipping signal")
				continue
			}

			log.Info().
				Str("wallet", signal.Wallet).
				Str("market_id", signal.MarketID).
				Str("side", string(signal.Side)).
				Str("price", signal.Price.StringFixed(4)).
				Msg("⚡ processing copy signal")

			if err := e.ProcessSignal(ctx, signal); err != nil {
				log.Error().Err(err).
					Str("wallet", signal.Wallet).
					Str("market_id", signal.MarketID).
					Msg("❌ copy trade execution failed")
			}
		}
	}
}

// ProcessSignal executes the full §4.12 sequence for a single signal.
func (e *Engine) ProcessSignal(ctx context.Context, signal types.CopySignal) error {
	// 2. bankroll_for_sizing = max(pool.available(), config.bankroll)
	bankrollForSizing := e.cfg.Bankroll
	if e.pool != nil {
		if avail := e.pool.Available(); avail.GreaterThan(bankrollForSizing) {
			bankrollForSizing = avail
		}
	}

	// 3. Size. Win rate doubles as signal strength, per the teacher's
	// single-number-to-rule-them-all heuristic.
	size := sizer.CalculateSize(e.cfg.Strategy, bankrollForSizing, signal.WhaleNotional, signal.WhaleWinRate, signal.WhaleKelly, e.cfg.BaseAmount, signal.WhaleWinRate)
	if !size.IsPositive() {
		log.Debug().Str("wallet", signal.Wallet).Msg("size computed as zero, skipping")
		return nil
	}

	log.Info().Str("strategy", string(e.cfg.Strategy)).Str("size", size.StringFixed(2)).Msg("📏 position sized")

	// 4. Balance pre-check (live mode only).
	if !e.cfg.DryRun && e.balance != nil {
		ok, err := e.checkBalance(signal, size)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ balance check failed — skipping signal")
			return nil
		} else if !ok {
			return nil
		}
	}

	// 5. Risk check.
	openPositions, err := e.db.CountOpenPositions()
	if err != nil {
		openPositions = 0
	}
	dailyPnL, err := e.db.DailyRealizedPnL()
	if err != nil {
		dailyPnL = decimal.Zero
	}
	portfolio := types.PortfolioSnapshot{
		Bankroll:      bankrollForSizing,
		OpenPositions: openPositions,
		DailyPnL:      dailyPnL,
	}
	pendingOrder := types.PendingOrder{Size: size, Price: signal.Price}

	if err := riskcheck.Check(pendingOrder, portfolio, e.cfg.RiskLimits); err != nil {
		log.Warn().Err(err).Str("wallet", signal.Wallet).Msg("🚫 risk check failed — order rejected")
		return nil
	}
	log.Info().Msg("✅ risk check passed")

	// 6. Reserve capital.
	// Reservation key is the whale_trade_id, not a fresh order id — the
	// fill poller (C13) releases/confirms by that same key when it later
	// finalizes submitted live orders.
	reservationKey := signal.WhaleTradeID
	if e.pool != nil {
		if ok := e.pool.Reserve(reservationKey, size.Mul(signal.Price)); !ok {
			log.Warn().Str("wallet", signal.Wallet).Msg("🚫 capital pool reservation failed — skipping")
			return nil
		}
	}

	// 7. Insert pending order.
	sideStr := string(signal.Side)
	order, err := e.db.InsertOrder(&signal.WhaleTradeID, signal.MarketID, signal.AssetID, signal.Side, size, signal.Price, string(e.cfg.Strategy))
	if err != nil {
		e.releasePool(reservationKey)
		return fmt.Errorf("insert order: %w", err)
	}
	log.Info().Str("order_id", order.ID.String()).Msg("📝 order recorded")

	// 8. Execute with retry on the ClobError retryable class.
	result, execErr := e.executeWithRetry(signal.AssetID, sideStr, size, signal.Price)

	if execErr != nil {
		errMsg := execErr.Error()
		log.Error().Err(execErr).Str("order_id", order.ID.String()).Msg("❌ order execution failed")
		if err := e.db.FailOrder(order.ID, errMsg); err != nil {
			log.Error().Err(err).Msg("failed to mark order failed")
		}
		metrics.OrdersFailed.Inc()
		e.releasePool(reservationKey)
		e.notify(formatOrderResult(order, false, errMsg, ""))
		e.broadcast("order_update", map[string]interface{}{
			"order_id": order.ID.String(),
			"status":   "failed",
			"reason":   errMsg,
		})
		return nil
	}

	if e.cfg.DryRun {
		if err := e.db.FillOrder(order.ID, result.FillPrice, result.Slippage); err != nil {
			return fmt.Errorf("fill order: %w", err)
		}
		metrics.OrdersFilled.Inc()
		if e.pool != nil {
			e.pool.Confirm(reservationKey)
		}

		outcome := types.OutcomeYes
		if signal.Side == types.Sell {
			outcome = types.OutcomeNo
		}
		position, err := e.db.UpsertPosition(signal.MarketID, signal.AssetID, outcome, signal.Side, size, result.FillPrice)
		if err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		if err := e.db.SetPositionSLTP(position.ID, e.cfg.DefaultStopLossPct, e.cfg.DefaultTakeProfitPct); err != nil {
			log.Warn().Err(err).Msg("⚠️ failed to set SL/TP on position")
		}

		log.Info().Str("order_id", order.ID.String()).Msg("💼 position updated")
		e.notify(formatOrderResult(order, true, "", ""))
		e.broadcast("order_update", map[string]interface{}{
			"order_id":   order.ID.String(),
			"status":     "filled",
			"fill_price": result.FillPrice.StringFixed(4),
			"market_id":  signal.MarketID,
			"side":       sideStr,
		})
		return nil
	}

	// Live: leave capital reserved. The fill poller finalizes on confirmed fill.
	if err := e.db.MarkOrderSubmitted(order.ID, result.OrderID); err != nil {
		return fmt.Errorf("mark order submitted: %w", err)
	}
	log.Info().Str("order_id", order.ID.String()).Str("external_order_id", result.OrderID).Msg("📡 order submitted, awaiting fill")
	e.broadcast("order_update", map[string]interface{}{
		"order_id":          order.ID.String(),
		"status":            "submitted",
		"external_order_id": result.OrderID,
		"market_id":         signal.MarketID,
		"side":              sideStr,
	})
	return nil
}

func (e *Engine) checkBalance(signal types.CopySignal, size decimal.Decimal) (bool, error) {
	switch signal.Side {
	case types.Buy:
		required := size.Mul(signal.Price)
		usdc, err := e.balance.GetUSDCBalance()
		if err != nil {
			return true, err
		}
		if usdc.LessThan(required) {
			log.Warn().Str("required", required.StringFixed(2)).Str("available", usdc.StringFixed(2)).
				Msg("⚠️ insufficient USDC balance — skipping order")
			return false, nil
		}
	case types.Sell:
		tokenBal, err := e.balance.GetTokenBalance(signal.AssetID)
		if err != nil {
			return true, err
		}
		if tokenBal.LessThan(size) {
			log.Warn().Str("required", size.StringFixed(2)).Str("available", tokenBal.StringFixed(2)).
				Str("token_id", signal.AssetID).Msg("⚠️ insufficient token balance — skipping order")
			return false, nil
		}
	}
	return true, nil
}

// executeWithRetry retries only executor.ErrClobError, making at most
// maxRetries attempts in total, with exponential backoff between them.
// Any other error fails immediately.
func (e *Engine) executeWithRetry(tokenID, side string, size, targetPrice decimal.Decimal) (types.OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err := e.executor.Execute(tokenID, side, size, targetPrice)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, executor.ErrClobError) {
			return types.OrderResult{}, err
		}
		if attempt == maxRetries-1 {
			break
		}
		backoff := retryBase * time.Duration(1<<uint(attempt))
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("⏳ retrying CLOB order placement")
		time.Sleep(backoff)
	}
	return types.OrderResult{}, lastErr
}

func (e *Engine) releasePool(orderID uuid.UUID) {
	if e.pool != nil {
		e.pool.Release(orderID)
	}
}

func (e *Engine) notify(message string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(message)
}

func formatOrderResult(order *database.CopyOrder, success bool, errMsg, marketQuestion string) string {
	if success {
		return fmt.Sprintf("✅ *Order filled*\nMarket: `%s`\nSide: %s\nSize: %s\nPrice: %s",
			marketLabel(order.MarketID, marketQuestion), order.Side, order.Size.StringFixed(2), order.TargetPrice.StringFixed(4))
	}
	return fmt.Sprintf("❌ *Order failed*\nMarket: `%s`\nSide: %s\nSize: %s\nReason: %s",
		marketLabel(order.MarketID, marketQuestion), order.Side, order.Size.StringFixed(2), errMsg)
}

func marketLabel(marketID, question string) string {
	if question != "" {
		return question
	}
	return marketID
}

// Package positionmonitor watches open positions for stop-loss/take-profit
// breaches and triggers exits.
package positionmonitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/types"
)

var (
	defaultStopLossPct   = decimal.NewFromFloat(15.00)
	defaultTakeProfitPct = decimal.NewFromFloat(50.00)
	hundred              = decimal.NewFromInt(100)
)

// BookFetcher fetches the current order book for a token.
type BookFetcher interface {
	GetOrderBook(tokenID string) (*OrderBook, error)
}

// OrderBook is the minimal shape the monitor needs.
type OrderBook struct {
	Bids []BookLevel
}

// BookLevel is a single (price, size) rung.
type BookLevel struct {
	Price decimal.Decimal
}

// OrderPlacer places the exit sell order.
type OrderPlacer interface {
	PlaceOrderWithType(tokenID string, price, size decimal.Decimal, side string, orderType string, postOnly bool) (string, error)
}

// Notifier reports a closed position (dry-run path only). A live exit is
// not notified: the fill poller only broadcasts a position_update event
// once the exit order fills.
type Notifier interface {
	Notify(message string)
}

// Broadcaster pushes position_update/pnl_update dashboard events
// (SPEC_FULL.md §6). Optional; nil disables it.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Monitor periodically revalues open positions and exits breached ones.
type Monitor struct {
	db          *database.Database
	book        BookFetcher
	trading     OrderPlacer
	notify      Notifier
	broadcaster Broadcaster
	dryRun      bool
	paused      *atomic.Bool
}

// New builds a position monitor. trading may be nil in dry-run-only setups.
// paused, when non-nil, is shared with the copy engine's pause flag so a
// single pause command freezes both loops.
func New(db *database.Database, book BookFetcher, trading OrderPlacer, notifier Notifier, dryRun bool, paused *atomic.Bool) *Monitor {
	return &Monitor{db: db, book: book, trading: trading, notify: notifier, dryRun: dryRun, paused: paused}
}

// SetBroadcaster wires an optional dashboard event sink after construction.
func (m *Monitor) SetBroadcaster(b Broadcaster) { m.broadcaster = b }

func (m *Monitor) broadcast(eventType string, data interface{}) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Broadcast(eventType, data)
}

// Run ticks every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("👁️ position monitor started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 position monitor stopping — context cancelled")
			return
		case <-ticker.C:
			if m.paused != nil && m.paused.Load() {
				log.Debug().Msg("position monitor paused")
				continue
			}
			m.checkOnce()
		}
	}
}

func (m *Monitor) checkOnce() {
	positions, err := m.db.GetOpenPositions()
	if err != nil {
		log.Error().Err(err).Msg("position monitor: failed to fetch open positions")
		return
	}
	if len(positions) == 0 {
		log.Debug().Msg("position monitor: no open positions")
		return
	}

	for i := range positions {
		m.checkPosition(&positions[i])
	}
}

// ForceClose exits a single open position at the current best bid,
// regardless of SL/TP thresholds. Used by the HTTP control API's
// per-position close route.
func (m *Monitor) ForceClose(positionID uuid.UUID) error {
	pos, err := m.db.GetPositionByID(positionID)
	if err != nil {
		return err
	}
	book, err := m.book.GetOrderBook(pos.TokenID)
	if err != nil {
		return err
	}
	if len(book.Bids) == 0 {
		return fmt.Errorf("no bids available to close position %s", positionID)
	}
	currentPrice := book.Bids[0].Price

	if m.dryRun {
		pnlPct := decimal.Zero
		if pos.AvgEntryPrice.IsPositive() {
			pnlPct = currentPrice.Sub(pos.AvgEntryPrice).Div(pos.AvgEntryPrice).Mul(hundred)
		}
		m.closeDryRun(pos, currentPrice, types.ExitManual, pnlPct)
		return nil
	}
	m.exitLive(pos, currentPrice, types.ExitManual)
	return nil
}

func (m *Monitor) checkPosition(pos *database.Position) {
	book, err := m.book.GetOrderBook(pos.TokenID)
	if err != nil {
		log.Warn().Err(err).Str("token_id", pos.TokenID).Msg("position monitor: failed to fetch orderbook for position")
		return
	}
	if len(book.Bids) == 0 {
		log.Debug().Str("token_id", pos.TokenID).Msg("position monitor: no bids in orderbook — skipping price update")
		return
	}
	currentPrice := book.Bids[0].Price

	unrealizedPnL := currentPrice.Sub(pos.AvgEntryPrice).Mul(pos.Size)
	if err := m.db.UpdatePositionPriceAndPnL(pos.ID, currentPrice, unrealizedPnL); err != nil {
		log.Warn().Err(err).Msg("position monitor: failed to update position price/pnl")
	}
	m.broadcast("pnl_update", map[string]interface{}{
		"position_id":    pos.ID.String(),
		"current_price":  currentPrice.StringFixed(4),
		"unrealized_pnl": unrealizedPnL.StringFixed(4),
	})

	if pos.AvgEntryPrice.IsZero() {
		return
	}
	pnlPct := currentPrice.Sub(pos.AvgEntryPrice).Div(pos.AvgEntryPrice).Mul(hundred)

	stopLoss := defaultStopLossPct
	if pos.StopLossPct != nil {
		stopLoss = *pos.StopLossPct
	}
	takeProfit := defaultTakeProfitPct
	if pos.TakeProfitPct != nil {
		takeProfit = *pos.TakeProfitPct
	}

	var reason types.ExitReason
	switch {
	case pnlPct.LessThanOrEqual(stopLoss.Neg()):
		reason = types.ExitStopLoss
	case pnlPct.GreaterThanOrEqual(takeProfit):
		reason = types.ExitTakeProfit
	default:
		log.Debug().Str("token_id", pos.TokenID).Str("entry", pos.AvgEntryPrice.StringFixed(4)).
			Str("current", currentPrice.StringFixed(4)).Str("pnl_pct", pnlPct.StringFixed(2)).
			Msg("position within SL/TP bounds")
		return
	}

	log.Info().Str("token_id", pos.TokenID).Str("entry", pos.AvgEntryPrice.StringFixed(4)).
		Str("current", currentPrice.StringFixed(4)).Str("pnl_pct", pnlPct.StringFixed(2)).
		Str("reason", string(reason)).Msg("🚨 SL/TP triggered — exiting position")

	if m.dryRun {
		m.closeDryRun(pos, currentPrice, reason, pnlPct)
		return
	}
	m.exitLive(pos, currentPrice, reason)
}

func (m *Monitor) exitLive(pos *database.Position, currentPrice decimal.Decimal, reason types.ExitReason) {
	if m.trading == nil {
		log.Warn().Str("token_id", pos.TokenID).Msg("position monitor: no trading client — cannot exit position")
		return
	}

	orderID, err := m.trading.PlaceOrderWithType(pos.TokenID, currentPrice, pos.Size, string(types.Sell), "GTC", false)
	if err != nil {
		log.Error().Err(err).Str("token_id", pos.TokenID).Msg("position monitor: failed to place exit order")
		return
	}

	log.Info().Str("token_id", pos.TokenID).Str("order_id", orderID).Msg("exit order placed successfully")

	// No whale_trade_id for exits — use the nil UUID, matching the teacher's
	// exit-order convention (fill poller identifies exits by strategy=="exit").
	var nilWhaleTradeID uuid.UUID
	exitOrder, err := m.db.InsertOrder(&nilWhaleTradeID, pos.MarketID, pos.TokenID, types.Sell, pos.Size, currentPrice, "exit")
	if err != nil {
		log.Error().Err(err).Msg("position monitor: failed to record exit order in db")
		return
	}
	if err := m.db.MarkOrderSubmitted(exitOrder.ID, orderID); err != nil {
		log.Error().Err(err).Msg("position monitor: failed to mark exit order as submitted")
	}
	if err := m.db.MarkPositionExiting(pos.ID, reason); err != nil {
		log.Error().Err(err).Msg("position monitor: failed to mark position as exiting")
	}
	m.broadcast("position_update", map[string]interface{}{
		"position_id": pos.ID.String(),
		"status":      "exiting",
		"reason":      string(reason),
	})
}

func (m *Monitor) closeDryRun(pos *database.Position, currentPrice decimal.Decimal, reason types.ExitReason, pnlPct decimal.Decimal) {
	log.Info().Str("token_id", pos.TokenID).Str("size", pos.Size.String()).Str("price", currentPrice.StringFixed(4)).
		Str("reason", string(reason)).Msg("📝 [DRY-RUN] would place exit order")

	realizedPnL := currentPrice.Sub(pos.AvgEntryPrice).Mul(pos.Size)
	if err := m.db.ClosePositionWithReason(pos.ID, realizedPnL, reason); err != nil {
		log.Error().Err(err).Msg("position monitor: failed to close position in db")
		return
	}

	log.Info().Str("position_id", pos.ID.String()).Str("reason", string(reason)).
		Str("realized_pnl", realizedPnL.StringFixed(4)).Msg("position closed (dry-run)")

	m.broadcast("position_update", map[string]interface{}{
		"position_id":  pos.ID.String(),
		"status":       "closed",
		"reason":       string(reason),
		"realized_pnl": realizedPnL.StringFixed(4),
	})

	if m.notify == nil {
		return
	}
	question, err := m.db.GetMarketQuestion(pos.MarketID)
	if err != nil {
		question = ""
	}
	m.notify.Notify(formatPositionExit(question, pos.MarketID, reason, pos.AvgEntryPrice, currentPrice, realizedPnL, pnlPct))
}

func formatPositionExit(question, marketID string, reason types.ExitReason, entry, exit, realizedPnL, pnlPct decimal.Decimal) string {
	label := marketID
	if question != "" {
		label = question
	}
	return "📉 *Position closed*\nMarket: `" + label + "`\nReason: " + string(reason) +
		"\nEntry: " + entry.StringFixed(4) + " → Exit: " + exit.StringFixed(4) +
		"\nPnL: " + realizedPnL.StringFixed(4) + " (" + pnlPct.StringFixed(2) + "%)"
}

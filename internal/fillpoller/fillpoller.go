// Package fillpoller periodically reconciles submitted live orders against
// the CLOB: confirming fills, detecting cancellations, and auto-cancelling
// orders that have sat unfilled too long.
package fillpoller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/capitalpool"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/metrics"
	"github.com/web3guy0/polybot/types"
)

// Status values as reported by TradingClient.GetOrderStatus.
const (
	StatusMatched   = "MATCHED"
	StatusLive      = "LIVE"
	StatusCancelled = "CANCELED"
	StatusUnmatched = "UNMATCHED"
)

// OrderStatus is the CLOB's view of one order's fill state.
type OrderStatus struct {
	Status       string
	Price        decimal.Decimal
	SizeMatched  decimal.Decimal
	OriginalSize decimal.Decimal
}

// TradingClient is the subset of exec.Client the poller needs.
type TradingClient interface {
	GetOrderStatus(clobOrderID string) (*OrderStatus, error)
	CancelOrder(clobOrderID string) error
}

// Broadcaster pushes order_update/position_update dashboard events
// (SPEC_FULL.md §6). Optional; nil disables it.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Poller reconciles submitted orders against the CLOB on a fixed interval.
type Poller struct {
	db            *database.Database
	trading       TradingClient
	pool          *capitalpool.Pool
	stopLossPct   decimal.Decimal
	takeProfitPct decimal.Decimal
	staleAfter    time.Duration
	broadcaster   Broadcaster
}

// New builds a fill poller.
func New(db *database.Database, trading TradingClient, pool *capitalpool.Pool, stopLossPct, takeProfitPct decimal.Decimal, staleAfter time.Duration) *Poller {
	return &Poller{db: db, trading: trading, pool: pool, stopLossPct: stopLossPct, takeProfitPct: takeProfitPct, staleAfter: staleAfter}
}

// SetBroadcaster wires an optional dashboard event sink after construction.
func (p *Poller) SetBroadcaster(b Broadcaster) { p.broadcaster = b }

func (p *Poller) broadcast(eventType string, data interface{}) {
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.Broadcast(eventType, data)
}

// Run ticks every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("🔁 fill poller started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 fill poller stopping — context cancelled")
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *Poller) pollOnce() {
	orders, err := p.db.GetSubmittedOrders()
	if err != nil {
		log.Error().Err(err).Msg("fill poller: failed to fetch submitted orders")
		return
	}
	if len(orders) == 0 {
		log.Debug().Msg("fill poller: no submitted orders")
		return
	}

	log.Debug().Int("count", len(orders)).Msg("fill poller: checking submitted orders")
	for i := range orders {
		p.reconcile(&orders[i])
	}
}

func (p *Poller) reconcile(order *database.CopyOrder) {
	if order.ExternalOrderID == "" {
		log.Warn().Str("order_id", order.ID.String()).Msg("fill poller: submitted order has no CLOB order id — cancelling")
		p.cancelLocal(order)
		return
	}

	stale := p.isStale(order)

	status, err := p.trading.GetOrderStatus(order.ExternalOrderID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Str("clob_order_id", order.ExternalOrderID).
			Msg("fill poller: failed to query CLOB order status")
		if stale {
			log.Warn().Str("order_id", order.ID.String()).Msg("fill poller: stale order unreachable — cancelling")
			_ = p.trading.CancelOrder(order.ExternalOrderID)
			p.cancelLocal(order)
		}
		return
	}

	switch status.Status {
	case StatusMatched:
		p.handleMatched(order, status)
	case StatusLive:
		if status.SizeMatched.IsPositive() {
			log.Info().Str("order_id", order.ID.String()).
				Str("size_matched", status.SizeMatched.String()).
				Str("original_size", status.OriginalSize.String()).
				Msg("fill poller: partial fill in progress")
		}
		if stale {
			log.Warn().Str("order_id", order.ID.String()).Str("clob_order_id", order.ExternalOrderID).
				Msg("fill poller: order stale (>threshold) — cancelling")
			if err := p.trading.CancelOrder(order.ExternalOrderID); err != nil {
				log.Error().Err(err).Msg("fill poller: failed to cancel stale order on CLOB")
			}
			p.cancelLocal(order)
		}
	case StatusCancelled, StatusUnmatched:
		log.Info().Str("order_id", order.ID.String()).Str("status", status.Status).
			Msg("fill poller: order cancelled/unmatched")
		p.cancelLocal(order)
	default:
		log.Debug().Str("order_id", order.ID.String()).Str("status", status.Status).
			Msg("fill poller: unexpected order status")
	}
}

func (p *Poller) handleMatched(order *database.CopyOrder, status *OrderStatus) {
	slippage := decimal.Zero
	if order.TargetPrice.IsPositive() {
		slippage = status.Price.Sub(order.TargetPrice).Div(order.TargetPrice).Abs()
	}

	log.Info().Str("order_id", order.ID.String()).Str("clob_order_id", order.ExternalOrderID).
		Str("fill_price", status.Price.StringFixed(4)).Str("size_matched", status.SizeMatched.String()).
		Msg("🎯 fill poller: order matched")

	if err := p.db.FillOrder(order.ID, status.Price, slippage); err != nil {
		log.Error().Err(err).Msg("fill poller: failed to mark order filled")
		return
	}
	metrics.OrdersFilled.Inc()
	p.confirmPool(order)
	p.broadcast("order_update", map[string]interface{}{
		"order_id":   order.ID.String(),
		"status":     "filled",
		"fill_price": status.Price.StringFixed(4),
	})

	if order.Strategy == "exit" {
		p.handleExitFill(order, status.Price)
		return
	}

	outcome := types.OutcomeYes
	if order.Side == string(types.Sell) {
		outcome = types.OutcomeNo
	}
	position, err := p.db.UpsertPosition(order.MarketID, order.TokenID, outcome, types.Side(order.Side), order.Size, status.Price)
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("fill poller: failed to upsert position")
		return
	}
	if err := p.db.SetPositionSLTP(position.ID, p.stopLossPct, p.takeProfitPct); err != nil {
		log.Warn().Err(err).Msg("fill poller: failed to set SL/TP")
	}
	log.Info().Str("order_id", order.ID.String()).Str("position_id", position.ID.String()).
		Msg("fill poller: position created/updated from fill")
}

// handleExitFill closes the unique exiting position for this token with
// realized PnL = (fill_price - avg_entry_price) * size.
func (p *Poller) handleExitFill(order *database.CopyOrder, fillPrice decimal.Decimal) {
	pos, err := p.db.GetExitingPositionByToken(order.TokenID)
	if err != nil {
		log.Warn().Err(err).Str("token_id", order.TokenID).
			Msg("fill poller: no exiting position found for exit fill")
		return
	}

	realizedPnL := fillPrice.Sub(pos.AvgEntryPrice).Mul(pos.Size)
	reason := types.ExitReason(pos.ExitReason)
	if reason == "" {
		reason = types.ExitManual
	}

	if err := p.db.ClosePositionWithReason(pos.ID, realizedPnL, reason); err != nil {
		log.Error().Err(err).Str("position_id", pos.ID.String()).Msg("fill poller: failed to close position on exit fill")
		return
	}
	log.Info().Str("position_id", pos.ID.String()).Str("realized_pnl", realizedPnL.StringFixed(4)).
		Str("exit_reason", string(reason)).Msg("fill poller: position closed from exit fill")
	p.broadcast("position_update", map[string]interface{}{
		"position_id":  pos.ID.String(),
		"status":       "closed",
		"reason":       string(reason),
		"realized_pnl": realizedPnL.StringFixed(4),
	})
}

func (p *Poller) cancelLocal(order *database.CopyOrder) {
	if err := p.db.CancelOrder(order.ID); err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("fill poller: failed to cancel order locally")
	}
	p.releasePool(order)
}

func (p *Poller) confirmPool(order *database.CopyOrder) {
	if p.pool == nil || order.WhaleTradeID == nil {
		return
	}
	p.pool.Confirm(*order.WhaleTradeID)
}

func (p *Poller) releasePool(order *database.CopyOrder) {
	if p.pool == nil || order.WhaleTradeID == nil {
		return
	}
	p.pool.Release(*order.WhaleTradeID)
}

func (p *Poller) isStale(order *database.CopyOrder) bool {
	return time.Since(order.PlacedAt) > p.staleAfter
}

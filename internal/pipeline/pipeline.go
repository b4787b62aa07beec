// Package pipeline is the stateful per-event processor that turns a raw
// TradeEvent into zero, one, or two CopySignals: filter, persist, classify,
// score, gate, emit individual signal, emit basket-consensus signal.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/web3guy0/polybot/internal/classifier"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/consensus"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/dedup"
	"github.com/web3guy0/polybot/internal/metrics"
	"github.com/web3guy0/polybot/internal/scorer"
	"github.com/web3guy0/polybot/types"
)

// untrackedMinNotional is applied to wallets not yet in the store.
var untrackedMinNotional = decimal.NewFromInt(10000)

// Broadcaster pushes whale_alert/consensus_alert dashboard events
// (SPEC_FULL.md §6). Optional; nil disables it.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Pipeline wires the store and the pure C3-C5 stages together around one
// TradeEvent channel in and up to two CopySignal emissions out.
type Pipeline struct {
	db          *database.Database
	cfg         *config.Config
	gate        dedup.Gate
	broadcaster Broadcaster
}

// New builds a pipeline against the given store, config, and dedup gate.
func New(db *database.Database, cfg *config.Config, gate dedup.Gate) *Pipeline {
	return &Pipeline{db: db, cfg: cfg, gate: gate}
}

// SetBroadcaster wires an optional dashboard event sink after construction.
func (p *Pipeline) SetBroadcaster(b Broadcaster) { p.broadcaster = b }

func (p *Pipeline) broadcast(eventType string, data interface{}) {
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.Broadcast(eventType, data)
}

// Run consumes TradeEvents until the input channel closes or ctx is
// cancelled, emitting CopySignals to out.
func (p *Pipeline) Run(ctx context.Context, in <-chan types.TradeEvent, out chan<- types.CopySignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-in:
			if !ok {
				return
			}
			if err := p.Process(ctx, event, out); err != nil {
				log.Error().Err(err).Str("wallet", event.Wallet).Msg("📉 pipeline: dropping event")
			}
		}
	}
}

// Process runs the full 11-step sequence for a single TradeEvent.
func (p *Pipeline) Process(ctx context.Context, event types.TradeEvent, out chan<- types.CopySignal) error {
	metrics.TradeEventsTotal.Inc()
	start := time.Now()
	defer func() { metrics.PipelineLatencySeconds.Observe(time.Since(start).Seconds()) }()

	// Step 0: merge the closed allow-list of store-backed runtime overrides
	// (§8) into the effective config, re-read on every event.
	if overrides, err := p.db.GetRuntimeOverrides(); err != nil {
		log.Warn().Err(err).Msg("pipeline: failed to read runtime overrides, using last-known config")
	} else {
		p.cfg.ApplyOverrides(overrides)
	}

	// Step 1: threshold filter.
	_, err := p.db.GetWhaleByAddress(event.Wallet)
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("lookup whale: %w", err)
	}

	threshold := untrackedMinNotional
	if err == nil {
		threshold = p.cfg.Signal.TrackedWhaleMinNotional
	}
	if event.Notional.LessThan(threshold) {
		log.Debug().Str("wallet", event.Wallet).Str("notional", event.Notional.String()).Msg("below whale threshold, skipping")
		return nil
	}

	log.Info().
		Str("wallet", event.Wallet).
		Str("market", event.MarketID).
		Str("side", string(event.Side)).
		Str("notional", event.Notional.String()).
		Msg("🐋 whale-grade trade detected")
	p.broadcast("whale_alert", map[string]interface{}{
		"wallet":   event.Wallet,
		"market":   event.MarketID,
		"side":     string(event.Side),
		"notional": event.Notional.StringFixed(2),
	})

	// Step 2: upsert whale, persist trade.
	whale, err := p.db.UpsertWhale(event.Wallet)
	if err != nil {
		return fmt.Errorf("upsert whale: %w", err)
	}

	// Step 3: ensure market outcome row exists.
	if _, err := p.db.EnsureMarketOutcome(event.MarketID, event.AssetID); err != nil {
		return fmt.Errorf("ensure market outcome: %w", err)
	}

	trade, err := p.db.InsertTrade(whale.ID, event.MarketID, event.AssetID, event.Side, event.Size, event.Price, event.Notional, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	// Step 4: touch last_trade_at.
	if err := p.db.TouchWhaleLastTrade(whale.ID, event.Timestamp); err != nil {
		return fmt.Errorf("touch whale: %w", err)
	}

	// Step 5: fetch full trade history, classify, persist.
	history, err := p.db.GetTradesByWhale(whale.ID)
	if err != nil {
		return fmt.Errorf("fetch trade history: %w", err)
	}

	classTrades := make([]types.WhaleTrade, len(history))
	for i, t := range history {
		classTrades[i] = types.WhaleTrade{MarketID: t.MarketID, Side: types.Side(t.Side), TradedAt: t.TradedAt}
	}
	classification := classifier.Classify(classTrades)
	if err := p.db.UpdateWhaleClassification(whale.ID, classification.String()); err != nil {
		return fmt.Errorf("persist classification: %w", err)
	}

	// Step 6: build resolved-trade series (§4.3 profit formula).
	resolved, err := p.resolvedTradeSeries(history)
	if err != nil {
		return fmt.Errorf("build resolved series: %w", err)
	}

	// Step 7: score, or fall back to persisted scores, or drop.
	var score types.WalletScore
	switch {
	case len(resolved) >= 1:
		score = scorer.Score(resolved)
		if err := p.db.UpdateWhaleScores(whale.ID, score); err != nil {
			return fmt.Errorf("persist scores: %w", err)
		}
	case p.cfg.Signal.AllowSeededScoreFallback && whale.WinRate.IsPositive():
		score = types.WalletScore{
			Sharpe:        whale.Sharpe,
			WinRate:       whale.WinRate,
			KellyFraction: whale.KellyFraction,
			ExpectedValue: whale.ExpectedValue,
			TotalTrades:   whale.TotalTrades,
			TotalPnL:      whale.TotalPnL,
		}
	default:
		log.Debug().Str("wallet", event.Wallet).Msg("no resolved trades and no seeded score, dropping event")
		return nil
	}

	// Step 8: decay check.
	if score.IsDecaying {
		log.Warn().Str("wallet", event.Wallet).Msg("📉 wallet performance decaying — deactivating")
		return p.db.DeactivateWhale(whale.ID)
	}

	// Step 9: admission check (does not gate individual signal emission).
	monthsActive := monthsActive(history)
	avgMonthly := avgMonthlyTrades(history, monthsActive)
	admission := consensus.CheckAdmission(score.WinRate, classification, monthsActive, score.TotalTrades, avgMonthly)

	// Step 10: signal gates.
	if p.passesSignalGates(ctx, classification, whale, event, len(resolved), score) {
		signal := types.CopySignal{
			WhaleTradeID:  trade.ID,
			Wallet:        event.Wallet,
			MarketID:      event.MarketID,
			AssetID:       event.AssetID,
			Side:          event.Side,
			Price:         event.Price,
			WhaleWinRate:  score.WinRate,
			WhaleKelly:    score.KellyFraction,
			WhaleNotional: event.Notional,
		}
		select {
		case out <- signal:
			metrics.CopySignalsEmitted.Inc()
			log.Info().Str("wallet", event.Wallet).Str("market", event.MarketID).Msg("📡 copy signal emitted")
		default:
			log.Error().Str("wallet", event.Wallet).Msg("copy signal channel full, dropping")
		}
	}

	// Step 11: basket consensus (only if admitted).
	if admission.Accepted {
		if err := p.evaluateBasketConsensus(whale, event, out); err != nil {
			log.Error().Err(err).Str("wallet", event.Wallet).Msg("basket consensus evaluation failed")
		}
	}

	return nil
}

// passesSignalGates implements the all-must-pass list from §4.9 step 10.
func (p *Pipeline) passesSignalGates(ctx context.Context, classification types.Classification, whale *database.Whale, event types.TradeEvent, resolvedCount int, score types.WalletScore) bool {
	if classification == types.ClassBot || classification == types.ClassMarketMaker {
		return false
	}
	if resolvedCount < p.cfg.Signal.MinResolvedForSignal {
		return false
	}
	observed := score.TotalTrades
	if whale.TotalTrades > observed {
		observed = whale.TotalTrades
	}
	if observed < p.cfg.Signal.MinTotalTradesForSignal {
		return false
	}
	if event.Notional.LessThan(p.cfg.Signal.MinSignalNotional) || event.Notional.GreaterThan(p.cfg.Signal.MaxSignalNotional) {
		return false
	}
	evCopy := score.ExpectedValue.Mul(decimal.NewFromInt(1).Sub(p.cfg.Signal.AssumedSlippagePct))
	if evCopy.LessThan(p.cfg.Signal.MinSignalEV) {
		return false
	}
	if score.WinRate.LessThan(p.cfg.Signal.MinSignalWinRate) {
		return false
	}
	if !whale.IsActive {
		return false
	}

	window := time.Duration(p.cfg.Signal.SignalDedupWindowSecs) * time.Second
	seen, err := p.gate.Seen(ctx, event.Wallet, event.AssetID, string(event.Side), window)
	if err != nil {
		log.Error().Err(err).Msg("dedup gate error, treating as unseen")
		return true
	}
	return !seen
}

// evaluateBasketConsensus checks consensus for every basket the whale
// belongs to and emits a second, consensus-tagged CopySignal when reached.
func (p *Pipeline) evaluateBasketConsensus(whale *database.Whale, event types.TradeEvent, out chan<- types.CopySignal) error {
	baskets, err := p.db.GetBasketsForWhale(whale.ID)
	if err != nil {
		return err
	}

	for _, basket := range baskets {
		members, err := p.db.GetActiveBasketMembers(basket.ID)
		if err != nil {
			return err
		}

		since := time.Now().Add(-time.Duration(basket.TimeWindowHours) * time.Hour)
		var votes []types.Vote
		for _, m := range members {
			t, err := p.db.GetMostRecentTradeInMarket(m.ID, event.MarketID, since)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					continue
				}
				return err
			}
			votes = append(votes, types.Vote{Wallet: m.Address, Side: types.Side(t.Side)})
		}

		check := consensus.EvaluateConsensus(votes, len(members), basket.ConsensusThreshold, event.Price, decimal.NewFromFloat(0.05))

		if err := p.db.RecordConsensusSignal(&database.ConsensusSignal{
			BasketID:      basket.ID,
			MarketID:      event.MarketID,
			Direction:     string(check.Direction),
			ConsensusPct:  check.ConsensusPct,
			Participating: check.Participating,
			Total:         check.Total,
			TriggeredAt:   time.Now(),
		}); err != nil {
			return err
		}

		if check.Reached {
			signal := types.CopySignal{
				Wallet:        "basket:" + basket.Name,
				MarketID:      event.MarketID,
				AssetID:       event.AssetID,
				Side:          check.Direction,
				Price:         event.Price,
				WhaleWinRate:  decimal.Zero,
				WhaleKelly:    decimal.Zero,
				WhaleNotional: event.Notional,
			}
			select {
			case out <- signal:
				metrics.ConsensusSignalsTotal.Inc()
				metrics.CopySignalsEmitted.Inc()
				log.Info().Str("basket", basket.Name).Str("market", event.MarketID).Msg("📡 basket consensus signal emitted")
				p.broadcast("consensus_alert", map[string]interface{}{
					"basket":        basket.Name,
					"market":        event.MarketID,
					"direction":     string(check.Direction),
					"consensus_pct": check.ConsensusPct.StringFixed(2),
				})
			default:
				log.Error().Str("basket", basket.Name).Msg("copy signal channel full, dropping consensus signal")
			}
		}
	}
	return nil
}

// resolvedTradeSeries joins each trade against its market's resolution and
// computes signed USDC profit per §4.3. Unresolved trades are excluded.
func (p *Pipeline) resolvedTradeSeries(trades []database.WhaleTrade) ([]types.TradeResult, error) {
	var results []types.TradeResult
	outcomeCache := make(map[string]*database.MarketOutcome)

	for _, t := range trades {
		outcome, ok := outcomeCache[t.MarketID]
		if !ok {
			var err error
			outcome, err = p.db.GetMarketOutcome(t.MarketID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					outcomeCache[t.MarketID] = nil
					continue
				}
				return nil, err
			}
			outcomeCache[t.MarketID] = outcome
		}
		if outcome == nil || outcome.Outcome == string(types.ResolutionUnresolved) {
			continue
		}

		profit, ok := resolvedProfit(types.Side(t.Side), types.MarketResolution(outcome.Outcome), t.Notional, t.Price)
		if !ok {
			continue
		}
		results = append(results, types.TradeResult{Profit: profit, TradedAt: t.TradedAt})
	}
	return results, nil
}

// resolvedProfit implements §4.3's signed-profit formula for a YES-side
// trade against a resolved market.
func resolvedProfit(side types.Side, resolution types.MarketResolution, notional, price decimal.Decimal) (decimal.Decimal, bool) {
	if resolution != types.ResolutionYes && resolution != types.ResolutionNo {
		return decimal.Zero, false
	}

	switch {
	case side == types.Buy && resolution == types.ResolutionYes:
		if price.IsZero() {
			return decimal.Zero, false
		}
		return notional.Mul(decimal.NewFromInt(1).Sub(price)).Div(price), true
	case side == types.Buy && resolution == types.ResolutionNo:
		return notional.Neg(), true
	case side == types.Sell && resolution == types.ResolutionYes:
		return notional.Neg(), true
	case side == types.Sell && resolution == types.ResolutionNo:
		denom := decimal.NewFromInt(1).Sub(price)
		if denom.IsZero() {
			return decimal.Zero, false
		}
		return notional.Mul(price).Div(denom), true
	}
	return decimal.Zero, false
}

// monthsActive is floor(days since earliest trade / 30), clamped to >= 1.
func monthsActive(trades []database.WhaleTrade) int {
	if len(trades) == 0 {
		return 1
	}
	earliest := trades[0].TradedAt
	for _, t := range trades {
		if t.TradedAt.Before(earliest) {
			earliest = t.TradedAt
		}
	}
	months := int(time.Since(earliest).Hours() / 24 / 30)
	if months < 1 {
		return 1
	}
	return months
}

func avgMonthlyTrades(trades []database.WhaleTrade, months int) decimal.Decimal {
	if months < 1 {
		months = 1
	}
	return decimal.NewFromInt(int64(len(trades))).Div(decimal.NewFromInt(int64(months)))
}

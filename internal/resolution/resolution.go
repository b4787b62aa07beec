// Package resolution polls unresolved markets for a declared winner and
// settles every open position in that market once one is found.
package resolution

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/marketdata"
	"github.com/web3guy0/polybot/types"
)

// batchSize bounds markets checked per cycle, to stay within rate limits.
const batchSize = 50

// apiDelay is the pause between per-market lookups within a cycle.
const apiDelay = 200 * time.Millisecond

// Notifier reports a settled market. Optional.
type Notifier interface {
	Notify(message string)
}

// MarketDataClient fetches Gamma market metadata. Satisfied by *marketdata.Client.
type MarketDataClient interface {
	GetMarketForResolution(marketID string) (*marketdata.Market, error)
}

// Poller checks unresolved markets and settles positions on resolution.
type Poller struct {
	db       *database.Database
	data     MarketDataClient
	notifier Notifier
}

// New builds a resolution poller.
func New(db *database.Database, data MarketDataClient, notifier Notifier) *Poller {
	return &Poller{db: db, data: data, notifier: notifier}
}

// Run ticks every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("⚖️ resolution poller started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 resolution poller stopping — context cancelled")
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *Poller) pollOnce() {
	batch, err := p.db.GetUnresolvedMarkets(batchSize)
	if err != nil {
		log.Error().Err(err).Msg("resolution poller: failed to fetch unresolved markets")
		return
	}
	if len(batch) == 0 {
		log.Info().Msg("resolution poller: no unresolved markets")
		return
	}
	log.Info().Int("checking", len(batch)).Msg("resolution poller: checking markets")

	var resolvedCount, stillOpen int
	for i, mo := range batch {
		if p.checkMarket(mo.MarketID) {
			resolvedCount++
		} else {
			stillOpen++
		}
		if i < len(batch)-1 {
			time.Sleep(apiDelay)
		}
	}

	log.Info().Int("resolved", resolvedCount).Int("still_open", stillOpen).Msg("resolution poller cycle complete")
}

// checkMarket returns true if the market resolved this cycle.
func (p *Poller) checkMarket(marketID string) bool {
	market, err := p.data.GetMarketForResolution(marketID)
	if err != nil {
		log.Warn().Err(err).Str("market_id", marketID).Msg("resolution: market lookup failed")
		return false
	}

	if market.Closed == nil || !*market.Closed {
		return false
	}

	resolution, ok := winningResolution(market)
	if !ok {
		return false
	}

	log.Info().Str("market_id", marketID).Str("outcome", string(resolution)).Str("question", market.Question).
		Msg("🏁 market resolved")

	if err := p.db.ResolveMarket(marketID, resolution); err != nil {
		log.Error().Err(err).Str("market_id", marketID).Msg("resolution: failed to resolve market")
		return false
	}

	p.settlePositions(marketID, resolution)
	return true
}

func winningResolution(market *marketdata.Market) (types.MarketResolution, bool) {
	for _, token := range market.Tokens {
		if token.Winner != nil && *token.Winner {
			switch strings.ToUpper(token.Outcome) {
			case "YES":
				return types.ResolutionYes, true
			case "NO":
				return types.ResolutionNo, true
			}
		}
	}
	return types.ResolutionUnresolved, false
}

func (p *Poller) settlePositions(marketID string, resolution types.MarketResolution) {
	positions, err := p.db.GetPositionsForMarket(marketID)
	if err != nil {
		log.Error().Err(err).Str("market_id", marketID).Msg("resolution: failed to get positions for market")
		return
	}

	totalPnL := decimal.Zero
	for _, pos := range positions {
		pnl := settlementPnL(types.Outcome(pos.Outcome), resolution, pos.Size, pos.AvgEntryPrice)
		if err := p.db.ClosePositionWithReason(pos.ID, pnl, types.ExitSettled); err != nil {
			log.Error().Err(err).Str("position_id", pos.ID.String()).Msg("resolution: failed to close position")
			continue
		}
		totalPnL = totalPnL.Add(pnl)
		log.Info().Str("position_id", pos.ID.String()).Str("market_id", marketID).Str("pnl", pnl.StringFixed(4)).
			Msg("resolution: position settled")
	}

	if p.notifier == nil || len(positions) == 0 {
		return
	}
	question, err := p.db.GetMarketQuestion(marketID)
	if err != nil {
		question = ""
	}
	p.notifier.Notify(formatMarketSettled(question, marketID, resolution, len(positions), totalPnL))
}

// settlementPnL implements spec.md §4.15's four-branch settlement table.
func settlementPnL(outcome types.Outcome, resolution types.MarketResolution, size, avgEntryPrice decimal.Decimal) decimal.Decimal {
	won := (outcome == types.OutcomeYes && resolution == types.ResolutionYes) ||
		(outcome == types.OutcomeNo && resolution == types.ResolutionNo)
	if won {
		return size.Mul(decimal.NewFromInt(1).Sub(avgEntryPrice))
	}
	return size.Mul(avgEntryPrice).Neg()
}

func formatMarketSettled(question, marketID string, resolution types.MarketResolution, positionCount int, totalPnL decimal.Decimal) string {
	label := marketID
	if question != "" {
		label = question
	}
	return "🏁 *Market settled*\nMarket: `" + label + "`\nOutcome: " + string(resolution) +
		"\nPositions closed: " + decimal.NewFromInt(int64(positionCount)).String() +
		"\nTotal PnL: " + totalPnL.StringFixed(4)
}

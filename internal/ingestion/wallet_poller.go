package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/dataapi"
	"github.com/web3guy0/polybot/types"
)

// WalletDataClient fetches recent trades for a wallet. Satisfied by *dataapi.Client.
type WalletDataClient interface {
	GetUserTrades(wallet string, limit int) ([]dataapi.UserTrade, error)
}

// WalletPoller is the primary mechanism for attributing trades to tracked
// whales, since the market-trade WS feed (C10a) carries no wallet identity.
// Every interval it re-fetches each active whale's recent trades from the
// Data API and emits anything newer than the last-seen timestamp for that
// wallet (grounded on original_source/src/services/whale_trade_poller.rs).
type WalletPoller struct {
	db         *database.Database
	data       WalletDataClient
	out        chan<- types.TradeEvent
	tradeCount int

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewWalletPoller builds a poller against data, emitting new trades onto out.
func NewWalletPoller(db *database.Database, data WalletDataClient, out chan<- types.TradeEvent, tradeCount int) *WalletPoller {
	return &WalletPoller{db: db, data: data, out: out, tradeCount: tradeCount, lastSeen: make(map[string]time.Time)}
}

// Run polls every interval until ctx is cancelled. The first cycle seeds
// last-seen timestamps to "now" for every active whale so startup never
// floods the pipeline with historical trades.
func (p *WalletPoller) Run(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("wallet poller started")
	p.seedLastSeen()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 wallet poller stopping — context cancelled")
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *WalletPoller) seedLastSeen() {
	whales, err := p.db.GetActiveWhales()
	if err != nil {
		log.Error().Err(err).Msg("wallet poller: failed to seed active whales")
		return
	}
	now := time.Now()
	p.mu.Lock()
	for _, w := range whales {
		p.lastSeen[w.Address] = now
	}
	p.mu.Unlock()
	log.Info().Int("whales", len(whales)).Msg("wallet poller: seeded last-seen timestamps")
}

func (p *WalletPoller) pollOnce() {
	whales, err := p.db.GetActiveWhales()
	if err != nil {
		log.Error().Err(err).Msg("wallet poller: failed to fetch active whales")
		return
	}

	newTrades := 0
	for _, whale := range whales {
		newTrades += p.pollWallet(whale.Address)
	}

	if newTrades > 0 {
		log.Info().Int("new_trades", newTrades).Msg("wallet poller: cycle found new trades")
	}
}

func (p *WalletPoller) pollWallet(address string) int {
	trades, err := p.data.GetUserTrades(address, p.tradeCount)
	if err != nil {
		log.Debug().Err(err).Str("address", address).Msg("wallet poller: failed to fetch trades")
		return 0
	}

	p.mu.Lock()
	cutoff, ok := p.lastSeen[address]
	p.mu.Unlock()
	if !ok {
		cutoff = time.Now()
	}

	latest := cutoff
	found := 0

	for _, trade := range trades {
		tradedAt := time.Unix(trade.Timestamp, 0)
		if !tradedAt.After(cutoff) {
			continue
		}
		if tradedAt.After(latest) {
			latest = tradedAt
		}

		side, ok := parseSide(trade.Side)
		if !ok {
			continue
		}

		notional := trade.Size.Mul(trade.Price)
		event := types.TradeEvent{
			Wallet:    address,
			MarketID:  orUnknown(trade.Market),
			AssetID:   orUnknown(trade.TokenID),
			Side:      side,
			Size:      trade.Size,
			Price:     trade.Price,
			Notional:  notional,
			Timestamp: tradedAt,
		}

		log.Info().Str("wallet", address).Str("market", event.MarketID).
			Str("side", string(side)).Str("notional", notional.String()).
			Msg("whale trade detected via poller")

		select {
		case p.out <- event:
		default:
			log.Warn().Str("wallet", address).Msg("wallet poller: trade event channel full, dropping")
		}
		found++
	}

	if latest.After(cutoff) {
		p.mu.Lock()
		p.lastSeen[address] = latest
		p.mu.Unlock()
	}

	return found
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Package discovery periodically refreshes the set of tradable tokens from
// Gamma market metadata and broadcasts it to the market-trade WS listener.
package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/consensus"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/marketdata"
	"github.com/web3guy0/polybot/internal/tokenset"
)

// pageSize is the Gamma API page size used while paginating active markets.
const pageSize = 100

// MarketDataClient fetches pages of active markets. Satisfied by *marketdata.Client.
type MarketDataClient interface {
	GetActiveMarketsPage(limit, offset int) ([]marketdata.Market, error)
}

// Discoverer scans for active markets and publishes their token set.
type Discoverer struct {
	db            *database.Database
	data          MarketDataClient
	tokens        *tokenset.Broadcaster
	minVolume     decimal.Decimal
	minLiquidity  decimal.Decimal
}

// New builds a market discoverer.
func New(db *database.Database, data MarketDataClient, tokens *tokenset.Broadcaster, minVolume, minLiquidity decimal.Decimal) *Discoverer {
	return &Discoverer{db: db, data: data, tokens: tokens, minVolume: minVolume, minLiquidity: minLiquidity}
}

// Run ticks every interval until ctx is cancelled.
func (d *Discoverer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("🔭 market discovery started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 market discovery stopping — context cancelled")
			return
		case <-ticker.C:
			d.scanOnce()
		}
	}
}

func (d *Discoverer) scanOnce() {
	log.Info().Msg("market discovery: scanning for active markets")

	var allTokenIDs []string
	marketsFound := 0
	offset := 0

	for {
		markets, err := d.data.GetActiveMarketsPage(pageSize, offset)
		if err != nil {
			log.Error().Err(err).Msg("market discovery: failed to fetch markets from Gamma API")
			break
		}

		for _, market := range markets {
			if market.Volume.LessThan(d.minVolume) || market.Liquidity.LessThan(d.minLiquidity) {
				continue
			}
			marketsFound++
			allTokenIDs = append(allTokenIDs, market.TokenIDs()...)

			if err := d.persistMarket(&market); err != nil {
				log.Warn().Err(err).Str("condition_id", market.ConditionID).Msg("market discovery: failed to persist active market")
			}
		}

		if len(markets) < pageSize {
			break
		}
		offset += pageSize
	}

	allTokenIDs = dedupeSorted(allTokenIDs)

	log.Info().Int("markets", marketsFound).Int("tokens", len(allTokenIDs)).
		Msg("discovered active markets")

	if len(allTokenIDs) > 0 {
		d.tokens.Set(allTokenIDs)
	}
}

func (d *Discoverer) persistMarket(market *marketdata.Market) error {
	category := ""
	if question := market.Question; question != "" {
		category = string(consensus.InferMarketCategory(question))
	}
	return d.db.UpsertActiveMarket(&database.ActiveMarket{
		ConditionID:  market.ConditionID,
		Question:     market.Question,
		Volume:       market.Volume,
		Liquidity:    market.Liquidity,
		EndDateISO:   market.EndDateISO,
		ClobTokenIDs: market.ClobTokenIDsCSV(),
		Slug:         market.Slug,
		Outcomes:     market.OutcomesCSV(),
		Category:     category,
	})
}

func dedupeSorted(tokenIDs []string) []string {
	sort.Strings(tokenIDs)
	out := tokenIDs[:0]
	var prev string
	for i, id := range tokenIDs {
		if i == 0 || id != prev {
			out = append(out, id)
		}
		prev = id
	}
	return out
}

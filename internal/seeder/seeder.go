// Package seeder periodically discovers new whales from the Polymarket
// leaderboard and deactivates ones that have gone quiet.
package seeder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/consensus"
	"github.com/web3guy0/polybot/internal/dataapi"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/types"
)

// fetchCount is the leaderboard page size and the per-wallet trade-history
// depth fetched for each candidate (§4.16).
const fetchCount = 200

var (
	hundred      = decimal.NewFromInt(100)
	fiveCap      = decimal.NewFromInt(5)
	oneThousand  = decimal.NewFromInt(1_000)
	hundredK     = decimal.NewFromInt(100_000)
	tenK         = decimal.NewFromInt(10_000)
)

// LeaderboardClient fetches leaderboard and per-wallet trade history.
// Satisfied by *dataapi.Client.
type LeaderboardClient interface {
	GetLeaderboard(limit int) ([]dataapi.LeaderboardEntry, error)
	GetUserTrades(wallet string, limit int) ([]dataapi.UserTrade, error)
}

// Config is the anti-signal filter tuning for discovery (§4.16).
type Config struct {
	SkipTopN         int
	MinTrades        int
	RecencyDays      int
	MaxWallets       int
	MaxInactiveDays  int
}

// Seeder sweeps stale whales and discovers new ones from the leaderboard.
type Seeder struct {
	db   *database.Database
	data LeaderboardClient
	cfg  Config
}

// New builds a whale seeder/sweeper.
func New(db *database.Database, data LeaderboardClient, cfg Config) *Seeder {
	return &Seeder{db: db, data: data, cfg: cfg}
}

// Run executes one cycle immediately, then every interval until ctx is cancelled.
func (s *Seeder) Run(ctx context.Context, interval time.Duration) {
	s.seedAndCleanup()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("🐋 whale seeder started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 whale seeder stopping — context cancelled")
			return
		case <-ticker.C:
			s.seedAndCleanup()
		}
	}
}

// RunOnce executes a single seed-and-cleanup cycle synchronously, for
// operational debugging (cmd/seedcheck) outside the normal ticker loop.
func (s *Seeder) RunOnce() {
	s.seedAndCleanup()
}

func (s *Seeder) seedAndCleanup() {
	deactivated, err := s.db.DeactivateStaleWhales(s.cfg.MaxInactiveDays)
	if err != nil {
		log.Warn().Err(err).Msg("whale seeder: stale sweep failed (non-fatal)")
	} else if deactivated > 0 {
		log.Info().Int64("count", deactivated).Int("days", s.cfg.MaxInactiveDays).
			Msg("auto-deactivated stale whales")
	}

	active, err := s.db.GetActiveWhales()
	if err != nil {
		log.Warn().Err(err).Msg("whale seeder: failed to fetch active whales (non-fatal)")
		return
	}
	if len(active) >= s.cfg.MaxWallets {
		log.Debug().Int("active", len(active)).Int("max", s.cfg.MaxWallets).
			Msg("whale seeder: at capacity, skipping discovery")
		return
	}

	slots := s.cfg.MaxWallets - len(active)
	log.Info().Int("active", len(active)).Int("slots", slots).
		Msg("whale seeder: discovering new whales")

	entries, err := s.data.GetLeaderboard(fetchCount)
	if err != nil {
		log.Error().Err(err).Msg("whale seeder: failed to fetch leaderboard")
		return
	}

	tracked := map[string]bool{}
	if addrs, err := s.db.GetAllWhaleAddresses(); err == nil {
		for _, a := range addrs {
			tracked[a] = true
		}
	}

	var seeded, skippedInactive, skippedLowTrades, skippedBotMM int
	for rank, entry := range entries {
		if seeded >= slots {
			break
		}
		if rank < s.cfg.SkipTopN {
			continue
		}
		if entry.PnL.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if entry.Volume.LessThanOrEqual(oneThousand) {
			continue
		}
		if entry.Address == "" || tracked[entry.Address] {
			continue
		}

		trades, err := s.data.GetUserTrades(entry.Address, fetchCount)
		if err != nil {
			log.Debug().Err(err).Str("address", entry.Address).Msg("whale seeder: failed to fetch trades — skipping")
			continue
		}
		if len(trades) < s.cfg.MinTrades {
			skippedLowTrades++
			continue
		}

		mostRecent, ok := mostRecentTimestamp(trades)
		if !ok {
			skippedInactive++
			continue
		}
		daysSince := int(time.Since(mostRecent).Hours() / 24)
		if daysSince > s.cfg.RecencyDays {
			log.Debug().Str("address", entry.Address).Int("days_since", daysSince).
				Msg("skipping inactive whale")
			skippedInactive++
			continue
		}

		if reason := detectBotOrMM(trades); reason != "" {
			log.Info().Str("address", entry.Address).Str("reason", reason).Msg("skipping suspected bot/MM whale")
			skippedBotMM++
			continue
		}

		s.seedWhale(rank, entry, trades)
		seeded++
	}

	log.Info().Int("seeded", seeded).Int("skipped_inactive", skippedInactive).
		Int("skipped_low_trades", skippedLowTrades).Int("skipped_bot_mm", skippedBotMM).
		Msg("whale seeder cycle complete")
}

func (s *Seeder) seedWhale(rank int, entry dataapi.LeaderboardEntry, trades []dataapi.UserTrade) {
	whale, err := s.db.UpsertWhale(entry.Address)
	if err != nil {
		log.Warn().Err(err).Str("address", entry.Address).Msg("whale seeder: failed to upsert whale")
		return
	}

	tradeCount := 0
	for _, trade := range trades {
		tokenID := trade.TokenID
		if tokenID == "" {
			tokenID = "unknown"
		}
		marketID := trade.Market
		if marketID == "" {
			marketID = "unknown"
		}
		side := normalizedSide(trade.Side)
		notional := trade.Size.Mul(trade.Price)
		tradedAt := tradeTimestamp(trade.Timestamp)

		if _, err := s.db.InsertTrade(whale.ID, marketID, tokenID, side, trade.Size, trade.Price, notional, tradedAt); err != nil {
			log.Debug().Err(err).Msg("whale seeder: failed to insert seeded trade")
			continue
		}
		tradeCount++
	}

	// Initial PnL-tier classification, overwritten by the real behavioral
	// classifier (informed/bot/market_maker) once trades flow through the
	// pipeline — the original source writes the PnL tier into the same
	// "classification" column as a transient seed value, per spec.md §4.16.
	classification := pnlTier(entry.PnL)
	label := fmt.Sprintf("leaderboard_rank_%d", rank+1)
	category := fmt.Sprintf("vol:%s", entry.Volume.Round(0).String())
	if err := s.db.UpdateWhaleProfile(whale.ID, classification, category, label); err != nil {
		log.Warn().Err(err).Str("address", entry.Address).Msg("whale seeder: failed to update whale profile")
	}

	score := estimateScore(entry.PnL, entry.Volume, tradeCount)
	if err := s.db.UpdateWhaleScores(whale.ID, score); err != nil {
		log.Warn().Err(err).Str("address", entry.Address).Msg("whale seeder: failed to update whale scores")
	}

	s.autoAssignToBaskets(whale, trades)

	log.Info().Str("address", entry.Address).Str("pnl", entry.PnL.StringFixed(2)).
		Int("trades", tradeCount).Msg("seeded new whale")
}

// autoAssignToBaskets adds a newly seeded whale to every active basket
// whose category matches one the whale's trade history touches, once that
// history spans at least 3 distinct categories — a supplemented feature
// from the original's auto_assign_to_baskets, not present in spec.md's
// distillation but cheap to carry forward (SPEC_FULL.md §4.16).
func (s *Seeder) autoAssignToBaskets(whale *database.Whale, trades []dataapi.UserTrade) {
	seen := map[types.BasketCategory]bool{}
	for _, t := range trades {
		if t.Market == "" {
			continue
		}
		question, err := s.db.GetMarketQuestion(t.Market)
		if err != nil || question == "" {
			continue
		}
		if cat := consensus.InferMarketCategory(question); cat != types.CategoryUnknown {
			seen[cat] = true
		}
	}
	if len(seen) < 3 {
		return
	}

	baskets, err := s.db.GetActiveBaskets()
	if err != nil {
		log.Warn().Err(err).Msg("whale seeder: failed to fetch baskets for auto-assign")
		return
	}

	for category := range seen {
		for _, basket := range baskets {
			if basket.Category != string(category) {
				continue
			}
			members, err := s.db.GetActiveBasketMembers(basket.ID)
			if err != nil || len(members) >= basket.MaxWallets {
				continue
			}
			if err := s.db.AddWhaleToBasket(basket.ID, whale.ID); err != nil {
				log.Warn().Err(err).Str("basket", basket.Name).Msg("whale seeder: failed to auto-assign whale to basket")
				continue
			}
			log.Info().Str("address", whale.Address).Str("basket", basket.Name).Msg("auto-assigned whale to basket")
		}
	}
}

func pnlTier(pnl decimal.Decimal) string {
	switch {
	case pnl.GreaterThan(hundredK):
		return "top_tier"
	case pnl.GreaterThan(tenK):
		return "high_performer"
	default:
		return "profitable"
	}
}

// estimateScore assigns an initial WalletScore from leaderboard-only data,
// per spec.md §4.16's PnL breakpoints, later refined by the real scorer
// (C3) once enough resolved trades accumulate.
func estimateScore(pnl, volume decimal.Decimal, tradeCount int) types.WalletScore {
	var winRate decimal.Decimal
	switch {
	case pnl.GreaterThan(hundredK):
		winRate = decimal.NewFromFloat(0.68)
	case pnl.GreaterThan(tenK):
		winRate = decimal.NewFromFloat(0.63)
	default:
		winRate = decimal.NewFromFloat(0.58)
	}
	kelly := winRate.Mul(decimal.NewFromInt(2)).Sub(decimal.NewFromInt(1))

	ev := decimal.Zero
	if tradeCount > 0 {
		ev = pnl.Div(decimal.NewFromInt(int64(tradeCount)))
	}

	sharpe := decimal.NewFromInt(1)
	if volume.IsPositive() {
		sharpe = pnl.Div(volume).Mul(hundred)
		if sharpe.GreaterThan(fiveCap) {
			sharpe = fiveCap
		}
	}

	return types.WalletScore{
		Sharpe:        sharpe,
		WinRate:       winRate,
		KellyFraction: kelly,
		ExpectedValue: ev,
		TotalTrades:   tradeCount,
		TotalPnL:      pnl,
	}
}

// detectBotOrMM returns a non-empty reason when trade patterns look like a
// bot or market-maker rather than a directional trader, per spec.md §4.16.
func detectBotOrMM(trades []dataapi.UserTrade) string {
	if len(trades) < 20 {
		return ""
	}

	timestamps := make([]time.Time, 0, len(trades))
	for _, t := range trades {
		timestamps = append(timestamps, tradeTimestamp(t.Timestamp))
	}

	oldest, newest := timestamps[0], timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	spanDays := int(newest.Sub(oldest).Hours() / 24)
	if spanDays < 1 {
		spanDays = 1
	}

	if len(trades) >= 100 && spanDays < 7 {
		return fmt.Sprintf("bot: %d trades in %d days (%d trades/day)", len(trades), spanDays, len(trades)/spanDays)
	}
	tradesPerDay := float64(len(trades)) / float64(spanDays)
	if tradesPerDay > 50.0 {
		return fmt.Sprintf("bot: %.0f trades/day over %d days", tradesPerDay, spanDays)
	}

	marketBuy := map[string]bool{}
	marketSell := map[string]bool{}
	for _, t := range trades {
		if t.Market == "" {
			continue
		}
		switch strings.ToUpper(t.Side) {
		case "BUY":
			marketBuy[t.Market] = true
		case "SELL":
			marketSell[t.Market] = true
		}
	}
	dualSide := 0
	for m := range marketBuy {
		if marketSell[m] {
			dualSide++
		}
	}
	totalMarkets := map[string]bool{}
	for m := range marketBuy {
		totalMarkets[m] = true
	}
	for m := range marketSell {
		totalMarkets[m] = true
	}
	if len(totalMarkets) >= 5 {
		ratio := float64(dualSide) / float64(len(totalMarkets))
		if ratio >= 0.40 {
			return fmt.Sprintf("market_maker: %d/%d markets (%.0f%%) have dual-side activity", dualSide, len(totalMarkets), ratio*100)
		}
	}

	return ""
}

func mostRecentTimestamp(trades []dataapi.UserTrade) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, t := range trades {
		ts := tradeTimestamp(t.Timestamp)
		if ts.IsZero() {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	return latest, found
}

// tradeTimestamp interprets the Data API's timestamp as seconds or
// milliseconds epoch, mirroring the original's dual-unit parsing.
func tradeTimestamp(epoch int64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	if epoch > 1_000_000_000_000 {
		return time.UnixMilli(epoch)
	}
	return time.Unix(epoch, 0)
}

func normalizedSide(side string) types.Side {
	if strings.ToUpper(side) == string(types.Sell) {
		return types.Sell
	}
	return types.Buy
}

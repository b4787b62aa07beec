// Package consensus implements basket admission (is a wallet good enough to
// join a whale basket?) and consensus evaluation (do enough basket members
// agree on a direction?), plus market category inference used to route
// whales into baskets automatically. Pure functions only.
package consensus

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/types"
)

var minSpreadDefault = decimal.NewFromFloat(0.05)

// CheckAdmission decides whether a whale qualifies for basket membership.
//
// Criteria: win rate of at least 60%, active at least 4 months, not a bot or
// market_maker, average monthly trades of at most 100, and not a suspected insider
// (fewer than 5 trades with less than 6 months of history).
func CheckAdmission(winRate decimal.Decimal, classification types.Classification, monthsActive int, totalTrades int, avgMonthlyTrades decimal.Decimal) types.AdmissionResult {
	if winRate.LessThan(decimal.NewFromFloat(0.60)) {
		return types.AdmissionResult{Accepted: false, Reason: "win rate below 60%"}
	}

	if monthsActive < 4 {
		return types.AdmissionResult{Accepted: false, Reason: "history shorter than 4 months"}
	}

	switch classification {
	case types.ClassBot:
		return types.AdmissionResult{Accepted: false, Reason: "classified as bot"}
	case types.ClassMarketMaker:
		return types.AdmissionResult{Accepted: false, Reason: "classified as market_maker"}
	}

	if avgMonthlyTrades.GreaterThan(decimal.NewFromInt(100)) {
		return types.AdmissionResult{Accepted: false, Reason: "average monthly trades > 100 (bot pattern)"}
	}

	if totalTrades < 5 && monthsActive < 6 {
		return types.AdmissionResult{Accepted: false, Reason: "suspected insider: too few trades with short history"}
	}

	return types.AdmissionResult{Accepted: true, Reason: "accepted"}
}

// EvaluateConsensus decides whether a basket's recent votes reach
// consensus. Pure function — no I/O.
//
// Conditions: same-direction vote ratio over the basket's total wallet
// count must reach the threshold, the market price must be at least
// minSpread away from both 0 and 1, and at least one vote must exist.
func EvaluateConsensus(votes []types.Vote, totalWhales int, threshold, marketPrice, minSpread decimal.Decimal) types.ConsensusCheck {
	if minSpread.IsZero() {
		minSpread = minSpreadDefault
	}

	noConsensus := func(reason string) types.ConsensusCheck {
		return types.ConsensusCheck{
			Reached:       false,
			ConsensusPct:  decimal.Zero,
			Participating: len(votes),
			Total:         totalWhales,
			Reason:        reason,
		}
	}

	if len(votes) == 0 {
		return noConsensus("no votes in window")
	}

	distZero := marketPrice
	distOne := decimal.NewFromInt(1).Sub(marketPrice)
	if distZero.LessThan(minSpread) || distOne.LessThan(minSpread) {
		return noConsensus("market price too close to resolution")
	}

	buyCount, sellCount := 0, 0
	for _, v := range votes {
		switch strings.ToUpper(string(v.Side)) {
		case "BUY":
			buyCount++
		case "SELL":
			sellCount++
		}
	}

	majorityDirection := types.Sell
	majorityCount := sellCount
	if buyCount >= sellCount {
		majorityDirection = types.Buy
		majorityCount = buyCount
	}

	consensusPct := decimal.Zero
	if totalWhales > 0 {
		consensusPct = decimal.NewFromInt(int64(majorityCount)).Div(decimal.NewFromInt(int64(totalWhales)))
	}

	if consensusPct.GreaterThanOrEqual(threshold) {
		return types.ConsensusCheck{
			Reached:       true,
			Direction:     majorityDirection,
			ConsensusPct:  consensusPct,
			Participating: len(votes),
			Total:         totalWhales,
			Reason:        fmt.Sprintf("consensus reached: %d/%d whales vote %s", majorityCount, totalWhales, majorityDirection),
		}
	}

	return types.ConsensusCheck{
		Reached:       false,
		Direction:     majorityDirection,
		ConsensusPct:  consensusPct,
		Participating: len(votes),
		Total:         totalWhales,
		Reason: fmt.Sprintf("consensus not reached: %.1f%% < %.1f%% threshold",
			consensusPct.Mul(decimal.NewFromInt(100)).InexactFloat64(),
			threshold.Mul(decimal.NewFromInt(100)).InexactFloat64()),
	}
}

var (
	politicsKeywords = []string{
		"president", "election", "trump", "biden", "congress", "senate",
		"governor", "democrat", "republican", "vote", "ballot", "political",
		"party", "legislation", "minister", "parliament", "nato",
	}
	cryptoKeywords = []string{
		"bitcoin", "btc", "ethereum", "eth", "crypto", "token", "blockchain",
		"solana", "sol", "dogecoin", "doge", "defi", "nft", "altcoin",
	}
	sportsKeywords = []string{
		"nba", "nfl", "mlb", "nhl", "fifa", "world cup", "championship",
		"super bowl", "premier league", "playoffs", "mvp", "touchdown",
		"slam dunk", "goal", "match", "tennis", "ufc", "boxing",
	}
)

// InferMarketCategory guesses a basket category from a market's question
// text via keyword matching. Returns CategoryUnknown if nothing matches.
func InferMarketCategory(question string) types.BasketCategory {
	q := strings.ToLower(question)

	if containsAny(q, politicsKeywords) {
		return types.CategoryPolitics
	}
	if containsAny(q, cryptoKeywords) {
		return types.CategoryCrypto
	}
	if containsAny(q, sportsKeywords) {
		return types.CategorySports
	}
	return types.CategoryUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

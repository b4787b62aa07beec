package consensus

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polybot/types"
)

func TestAdmissionAccepted(t *testing.T) {
	r := CheckAdmission(decimal.NewFromFloat(0.70), types.ClassInformed, 6, 50, decimal.NewFromInt(10))
	assert.True(t, r.Accepted)
}

func TestAdmissionLowWinRate(t *testing.T) {
	r := CheckAdmission(decimal.NewFromFloat(0.50), types.ClassInformed, 6, 50, decimal.NewFromInt(10))
	assert.False(t, r.Accepted)
	assert.Contains(t, r.Reason, "win rate")
}

func TestAdmissionShortHistory(t *testing.T) {
	r := CheckAdmission(decimal.NewFromFloat(0.70), types.ClassInformed, 2, 50, decimal.NewFromInt(10))
	assert.False(t, r.Accepted)
	assert.Contains(t, r.Reason, "4 months")
}

func TestAdmissionBotFrequency(t *testing.T) {
	r := CheckAdmission(decimal.NewFromFloat(0.70), types.ClassInformed, 6, 500, decimal.NewFromInt(150))
	assert.False(t, r.Accepted)
	assert.Contains(t, r.Reason, "bot pattern")
}

func TestAdmissionClassificationRejected(t *testing.T) {
	r := CheckAdmission(decimal.NewFromFloat(0.70), types.ClassBot, 6, 50, decimal.NewFromInt(10))
	assert.False(t, r.Accepted)
	assert.Contains(t, r.Reason, "bot")

	r2 := CheckAdmission(decimal.NewFromFloat(0.70), types.ClassMarketMaker, 6, 50, decimal.NewFromInt(10))
	assert.False(t, r2.Accepted)
	assert.Contains(t, r2.Reason, "market_maker")
}

func TestAdmissionInsiderPattern(t *testing.T) {
	r := CheckAdmission(decimal.NewFromFloat(0.90), types.ClassInformed, 5, 3, decimal.NewFromInt(1))
	assert.False(t, r.Accepted)
	assert.Contains(t, r.Reason, "insider")
}

func makeVotes(side types.Side, n int) []types.Vote {
	out := make([]types.Vote, n)
	for i := range out {
		out[i] = types.Vote{Wallet: "w", Side: side}
	}
	return out
}

func TestConsensusAllBuy(t *testing.T) {
	c := EvaluateConsensus(makeVotes(types.Buy, 5), 5, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.05))
	assert.True(t, c.Reached)
	assert.Equal(t, types.Buy, c.Direction)
	assert.True(t, c.ConsensusPct.Equal(decimal.NewFromInt(1)))
}

func TestConsensusMixedNoReach(t *testing.T) {
	votes := append(makeVotes(types.Buy, 3), makeVotes(types.Sell, 2)...)
	c := EvaluateConsensus(votes, 5, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.05))
	assert.False(t, c.Reached)
	assert.True(t, c.ConsensusPct.Equal(decimal.NewFromFloat(0.6)))
}

func TestConsensusExact80Boundary(t *testing.T) {
	votes := append(makeVotes(types.Buy, 4), makeVotes(types.Sell, 1)...)
	c := EvaluateConsensus(votes, 5, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.05))
	assert.True(t, c.Reached)
	assert.True(t, c.ConsensusPct.Equal(decimal.NewFromFloat(0.8)))
}

func TestConsensusPriceTooClose(t *testing.T) {
	c := EvaluateConsensus(makeVotes(types.Buy, 5), 5, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.97), decimal.NewFromFloat(0.05))
	assert.False(t, c.Reached)
	assert.Contains(t, c.Reason, "too close")
}

func TestConsensusEmptyVotes(t *testing.T) {
	c := EvaluateConsensus(nil, 5, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.05))
	assert.False(t, c.Reached)
	assert.Contains(t, c.Reason, "no votes")
}

// TestConsensusUnderVotedBasket covers SPEC_FULL.md §9's open question:
// the consensus denominator is total basket membership, not participating
// count, so a basket where only a minority of members voted this window
// must not reach consensus even if every participating vote agrees.
func TestConsensusUnderVotedBasket(t *testing.T) {
	// 2 of 10 members voted, both Buy — participating-only ratio would be
	// 100%, but the denominator is totalWhales, so consensus is 20%.
	c := EvaluateConsensus(makeVotes(types.Buy, 2), 10, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.05))
	assert.False(t, c.Reached)
	assert.Equal(t, 2, c.Participating)
	assert.Equal(t, 10, c.Total)
	assert.True(t, c.ConsensusPct.Equal(decimal.NewFromFloat(0.2)))
}

func TestConsensusSellDirection(t *testing.T) {
	c := EvaluateConsensus(makeVotes(types.Sell, 5), 5, decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.05))
	assert.True(t, c.Reached)
	assert.Equal(t, types.Sell, c.Direction)
}

func TestInferCategoryPolitics(t *testing.T) {
	assert.Equal(t, types.CategoryPolitics, InferMarketCategory("Will Trump win the 2024 election?"))
	assert.Equal(t, types.CategoryPolitics, InferMarketCategory("Will the Senate pass the bill?"))
}

func TestInferCategoryCrypto(t *testing.T) {
	assert.Equal(t, types.CategoryCrypto, InferMarketCategory("Will Bitcoin reach $100k by end of year?"))
	assert.Equal(t, types.CategoryCrypto, InferMarketCategory("Will ETH flip BTC in market cap?"))
}

func TestInferCategorySports(t *testing.T) {
	assert.Equal(t, types.CategorySports, InferMarketCategory("Who will win the Super Bowl?"))
	assert.Equal(t, types.CategorySports, InferMarketCategory("Will the NBA MVP be from the West?"))
}

func TestInferCategoryUnknown(t *testing.T) {
	assert.Equal(t, types.CategoryUnknown, InferMarketCategory("Will it rain in Paris tomorrow?"))
	assert.Equal(t, types.CategoryUnknown, InferMarketCategory("What is the meaning of life?"))
}

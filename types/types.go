// Package types holds the domain-level value types shared across the
// ingestion, pipeline, and execution layers. Kept dependency-free (besides
// decimal/uuid/time) to avoid import cycles between internal packages.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade or order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Outcome is the binary outcome a position is exposed to.
type Outcome string

const (
	OutcomeYes Outcome = "Yes"
	OutcomeNo  Outcome = "No"
)

// Classification is the behavioral bucket assigned to a wallet.
type Classification string

const (
	ClassInformed    Classification = "informed"
	ClassMarketMaker Classification = "market_maker"
	ClassBot         Classification = "bot"
	ClassUnknown     Classification = "unknown"
)

func (c Classification) String() string { return string(c) }

// MarketResolution is the settlement state of a market.
type MarketResolution string

const (
	ResolutionUnresolved MarketResolution = "unresolved"
	ResolutionYes        MarketResolution = "resolved_yes"
	ResolutionNo         MarketResolution = "resolved_no"
)

// OrderStatus is the lifecycle state of a CopyOrder.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderSubmitted OrderStatus = "submitted"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderFailed    OrderStatus = "failed"
)

// IsTerminal reports whether an order can no longer change state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderFailed
}

// PositionStatus is the lifecycle state of a Position.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionExiting PositionStatus = "exiting"
	PositionClosed  PositionStatus = "closed"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitManual     ExitReason = "manual"
	ExitSettled    ExitReason = "settled"
)

// BasketCategory classifies a basket/market by subject matter.
type BasketCategory string

const (
	CategoryPolitics BasketCategory = "politics"
	CategoryCrypto   BasketCategory = "crypto"
	CategorySports   BasketCategory = "sports"
	CategoryUnknown  BasketCategory = "unknown"
)

// SentinelWallet is the address attributed to trades observed on the
// market-trade stream, which carries no wallet identity (§4.10, §9).
const SentinelWallet = "0x0000000000000000000000000000000000dead"

// TradeEvent is the unified shape emitted by every ingestion source (C10).
type TradeEvent struct {
	Wallet    string
	MarketID  string
	AssetID   string
	Side      Side
	Size      decimal.Decimal
	Price     decimal.Decimal
	Notional  decimal.Decimal
	Timestamp time.Time
}

// CopySignal is what the pipeline (C9) emits toward the copy engine (C12).
type CopySignal struct {
	WhaleTradeID  uuid.UUID
	Wallet        string
	MarketID      string
	AssetID       string
	Side          Side
	Price         decimal.Decimal
	WhaleWinRate  decimal.Decimal
	WhaleKelly    decimal.Decimal
	WhaleNotional decimal.Decimal
}

// WhaleTrade is the minimal shape the classifier (C4) needs: which market,
// which side, when. Deliberately decoupled from the store's GORM-tagged
// WhaleTrade model so pure packages never import the database layer.
type WhaleTrade struct {
	MarketID string
	Side     Side
	TradedAt time.Time
}

// TradeResult is a single resolved (profit, traded_at) pair fed to the scorer.
type TradeResult struct {
	Profit   decimal.Decimal
	TradedAt time.Time
}

// WalletScore is the scorer's (C3) output bundle.
type WalletScore struct {
	Sharpe         decimal.Decimal
	WinRate        decimal.Decimal
	KellyFraction  decimal.Decimal
	ExpectedValue  decimal.Decimal
	TotalTrades    int
	TotalPnL       decimal.Decimal
	IsDecaying     bool
}

// AdmissionResult is the outcome of the admission predicate (C5).
type AdmissionResult struct {
	Accepted bool
	Reason   string
}

// Vote is a single whale's most-recent directional stance within a
// basket's consensus window.
type Vote struct {
	Wallet string
	Side   Side
}

// ConsensusCheck is the consensus evaluator's (C5) output.
type ConsensusCheck struct {
	Reached       bool
	Direction     Side
	ConsensusPct  decimal.Decimal
	Participating int
	Total         int
	Reason        string
}

// RiskLimits bounds a proposed order against a portfolio snapshot (C7).
type RiskLimits struct {
	MaxPositionPct        decimal.Decimal
	MaxOpenPositions      int
	MaxDailyLoss          decimal.Decimal
	MinSpreadToResolution decimal.Decimal
	MaxSlippagePct        decimal.Decimal
}

// DefaultRiskLimits mirrors original_source's execution::risk_manager::RiskLimits::default().
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionPct:        decimal.NewFromFloat(0.20),
		MaxOpenPositions:      10,
		MaxDailyLoss:          decimal.NewFromInt(500),
		MinSpreadToResolution: decimal.NewFromFloat(0.05),
		MaxSlippagePct:        decimal.NewFromFloat(0.03),
	}
}

// PendingOrder is the proposed order passed to the risk checker.
type PendingOrder struct {
	Size  decimal.Decimal
	Price decimal.Decimal
}

// PortfolioSnapshot is the state the risk checker evaluates an order against.
type PortfolioSnapshot struct {
	Bankroll      decimal.Decimal
	OpenPositions int
	DailyPnL      decimal.Decimal
}

// SizingStrategy selects the position sizer's formula (C8).
type SizingStrategy string

const (
	SizingProportional SizingStrategy = "proportional"
	SizingFixed        SizingStrategy = "fixed"
	SizingKelly        SizingStrategy = "kelly"
)

func SizingStrategyFromString(s string) SizingStrategy {
	switch s {
	case string(SizingFixed):
		return SizingFixed
	case string(SizingKelly):
		return SizingKelly
	default:
		return SizingProportional
	}
}

// OrderResult is what the order executor (C11) returns.
type OrderResult struct {
	FillPrice decimal.Decimal
	Slippage  decimal.Decimal
	Success   bool
	OrderID   string // empty when none was placed (dry-run / no-wallet)
}

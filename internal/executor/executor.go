// Package executor places copy-trade orders against the Polymarket CLOB.
//
// Three modes, mirroring the teacher's dry-run-aware exec.Client:
//   - dryRun=true: logs intent, returns a simulated fill at the target price.
//   - dryRun=false + client configured: fetches the live book, checks
//     slippage, and places a real limit order.
//   - no client configured: always falls back to the simulated path,
//     regardless of dryRun — there is nothing to trade against.
package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/riskcheck"
	"github.com/web3guy0/polybot/types"
)

var (
	// ErrNoClient is returned only if callers explicitly require a live
	// client and none was configured; Execute itself never returns it —
	// a missing client silently falls back to dry-run.
	ErrNoClient       = errors.New("no authenticated CLOB client available")
	ErrEmptyOrderBook = errors.New("order book empty for token")
	// ErrClobError marks a transport/API failure placing the order — the
	// retryable class the copy engine backs off and retries on.
	ErrClobError = errors.New("CLOB API error")
)

// BookLevel is a single (price, size) rung of an order book side.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is the minimal shape Execute needs from a book response.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BookFetcher fetches the current order book for a token. Satisfied by
// *exec.Client via clientadapter.ExecutorBook.
type BookFetcher interface {
	GetOrderBook(tokenID string) (*OrderBook, error)
}

// OrderPlacer places a signed limit order. Satisfied by *exec.Client via
// clientadapter.Trading.
type OrderPlacer interface {
	PlaceOrderWithType(tokenID string, price, size decimal.Decimal, side string, orderType string, postOnly bool) (string, error)
}

// Executor executes copy-trade orders: fetch book, check slippage, place.
type Executor struct {
	book    BookFetcher
	trading OrderPlacer
	limits  types.RiskLimits
	dryRun  bool
}

// New builds an Executor. book and trading may both be nil, in which case
// Execute always runs in simulated mode regardless of dryRun.
func New(book BookFetcher, trading OrderPlacer, limits types.RiskLimits, dryRun bool) *Executor {
	return &Executor{book: book, trading: trading, limits: limits, dryRun: dryRun}
}

// Execute runs a copy-trade order: fetch the book for slippage validation,
// check slippage against target price, then place the order (or simulate).
func (e *Executor) Execute(tokenID, side string, size, targetPrice decimal.Decimal) (types.OrderResult, error) {
	if e.dryRun || e.trading == nil {
		mode := "dry-run"
		if e.trading == nil {
			mode = "no-wallet"
		}
		log.Info().
			Str("token_id", tokenID).
			Str("side", side).
			Str("size", size.StringFixed(2)).
			Str("target_price", targetPrice.StringFixed(4)).
			Str("mode", mode).
			Msg("📝 DRY-RUN: would place limit order")
		return types.OrderResult{
			FillPrice: targetPrice,
			Slippage:  decimal.Zero,
			Success:   true,
			OrderID:   "",
		}, nil
	}

	currentPrice := targetPrice
	if e.book != nil {
		book, err := e.book.GetOrderBook(tokenID)
		if err != nil {
			log.Warn().Err(err).Str("token_id", tokenID).
				Msg("⚠️ failed to fetch order book for slippage check, using target price")
		} else {
			level, ok := bestLevel(book, side)
			if !ok {
				return types.OrderResult{}, fmt.Errorf("%w: %s", ErrEmptyOrderBook, tokenID)
			}
			currentPrice = level
		}
	}

	slippage, err := riskcheck.CheckSlippage(targetPrice, currentPrice, e.limits)
	if err != nil {
		return types.OrderResult{}, err
	}

	log.Info().
		Str("token_id", tokenID).
		Str("side", side).
		Str("size", size.StringFixed(2)).
		Str("target_price", targetPrice.StringFixed(4)).
		Str("current_price", currentPrice.StringFixed(4)).
		Str("slippage", slippage.StringFixed(4)).
		Msg("📤 placing live limit order on CLOB")

	orderID, err := e.trading.PlaceOrderWithType(tokenID, currentPrice, size, side, "GTC", false)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("%w: %s", ErrClobError, err.Error())
	}

	log.Info().
		Str("order_id", orderID).
		Str("fill_price", currentPrice.StringFixed(4)).
		Str("slippage", slippage.StringFixed(4)).
		Msg("✅ live order placed")

	return types.OrderResult{
		FillPrice: currentPrice,
		Slippage:  slippage,
		Success:   true,
		OrderID:   orderID,
	}, nil
}

func bestLevel(book *OrderBook, side string) (decimal.Decimal, bool) {
	switch strings.ToUpper(side) {
	case "BUY":
		if len(book.Asks) == 0 {
			return decimal.Zero, false
		}
		return book.Asks[0].Price, true
	case "SELL":
		if len(book.Bids) == 0 {
			return decimal.Zero, false
		}
		return book.Bids[0].Price, true
	default:
		return decimal.Zero, false
	}
}

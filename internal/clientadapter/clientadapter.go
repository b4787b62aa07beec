// Package clientadapter narrows exec.Client's broad method set down to the
// small per-package interfaces the pipeline stages define for themselves
// (executor.BookFetcher, positionmonitor.BookFetcher, fillpoller.TradingClient,
// copyengine.BalanceChecker) and converts between exec's wire-shaped response
// types and each package's local minimal shape. Every consumer already
// depends only on an interface it owns, never on *exec.Client directly — this
// is the one place that bridges the two.
package clientadapter

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/exec"
	"github.com/web3guy0/polybot/internal/executor"
	"github.com/web3guy0/polybot/internal/fillpoller"
	"github.com/web3guy0/polybot/internal/positionmonitor"
)

// Trading satisfies executor.OrderPlacer, positionmonitor.OrderPlacer, and
// fillpoller.TradingClient against a single live *exec.Client.
type Trading struct {
	Client *exec.Client
}

// PlaceOrderWithType matches both executor.OrderPlacer and
// positionmonitor.OrderPlacer, whose method sets are structurally identical.
func (t Trading) PlaceOrderWithType(tokenID string, price, size decimal.Decimal, side string, orderType string, postOnly bool) (string, error) {
	return t.Client.PlaceOrderWithType(tokenID, price, size, side, exec.OrderType(orderType), postOnly)
}

// CancelOrder satisfies fillpoller.TradingClient.
func (t Trading) CancelOrder(clobOrderID string) error {
	return t.Client.CancelOrder(clobOrderID)
}

// GetOrderStatus satisfies fillpoller.TradingClient, converting exec's wire
// response into the poller's local OrderStatus shape.
func (t Trading) GetOrderStatus(clobOrderID string) (*fillpoller.OrderStatus, error) {
	status, err := t.Client.GetOrderStatus(clobOrderID)
	if err != nil {
		return nil, err
	}
	return &fillpoller.OrderStatus{
		Status:       status.Status,
		Price:        status.Price,
		SizeMatched:  status.SizeMatched,
		OriginalSize: status.OriginalSize,
	}, nil
}

// ExecutorBook satisfies executor.BookFetcher.
type ExecutorBook struct {
	Client *exec.Client
}

func (b ExecutorBook) GetOrderBook(tokenID string) (*executor.OrderBook, error) {
	book, err := b.Client.GetOrderBook(tokenID)
	if err != nil {
		return nil, err
	}
	return &executor.OrderBook{
		Bids: convertLevels(book.Bids),
		Asks: convertLevels(book.Asks),
	}, nil
}

func convertLevels(levels []exec.PriceLevel) []executor.BookLevel {
	out := make([]executor.BookLevel, len(levels))
	for i, l := range levels {
		out[i] = executor.BookLevel{Price: l.Price, Size: l.Size}
	}
	return out
}

// MonitorBook satisfies positionmonitor.BookFetcher, which only needs bid
// prices to revalue a long position.
type MonitorBook struct {
	Client *exec.Client
}

func (b MonitorBook) GetOrderBook(tokenID string) (*positionmonitor.OrderBook, error) {
	book, err := b.Client.GetOrderBook(tokenID)
	if err != nil {
		return nil, err
	}
	bids := make([]positionmonitor.BookLevel, len(book.Bids))
	for i, l := range book.Bids {
		bids[i] = positionmonitor.BookLevel{Price: l.Price}
	}
	return &positionmonitor.OrderBook{Bids: bids}, nil
}

// Balance satisfies copyengine.BalanceChecker.
type Balance struct {
	Client *exec.Client
}

func (b Balance) GetUSDCBalance() (decimal.Decimal, error) {
	return b.Client.GetBalance()
}

func (b Balance) GetTokenBalance(tokenID string) (decimal.Decimal, error) {
	return b.Client.GetTokenBalance(tokenID)
}

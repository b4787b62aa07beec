// Package dataapi is a thin client for Polymarket's Data API
// (data-api.polymarket.com) — wallet trade history and the public
// leaderboard. Shared by the whale seeder (C16) and the wallet poller
// (C10b); neither needs exec.Client's signing machinery.
package dataapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// LeaderboardEntry is one row of the /v1/leaderboard response.
type LeaderboardEntry struct {
	Address string           `json:"proxyWallet"`
	Volume  decimal.Decimal  `json:"vol"`
	PnL     decimal.Decimal  `json:"pnl"`
	UserName string          `json:"userName"`
}

// UserTrade is a single fill from the /trades endpoint, keyed by wallet.
type UserTrade struct {
	TokenID   string          `json:"asset"`
	Side      string          `json:"side"`
	Size      decimal.Decimal `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Market    string          `json:"conditionId"`
}

// Client is a read-only Data API client, resty-based like marketdata.Client.
type Client struct {
	http *resty.Client
}

// New builds a Data API client against baseURL (e.g. https://data-api.polymarket.com).
func New(baseURL string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(300 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &Client{http: http}
}

// GetLeaderboard fetches the top `limit` wallets by all-time PnL.
func (c *Client) GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	resp, err := c.http.R().
		SetQueryParams(map[string]string{
			"limit":      fmt.Sprintf("%d", limit),
			"timePeriod": "ALL",
			"orderBy":    "PNL",
		}).
		SetResult(&entries).
		Get("/v1/leaderboard")
	if err != nil {
		return nil, fmt.Errorf("data api get leaderboard: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("data api get leaderboard: status %d", resp.StatusCode())
	}
	return entries, nil
}

// GetUserTrades fetches up to `limit` most recent trades for a wallet.
func (c *Client) GetUserTrades(wallet string, limit int) ([]UserTrade, error) {
	var trades []UserTrade
	resp, err := c.http.R().
		SetQueryParams(map[string]string{
			"user":  wallet,
			"limit": fmt.Sprintf("%d", limit),
		}).
		SetResult(&trades).
		Get("/trades")
	if err != nil {
		return nil, fmt.Errorf("data api get user trades: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("data api get user trades: status %d", resp.StatusCode())
	}
	return trades, nil
}

// Package marketdata is a thin Gamma API client shared by the resolution
// poller (C15) and market discovery (C17) — anywhere the engine needs
// market metadata rather than order-book/trading state (that's exec.Client).
package marketdata

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Token is one side of a binary market, as Gamma reports it.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  *bool  `json:"winner"`
}

// Market is Gamma's view of a single market.
type Market struct {
	ConditionID string          `json:"condition_id"`
	Question    string          `json:"question"`
	Closed      *bool           `json:"closed"`
	Active      bool            `json:"active"`
	Volume      decimal.Decimal `json:"volume"`
	Liquidity   decimal.Decimal `json:"liquidity"`
	EndDateISO  string          `json:"end_date_iso"`
	Slug        string          `json:"market_slug"`
	Tokens      []Token         `json:"tokens"`
}

// TokenIDs returns every non-empty token id the market offers, for
// broadcasting to the market-trade WS listener (C17 -> C10a).
func (m *Market) TokenIDs() []string {
	ids := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		if t.TokenID != "" {
			ids = append(ids, t.TokenID)
		}
	}
	return ids
}

// ClobTokenIDsCSV and OutcomesCSV render the token list for the
// active_markets dashboard row, mirroring the original's stored
// comma-joined columns without re-parsing a JSON-encoded string.
func (m *Market) ClobTokenIDsCSV() string { return joinField(m.Tokens, func(t Token) string { return t.TokenID }) }
func (m *Market) OutcomesCSV() string     { return joinField(m.Tokens, func(t Token) string { return t.Outcome }) }

func joinField(tokens []Token, get func(Token) string) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, get(t))
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// Client is a read-only Gamma API client, built the pack's resty idiom
// (retry + base URL + timeout) rather than the teacher's plain net/http,
// since Gamma reads need none of exec.Client's HMAC/EIP-712 machinery.
type Client struct {
	http *resty.Client
}

// New builds a Gamma client against baseURL (e.g. https://gamma-api.polymarket.com).
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

// GetMarketForResolution fetches a single market by condition/market id,
// used by the resolution poller to check for a declared winner.
func (c *Client) GetMarketForResolution(marketID string) (*Market, error) {
	var market Market
	resp, err := c.http.R().
		SetResult(&market).
		Get("/markets/" + marketID)
	if err != nil {
		return nil, fmt.Errorf("gamma get market: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gamma get market: status %d", resp.StatusCode())
	}
	return &market, nil
}

// GetActiveMarketsPage fetches one page of active, unresolved markets —
// unfiltered by volume/liquidity, so the caller (market discovery, C17) can
// tell a short page (end of pagination) from one merely filtered down to
// nothing.
func (c *Client) GetActiveMarketsPage(limit, offset int) ([]Market, error) {
	var markets []Market
	resp, err := c.http.R().
		SetQueryParams(map[string]string{
			"active": "true",
			"closed": "false",
			"limit":  fmt.Sprintf("%d", limit),
			"offset": fmt.Sprintf("%d", offset),
		}).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("gamma list markets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gamma list markets: status %d", resp.StatusCode())
	}
	return markets, nil
}

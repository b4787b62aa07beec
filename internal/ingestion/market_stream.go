// Package ingestion holds the three sources that feed whale trade events
// into the pipeline (C9): the market-trade WebSocket listener (C10a), the
// per-wallet REST poller (C10b), and the on-chain log listener (C10c).
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/tokenset"
	"github.com/web3guy0/polybot/types"
)

const (
	pingInterval       = 25 * time.Second
	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 60 * time.Second
	subscribeBatchSize = 100
)

// wsTrade covers both shapes Polymarket's market-trade stream sends: the
// newer single-event form (event_type "last_trade_price") and the legacy
// array-of-trade-objects form. Fields are optional by design — exactly one
// shape's fields will be populated for a given message.
type wsTrade struct {
	EventType     string `json:"event_type"`
	Market        string `json:"market"`
	AssetID       string `json:"asset_id"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	Price         string `json:"price"`
	Timestamp     string `json:"timestamp"`
	TakerAddress  string `json:"taker_address"`
	MakerAddress  string `json:"maker_address"`
}

// MarketStream maintains a single WebSocket connection to the Polymarket
// market-trade feed, resubscribing whenever the discovered token set (C17)
// changes, and emits a types.TradeEvent per observed trade. Wallet identity
// is never present on this feed, so every event carries types.SentinelWallet
// (§4.10, §9); the pipeline filters these events by the same notional
// thresholds as any other source's.
type MarketStream struct {
	url    string
	tokens *tokenset.Broadcaster
	out    chan<- types.TradeEvent
}

// NewMarketStream builds a listener against url, subscribing to token-set
// updates published on tokens and emitting trade events onto out.
func NewMarketStream(url string, tokens *tokenset.Broadcaster, out chan<- types.TradeEvent) *MarketStream {
	return &MarketStream{url: url, tokens: tokens, out: out}
}

// Run connects and reconnects with exponential backoff until ctx is
// cancelled. Each connection attempt blocks until the connection drops or
// ctx is done.
func (m *MarketStream) Run(ctx context.Context) {
	log.Info().Str("url", m.url).Msg("📡 market stream starting")

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 market stream stopping — context cancelled")
			return
		default:
		}

		if err := m.runOnce(ctx); err != nil {
			log.Error().Err(err).Msg("market stream: connection error")
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		delay := backoffDelay(attempt)
		attempt++
		log.Info().Dur("delay", delay).Int("attempt", attempt).Msg("market stream: reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func backoffDelay(attempt int) time.Duration {
	delay := baseReconnectDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}

// runOnce owns a single connection's lifetime: dial, subscribe to the
// current token set, then service reads, pings, and token-set updates
// until something breaks the connection.
func (m *MarketStream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	log.Info().Msg("✅ market stream connected")

	tokenUpdates := m.tokens.Subscribe()

	if current := m.tokens.Latest(); len(current) > 0 {
		if err := sendSubscriptions(conn, current); err != nil {
			return fmt.Errorf("initial subscribe: %w", err)
		}
		log.Info().Int("tokens", len(current)).Msg("market stream: subscribed to initial token list")
	}

	msgCh := make(chan []byte, 256)
	errCh := make(chan error, 1)
	go readLoop(conn, msgCh, errCh)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			return err

		case raw := <-msgCh:
			m.handleMessage(raw)

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

		case newTokens, ok := <-tokenUpdates:
			if !ok {
				return fmt.Errorf("token broadcaster closed")
			}
			if err := sendSubscriptions(conn, newTokens); err != nil {
				return fmt.Errorf("resubscribe: %w", err)
			}
			log.Info().Int("tokens", len(newTokens)).Msg("market stream: resubscribed after token set update")
		}
	}
}

func readLoop(conn *websocket.Conn, msgCh chan<- []byte, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		msgCh <- data
	}
}

// sendSubscriptions batches the subscribe message into chunks of at most
// subscribeBatchSize asset ids, matching the limit Polymarket enforces per
// "market" subscribe frame.
func sendSubscriptions(conn *websocket.Conn, tokenIDs []string) error {
	for start := 0; start < len(tokenIDs); start += subscribeBatchSize {
		end := start + subscribeBatchSize
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		msg := map[string]interface{}{
			"type":       "market",
			"assets_ids": tokenIDs[start:end],
		}
		body, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			return err
		}
	}
	return nil
}

func (m *MarketStream) handleMessage(data []byte) {
	for _, trade := range parseTrades(data) {
		event, ok := convertTrade(trade)
		if !ok {
			continue
		}
		select {
		case m.out <- event:
		default:
			log.Warn().Str("market", event.MarketID).Msg("market stream: trade event channel full, dropping")
		}
	}
}

// parseTrades handles both wire shapes: a bare array of trade objects
// (legacy) and a single object, optionally wrapped in {"data": [...]}.
func parseTrades(data []byte) []wsTrade {
	var arr []wsTrade
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr
	}

	var wrapper struct {
		Data []wsTrade `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Data) > 0 {
		return wrapper.Data
	}

	var single wsTrade
	if err := json.Unmarshal(data, &single); err == nil && isTrade(single) {
		return []wsTrade{single}
	}

	return nil
}

func isTrade(t wsTrade) bool {
	return t.Side != "" || t.EventType == "last_trade_price"
}

func convertTrade(ws wsTrade) (types.TradeEvent, bool) {
	side, ok := parseSide(ws.Side)
	if !ok {
		return types.TradeEvent{}, false
	}

	size := parseDecimal(ws.Size)
	price := parseDecimal(ws.Price)

	marketID := ws.Market
	if marketID == "" {
		marketID = "unknown"
	}
	assetID := ws.AssetID
	if assetID == "" {
		assetID = "unknown"
	}

	return types.TradeEvent{
		Wallet:    types.SentinelWallet,
		MarketID:  marketID,
		AssetID:   assetID,
		Side:      side,
		Size:      size,
		Price:     price,
		Notional:  size.Mul(price),
		Timestamp: parseTimestamp(ws.Timestamp),
	}, true
}

func parseSide(s string) (types.Side, bool) {
	switch s {
	case "BUY", "buy":
		return types.Buy, true
	case "SELL", "sell":
		return types.Sell, true
	default:
		return "", false
	}
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}

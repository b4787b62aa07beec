package ingestion

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/types"
)

// CTF Exchange and NegRisk CTF Exchange contracts on Polygon, matching the
// addresses the order signer (exec/client.go's CTFExchange/NegRiskExchange)
// already trades against.
const (
	ctfExchangeAddress     = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskCTFExchangeAddr = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	orderFilledTopic       = "0xd0a08e8c493f9c94f29311604c9de1b4e8c8d4c06bd0c789af57f2d65bfec0f6"
	usdcDecimals           = 6
)

const whaleRefreshInterval = 5 * time.Minute

// ChainListener subscribes to OrderFilled events on the CTF Exchange
// contracts via a Polygon WSS node and forwards any fill touching a
// tracked whale address into the pipeline, independent of the WS/REST
// ingestion sources (C10a/C10b). Grounded on
// original_source/src/ingestion/chain_listener.rs.
type ChainListener struct {
	url string
	db  *database.Database
	out chan<- types.TradeEvent

	mu         sync.RWMutex
	whaleAddrs map[string]struct{}
}

// NewChainListener builds a listener against a Polygon WSS url.
func NewChainListener(url string, db *database.Database, out chan<- types.TradeEvent) *ChainListener {
	return &ChainListener{url: url, db: db, out: out, whaleAddrs: make(map[string]struct{})}
}

// Run connects and reconnects with exponential backoff until ctx is
// cancelled, periodically refreshing the tracked-whale address set.
func (c *ChainListener) Run(ctx context.Context) {
	log.Info().Str("url", c.url).Msg("chain listener starting")
	c.refreshWhaleAddresses()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			log.Warn().Msg("🛑 chain listener stopping — context cancelled")
			return
		default:
		}

		if err := c.runOnce(ctx); err != nil {
			log.Error().Err(err).Msg("chain listener: connection error")
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		delay := backoffDelay(attempt)
		attempt++
		log.Info().Dur("delay", delay).Int("attempt", attempt).Msg("chain listener: reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *ChainListener) refreshWhaleAddresses() {
	whales, err := c.db.GetActiveWhales()
	if err != nil {
		log.Error().Err(err).Msg("chain listener: failed to load whale addresses")
		return
	}
	addrs := make(map[string]struct{}, len(whales))
	for _, w := range whales {
		addrs[strings.ToLower(w.Address)] = struct{}{}
	}
	c.mu.Lock()
	c.whaleAddrs = addrs
	c.mu.Unlock()
	log.Debug().Int("whales", len(addrs)).Msg("chain listener: refreshed whale address set")
}

func (c *ChainListener) isWhale(addr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.whaleAddrs[addr]
	return ok
}

func (c *ChainListener) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info().Msg("✅ chain listener connected to Polygon WSS")

	subscribeMsg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params": []interface{}{
			"logs",
			map[string]interface{}{
				"address": []string{ctfExchangeAddress, negRiskCTFExchangeAddr},
				"topics":  [][]string{{orderFilledTopic}},
			},
		},
	}
	body, err := json.Marshal(subscribeMsg)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return err
	}
	log.Info().Msg("chain listener: subscribed to OrderFilled events on 2 contracts")

	msgCh := make(chan []byte, 256)
	errCh := make(chan error, 1)
	go readLoop(conn, msgCh, errCh)

	ticker := time.NewTicker(whaleRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case raw := <-msgCh:
			c.handleRPCMessage(raw)
		case <-ticker.C:
			c.refreshWhaleAddresses()
		}
	}
}

// rpcLog mirrors the eth_subscribe "logs" notification shape.
type rpcLog struct {
	Params struct {
		Result struct {
			Topics []string `json:"topics"`
			Data   string   `json:"data"`
		} `json:"result"`
	} `json:"params"`
}

func (c *ChainListener) handleRPCMessage(raw []byte) {
	var msg rpcLog
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	topics := msg.Params.Result.Topics
	if len(topics) < 4 {
		return
	}
	if topics[0] != orderFilledTopic {
		return
	}

	maker := extractAddress(topics[2])
	taker := extractAddress(topics[3])

	makerIsWhale := c.isWhale(maker)
	takerIsWhale := c.isWhale(taker)
	if !makerIsWhale && !takerIsWhale {
		return
	}

	data := strings.TrimPrefix(msg.Params.Result.Data, "0x")
	if len(data) < 320 {
		log.Warn().Int("data_len", len(data)).Msg("chain event: data too short for OrderFilled")
		return
	}

	makerAssetHex := data[0:64]
	takerAssetHex := data[64:128]
	makerAmount := parseUint256Decimal(data[128:192], usdcDecimals)
	takerAmount := parseUint256Decimal(data[192:256], usdcDecimals)

	var wallet, assetID string
	var side types.Side
	var size, price decimal.Decimal

	if makerIsWhale {
		wallet, side, assetID, size, price = determineTradeParams(maker, true, makerAssetHex, takerAssetHex, makerAmount, takerAmount)
	} else {
		wallet, side, assetID, size, price = determineTradeParams(taker, false, makerAssetHex, takerAssetHex, makerAmount, takerAmount)
	}

	event := types.TradeEvent{
		Wallet:    wallet,
		MarketID:  assetID,
		AssetID:   assetID,
		Side:      side,
		Size:      size,
		Price:     price,
		Notional:  size.Mul(price),
		Timestamp: time.Now(),
	}

	log.Info().Str("wallet", wallet).Str("side", string(side)).
		Str("size", size.String()).Str("price", price.String()).
		Msg("chain event: whale trade detected")

	select {
	case c.out <- event:
	default:
		log.Warn().Str("wallet", wallet).Msg("chain listener: trade event channel full, dropping")
	}
}

// extractAddress pulls a 20-byte address out of a 32-byte zero-padded topic.
func extractAddress(topic string) string {
	return strings.ToLower(common.HexToAddress(topic).Hex())
}

// parseUint256Decimal parses a 64-char hex uint256 into a fixed-point
// Decimal with the given number of decimal places.
func parseUint256Decimal(hex string, decimals int32) decimal.Decimal {
	value := new(big.Int)
	if _, ok := value.SetString(hex, 16); !ok {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, 0).Shift(-decimals)
}

// isZeroAsset reports whether a hex-encoded uint256 asset id is the zero
// value, which represents the USDC leg of an OrderFilled event.
func isZeroAsset(hex string) bool {
	return strings.Trim(hex, "0") == ""
}

// formatAssetID renders a 64-char hex uint256 as its base-10 string — ERC-1155
// token ids are full 256-bit values that overflow a machine int, so this uses
// math/big (the idiomatic Go tool for arbitrary-precision integers; no pack
// library does hex-to-decimal conversion better) rather than porting the
// original's manual digit-wise BCD algorithm.
func formatAssetID(hex string) string {
	value := new(big.Int)
	if _, ok := value.SetString(hex, 16); !ok {
		return "0"
	}
	return value.String()
}

// determineTradeParams derives (wallet, side, assetID, size, price) from a
// single OrderFilled log, depending on whether the tracked whale was the
// maker or the taker of the fill. A BUY of outcome tokens means giving USDC
// (the zero asset id) and receiving outcome tokens; a SELL is the reverse.
func determineTradeParams(whaleAddr string, isMaker bool, makerAssetHex, takerAssetHex string, makerAmount, takerAmount decimal.Decimal) (wallet string, side types.Side, assetID string, size, price decimal.Decimal) {
	makerAssetIsZero := isZeroAsset(makerAssetHex)
	takerAssetIsZero := isZeroAsset(takerAssetHex)

	if isMaker {
		if makerAssetIsZero {
			return whaleAddr, types.Buy, formatAssetID(takerAssetHex), takerAmount, safeDivide(makerAmount, takerAmount)
		}
		return whaleAddr, types.Sell, formatAssetID(makerAssetHex), makerAmount, safeDivide(takerAmount, makerAmount)
	}

	if takerAssetIsZero {
		return whaleAddr, types.Buy, formatAssetID(makerAssetHex), makerAmount, safeDivide(takerAmount, makerAmount)
	}
	return whaleAddr, types.Sell, formatAssetID(takerAssetHex), takerAmount, safeDivide(makerAmount, takerAmount)
}

func safeDivide(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return numerator.Div(denominator)
}

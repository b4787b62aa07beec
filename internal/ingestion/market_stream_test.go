package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polybot/types"
)

func TestParseTradesLegacyArray(t *testing.T) {
	raw := []byte(`[{"market":"m1","asset_id":"a1","side":"BUY","size":"10","price":"0.5","timestamp":"1700000000"}]`)
	trades := parseTrades(raw)
	require.Len(t, trades, 1)
	require.Equal(t, "m1", trades[0].Market)
}

func TestParseTradesWrappedData(t *testing.T) {
	raw := []byte(`{"data":[{"market":"m2","asset_id":"a2","side":"SELL","size":"5","price":"0.4"}]}`)
	trades := parseTrades(raw)
	require.Len(t, trades, 1)
	require.Equal(t, "m2", trades[0].Market)
}

func TestParseTradesSingleNewShape(t *testing.T) {
	raw := []byte(`{"event_type":"last_trade_price","market":"m3","asset_id":"a3","side":"BUY","size":"3","price":"0.6"}`)
	trades := parseTrades(raw)
	require.Len(t, trades, 1)
	require.Equal(t, "last_trade_price", trades[0].EventType)
}

func TestParseTradesIgnoresNonTradeMessage(t *testing.T) {
	raw := []byte(`{"event_type":"price_change","market":"m4"}`)
	trades := parseTrades(raw)
	require.Empty(t, trades)
}

func TestConvertTradeAttributesSentinelWallet(t *testing.T) {
	ws := wsTrade{Market: "m1", AssetID: "a1", Side: "BUY", Size: "10", Price: "0.5", Timestamp: "1700000000"}
	event, ok := convertTrade(ws)
	require.True(t, ok)
	require.Equal(t, types.SentinelWallet, event.Wallet)
	require.True(t, event.Notional.Equal(event.Size.Mul(event.Price)))
	require.Equal(t, types.Buy, event.Side)
}

func TestConvertTradeRejectsUnknownSide(t *testing.T) {
	ws := wsTrade{Market: "m1", AssetID: "a1", Side: "", EventType: "book"}
	_, ok := convertTrade(ws)
	require.False(t, ok)
}

func TestParseTimestampEpochSeconds(t *testing.T) {
	got := parseTimestamp("1700000000")
	require.Equal(t, int64(1700000000), got.Unix())
}

func TestParseTimestampRFC3339(t *testing.T) {
	got := parseTimestamp("2024-01-01T00:00:00Z")
	require.Equal(t, 2024, got.Year())
}

func TestParseTimestampFallsBackToNow(t *testing.T) {
	got := parseTimestamp("")
	require.WithinDuration(t, time.Now(), got, 5*time.Second)
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	require.Equal(t, 2*time.Second, backoffDelay(0))
	require.Equal(t, 4*time.Second, backoffDelay(1))
	require.Equal(t, 8*time.Second, backoffDelay(2))
	require.Equal(t, maxReconnectDelay, backoffDelay(10))
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RuntimeOverridable is the closed allow-list of keys the store-backed
// runtime_config table is permitted to mutate (§8). Anything else read from
// that table is ignored.
var RuntimeOverridable = map[string]bool{
	"tracked_whale_min_notional":  true,
	"min_resolved_for_signal":     true,
	"min_total_trades_for_signal": true,
	"min_signal_notional":         true,
	"max_signal_notional":         true,
	"min_signal_ev":               true,
	"min_signal_win_rate":         true,
	"assumed_slippage_pct":        true,
	"signal_dedup_window_secs":    true,
	"bankroll":                    true,
}

// SignalConfig is the subset of knobs re-read per event by the pipeline (C9).
// Every field here except UntrackedMinNotional and AllowSeededScoreFallback
// is in RuntimeOverridable and may be overridden at runtime. The pipeline
// does not read UntrackedMinNotional; it applies its own fixed
// untracked-wallet threshold of 10000.
type SignalConfig struct {
	TrackedWhaleMinNotional  decimal.Decimal
	UntrackedMinNotional     decimal.Decimal
	MinResolvedForSignal     int
	MinTotalTradesForSignal  int
	MinSignalNotional        decimal.Decimal
	MaxSignalNotional        decimal.Decimal
	AssumedSlippagePct       decimal.Decimal
	MinSignalEV              decimal.Decimal
	MinSignalWinRate         decimal.Decimal
	SignalDedupWindowSecs    int
	Bankroll                 decimal.Decimal
	AllowSeededScoreFallback bool
}

// Config is the full set of startup knobs for the copy-trading engine.
type Config struct {
	Debug  bool
	DryRun bool

	// Persistence
	DatabaseURL  string // postgres://... ; empty falls back to sqlite
	DatabasePath string // sqlite file path when DatabaseURL is empty
	RedisURL     string // optional; enables the distributed dedup gate

	// Telegram notifier
	TelegramToken  string
	TelegramChatID int64

	// HTTP API
	HTTPAddr   string
	AuthToken  string // static bearer token; empty disables auth

	// Upstream Polymarket endpoints
	GammaAPIURL string
	CLOBAPIURL  string
	DataAPIURL  string
	MarketWSURL string
	ChainWSURL  string

	// Wallet / signing
	WalletPrivateKey string
	WalletAddress    string
	ChainID          int64

	// Capital & sizing
	Bankroll       decimal.Decimal
	SizingStrategy string
	BaseOrderSize  decimal.Decimal
	BalanceSyncSecs int

	// Risk limits (C7)
	MaxPositionPct        decimal.Decimal
	MaxOpenPositions      int
	MaxDailyLoss          decimal.Decimal
	MinSpreadToResolution decimal.Decimal
	MaxSlippagePct        decimal.Decimal

	// Default SL/TP (whole-percent decimals, e.g. 15.00 = 15%)
	DefaultStopLossPct   decimal.Decimal
	DefaultTakeProfitPct decimal.Decimal

	// Signal thresholds (mutable subset lives in Signal)
	Signal SignalConfig

	// Market discovery (C17)
	MarketDiscoveryIntervalSecs int
	MinMarketVolume             decimal.Decimal
	MinMarketLiquidity          decimal.Decimal

	// Wallet poller (C10b)
	WalletPollIntervalSecs int
	WalletPollTradeCount   int

	// Chain listener (C10c)
	WhaleRefreshIntervalSecs int

	// Fill poller (C13)
	FillPollIntervalSecs int
	OrderStaleSecs       int

	// Position monitor (C14)
	PositionMonitorIntervalSecs int

	// Resolution poller (C15)
	ResolutionIntervalSecs int
	ResolutionBatchSize    int

	// Whale seeder (C16)
	SeederIntervalSecs  int
	SeederSkipTopN      int
	SeederMinTrades     int
	SeederRecencyDays   int
	SeederMaxWallets    int
	WhaleMaxInactiveDays int

	PauseOnStart bool
}

// Load reads configuration the way the teacher's bots do: godotenv for a
// local .env, then os.Getenv with typed fallbacks, layered underneath a
// viper-backed config.yaml for the non-secret tunables (intervals, risk
// limits, sizing). viper values win when a key is present in both, so ops
// can retune the engine without redeploying secrets.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // absent config.yaml is not fatal; env still applies

	cfg := &Config{
		Debug:  getEnvBool("DEBUG", false),
		DryRun: getEnvBool("DRY_RUN", true),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "data/copytrader.db"),
		RedisURL:     os.Getenv("REDIS_URL"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		AuthToken: os.Getenv("API_AUTH_TOKEN"),

		GammaAPIURL: getEnv("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		CLOBAPIURL:  getEnv("CLOB_API_URL", "https://clob.polymarket.com"),
		DataAPIURL:  getEnv("DATA_API_URL", "https://data-api.polymarket.com"),
		MarketWSURL: getEnv("MARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		ChainWSURL:  getEnv("CHAIN_WS_URL", "wss://polygon-rpc.com"),

		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		WalletAddress:    os.Getenv("WALLET_ADDRESS"),
		ChainID:          int64(getEnvInt("CHAIN_ID", 137)),

		Bankroll:        getEnvDecimal(v, "bankroll", "BANKROLL", decimal.NewFromInt(1000)),
		SizingStrategy:  getEnvStr(v, "sizing_strategy", "SIZING_STRATEGY", "proportional"),
		BaseOrderSize:   getEnvDecimal(v, "base_order_size", "BASE_ORDER_SIZE", decimal.NewFromInt(50)),
		BalanceSyncSecs: getEnvIntV(v, "balance_sync_secs", "BALANCE_SYNC_SECS", 60),

		MaxPositionPct:        getEnvDecimal(v, "max_position_pct", "MAX_POSITION_PCT", decimal.NewFromFloat(0.20)),
		MaxOpenPositions:      getEnvIntV(v, "max_open_positions", "MAX_OPEN_POSITIONS", 10),
		MaxDailyLoss:          getEnvDecimal(v, "max_daily_loss", "MAX_DAILY_LOSS", decimal.NewFromInt(500)),
		MinSpreadToResolution: getEnvDecimal(v, "min_spread_to_resolution", "MIN_SPREAD_TO_RESOLUTION", decimal.NewFromFloat(0.05)),
		MaxSlippagePct:        getEnvDecimal(v, "max_slippage_pct", "MAX_SLIPPAGE_PCT", decimal.NewFromFloat(0.03)),

		DefaultStopLossPct:   getEnvDecimal(v, "default_stop_loss_pct", "DEFAULT_STOP_LOSS_PCT", decimal.NewFromFloat(15.00)),
		DefaultTakeProfitPct: getEnvDecimal(v, "default_take_profit_pct", "DEFAULT_TAKE_PROFIT_PCT", decimal.NewFromFloat(50.00)),

		Signal: SignalConfig{
			TrackedWhaleMinNotional:  getEnvDecimal(v, "tracked_whale_min_notional", "TRACKED_WHALE_MIN_NOTIONAL", decimal.NewFromInt(5000)),
			UntrackedMinNotional:     decimal.NewFromInt(10000),
			MinResolvedForSignal:     getEnvIntV(v, "min_resolved_for_signal", "MIN_RESOLVED_FOR_SIGNAL", 1),
			MinTotalTradesForSignal:  getEnvIntV(v, "min_total_trades_for_signal", "MIN_TOTAL_TRADES_FOR_SIGNAL", 10),
			MinSignalNotional:        getEnvDecimal(v, "min_signal_notional", "MIN_SIGNAL_NOTIONAL", decimal.NewFromInt(10000)),
			MaxSignalNotional:        getEnvDecimal(v, "max_signal_notional", "MAX_SIGNAL_NOTIONAL", decimal.NewFromInt(1000000)),
			AssumedSlippagePct:       getEnvDecimal(v, "assumed_slippage_pct", "ASSUMED_SLIPPAGE_PCT", decimal.NewFromFloat(0.02)),
			MinSignalEV:              getEnvDecimal(v, "min_signal_ev", "MIN_SIGNAL_EV", decimal.NewFromInt(0)),
			MinSignalWinRate:         getEnvDecimal(v, "min_signal_win_rate", "MIN_SIGNAL_WIN_RATE", decimal.NewFromFloat(0.55)),
			SignalDedupWindowSecs:    getEnvIntV(v, "signal_dedup_window_secs", "SIGNAL_DEDUP_WINDOW_SECS", 30),
			Bankroll:                 decimal.Zero, // filled in below from cfg.Bankroll
			AllowSeededScoreFallback: getEnvBool("ALLOW_SEEDED_SCORE_FALLBACK", true),
		},

		MarketDiscoveryIntervalSecs: getEnvIntV(v, "market_discovery_interval_secs", "MARKET_DISCOVERY_INTERVAL_SECS", 120),
		MinMarketVolume:             getEnvDecimal(v, "min_market_volume", "MIN_MARKET_VOLUME", decimal.NewFromInt(10000)),
		MinMarketLiquidity:          getEnvDecimal(v, "min_market_liquidity", "MIN_MARKET_LIQUIDITY", decimal.NewFromInt(5000)),

		WalletPollIntervalSecs: getEnvIntV(v, "wallet_poll_interval_secs", "WALLET_POLL_INTERVAL_SECS", 15),
		WalletPollTradeCount:   getEnvIntV(v, "wallet_poll_trade_count", "WALLET_POLL_TRADE_COUNT", 20),

		WhaleRefreshIntervalSecs: getEnvIntV(v, "whale_refresh_interval_secs", "WHALE_REFRESH_INTERVAL_SECS", 300),

		FillPollIntervalSecs: getEnvIntV(v, "fill_poll_interval_secs", "FILL_POLL_INTERVAL_SECS", 10),
		OrderStaleSecs:       getEnvIntV(v, "order_stale_secs", "ORDER_STALE_SECS", 300),

		PositionMonitorIntervalSecs: getEnvIntV(v, "position_monitor_interval_secs", "POSITION_MONITOR_INTERVAL_SECS", 30),

		ResolutionIntervalSecs: getEnvIntV(v, "resolution_interval_secs", "RESOLUTION_INTERVAL_SECS", 300),
		ResolutionBatchSize:    getEnvIntV(v, "resolution_batch_size", "RESOLUTION_BATCH_SIZE", 50),

		SeederIntervalSecs:   getEnvIntV(v, "seeder_interval_secs", "SEEDER_INTERVAL_SECS", 6*3600),
		SeederSkipTopN:       getEnvIntV(v, "seeder_skip_top_n", "SEEDER_SKIP_TOP_N", 0),
		SeederMinTrades:      getEnvIntV(v, "seeder_min_trades", "SEEDER_MIN_TRADES", 20),
		SeederRecencyDays:    getEnvIntV(v, "seeder_recency_days", "SEEDER_RECENCY_DAYS", 90),
		SeederMaxWallets:     getEnvIntV(v, "seeder_max_wallets", "SEEDER_MAX_WALLETS", 200),
		WhaleMaxInactiveDays: getEnvIntV(v, "whale_max_inactive_days", "WHALE_MAX_INACTIVE_DAYS", 30),

		PauseOnStart: getEnvBool("PAUSE_ON_START", false),
	}

	cfg.Signal.Bankroll = cfg.Bankroll

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// RiskLimits projects the risk-relevant fields into the pure risk-checker's
// input type (avoids the checker package importing config).
func (c *Config) RiskLimits() (maxPositionPct, maxDailyLoss, minSpread, maxSlippage decimal.Decimal, maxOpenPositions int) {
	return c.MaxPositionPct, c.MaxDailyLoss, c.MinSpreadToResolution, c.MaxSlippagePct, c.MaxOpenPositions
}

// ApplyOverrides merges the closed allow-list of store-backed runtime
// overrides into the signal config, leaving anything not in
// RuntimeOverridable untouched.
func (c *Config) ApplyOverrides(overrides map[string]string) {
	for key, raw := range overrides {
		if !RuntimeOverridable[key] {
			continue
		}
		switch key {
		case "tracked_whale_min_notional":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.TrackedWhaleMinNotional = d
			}
		case "min_resolved_for_signal":
			if i, err := strconv.Atoi(raw); err == nil {
				c.Signal.MinResolvedForSignal = i
			}
		case "min_total_trades_for_signal":
			if i, err := strconv.Atoi(raw); err == nil {
				c.Signal.MinTotalTradesForSignal = i
			}
		case "min_signal_notional":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.MinSignalNotional = d
			}
		case "max_signal_notional":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.MaxSignalNotional = d
			}
		case "min_signal_ev":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.MinSignalEV = d
			}
		case "min_signal_win_rate":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.MinSignalWinRate = d
			}
		case "assumed_slippage_pct":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.AssumedSlippagePct = d
			}
		case "signal_dedup_window_secs":
			if i, err := strconv.Atoi(raw); err == nil {
				c.Signal.SignalDedupWindowSecs = i
			}
		case "bankroll":
			if d, err := decimal.NewFromString(raw); err == nil {
				c.Signal.Bankroll = d
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvStr prefers a viper key (config.yaml), then an env var, then default.
func getEnvStr(v *viper.Viper, viperKey, envKey, defaultValue string) string {
	if v.IsSet(viperKey) {
		return v.GetString(viperKey)
	}
	return getEnv(envKey, defaultValue)
}

// getEnvIntV prefers a viper key, then an env var, then default.
func getEnvIntV(v *viper.Viper, viperKey, envKey string, defaultValue int) int {
	if v.IsSet(viperKey) {
		return v.GetInt(viperKey)
	}
	return getEnvInt(envKey, defaultValue)
}

// getEnvDecimal prefers a viper key, then an env var, then default.
func getEnvDecimal(v *viper.Viper, viperKey, envKey string, defaultValue decimal.Decimal) decimal.Decimal {
	if v.IsSet(viperKey) {
		if d, err := decimal.NewFromString(v.GetString(viperKey)); err == nil {
			return d
		}
	}
	if value := os.Getenv(envKey); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

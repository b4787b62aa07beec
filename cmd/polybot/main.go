// Command polybot is the composition root for the copy-trading engine: it
// wires the store, capital pool, three ingestion sources, signal pipeline,
// copy engine, fill poller, position monitor, resolution poller, whale
// seeder, market discovery, Telegram notifier, and HTTP/WebSocket API into
// one process and runs them until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/exec"
	"github.com/web3guy0/polybot/internal/api"
	"github.com/web3guy0/polybot/internal/capitalpool"
	"github.com/web3guy0/polybot/internal/clientadapter"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/copyengine"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/dataapi"
	"github.com/web3guy0/polybot/internal/dedup"
	"github.com/web3guy0/polybot/internal/discovery"
	"github.com/web3guy0/polybot/internal/executor"
	"github.com/web3guy0/polybot/internal/fillpoller"
	"github.com/web3guy0/polybot/internal/ingestion"
	"github.com/web3guy0/polybot/internal/marketdata"
	"github.com/web3guy0/polybot/internal/notifier"
	"github.com/web3guy0/polybot/internal/pipeline"
	"github.com/web3guy0/polybot/internal/positionmonitor"
	"github.com/web3guy0/polybot/internal/resolution"
	"github.com/web3guy0/polybot/internal/seeder"
	"github.com/web3guy0/polybot/internal/tokenset"
	"github.com/web3guy0/polybot/types"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Bool("dry_run", cfg.DryRun).Msg("🚀 polybot copy-trading engine starting")

	dbPath := cfg.DatabaseURL
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	db, err := database.New(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	execClient, err := exec.NewClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize execution client")
	}

	var notify interface {
		Notify(string)
	}
	if cfg.TelegramToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN unset, notifications are disabled for this run")
		notify = notifier.NoopNotifier{}
	} else {
		notify, err = notifier.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Telegram notifier")
		}
	}

	gammaClient := marketdata.New(cfg.GammaAPIURL)
	dataClient := dataapi.New(cfg.DataAPIURL)

	gate := newDedupGate(cfg.RedisURL)

	pool := capitalpool.New(cfg.Bankroll)
	tokens := tokenset.New()

	tradeEvents := make(chan types.TradeEvent, 1000)
	copySignals := make(chan types.CopySignal, 500)

	riskLimits := types.RiskLimits{
		MaxPositionPct:        cfg.MaxPositionPct,
		MaxOpenPositions:      cfg.MaxOpenPositions,
		MaxDailyLoss:          cfg.MaxDailyLoss,
		MinSpreadToResolution: cfg.MinSpreadToResolution,
		MaxSlippagePct:        cfg.MaxSlippagePct,
	}

	orderExecutor := executor.New(clientadapter.ExecutorBook{Client: execClient}, clientadapter.Trading{Client: execClient}, riskLimits, cfg.DryRun)
	balance := clientadapter.Balance{Client: execClient}

	engine := copyengine.New(db, pool, orderExecutor, balance, notify, copyengine.Config{
		Strategy:             types.SizingStrategyFromString(cfg.SizingStrategy),
		Bankroll:             cfg.Bankroll,
		BaseAmount:           cfg.BaseOrderSize,
		RiskLimits:           riskLimits,
		DryRun:               cfg.DryRun,
		DefaultStopLossPct:   cfg.DefaultStopLossPct,
		DefaultTakeProfitPct: cfg.DefaultTakeProfitPct,
	})

	sharedPaused := &atomic.Bool{}
	monitor := positionmonitor.New(db, clientadapter.MonitorBook{Client: execClient}, clientadapter.Trading{Client: execClient}, notify, cfg.DryRun, sharedPaused)

	fillPoller := fillpoller.New(db, clientadapter.Trading{Client: execClient}, pool, cfg.DefaultStopLossPct, cfg.DefaultTakeProfitPct, time.Duration(cfg.OrderStaleSecs)*time.Second)

	resolutionPoller := resolution.New(db, gammaClient, notify)

	whaleSeeder := seeder.New(db, dataClient, seeder.Config{
		SkipTopN:        cfg.SeederSkipTopN,
		MinTrades:       cfg.SeederMinTrades,
		RecencyDays:     cfg.SeederRecencyDays,
		MaxWallets:      cfg.SeederMaxWallets,
		MaxInactiveDays: cfg.WhaleMaxInactiveDays,
	})

	discoverer := discovery.New(db, gammaClient, tokens, cfg.MinMarketVolume, cfg.MinMarketLiquidity)

	marketStream := ingestion.NewMarketStream(cfg.MarketWSURL, tokens, tradeEvents)
	walletPoller := ingestion.NewWalletPoller(db, dataClient, tradeEvents, cfg.WalletPollTradeCount)
	chainListener := ingestion.NewChainListener(cfg.ChainWSURL, db, tradeEvents)

	proc := pipeline.New(db, cfg, gate)

	pause := enginePauser{engine: engine, shared: sharedPaused}
	if cfg.PauseOnStart {
		pause.Pause()
	}

	httpAPI := api.New(cfg.HTTPAddr, db, pause, execClient, monitor, cfg.AuthToken)
	engine.SetBroadcaster(httpAPI)
	monitor.SetBroadcaster(httpAPI)
	proc.SetBroadcaster(httpAPI)
	fillPoller.SetBroadcaster(httpAPI)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer log.Info().Str("task", name).Msg("task stopped")
			fn(ctx)
		}()
	}

	run("market_stream", marketStream.Run)
	run("wallet_poller", func(ctx context.Context) { walletPoller.Run(ctx, time.Duration(cfg.WalletPollIntervalSecs)*time.Second) })
	run("chain_listener", chainListener.Run)
	run("pipeline", func(ctx context.Context) { proc.Run(ctx, tradeEvents, copySignals) })
	run("copy_engine", func(ctx context.Context) { engine.Run(ctx, copySignals) })
	run("fill_poller", func(ctx context.Context) { fillPoller.Run(ctx, time.Duration(cfg.FillPollIntervalSecs)*time.Second) })
	run("position_monitor", func(ctx context.Context) { monitor.Run(ctx, time.Duration(cfg.PositionMonitorIntervalSecs)*time.Second) })
	run("resolution_poller", func(ctx context.Context) {
		resolutionPoller.Run(ctx, time.Duration(cfg.ResolutionIntervalSecs)*time.Second)
	})
	run("whale_seeder", func(ctx context.Context) { whaleSeeder.Run(ctx, time.Duration(cfg.SeederIntervalSecs)*time.Second) })
	run("market_discovery", func(ctx context.Context) {
		discoverer.Run(ctx, time.Duration(cfg.MarketDiscoveryIntervalSecs)*time.Second)
	})
	run("balance_sync", func(ctx context.Context) { runBalanceSync(ctx, pool, execClient, time.Duration(cfg.BalanceSyncSecs)*time.Second) })
	run("http_api", func(ctx context.Context) {
		if err := httpAPI.Run(ctx); err != nil {
			log.Error().Err(err).Msg("http api exited with error")
		}
	})

	log.Info().Msg("✅ all tasks started")

	<-ctx.Done()
	log.Info().Msg("🛑 shutdown signal received, waiting for tasks to drain")
	wg.Wait()
	log.Info().Msg("👋 goodbye")
}

// enginePauser bridges the copy engine's own pause flag and the position
// monitor's shared atomic.Bool so a single control command freezes both
// loops, as required by §5's shared pause-flag resource.
type enginePauser struct {
	engine *copyengine.Engine
	shared *atomic.Bool
}

func (p enginePauser) Pause()       { p.engine.Pause(); p.shared.Store(true) }
func (p enginePauser) Resume()      { p.engine.Resume(); p.shared.Store(false) }
func (p enginePauser) Paused() bool { return p.engine.Paused() }

// runBalanceSync re-calibrates the capital pool from the on-chain/CLOB
// balance on a fixed interval, matching §5's "balance syncer (60s): writes
// to capital_pool.sync_balance; never blocks the copy engine".
func runBalanceSync(ctx context.Context, pool *capitalpool.Pool, client *exec.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	doSync := func() {
		balance, err := client.GetBalance()
		if err != nil {
			log.Warn().Err(err).Msg("balance sync: failed to fetch balance")
			return
		}
		pool.SyncBalance(balance)
	}
	doSync()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			doSync()
		}
	}
}

func newDedupGate(redisURL string) dedup.Gate {
	if redisURL == "" {
		return dedup.NewMemGate()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, falling back to in-process dedup gate")
		return dedup.NewMemGate()
	}
	client := redis.NewClient(opts)
	log.Info().Msg("🔁 dedup gate backed by Redis")
	return dedup.NewRedisGate(client)
}

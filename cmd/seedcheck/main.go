// Command seedcheck runs a single whale-discovery pass against the live
// leaderboard and prints the resulting active-whale roster, for
// operational debugging of the seeder (C16) outside its normal 6h ticker.
// Adapted from the teacher's cmd/fetch_trades, which ran a single
// one-shot CLOB query and dumped a report to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/dataapi"
	"github.com/web3guy0/polybot/internal/seeder"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	dbPath := cfg.DatabaseURL
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	db, err := database.New(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	dataClient := dataapi.New(cfg.DataAPIURL)

	whaleSeeder := seeder.New(db, dataClient, seeder.Config{
		SkipTopN:        cfg.SeederSkipTopN,
		MinTrades:       cfg.SeederMinTrades,
		RecencyDays:     cfg.SeederRecencyDays,
		MaxWallets:      cfg.SeederMaxWallets,
		MaxInactiveDays: cfg.WhaleMaxInactiveDays,
	})

	fmt.Println("🐋 running single whale-seeder pass...")
	whaleSeeder.RunOnce()

	whales, err := db.GetActiveWhales()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch active whales")
	}

	fmt.Printf("\n📊 ACTIVE WHALES - Total: %d\n\n", len(whales))
	fmt.Println("═══════════════════════════════════════════════════════════════════════")
	fmt.Println("│ ADDRESS                                    │ CLASS        │ WIN RATE │ PNL")
	fmt.Println("═══════════════════════════════════════════════════════════════════════")
	hundred := decimal.NewFromInt(100)
	for _, w := range whales {
		fmt.Printf("│ %-42s │ %-12s │ %7s%% │ %s\n",
			w.Address, w.Classification, w.WinRate.Mul(hundred).StringFixed(1), w.TotalPnL.StringFixed(2))
	}
	fmt.Println("═══════════════════════════════════════════════════════════════════════")
}

// Package database is the store adapter (C2): transactional persistence of
// whales, trades, orders, positions, baskets, market outcomes, and runtime
// config overrides. Dual-backend (Postgres/SQLite) via GORM, following the
// teacher's dispatch-on-DSN pattern.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/polybot/types"
)

type Database struct {
	db *gorm.DB
}

// ─────────────────────────────── Models ───────────────────────────────

// Whale is a tracked wallet (§3).
type Whale struct {
	ID             uuid.UUID `gorm:"primaryKey;type:uuid"`
	Address        string    `gorm:"uniqueIndex"`
	Label          string
	Classification string          `gorm:"index"`
	Category       string          `gorm:"index"` // politics|crypto|sports|unknown
	Sharpe         decimal.Decimal `gorm:"type:decimal(20,6)"`
	WinRate        decimal.Decimal `gorm:"type:decimal(10,6)"`
	KellyFraction  decimal.Decimal `gorm:"type:decimal(10,6)"`
	ExpectedValue  decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalTrades    int
	TotalPnL       decimal.Decimal `gorm:"type:decimal(20,6)"`
	IsActive       bool            `gorm:"index;default:true"`
	LastTradeAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WhaleTrade is a single observed trade by a whale (§3).
type WhaleTrade struct {
	ID       uuid.UUID `gorm:"primaryKey;type:uuid"`
	WhaleID  uuid.UUID `gorm:"index;type:uuid"`
	MarketID string    `gorm:"index"`
	TokenID  string    `gorm:"index"`
	Side     string
	Size     decimal.Decimal `gorm:"type:decimal(30,8)"`
	Price    decimal.Decimal `gorm:"type:decimal(10,6)"`
	Notional decimal.Decimal `gorm:"type:decimal(20,6)"`
	TradedAt time.Time       `gorm:"index"`
}

func (WhaleTrade) TableName() string { return "whale_trades" }

// MarketOutcome is a market's resolution state (§3).
type MarketOutcome struct {
	MarketID   string `gorm:"primaryKey"`
	TokenID    string
	Outcome    string `gorm:"index"` // unresolved|resolved_yes|resolved_no
	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (MarketOutcome) TableName() string { return "market_outcomes" }

// Position is an open or closed token holding (§3).
type Position struct {
	ID               uuid.UUID `gorm:"primaryKey;type:uuid"`
	MarketID         string    `gorm:"index"`
	TokenID          string    `gorm:"index"` // partial-uniqueness on (token_id) while open/exiting enforced by raw-SQL index below
	Outcome          string
	Size             decimal.Decimal `gorm:"type:decimal(30,8)"`
	AvgEntryPrice    decimal.Decimal `gorm:"type:decimal(10,6)"`
	CurrentPrice     *decimal.Decimal `gorm:"type:decimal(10,6)"`
	UnrealizedPnL    *decimal.Decimal `gorm:"type:decimal(20,6)"`
	RealizedPnL      *decimal.Decimal `gorm:"type:decimal(20,6)"`
	Status           string           `gorm:"index"` // open|exiting|closed
	ExitReason       string
	StopLossPct      *decimal.Decimal `gorm:"type:decimal(10,4)"`
	TakeProfitPct    *decimal.Decimal `gorm:"type:decimal(10,4)"`
	OpenedAt         time.Time
	ClosedAt         *time.Time
}

func (Position) TableName() string { return "positions" }

// CopyOrder is an outgoing order we placed (§3).
type CopyOrder struct {
	ID              uuid.UUID  `gorm:"primaryKey;type:uuid"`
	WhaleTradeID    *uuid.UUID `gorm:"type:uuid"`
	MarketID        string     `gorm:"index"`
	TokenID         string     `gorm:"index"`
	Side            string
	Size            decimal.Decimal `gorm:"type:decimal(30,8)"`
	TargetPrice     decimal.Decimal `gorm:"type:decimal(10,6)"`
	FillPrice       *decimal.Decimal `gorm:"type:decimal(10,6)"`
	Slippage        *decimal.Decimal `gorm:"type:decimal(10,6)"`
	Status          string           `gorm:"index"` // pending|submitted|filled|cancelled|failed
	Strategy        string
	ErrorMessage    string
	ExternalOrderID string
	PlacedAt        time.Time
	FilledAt        *time.Time
}

func (CopyOrder) TableName() string { return "copy_orders" }

// WhaleBasket is a named group of whales with a consensus policy (§3).
type WhaleBasket struct {
	ID                 uuid.UUID `gorm:"primaryKey;type:uuid"`
	Name                string    `gorm:"uniqueIndex"`
	Category            string
	ConsensusThreshold  decimal.Decimal `gorm:"type:decimal(10,6)"`
	TimeWindowHours     int
	MinWallets          int
	MaxWallets          int
	IsActive            bool `gorm:"default:true"`
	CreatedAt           time.Time
}

func (WhaleBasket) TableName() string { return "whale_baskets" }

// BasketWallet is the many-to-many join between baskets and whales.
type BasketWallet struct {
	BasketID uuid.UUID `gorm:"primaryKey;type:uuid"`
	WhaleID  uuid.UUID `gorm:"primaryKey;type:uuid"`
	JoinedAt time.Time
}

func (BasketWallet) TableName() string { return "basket_wallets" }

// ConsensusSignal is an audit record of a triggered basket agreement (§3).
type ConsensusSignal struct {
	ID            uuid.UUID `gorm:"primaryKey;type:uuid"`
	BasketID      uuid.UUID `gorm:"index;type:uuid"`
	MarketID      string    `gorm:"index"`
	Direction     string
	ConsensusPct  decimal.Decimal `gorm:"type:decimal(10,6)"`
	Participating int
	Total         int
	TriggeredAt   time.Time
}

func (ConsensusSignal) TableName() string { return "consensus_signals" }

// RuntimeConfigOverride is a store-backed mutable-at-runtime knob (§3).
type RuntimeConfigOverride struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (RuntimeConfigOverride) TableName() string { return "runtime_config" }

// ActiveMarket is a dashboard-facing summary of a discovered, tradable market.
type ActiveMarket struct {
	ConditionID  string `gorm:"primaryKey"`
	Question     string
	Volume       decimal.Decimal `gorm:"type:decimal(20,2)"`
	Liquidity    decimal.Decimal `gorm:"type:decimal(20,2)"`
	EndDateISO   string
	ClobTokenIDs string
	Slug         string
	Outcomes     string
	Category     string
	UpdatedAt    time.Time
}

func (ActiveMarket) TableName() string { return "active_markets" }

// ─────────────────────────────── Construction ───────────────────────────────

// New opens the store, dispatching to Postgres when dbPath looks like a
// connection URL, else SQLite, matching the teacher's New(dbPath) pattern.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("📦 database connected (postgres)")
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("📦 database initialized (sqlite)")
	}

	if err := db.AutoMigrate(
		&Whale{}, &WhaleTrade{}, &MarketOutcome{}, &Position{}, &CopyOrder{},
		&WhaleBasket{}, &BasketWallet{}, &ConsensusSignal{}, &RuntimeConfigOverride{},
		&ActiveMarket{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	// GORM struct tags cannot express a partial unique index; enforce
	// "at most one open/exiting position per token_id" (§9) directly.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_position_token_open
		ON positions (token_id) WHERE status IN ('open','exiting')`).Error; err != nil {
		log.Warn().Err(err).Msg("could not create partial unique index on positions.token_id")
	}

	return &Database{db: db}, nil
}

// ─────────────────────────────── Whale operations ───────────────────────────────

// UpsertWhale inserts the wallet if unseen, idempotent on address.
func (d *Database) UpsertWhale(address string) (*Whale, error) {
	var w Whale
	err := d.db.Where("address = ?", address).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	w = Whale{
		ID:             uuid.New(),
		Address:        address,
		Classification: string(types.ClassInformed),
		Category:       string(types.CategoryUnknown),
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := d.db.Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (d *Database) GetWhale(id uuid.UUID) (*Whale, error) {
	var w Whale
	err := d.db.First(&w, "id = ?", id).Error
	return &w, err
}

func (d *Database) GetWhaleByAddress(address string) (*Whale, error) {
	var w Whale
	err := d.db.First(&w, "address = ?", address).Error
	return &w, err
}

func (d *Database) GetActiveWhales() ([]Whale, error) {
	var whales []Whale
	err := d.db.Where("is_active = ?", true).Find(&whales).Error
	return whales, err
}

func (d *Database) TouchWhaleLastTrade(id uuid.UUID, at time.Time) error {
	return d.db.Model(&Whale{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_trade_at": at,
		"updated_at":    time.Now(),
	}).Error
}

func (d *Database) UpdateWhaleClassification(id uuid.UUID, classification string) error {
	return d.db.Model(&Whale{}).Where("id = ?", id).Updates(map[string]interface{}{
		"classification": classification,
		"updated_at":     time.Now(),
	}).Error
}

// UpdateWhaleProfile sets classification/category/label together, used by
// the whale seeder (C16) right after a leaderboard-sourced upsert.
func (d *Database) UpdateWhaleProfile(id uuid.UUID, classification, category, label string) error {
	return d.db.Model(&Whale{}).Where("id = ?", id).Updates(map[string]interface{}{
		"classification": classification,
		"category":       category,
		"label":          label,
		"updated_at":     time.Now(),
	}).Error
}

func (d *Database) UpdateWhaleScores(id uuid.UUID, score types.WalletScore) error {
	return d.db.Model(&Whale{}).Where("id = ?", id).Updates(map[string]interface{}{
		"sharpe":         score.Sharpe,
		"win_rate":       score.WinRate,
		"kelly_fraction": score.KellyFraction,
		"expected_value": score.ExpectedValue,
		"total_trades":   score.TotalTrades,
		"total_pnl":      score.TotalPnL,
		"updated_at":     time.Now(),
	}).Error
}

func (d *Database) DeactivateWhale(id uuid.UUID) error {
	return d.db.Model(&Whale{}).Where("id = ?", id).Update("is_active", false).Error
}

// GetAllWhaleAddresses returns every tracked address, active or not, so the
// seeder (C16) can skip wallets it has already discovered even after they
// were deactivated by the sweeper.
func (d *Database) GetAllWhaleAddresses() ([]string, error) {
	var addresses []string
	err := d.db.Model(&Whale{}).Pluck("address", &addresses).Error
	return addresses, err
}

// DeactivateStaleWhales sweeps whales whose last_trade_at (or created_at if
// never traded) is older than maxInactiveDays (C16 phase 1).
func (d *Database) DeactivateStaleWhales(maxInactiveDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -maxInactiveDays)
	res := d.db.Model(&Whale{}).
		Where("is_active = ?", true).
		Where("(last_trade_at IS NOT NULL AND last_trade_at < ?) OR (last_trade_at IS NULL AND created_at < ?)", cutoff, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// ─────────────────────────────── WhaleTrade operations ───────────────────────────────

// InsertTrade persists a trade, idempotent on (whale_id, token_id, traded_at, side).
func (d *Database) InsertTrade(whaleID uuid.UUID, marketID, tokenID string, side types.Side, size, price, notional decimal.Decimal, tradedAt time.Time) (*WhaleTrade, error) {
	var existing WhaleTrade
	err := d.db.Where("whale_id = ? AND token_id = ? AND traded_at = ? AND side = ?", whaleID, tokenID, tradedAt, string(side)).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	t := WhaleTrade{
		ID:       uuid.New(),
		WhaleID:  whaleID,
		MarketID: marketID,
		TokenID:  tokenID,
		Side:     string(side),
		Size:     size,
		Price:    price,
		Notional: notional,
		TradedAt: tradedAt,
	}
	if err := d.db.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *Database) GetTradesByWhale(whaleID uuid.UUID) ([]WhaleTrade, error) {
	var trades []WhaleTrade
	err := d.db.Where("whale_id = ?", whaleID).Order("traded_at ASC").Find(&trades).Error
	return trades, err
}

// GetMostRecentTradeInMarket returns the whale's latest trade in a market
// within the given window, used by the consensus vote collector (§4.5/§4.9).
func (d *Database) GetMostRecentTradeInMarket(whaleID uuid.UUID, marketID string, since time.Time) (*WhaleTrade, error) {
	var t WhaleTrade
	err := d.db.Where("whale_id = ? AND market_id = ? AND traded_at >= ?", whaleID, marketID, since).
		Order("traded_at DESC").First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ─────────────────────────────── MarketOutcome operations ───────────────────────────────

func (d *Database) EnsureMarketOutcome(marketID, tokenID string) (*MarketOutcome, error) {
	var mo MarketOutcome
	err := d.db.Where("market_id = ?", marketID).First(&mo).Error
	if err == nil {
		return &mo, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	mo = MarketOutcome{
		MarketID:  marketID,
		TokenID:   tokenID,
		Outcome:   string(types.ResolutionUnresolved),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := d.db.Create(&mo).Error; err != nil {
		return nil, err
	}
	return &mo, nil
}

func (d *Database) GetMarketOutcome(marketID string) (*MarketOutcome, error) {
	var mo MarketOutcome
	err := d.db.First(&mo, "market_id = ?", marketID).Error
	return &mo, err
}

func (d *Database) GetUnresolvedMarkets(limit int) ([]MarketOutcome, error) {
	var markets []MarketOutcome
	err := d.db.Where("outcome = ?", string(types.ResolutionUnresolved)).Limit(limit).Find(&markets).Error
	return markets, err
}

// ResolveMarket transitions unresolved -> resolved_{yes,no}, once.
func (d *Database) ResolveMarket(marketID string, outcome types.MarketResolution) error {
	now := time.Now()
	return d.db.Model(&MarketOutcome{}).
		Where("market_id = ? AND outcome = ?", marketID, string(types.ResolutionUnresolved)).
		Updates(map[string]interface{}{
			"outcome":     string(outcome),
			"resolved_at": &now,
			"updated_at":  now,
		}).Error
}

// ─────────────────────────────── Position operations ───────────────────────────────

// UpsertPosition locates the open/exiting position on token_id or creates
// one, updating the weighted-average entry price on an additional fill.
func (d *Database) UpsertPosition(marketID, tokenID string, outcome types.Outcome, side types.Side, size, price decimal.Decimal) (*Position, error) {
	var pos Position
	err := d.db.Where("token_id = ? AND status IN ('open','exiting')", tokenID).First(&pos).Error
	if err == gorm.ErrRecordNotFound {
		pos = Position{
			ID:            uuid.New(),
			MarketID:      marketID,
			TokenID:       tokenID,
			Outcome:       string(outcome),
			Size:          size,
			AvgEntryPrice: price,
			Status:        string(types.PositionOpen),
			OpenedAt:      time.Now(),
		}
		if err := d.db.Create(&pos).Error; err != nil {
			return nil, err
		}
		return &pos, nil
	}
	if err != nil {
		return nil, err
	}

	if side == types.Sell {
		newSize := pos.Size.Sub(size)
		if newSize.LessThanOrEqual(decimal.Zero) {
			return nil, d.db.Delete(&pos).Error
		}
		pos.Size = newSize
	} else {
		totalCost := pos.AvgEntryPrice.Mul(pos.Size).Add(price.Mul(size))
		newSize := pos.Size.Add(size)
		pos.AvgEntryPrice = totalCost.Div(newSize)
		pos.Size = newSize
	}
	if err := d.db.Save(&pos).Error; err != nil {
		return nil, err
	}
	return &pos, nil
}

func (d *Database) SetPositionSLTP(id uuid.UUID, stopLossPct, takeProfitPct decimal.Decimal) error {
	return d.db.Model(&Position{}).Where("id = ?", id).Updates(map[string]interface{}{
		"stop_loss_pct":   stopLossPct,
		"take_profit_pct": takeProfitPct,
	}).Error
}

func (d *Database) GetOpenPositions() ([]Position, error) {
	var positions []Position
	err := d.db.Where("status = ?", string(types.PositionOpen)).Find(&positions).Error
	return positions, err
}

func (d *Database) GetPositionByID(id uuid.UUID) (*Position, error) {
	var pos Position
	err := d.db.First(&pos, "id = ?", id).Error
	return &pos, err
}

func (d *Database) GetExitingPositionByToken(tokenID string) (*Position, error) {
	var pos Position
	err := d.db.Where("token_id = ? AND status = ?", tokenID, string(types.PositionExiting)).First(&pos).Error
	return &pos, err
}

func (d *Database) GetPositionsForMarket(marketID string) ([]Position, error) {
	var positions []Position
	err := d.db.Where("market_id = ? AND status IN ('open','exiting')", marketID).Find(&positions).Error
	return positions, err
}

func (d *Database) CountOpenPositions() (int, error) {
	var count int64
	err := d.db.Model(&Position{}).Where("status IN ('open','exiting')").Count(&count).Error
	return int(count), err
}

func (d *Database) UpdatePositionPriceAndPnL(id uuid.UUID, currentPrice, unrealizedPnL decimal.Decimal) error {
	return d.db.Model(&Position{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_price":  currentPrice,
		"unrealized_pnl": unrealizedPnL,
	}).Error
}

func (d *Database) MarkPositionExiting(id uuid.UUID, reason types.ExitReason) error {
	return d.db.Model(&Position{}).Where("id = ? AND status = ?", id, string(types.PositionOpen)).Updates(map[string]interface{}{
		"status":      string(types.PositionExiting),
		"exit_reason": string(reason),
	}).Error
}

// ClosePositionWithReason transitions a position to closed, recording
// realized PnL and the terminal exit reason. Monotone: only from open/exiting.
func (d *Database) ClosePositionWithReason(id uuid.UUID, realizedPnL decimal.Decimal, reason types.ExitReason) error {
	now := time.Now()
	return d.db.Model(&Position{}).Where("id = ? AND status IN ('open','exiting')", id).Updates(map[string]interface{}{
		"status":       string(types.PositionClosed),
		"realized_pnl": realizedPnL,
		"exit_reason":  string(reason),
		"closed_at":    &now,
	}).Error
}

// DailyRealizedPnL sums realized_pnl for positions closed since midnight UTC,
// feeding the risk checker's PortfolioSnapshot.DailyPnL (§4.7).
func (d *Database) DailyRealizedPnL() (decimal.Decimal, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var result struct{ Total decimal.Decimal }
	err := d.db.Model(&Position{}).
		Where("status = ? AND closed_at >= ?", string(types.PositionClosed), today).
		Select("COALESCE(SUM(realized_pnl), 0) as total").Scan(&result).Error
	return result.Total, err
}

// ─────────────────────────────── CopyOrder operations ───────────────────────────────

func (d *Database) InsertOrder(whaleTradeID *uuid.UUID, marketID, tokenID string, side types.Side, size, targetPrice decimal.Decimal, strategy string) (*CopyOrder, error) {
	o := CopyOrder{
		ID:           uuid.New(),
		WhaleTradeID: whaleTradeID,
		MarketID:     marketID,
		TokenID:      tokenID,
		Side:         string(side),
		Size:         size,
		TargetPrice:  targetPrice,
		Status:       string(types.OrderPending),
		Strategy:     strategy,
		PlacedAt:     time.Now(),
	}
	if err := d.db.Create(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (d *Database) MarkOrderSubmitted(id uuid.UUID, externalOrderID string) error {
	return d.db.Model(&CopyOrder{}).Where("id = ? AND status = ?", id, string(types.OrderPending)).Updates(map[string]interface{}{
		"status":            string(types.OrderSubmitted),
		"external_order_id": externalOrderID,
	}).Error
}

func (d *Database) FillOrder(id uuid.UUID, fillPrice, slippage decimal.Decimal) error {
	now := time.Now()
	return d.db.Model(&CopyOrder{}).Where("id = ? AND status NOT IN ('filled','cancelled','failed')", id).Updates(map[string]interface{}{
		"status":     string(types.OrderFilled),
		"fill_price": fillPrice,
		"slippage":   slippage,
		"filled_at":  &now,
	}).Error
}

func (d *Database) FailOrder(id uuid.UUID, message string) error {
	return d.db.Model(&CopyOrder{}).Where("id = ? AND status NOT IN ('filled','cancelled','failed')", id).Updates(map[string]interface{}{
		"status":        string(types.OrderFailed),
		"error_message": message,
	}).Error
}

func (d *Database) CancelOrder(id uuid.UUID) error {
	return d.db.Model(&CopyOrder{}).Where("id = ? AND status NOT IN ('filled','cancelled','failed')", id).Update("status", string(types.OrderCancelled)).Error
}

func (d *Database) GetSubmittedOrders() ([]CopyOrder, error) {
	var orders []CopyOrder
	err := d.db.Where("status = ?", string(types.OrderSubmitted)).Find(&orders).Error
	return orders, err
}

func (d *Database) GetOrder(id uuid.UUID) (*CopyOrder, error) {
	var o CopyOrder
	err := d.db.First(&o, "id = ?", id).Error
	return &o, err
}

// ─────────────────────────────── Basket operations ───────────────────────────────

func (d *Database) CreateBasket(b *WhaleBasket) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	return d.db.Create(b).Error
}

func (d *Database) GetActiveBaskets() ([]WhaleBasket, error) {
	var baskets []WhaleBasket
	err := d.db.Where("is_active = ?", true).Find(&baskets).Error
	return baskets, err
}

func (d *Database) GetBasketByCategory(category string) (*WhaleBasket, error) {
	var b WhaleBasket
	err := d.db.Where("category = ? AND is_active = ?", category, true).First(&b).Error
	return &b, err
}

func (d *Database) GetBasketsForWhale(whaleID uuid.UUID) ([]WhaleBasket, error) {
	var baskets []WhaleBasket
	err := d.db.Joins("JOIN basket_wallets ON basket_wallets.basket_id = whale_baskets.id").
		Where("basket_wallets.whale_id = ? AND whale_baskets.is_active = ?", whaleID, true).
		Find(&baskets).Error
	return baskets, err
}

func (d *Database) AddWhaleToBasket(basketID, whaleID uuid.UUID) error {
	bw := BasketWallet{BasketID: basketID, WhaleID: whaleID, JoinedAt: time.Now()}
	return d.db.Where("basket_id = ? AND whale_id = ?", basketID, whaleID).FirstOrCreate(&bw).Error
}

func (d *Database) GetActiveBasketMembers(basketID uuid.UUID) ([]Whale, error) {
	var whales []Whale
	err := d.db.Joins("JOIN basket_wallets ON basket_wallets.whale_id = whales.id").
		Where("basket_wallets.basket_id = ? AND whales.is_active = ?", basketID, true).
		Find(&whales).Error
	return whales, err
}

func (d *Database) RecordConsensusSignal(cs *ConsensusSignal) error {
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	cs.TriggeredAt = time.Now()
	return d.db.Create(cs).Error
}

// ─────────────────────────────── Runtime config overrides ───────────────────────────────

func (d *Database) GetRuntimeOverrides() (map[string]string, error) {
	var rows []RuntimeConfigOverride
	if err := d.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (d *Database) SetRuntimeOverride(key, value string) error {
	row := RuntimeConfigOverride{Key: key, Value: value, UpdatedAt: time.Now()}
	return d.db.Save(&row).Error
}

// ─────────────────────────────── Active markets (C17) ───────────────────────────────

func (d *Database) UpsertActiveMarket(m *ActiveMarket) error {
	m.UpdatedAt = time.Now()
	return d.db.Save(m).Error
}

func (d *Database) GetMarketQuestion(marketID string) (string, error) {
	var m ActiveMarket
	err := d.db.Select("question").First(&m, "condition_id = ?", marketID).Error
	if err != nil {
		return "", err
	}
	return m.Question, nil
}

// ─────────────────────────────── Stats ───────────────────────────────

// Stats mirrors the teacher's dashboard aggregate query pattern, adapted to
// whale/order/position metrics.
func (d *Database) Stats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var whaleCount int64
	d.db.Model(&Whale{}).Where("is_active = ?", true).Count(&whaleCount)
	stats["active_whales"] = whaleCount

	var openPositions int64
	d.db.Model(&Position{}).Where("status IN ('open','exiting')").Count(&openPositions)
	stats["open_positions"] = openPositions

	var filledOrders int64
	d.db.Model(&CopyOrder{}).Where("status = ?", string(types.OrderFilled)).Count(&filledOrders)
	stats["orders_filled"] = filledOrders

	var failedOrders int64
	d.db.Model(&CopyOrder{}).Where("status = ?", string(types.OrderFailed)).Count(&failedOrders)
	stats["orders_failed"] = failedOrders

	var result struct{ Total decimal.Decimal }
	d.db.Model(&Position{}).Where("status = ?", string(types.PositionClosed)).
		Select("COALESCE(SUM(realized_pnl), 0) as total").Scan(&result)
	stats["total_realized_pnl"] = result.Total

	return stats, nil
}

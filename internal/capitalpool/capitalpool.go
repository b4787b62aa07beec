// Package capitalpool tracks available capital with reservation semantics
// so concurrent copy signals cannot double-spend the same USDC balance.
package capitalpool

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Pool tracks a total balance and in-flight reservations against it.
// Safe for concurrent use.
type Pool struct {
	mu            sync.Mutex
	totalBalance  decimal.Decimal
	reservations  map[uuid.UUID]decimal.Decimal
}

// New creates a pool seeded with an initial balance.
func New(initialBalance decimal.Decimal) *Pool {
	return &Pool{
		totalBalance: initialBalance,
		reservations: make(map[uuid.UUID]decimal.Decimal),
	}
}

// Available returns total balance minus the sum of all open reservations,
// floored at zero.
func (p *Pool) Available() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableLocked()
}

func (p *Pool) availableLocked() decimal.Decimal {
	reserved := decimal.Zero
	for _, amt := range p.reservations {
		reserved = reserved.Add(amt)
	}
	avail := p.totalBalance.Sub(reserved)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// Reserve holds back capital for a pending order. Returns false if the
// amount exceeds what's currently available.
func (p *Pool) Reserve(orderID uuid.UUID, amount decimal.Decimal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	available := p.availableLocked()
	if amount.GreaterThan(available) {
		log.Warn().
			Str("order_id", orderID.String()).
			Str("required", amount.String()).
			Str("available", available.String()).
			Msg("💰 capital pool: insufficient funds to reserve")
		return false
	}

	p.reservations[orderID] = amount
	log.Debug().
		Str("order_id", orderID.String()).
		Str("amount", amount.String()).
		Str("remaining", available.Sub(amount).String()).
		Msg("💰 capital pool: reserved")
	return true
}

// Release drops a reservation without touching the balance — used when
// an order is cancelled or fails before filling.
func (p *Pool) Release(orderID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount, ok := p.reservations[orderID]; ok {
		delete(p.reservations, orderID)
		log.Debug().
			Str("order_id", orderID.String()).
			Str("amount", amount.String()).
			Msg("💰 capital pool: released reservation")
	}
}

// Confirm locks a reservation's capital permanently into a filled
// position, reducing the total balance by the reserved amount.
func (p *Pool) Confirm(orderID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount, ok := p.reservations[orderID]; ok {
		delete(p.reservations, orderID)
		p.totalBalance = p.totalBalance.Sub(amount)
		log.Debug().
			Str("order_id", orderID.String()).
			Str("amount", amount.String()).
			Str("new_balance", p.totalBalance.String()).
			Msg("💰 capital pool: confirmed fill, balance reduced")
	}
}

// SyncBalance re-calibrates the total balance from an external source of
// truth (e.g. the on-chain USDC balance), keeping open reservations intact.
func (p *Pool) SyncBalance(externalBalance decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.totalBalance
	p.totalBalance = externalBalance
	log.Info().
		Str("old_balance", old.String()).
		Str("new_balance", externalBalance.String()).
		Int("active_reservations", len(p.reservations)).
		Msg("💰 capital pool: synced with external balance")
}

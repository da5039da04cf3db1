package ledger

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"blink-market/internal/events"
	"blink-market/internal/models"
	"blink-market/internal/odds"
)

// Tx is the view of one market inside an atomic scope. It must not escape
// the Update callback.
type Tx struct {
	db     *gorm.DB
	market *models.Market
	now    time.Time
	dirty  bool
	events []events.Event
}

// Market returns the locked market row. Mutations must go through Tx methods
// or be followed by MarkDirty.
func (t *Tx) Market() *models.Market {
	return t.market
}

// DB is the transaction handle for reads and writes of dependent rows.
func (t *Tx) DB() *gorm.DB {
	return t.db
}

// Now is the instant the scope was opened.
func (t *Tx) Now() time.Time {
	return t.now
}

// MarkDirty schedules the market row to be written at commit.
func (t *Tx) MarkDirty() {
	t.dirty = true
}

// Emit queues an event to publish after commit.
func (t *Tx) Emit(typ events.Type, data any) error {
	ev, err := events.New(typ, t.market.ID, data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", typ, err)
	}
	t.events = append(t.events, ev)
	return nil
}

// BetPlacedEvent is the payload of events.BetPlaced.
type BetPlacedEvent struct {
	BetID  string        `json:"bet_id"`
	Bettor string        `json:"bettor"`
	Side   models.Side   `json:"side"`
	Amount models.Amount `json:"amount"`
	Quote  odds.Quote    `json:"quote"`
	Pools  models.Pools  `json:"pools"`
	Board  odds.Board    `json:"board"`
}

// AppendBet inserts a bet at the quoted price and credits the market. It is
// the only way stake enters a pool.
func (t *Tx) AppendBet(bettor string, side models.Side, amount models.Amount, quote odds.Quote) (*models.Bet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if t.market.Status != models.MarketStatusActive {
		return nil, ErrMarketNotActive
	}

	bet := &models.Bet{
		MarketID:  t.market.ID,
		Bettor:    bettor,
		Outcome:   side.Outcome(),
		Amount:    amount,
		Odds:      quote.Odds,
		Timestamp: t.now,
	}
	if err := t.db.Create(bet).Error; err != nil {
		return nil, fmt.Errorf("failed to insert bet: %w", err)
	}

	t.market.Credit(side, amount)
	t.dirty = true

	pools := t.market.Pools()
	if err := t.Emit(events.BetPlaced, BetPlacedEvent{
		BetID:  bet.ID.String(),
		Bettor: bettor,
		Side:   side,
		Amount: amount,
		Quote:  quote,
		Pools:  pools,
		Board:  odds.BoardFor(pools),
	}); err != nil {
		return nil, err
	}
	return bet, nil
}

// Bets loads every bet of the market in admission order.
func (t *Tx) Bets() ([]models.Bet, error) {
	var bets []models.Bet
	if err := t.db.Where("market_id = ?", t.market.ID).
		Order(`"timestamp" ASC`).Order("id ASC").
		Find(&bets).Error; err != nil {
		return nil, fmt.Errorf("failed to load bets: %w", err)
	}
	return bets, nil
}

// Transition moves the market to status. It reports false when the current
// status does not allow it.
func (t *Tx) Transition(to models.MarketStatus) bool {
	if !t.market.Status.CanTransition(to) {
		return false
	}
	t.market.Status = to
	if to.Terminal() {
		now := t.now
		t.market.SettledAt = &now
	}
	t.dirty = true
	return true
}

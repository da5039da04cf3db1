// Package ledger is the authoritative store of market pools and bets. Every
// mutation of a market happens inside Update, which holds the market's lock
// and one database transaction for its whole duration.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blink-market/internal/events"
	"blink-market/internal/locks"
	"blink-market/internal/logger"
	"blink-market/internal/models"
	"blink-market/internal/odds"
	"blink-market/internal/telemetry"
)

type Options struct {
	// MaxRetries bounds how many times a conflicting update is replayed.
	MaxRetries int
	Backoff    time.Duration
	Now        func() time.Time
}

type Ledger struct {
	db      *gorm.DB
	locker  locks.Locker
	pub     events.Publisher
	log     *zap.Logger
	metrics *telemetry.Metrics

	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

func New(db *gorm.DB, locker locks.Locker, pub events.Publisher, log *zap.Logger, metrics *telemetry.Metrics, opts Options) *Ledger {
	if locker == nil {
		locker = locks.NewLocal()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 20 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		db:         db,
		locker:     locker,
		pub:        pub,
		log:        logger.OrNop(log).Named("ledger"),
		metrics:    metrics,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		now:        opts.Now,
	}
}

// DB exposes the underlying handle for read-only queries.
func (l *Ledger) DB() *gorm.DB {
	return l.db
}

// Now is the ledger's clock.
func (l *Ledger) Now() time.Time {
	return l.now()
}

func lockKey(marketID uint) string {
	return "market:" + strconv.FormatUint(uint64(marketID), 10)
}

// CreateMarket inserts a new market. Pools start at zero regardless of what
// the caller set.
func (l *Ledger) CreateMarket(ctx context.Context, m *models.Market) error {
	m.YesPool, m.NoPool, m.TotalVolume, m.TotalBets = 0, 0, 0, 0
	m.Status = models.MarketStatusActive

	if err := l.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}
	l.publish(ctx, events.MarketCreated, m.ID, m)
	return nil
}

// Update runs fn with exclusive access to the market. Changes fn makes
// through tx commit together; events fn emits are published only after the
// commit. Storage conflicts replay fn from scratch, up to MaxRetries times.
func (l *Ledger) Update(ctx context.Context, marketID uint, fn func(tx *Tx) error) error {
	start := time.Now()
	unlock, err := l.locker.Lock(ctx, lockKey(marketID))
	if err != nil {
		return fmt.Errorf("failed to lock market %d: %w", marketID, err)
	}
	defer unlock()

	var emitted []events.Event
	for attempt := 0; ; attempt++ {
		emitted, err = l.attempt(ctx, marketID, fn)
		if err == nil || !isConflict(err) {
			break
		}
		if attempt >= l.maxRetries {
			l.log.Warn("giving up after storage conflicts",
				zap.Uint("market_id", marketID),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			err = fmt.Errorf("%w: %v", ErrStorageConflict, err)
			break
		}

		l.metrics.LedgerRetry()
		l.log.Debug("retrying after storage conflict",
			zap.Uint("market_id", marketID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			l.metrics.ObserveLedgerUpdate(start, ctx.Err())
			return ctx.Err()
		case <-time.After(l.backoff * time.Duration(attempt+1)):
		}
	}
	l.metrics.ObserveLedgerUpdate(start, err)
	if err != nil {
		return err
	}

	for _, ev := range emitted {
		l.emit(ctx, ev)
	}
	return nil
}

func (l *Ledger) attempt(ctx context.Context, marketID uint, fn func(tx *Tx) error) ([]events.Event, error) {
	var t *Tx
	err := l.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		q := db
		if db.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var market models.Market
		if err := q.First(&market, marketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMarketNotFound
			}
			return fmt.Errorf("failed to load market: %w", err)
		}

		t = &Tx{db: db, market: &market, now: l.now()}
		if err := fn(t); err != nil {
			return err
		}
		if t.dirty {
			if err := db.Save(&market).Error; err != nil {
				return fmt.Errorf("failed to save market: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t.events, nil
}

// RecordBet appends a bet and credits its pool, quoting the odds from the
// pools as they stood before this bet.
func (l *Ledger) RecordBet(ctx context.Context, marketID uint, bettor string, outcome bool, amount models.Amount) (*models.Bet, error) {
	var bet *models.Bet
	err := l.Update(ctx, marketID, func(tx *Tx) error {
		quote := odds.QuoteBet(tx.Market().Pools(), models.SideOf(outcome), amount)
		b, err := tx.AppendBet(bettor, models.SideOf(outcome), amount, quote)
		if err != nil {
			return err
		}
		bet = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bet, nil
}

// GetPools returns a read-only snapshot of a market's pools.
func (l *Ledger) GetPools(ctx context.Context, marketID uint) (models.Pools, error) {
	var market models.Market
	err := l.db.WithContext(ctx).
		Select("id", "yes_pool", "no_pool").
		First(&market, marketID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Pools{}, ErrMarketNotFound
		}
		return models.Pools{}, fmt.Errorf("failed to get pools: %w", err)
	}
	return market.Pools(), nil
}

func (l *Ledger) publish(ctx context.Context, t events.Type, marketID uint, data any) {
	ev, err := events.New(t, marketID, data)
	if err != nil {
		l.log.Error("failed to encode event", zap.String("type", string(t)), zap.Error(err))
		return
	}
	l.emit(ctx, ev)
}

// emit is best effort: the state change has already committed.
func (l *Ledger) emit(ctx context.Context, ev events.Event) {
	if err := l.pub.Publish(ctx, ev); err != nil {
		l.metrics.EventPublishFailed()
		l.log.Warn("failed to publish event",
			zap.String("type", string(ev.Type)),
			zap.Uint("market_id", ev.MarketID),
			zap.Error(err),
		)
	}
}

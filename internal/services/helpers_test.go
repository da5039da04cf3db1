package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blink-market/internal/events"
	"blink-market/internal/ledger"
	"blink-market/internal/locks"
	"blink-market/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestDB(t testing.TB) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}, &models.Market{}, &models.Bet{}, &models.Settlement{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

type testEnv struct {
	db         *gorm.DB
	clock      *fakeClock
	bus        *events.Bus
	ledger     *ledger.Ledger
	policy     BettingPolicy
	markets    *MarketService
	bets       *BetService
	settlement *SettlementService
}

func newTestEnv(t testing.TB) *testEnv {
	db := setupTestDB(t)
	clock := newFakeClock()
	bus := events.NewBus()
	l := ledger.New(db, locks.NewLocal(), bus, nil, nil, ledger.Options{Now: clock.Now, Backoff: time.Millisecond})

	policy := DefaultBettingPolicy()
	settlement := NewSettlementService(l, policy, nil, nil)
	return &testEnv{
		db:         db,
		clock:      clock,
		bus:        bus,
		ledger:     l,
		policy:     policy,
		markets:    NewMarketService(l, settlement, policy, nil),
		bets:       NewBetService(l, policy, nil, nil),
		settlement: settlement,
	}
}

const testCastHash = "0xab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func (e *testEnv) createMarket(t testing.TB, stake models.Amount) *models.Market {
	t.Helper()
	m, err := e.markets.CreateMarket(context.Background(), &CreateMarketRequest{
		PredictionType: models.PredictionViralCast,
		Title:          "Will this cast reach 1000 likes?",
		TargetID:       testCastHash,
		Threshold:      1000,
		Duration:       2 * time.Hour,
		Creator:        "0xcreator",
		CreatorStake:   stake,
	})
	if err != nil {
		t.Fatalf("CreateMarket() error = %v", err)
	}
	return m
}

func (e *testEnv) placeBet(t testing.TB, marketID uint, bettor, side string, amount models.Amount) *models.Bet {
	t.Helper()
	bet, err := e.bets.PlaceBet(context.Background(), PlaceBetRequest{
		MarketID: marketID,
		Bettor:   bettor,
		Side:     side,
		Amount:   amount,
	})
	if err != nil {
		t.Fatalf("PlaceBet(%s, %s, %s) error = %v", bettor, side, amount, err)
	}
	return bet
}

func (e *testEnv) reloadMarket(t testing.TB, id uint) *models.Market {
	t.Helper()
	var m models.Market
	if err := e.db.First(&m, id).Error; err != nil {
		t.Fatalf("failed to reload market %d: %v", id, err)
	}
	return &m
}

func (e *testEnv) reloadBet(t testing.TB, id uuid.UUID) *models.Bet {
	t.Helper()
	var b models.Bet
	if err := e.db.Where("id = ?", id).First(&b).Error; err != nil {
		t.Fatalf("failed to reload bet %s: %v", id, err)
	}
	return &b
}

func units(n int64) models.Amount { return models.AmountFromUnits(n) }

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"blink-market/internal/models"
	"blink-market/internal/odds"
)

func TestPlaceBetQuotesPreTradeOdds(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, 0)

	first := env.placeBet(t, m.ID, "alice", "yes", units(100))
	if !first.Odds.Equal(odds.DefaultOdds) {
		t.Errorf("first bet odds = %s, want %s", first.Odds, odds.DefaultOdds)
	}
	stored := env.reloadMarket(t, m.ID)
	if stored.YesPool != units(100) || stored.NoPool != 0 {
		t.Errorf("pools after first bet = %+v", stored.Pools())
	}

	second := env.placeBet(t, m.ID, "bob", "no", units(50))
	if !second.Odds.Equal(odds.DefaultOdds) {
		t.Errorf("second bet odds = %s, want fallback %s", second.Odds, odds.DefaultOdds)
	}

	third := env.placeBet(t, m.ID, "carol", "no", units(50))
	if !third.Odds.Equal(decimal.NewFromInt(3)) {
		t.Errorf("third bet odds = %s, want 3", third.Odds)
	}

	stored = env.reloadMarket(t, m.ID)
	if stored.YesPool != units(100) || stored.NoPool != units(100) {
		t.Errorf("pools = %+v, want 100/100", stored.Pools())
	}
	if stored.TotalVolume != units(200) || stored.TotalBets != 3 {
		t.Errorf("volume = %s bets = %d", stored.TotalVolume, stored.TotalBets)
	}
}

func TestPlaceBetPreconditionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("missing market", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.bets.PlaceBet(ctx, PlaceBetRequest{MarketID: 404, Bettor: "a", Side: "yes", Amount: units(1)})
		if !errors.Is(err, ErrMarketNotFound) {
			t.Errorf("error = %v, want ErrMarketNotFound", err)
		}
	})

	t.Run("inactive beats every other failure", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.createMarket(t, 0)
		if _, err := env.markets.CancelMarket(ctx, m.ID, ""); err != nil {
			t.Fatalf("CancelMarket() error = %v", err)
		}
		env.clock.Advance(3 * time.Hour)

		_, err := env.bets.PlaceBet(ctx, PlaceBetRequest{MarketID: m.ID, Bettor: "a", Side: "maybe", Amount: -1})
		if !errors.Is(err, ErrMarketNotActive) {
			t.Errorf("error = %v, want ErrMarketNotActive", err)
		}
	})

	t.Run("expired beats bad amount and side", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.createMarket(t, 0)
		env.clock.Advance(2 * time.Hour)

		_, err := env.bets.PlaceBet(ctx, PlaceBetRequest{MarketID: m.ID, Bettor: "a", Side: "maybe", Amount: 0})
		if !errors.Is(err, ErrMarketExpired) {
			t.Errorf("error = %v, want ErrMarketExpired", err)
		}
	})

	t.Run("amount beats side", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.createMarket(t, 0)

		for _, amount := range []models.Amount{0, -5, env.policy.MaxBet + 1, env.policy.MinBet - 1} {
			_, err := env.bets.PlaceBet(ctx, PlaceBetRequest{MarketID: m.ID, Bettor: "a", Side: "maybe", Amount: amount})
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("amount %d: error = %v, want ErrInvalidAmount", amount, err)
			}
		}
	})

	t.Run("side", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.createMarket(t, 0)

		_, err := env.bets.PlaceBet(ctx, PlaceBetRequest{MarketID: m.ID, Bettor: "a", Side: "maybe", Amount: units(1)})
		if !errors.Is(err, ErrInvalidSide) {
			t.Errorf("error = %v, want ErrInvalidSide", err)
		}

		stored := env.reloadMarket(t, m.ID)
		if stored.TotalVolume != 0 {
			t.Errorf("rejected bet changed volume to %s", stored.TotalVolume)
		}
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.createMarket(t, 0)
		env.placeBet(t, m.ID, "a", "yes", env.policy.MinBet)
		env.placeBet(t, m.ID, "b", "no", env.policy.MaxBet)
	})
}

func TestConcurrentPlaceBetTotalVolume(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, 0)
	ctx := context.Background()

	const n = 50
	var (
		wg   sync.WaitGroup
		want models.Amount
	)
	for i := 0; i < n; i++ {
		want += units(int64(i%7 + 1))
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := "yes"
			if i%3 == 0 {
				side = "no"
			}
			_, err := env.bets.PlaceBet(ctx, PlaceBetRequest{
				MarketID: m.ID,
				Bettor:   fmt.Sprintf("bettor-%d", i),
				Side:     side,
				Amount:   units(int64(i%7 + 1)),
			})
			if err != nil {
				t.Errorf("PlaceBet(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stored := env.reloadMarket(t, m.ID)
	if stored.TotalVolume != want {
		t.Errorf("total volume = %s, want %s", stored.TotalVolume, want)
	}
	if stored.YesPool+stored.NoPool != want {
		t.Errorf("pools %s + %s != %s", stored.YesPool, stored.NoPool, want)
	}
	if stored.TotalBets != n {
		t.Errorf("total bets = %d, want %d", stored.TotalBets, n)
	}
}

func TestQuote(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, 0)
	env.placeBet(t, m.ID, "alice", "yes", units(100))
	env.placeBet(t, m.ID, "bob", "no", units(50))

	q, err := env.bets.Quote(context.Background(), m.ID, models.SideNo, units(10))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.Odds.Equal(decimal.NewFromInt(3)) {
		t.Errorf("odds = %s, want 3", q.Odds)
	}
	if q.PotentialPayout != units(30) {
		t.Errorf("potential payout = %s, want 30", q.PotentialPayout)
	}

	stored := env.reloadMarket(t, m.ID)
	if stored.TotalBets != 2 {
		t.Errorf("quote admitted a bet: total bets = %d", stored.TotalBets)
	}

	if _, err := env.bets.Quote(context.Background(), 999, models.SideNo, units(1)); !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("missing market error = %v, want ErrMarketNotFound", err)
	}

	for _, amount := range []models.Amount{0, 1, units(1001), models.Amount(math.MaxInt64)} {
		if _, err := env.bets.Quote(context.Background(), m.ID, models.SideYes, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Quote(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestClaimBet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.createMarket(t, 0)
	win := env.placeBet(t, m.ID, "alice", "yes", units(100))
	lose := env.placeBet(t, m.ID, "bob", "no", units(50))

	if _, err := env.bets.ClaimBet(ctx, win.ID, "alice"); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("claim before settlement error = %v, want ErrNotClaimable", err)
	}

	env.clock.Advance(3 * time.Hour)
	if _, err := env.settlement.Settle(ctx, SettleRequest{MarketID: m.ID, Outcome: true}); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	if _, err := env.bets.ClaimBet(ctx, win.ID, "bob"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("claim by other bettor error = %v, want ErrUnauthorized", err)
	}
	if _, err := env.bets.ClaimBet(ctx, lose.ID, "bob"); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("losing claim error = %v, want ErrNotClaimable", err)
	}

	claimed, err := env.bets.ClaimBet(ctx, win.ID, "alice")
	if err != nil {
		t.Fatalf("ClaimBet() error = %v", err)
	}
	if !claimed.Claimed || claimed.ClaimedAt == nil || claimed.Payout != 148_500_000 {
		t.Errorf("claimed bet = %+v", claimed)
	}

	if _, err := env.bets.ClaimBet(ctx, win.ID, "alice"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("second claim error = %v, want ErrAlreadyClaimed", err)
	}
}

func TestUserStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resolved := env.createMarket(t, 0)
	env.placeBet(t, resolved.ID, "alice", "yes", units(10))
	env.placeBet(t, resolved.ID, "alice", "no", units(5))
	env.placeBet(t, resolved.ID, "bob", "no", units(5))

	env.clock.Advance(3 * time.Hour)
	if _, err := env.settlement.Settle(ctx, SettleRequest{MarketID: resolved.ID, Outcome: true}); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	later := env.createMarket(t, 0)
	env.placeBet(t, later.ID, "alice", "yes", units(1))

	stats, err := env.bets.UserStats(ctx, "alice")
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if stats.TotalBets != 3 || stats.TotalVolume != units(16) {
		t.Errorf("bets = %d volume = %s, want 3 / 16", stats.TotalBets, stats.TotalVolume)
	}
	if stats.Wins != 1 || stats.Losses != 1 || stats.Open != 1 {
		t.Errorf("wins/losses/open = %d/%d/%d, want 1/1/1", stats.Wins, stats.Losses, stats.Open)
	}
	if stats.TotalPayout <= units(10) {
		t.Errorf("total payout = %s, want more than the winning stake", stats.TotalPayout)
	}
}

func BenchmarkPlaceBet(b *testing.B) {
	env := newTestEnv(b)
	m := env.createMarket(b, 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := "yes"
		if i%2 == 0 {
			side = "no"
		}
		if _, err := env.bets.PlaceBet(ctx, PlaceBetRequest{MarketID: m.ID, Bettor: "bench", Side: side, Amount: units(1)}); err != nil {
			b.Fatal(err)
		}
	}
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := NewAuthService(env.db, nil).ProcessWalletLogin(ctx, "alice", models.WalletEVM); err != nil {
		t.Fatalf("ProcessWalletLogin() error = %v", err)
	}

	// Settled ten days ago: alice wins 48.5 off bob.
	old := env.createMarket(t, 0)
	if err := env.db.Model(&models.Market{}).Where("id = ?", old.ID).Update("category", "legacy").Error; err != nil {
		t.Fatalf("failed to set category: %v", err)
	}
	env.placeBet(t, old.ID, "alice", "yes", units(100))
	env.placeBet(t, old.ID, "bob", "no", units(50))
	env.clock.Advance(3 * time.Hour)
	if _, err := env.settlement.Settle(ctx, SettleRequest{MarketID: old.ID, Outcome: true}); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	env.clock.Advance(10 * 24 * time.Hour)

	// Settled now: bob wins 9.7 off carol.
	recent := env.createMarket(t, 0)
	env.placeBet(t, recent.ID, "carol", "yes", units(10))
	env.placeBet(t, recent.ID, "bob", "no", units(40))
	env.clock.Advance(3 * time.Hour)
	if _, err := env.settlement.Settle(ctx, SettleRequest{MarketID: recent.ID, Outcome: false}); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	// Refunds never rank.
	refunded := env.createMarket(t, 0)
	env.placeBet(t, refunded.ID, "dave", "yes", units(5))
	if _, err := env.settlement.Cancel(ctx, refunded.ID, "test"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	minor := func(whole, tenths int64) models.Amount { return units(whole) + models.Amount(tenths*100_000) }

	tests := []struct {
		name    string
		query   LeaderboardQuery
		bettors []string
		profits []models.Amount
	}{
		{
			name:    "all time",
			query:   LeaderboardQuery{},
			bettors: []string{"alice", "carol", "bob"},
			profits: []models.Amount{minor(48, 5), -units(10), -minor(40, 3)},
		},
		{
			name:    "last week",
			query:   LeaderboardQuery{Window: 7 * 24 * time.Hour},
			bettors: []string{"bob", "carol"},
			profits: []models.Amount{minor(9, 7), -units(10)},
		},
		{
			name:    "category",
			query:   LeaderboardQuery{Category: "legacy"},
			bettors: []string{"alice", "bob"},
			profits: []models.Amount{minor(48, 5), -units(50)},
		},
		{
			name:    "limit",
			query:   LeaderboardQuery{Limit: 1},
			bettors: []string{"alice"},
			profits: []models.Amount{minor(48, 5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := env.bets.Leaderboard(ctx, tt.query)
			if err != nil {
				t.Fatalf("Leaderboard() error = %v", err)
			}
			if len(entries) != len(tt.bettors) {
				t.Fatalf("got %d entries, want %d: %+v", len(entries), len(tt.bettors), entries)
			}
			for i, e := range entries {
				if e.Rank != i+1 || e.Bettor != tt.bettors[i] || e.NetProfit != tt.profits[i] {
					t.Errorf("entry %d = rank %d %s %s, want rank %d %s %s",
						i, e.Rank, e.Bettor, e.NetProfit, i+1, tt.bettors[i], tt.profits[i])
				}
			}
		})
	}

	all, err := env.bets.Leaderboard(ctx, LeaderboardQuery{})
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if all[0].Nickname == "" || all[1].Nickname != "" {
		t.Errorf("nicknames = %q, %q; want only alice's", all[0].Nickname, all[1].Nickname)
	}
	if bob := all[2]; bob.TotalBets != 2 || bob.Wins != 1 || bob.WinRate != 0.5 || bob.TotalVolume != units(90) {
		t.Errorf("bob = %+v", bob)
	}
}

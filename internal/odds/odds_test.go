package odds

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"blink-market/internal/models"
)

func units(n int64) models.Amount { return models.AmountFromUnits(n) }

func TestOdds(t *testing.T) {
	tests := []struct {
		name  string
		pools models.Pools
		side  models.Side
		want  string
	}{
		{"empty market yes", models.Pools{}, models.SideYes, "2"},
		{"empty market no", models.Pools{}, models.SideNo, "2"},
		{"no stake on requested side", models.Pools{Yes: units(100)}, models.SideNo, "2"},
		{"all stake on requested side", models.Pools{Yes: units(100)}, models.SideYes, "1"},
		{"two to one", models.Pools{Yes: units(100), No: units(50)}, models.SideNo, "3"},
		{"one and a half", models.Pools{Yes: units(100), No: units(50)}, models.SideYes, "1.5"},
		{"single minor unit", models.Pools{Yes: 1, No: 3}, models.SideYes, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Odds(tt.pools, tt.side)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Odds() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOddsAlwaysFinitePositive(t *testing.T) {
	values := []models.Amount{0, 1, 7, units(1), units(999_999)}
	for _, y := range values {
		for _, n := range values {
			for _, side := range []models.Side{models.SideYes, models.SideNo} {
				o := Odds(models.Pools{Yes: y, No: n}, side)
				if !o.IsPositive() {
					t.Fatalf("Odds(%d, %d, %s) = %s, want positive", y, n, side, o)
				}
				if o.LessThan(decimal.NewFromInt(1)) {
					t.Fatalf("Odds(%d, %d, %s) = %s, want >= 1", y, n, side, o)
				}
			}
		}
	}
}

func TestImpliedProbability(t *testing.T) {
	if got := ImpliedProbability(models.Pools{}, models.SideYes); !got.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("empty market probability = %s, want 0.5", got)
	}

	pools := models.Pools{Yes: units(75), No: units(25)}
	yes := ImpliedProbability(pools, models.SideYes)
	no := ImpliedProbability(pools, models.SideNo)
	if !yes.Equal(decimal.NewFromFloat(0.75)) {
		t.Errorf("yes probability = %s, want 0.75", yes)
	}
	if !yes.Add(no).Equal(decimal.NewFromInt(1)) {
		t.Errorf("probabilities sum to %s, want 1", yes.Add(no))
	}
}

func TestQuoteBet(t *testing.T) {
	// Pre-trade price for the second bet in a fresh market: NO pool is empty.
	q := QuoteBet(models.Pools{Yes: units(100)}, models.SideNo, units(50))
	if !q.Odds.Equal(DefaultOdds) {
		t.Errorf("odds = %s, want fallback %s", q.Odds, DefaultOdds)
	}
	if q.PotentialPayout != units(100) {
		t.Errorf("potential payout = %s, want 100", q.PotentialPayout)
	}

	q = QuoteBet(models.Pools{Yes: 2, No: 1}, models.SideNo, 10)
	if q.PotentialPayout != 30 {
		t.Errorf("potential payout = %d, want 30", q.PotentialPayout)
	}

	// 10 * 4/3 = 13.33.. floors to 13 minor units
	q = QuoteBet(models.Pools{Yes: 1, No: 3}, models.SideNo, 10)
	if q.PotentialPayout != 13 {
		t.Errorf("potential payout = %d, want 13", q.PotentialPayout)
	}

	q = QuoteBet(models.Pools{Yes: models.Amount(math.MaxInt64 - 1), No: 1}, models.SideNo, units(1000))
	if q.PotentialPayout != models.Amount(math.MaxInt64) {
		t.Errorf("potential payout = %d, want saturation at MaxInt64", q.PotentialPayout)
	}
}

func TestBoardFor(t *testing.T) {
	b := BoardFor(models.Pools{Yes: units(100), No: units(50)})
	if !b.Yes.Equal(decimal.NewFromFloat(1.5)) || !b.No.Equal(decimal.NewFromInt(3)) {
		t.Errorf("board = %+v", b)
	}
}

func BenchmarkQuoteBet(b *testing.B) {
	pools := models.Pools{Yes: units(12_345), No: units(6_789)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = QuoteBet(pools, models.SideYes, units(10))
	}
}

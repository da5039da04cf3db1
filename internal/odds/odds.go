// Package odds computes pari-mutuel prices from pool totals. Everything here
// is pure: no storage, no clocks, no locks.
package odds

import (
	"math"

	"github.com/shopspring/decimal"

	"blink-market/internal/models"
)

// DefaultOdds is quoted when the requested side has no stake yet, including
// the empty market. It is a deliberate even-money fallback: the true
// pari-mutuel multiplier total/0 is undefined, and callers must never see an
// infinite or zero price.
var DefaultOdds = decimal.NewFromInt(2)

var (
	half      = decimal.NewFromFloat(0.5)
	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// Odds returns the gross multiplier a winning stake on side receives,
// total / poolForSide, or DefaultOdds when poolForSide is zero.
func Odds(pools models.Pools, side models.Side) decimal.Decimal {
	sidePool := pools.For(side)
	if pools.Total() <= 0 || sidePool <= 0 {
		return DefaultOdds
	}
	return decimal.NewFromInt(int64(pools.Total())).Div(decimal.NewFromInt(int64(sidePool)))
}

// ImpliedProbability returns poolForSide / total, or 0.5 for an empty market.
func ImpliedProbability(pools models.Pools, side models.Side) decimal.Decimal {
	total := pools.Total()
	if total <= 0 {
		return half
	}
	return decimal.NewFromInt(int64(pools.For(side))).Div(decimal.NewFromInt(int64(total)))
}

// Quote is the price shown to a bettor before a stake is admitted.
type Quote struct {
	Side               models.Side     `json:"side"`
	Stake              models.Amount   `json:"stake"`
	Odds               decimal.Decimal `json:"odds"`
	ImpliedProbability decimal.Decimal `json:"implied_probability"`
	PotentialPayout    models.Amount   `json:"potential_payout"`
}

// QuoteBet prices stake on side against the pre-trade pools. PotentialPayout
// is stake * odds rounded down to minor units, saturating at the largest
// representable Amount.
func QuoteBet(pools models.Pools, side models.Side, stake models.Amount) Quote {
	o := Odds(pools, side)
	payout := decimal.NewFromInt(int64(stake)).Mul(o).Floor()
	if payout.GreaterThan(maxAmount) {
		payout = maxAmount
	}
	return Quote{
		Side:               side,
		Stake:              stake,
		Odds:               o,
		ImpliedProbability: ImpliedProbability(pools, side),
		PotentialPayout:    models.Amount(payout.IntPart()),
	}
}

// Board is both sides' odds at once, as displayed on a market page.
type Board struct {
	Yes            decimal.Decimal `json:"yes"`
	No             decimal.Decimal `json:"no"`
	YesProbability decimal.Decimal `json:"yes_probability"`
	NoProbability  decimal.Decimal `json:"no_probability"`
}

// BoardFor returns both sides' odds for pools.
func BoardFor(pools models.Pools) Board {
	return Board{
		Yes:            Odds(pools, models.SideYes),
		No:             Odds(pools, models.SideNo),
		YesProbability: ImpliedProbability(pools, models.SideYes),
		NoProbability:  ImpliedProbability(pools, models.SideNo),
	}
}

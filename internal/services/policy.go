package services

import "blink-market/internal/models"

// BettingPolicy is the economic configuration shared by admission,
// creation and settlement.
type BettingPolicy struct {
	MinBet models.Amount
	MaxBet models.Amount

	// HouseEdgeBps is taken off the losing pool, in basis points.
	HouseEdgeBps int64

	MinCreatorStake models.Amount
	MaxCreatorStake models.Amount
	// CreatorRewardBps of total volume is paid to the creator of an active
	// market, out of the house take.
	CreatorRewardBps int64
	// Volume must strictly exceed this for the creator reward to apply.
	MinActivityVolume models.Amount
}

// DefaultBettingPolicy matches the limits the contracts were deployed with.
func DefaultBettingPolicy() BettingPolicy {
	return BettingPolicy{
		MinBet:            models.AmountFromUnits(1) / 100,
		MaxBet:            models.AmountFromUnits(1000),
		HouseEdgeBps:      300,
		MinCreatorStake:   models.AmountFromUnits(5),
		MaxCreatorStake:   models.AmountFromUnits(1000),
		CreatorRewardBps:  100,
		MinActivityVolume: models.AmountFromUnits(100),
	}
}

// Payouts returns the settlement-time subset of the policy.
func (p BettingPolicy) Payouts(forfeit bool) PayoutPolicy {
	return PayoutPolicy{
		HouseEdgeBps:        p.HouseEdgeBps,
		CreatorRewardBps:    p.CreatorRewardBps,
		MinActivityVolume:   p.MinActivityVolume,
		ForfeitCreatorStake: forfeit,
	}
}

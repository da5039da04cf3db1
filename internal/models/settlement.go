package models

import "time"

// SettlementKind distinguishes a normal resolution from a refund.
type SettlementKind string

const (
	SettlementResolved  SettlementKind = "RESOLVED"
	SettlementCancelled SettlementKind = "CANCELLED"
)

// Settlement records how a market's funds were distributed. Every unit that
// entered the market (both pools plus the creator stake) is accounted for by
// TotalPayout + HouseRevenue + CreatorStakeReturned + CreatorReward.
type Settlement struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	MarketID             uint           `gorm:"not null;uniqueIndex" json:"market_id"`
	Kind                 SettlementKind `gorm:"size:20;not null" json:"kind"`
	Outcome              bool           `json:"outcome"`
	Reason               string         `gorm:"size:255" json:"reason,omitempty"`
	YesPool              Amount         `gorm:"not null" json:"yes_pool"`
	NoPool               Amount         `gorm:"not null" json:"no_pool"`
	WinningPool          Amount         `gorm:"not null" json:"winning_pool"`
	LosingPool           Amount         `gorm:"not null" json:"losing_pool"`
	HouseEdgeBps         int64          `gorm:"not null" json:"house_edge_bps"`
	HouseCut             Amount         `gorm:"not null" json:"house_cut"`
	Distributable        Amount         `gorm:"not null" json:"distributable"`
	RoundingResidue      Amount         `gorm:"not null" json:"rounding_residue"`
	HouseRevenue         Amount         `gorm:"not null" json:"house_revenue"`
	TotalPayout          Amount         `gorm:"not null" json:"total_payout"`
	WinnerCount          int            `gorm:"not null" json:"winner_count"`
	CreatorStake         Amount         `gorm:"not null" json:"creator_stake"`
	CreatorStakeReturned Amount         `gorm:"not null" json:"creator_stake_returned"`
	CreatorReward        Amount         `gorm:"not null" json:"creator_reward"`
	CreatorForfeited     Amount         `gorm:"not null" json:"creator_forfeited"`
	CreatorClaimed       bool           `gorm:"not null;default:false" json:"creator_claimed"`
	SettledAt            time.Time      `gorm:"not null" json:"settled_at"`
}

// TableName specifies the table name for Settlement model
func (Settlement) TableName() string {
	return "settlements"
}

// CreatorPayout is what the creator may claim.
func (s *Settlement) CreatorPayout() Amount {
	return s.CreatorStakeReturned + s.CreatorReward
}

// TotalIn is everything the market held at settlement.
func (s *Settlement) TotalIn() Amount {
	return s.YesPool + s.NoPool + s.CreatorStake
}

// TotalOut is everything distributed, including house revenue.
func (s *Settlement) TotalOut() Amount {
	return s.TotalPayout + s.HouseRevenue + s.CreatorStakeReturned + s.CreatorReward
}

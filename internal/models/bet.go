package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bet is a single stake admitted into a market's pool. Amount and Outcome
// are fixed at admission; Settled and Payout are written once by settlement.
type Bet struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID  uint            `gorm:"not null;index" json:"market_id"`
	Bettor    string          `gorm:"size:64;not null;index" json:"bettor"`
	Outcome   bool            `gorm:"not null" json:"outcome"`
	Amount    Amount          `gorm:"not null" json:"amount"`
	Odds      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"odds"`
	Settled   bool            `gorm:"not null;default:false;index" json:"settled"`
	Payout    Amount          `gorm:"not null;default:0" json:"payout"`
	Claimed   bool            `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt *time.Time      `json:"claimed_at,omitempty"`
	Timestamp time.Time       `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for Bet model
func (Bet) TableName() string {
	return "bets"
}

// BeforeCreate assigns a random ID when none is set.
func (b *Bet) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Side returns the side the bet backs.
func (b *Bet) Side() Side {
	return SideOf(b.Outcome)
}

package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// PredictionType identifies what a market is betting on.
type PredictionType int16

const (
	PredictionViralCast         PredictionType = 0 // Will this cast get X likes/recasts?
	PredictionPollOutcome       PredictionType = 1
	PredictionChannelGrowth     PredictionType = 2
	PredictionCreatorMilestone  PredictionType = 3
	PredictionFollowerGrowth    PredictionType = 4
	PredictionLiveStreamViews   PredictionType = 5
	PredictionEngagementBattle  PredictionType = 6
	PredictionTrendingCast      PredictionType = 7
	PredictionFrameInteractions PredictionType = 8
)

var predictionTypeNames = map[PredictionType]string{
	PredictionViralCast:         "VIRAL_CAST",
	PredictionPollOutcome:       "POLL_OUTCOME",
	PredictionChannelGrowth:     "CHANNEL_GROWTH",
	PredictionCreatorMilestone:  "CREATOR_MILESTONE",
	PredictionFollowerGrowth:    "FOLLOWER_GROWTH",
	PredictionLiveStreamViews:   "LIVE_STREAM_VIEWS",
	PredictionEngagementBattle:  "ENGAGEMENT_BATTLE",
	PredictionTrendingCast:      "TRENDING_CAST",
	PredictionFrameInteractions: "FRAME_INTERACTIONS",
}

func (t PredictionType) String() string {
	if name, ok := predictionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PredictionType(%d)", int16(t))
}

// Valid reports whether t is a known prediction type.
func (t PredictionType) Valid() bool {
	_, ok := predictionTypeNames[t]
	return ok
}

// ParsePredictionType accepts the upper-case name of a prediction type.
func ParsePredictionType(s string) (PredictionType, error) {
	for t, name := range predictionTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown prediction type %q", s)
}

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "ACTIVE"
	MarketStatusSettled   MarketStatus = "SETTLED"
	MarketStatusCancelled MarketStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusSettled || s == MarketStatusCancelled
}

// CanTransition reports whether the state machine allows s -> to.
// Active is the only state with outgoing edges.
func (s MarketStatus) CanTransition(to MarketStatus) bool {
	if s != MarketStatusActive {
		return false
	}
	return to == MarketStatusSettled || to == MarketStatusCancelled
}

// Side is the outcome a bet is placed on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide normalises user input into a Side.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return SideYes, true
	case "no", "false":
		return SideNo, true
	}
	return "", false
}

// SideOf maps the boolean outcome encoding onto a Side.
func SideOf(outcome bool) Side {
	if outcome {
		return SideYes
	}
	return SideNo
}

// Outcome returns the boolean encoding of the side (true = YES).
func (s Side) Outcome() bool {
	return s == SideYes
}

// Pools is a snapshot of a market's stake totals.
type Pools struct {
	Yes Amount `json:"yes_pool"`
	No  Amount `json:"no_pool"`
}

// Total returns Yes + No.
func (p Pools) Total() Amount {
	return p.Yes + p.No
}

// For returns the pool backing the given side.
func (p Pools) For(side Side) Amount {
	if side == SideYes {
		return p.Yes
	}
	return p.No
}

// Market is a binary pari-mutuel prediction market.
type Market struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PredictionType  PredictionType `gorm:"not null;index" json:"prediction_type"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	Category        string         `gorm:"size:50;index" json:"category"`
	TargetID        string         `gorm:"size:100;not null;index" json:"target_id"`
	Threshold       int64          `gorm:"not null" json:"threshold"`
	Params          datatypes.JSON `json:"params,omitempty"`
	Deadline        time.Time      `gorm:"not null;index" json:"deadline"`
	YesPool         Amount         `gorm:"not null;default:0" json:"yes_pool"`
	NoPool          Amount         `gorm:"not null;default:0" json:"no_pool"`
	TotalVolume     Amount         `gorm:"not null;default:0" json:"total_volume"`
	TotalBets       int64          `gorm:"not null;default:0" json:"total_bets"`
	Status          MarketStatus   `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`
	Outcome         bool           `json:"outcome"`
	Creator         string         `gorm:"size:64;not null;index" json:"creator"`
	CreatorStake    Amount         `gorm:"not null;default:0" json:"creator_stake"`
	CreatorRewarded bool           `gorm:"not null;default:false" json:"creator_rewarded"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	SettledAt       *time.Time     `json:"settled_at,omitempty"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// Pools returns the current stake totals.
func (m *Market) Pools() Pools {
	return Pools{Yes: m.YesPool, No: m.NoPool}
}

// Credit adds amount to the pool for side and to the historical volume.
func (m *Market) Credit(side Side, amount Amount) {
	if side == SideYes {
		m.YesPool += amount
	} else {
		m.NoPool += amount
	}
	m.TotalVolume += amount
	m.TotalBets++
}

// Expired reports whether the betting window has closed at now.
func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.Deadline)
}

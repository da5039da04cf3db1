package models

import (
	"time"
)

// WalletKind is the signature scheme a wallet address uses.
type WalletKind string

const (
	WalletEVM    WalletKind = "evm"
	WalletSolana WalletKind = "solana"
)

// User represents a wallet-authenticated user
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	WalletAddress string     `gorm:"size:64;uniqueIndex;not null" json:"wallet_address"`
	WalletKind    WalletKind `gorm:"size:10;not null" json:"wallet_kind"`
	Nickname      string     `gorm:"size:50;uniqueIndex;not null" json:"nickname"`
	LastLoginAt   time.Time  `json:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// UserStats summarises a bettor's activity.
type UserStats struct {
	Bettor      string `json:"bettor"`
	TotalBets   int64  `json:"total_bets"`
	TotalVolume Amount `json:"total_volume"`
	Wins        int64  `json:"wins"`
	Losses      int64  `json:"losses"`
	Open        int64  `gorm:"column:open_bets" json:"open"`
	TotalPayout Amount `json:"total_payout"`
}

// LeaderboardEntry ranks a bettor by profit over resolved markets.
type LeaderboardEntry struct {
	Rank        int     `gorm:"-" json:"rank"`
	Bettor      string  `json:"bettor"`
	Nickname    string  `json:"nickname,omitempty"`
	TotalBets   int64   `json:"total_bets"`
	TotalVolume Amount  `json:"total_volume"`
	Wins        int64   `json:"wins"`
	WinRate     float64 `gorm:"-" json:"win_rate"`
	TotalPayout Amount  `json:"total_payout"`
	NetProfit   Amount  `json:"net_profit"`
}

package services

import (
	"errors"
	"strings"

	"blink-market/internal/ledger"
)

// Storage-level kinds come from the ledger so errors.Is matches across layers.
var (
	ErrMarketNotFound  = ledger.ErrMarketNotFound
	ErrMarketNotActive = ledger.ErrMarketNotActive
	ErrInvalidAmount   = ledger.ErrInvalidAmount
	ErrStorageConflict = ledger.ErrStorageConflict
)

var (
	ErrMarketExpired    = errors.New("market has expired")
	ErrAlreadyFinalized = errors.New("market already finalized")
	ErrInvalidSide      = errors.New("invalid side")
	ErrNotReadyToSettle = errors.New("market not ready to settle")

	ErrInvalidMarket      = errors.New("invalid market")
	ErrNotCreator         = errors.New("caller is not the market creator")
	ErrMarketHasBets      = errors.New("market already has bets")
	ErrBetNotFound        = errors.New("bet not found")
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrNotClaimable       = errors.New("nothing to claim")
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ValidationError lists every problem found in a market request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid market: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMarket
}

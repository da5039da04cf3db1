package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blink-market/internal/events"
	"blink-market/internal/ledger"
	"blink-market/internal/logger"
	"blink-market/internal/models"
	"blink-market/internal/telemetry"
)

// SettlementService finalizes markets: resolution with payouts, or
// cancellation with refunds. Both run in the market's atomic scope, so a
// bet either lands before the status flip and is paid, or is rejected.
type SettlementService struct {
	ledger  *ledger.Ledger
	policy  BettingPolicy
	metrics *telemetry.Metrics
	log     *zap.Logger
}

func NewSettlementService(l *ledger.Ledger, policy BettingPolicy, metrics *telemetry.Metrics, log *zap.Logger) *SettlementService {
	return &SettlementService{
		ledger:  l,
		policy:  policy,
		metrics: metrics,
		log:     logger.OrNop(log).Named("settlement"),
	}
}

type SettleRequest struct {
	MarketID uint
	Outcome  bool
	// OracleOverride allows settling before the deadline.
	OracleOverride bool
	// ForfeitCreatorStake sends the creator's stake to the house instead of
	// returning it. The decision is made by moderation, not here.
	ForfeitCreatorStake bool
	Reason              string
}

// Settle resolves a market to req.Outcome and writes every bet's payout.
// A second call on a finalized market fails with ErrAlreadyFinalized and
// changes nothing.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (*models.Settlement, error) {
	var result *models.Settlement
	err := s.ledger.Update(ctx, req.MarketID, func(tx *ledger.Tx) error {
		m := tx.Market()
		if m.Status.Terminal() {
			return ErrAlreadyFinalized
		}
		if !m.Expired(tx.Now()) && !req.OracleOverride {
			return ErrNotReadyToSettle
		}

		bets, err := tx.Bets()
		if err != nil {
			return err
		}

		m.Outcome = req.Outcome
		table, err := CalculatePayouts(m, bets, s.policy.Payouts(req.ForfeitCreatorStake))
		if err != nil {
			return err
		}
		table.Summary.Reason = req.Reason

		m.CreatorRewarded = m.CreatorStake > 0
		if !tx.Transition(models.MarketStatusSettled) {
			return ErrAlreadyFinalized
		}
		if err := applyTable(tx, table); err != nil {
			return err
		}
		result = &table.Summary
		return tx.Emit(events.MarketSettled, result)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MarketFinalized(string(models.SettlementResolved))
	s.log.Info("market settled",
		zap.Uint("market_id", req.MarketID),
		zap.Bool("outcome", req.Outcome),
		zap.Bool("oracle_override", req.OracleOverride),
		zap.Int("winners", result.WinnerCount),
		zap.Stringer("total_payout", result.TotalPayout),
		zap.Stringer("house_revenue", result.HouseRevenue),
		zap.Stringer("creator_reward", result.CreatorReward),
	)
	return result, nil
}

// Cancel refunds every bet in full and returns the creator stake.
func (s *SettlementService) Cancel(ctx context.Context, marketID uint, reason string) (*models.Settlement, error) {
	return s.cancel(ctx, marketID, reason, nil)
}

// cancel runs check against the locked market before refunding, so callers
// can add preconditions that must hold at the instant of cancellation.
func (s *SettlementService) cancel(ctx context.Context, marketID uint, reason string, check func(*models.Market) error) (*models.Settlement, error) {
	var (
		result  *models.Settlement
		refunds int
	)
	err := s.ledger.Update(ctx, marketID, func(tx *ledger.Tx) error {
		m := tx.Market()
		if m.Status.Terminal() {
			return ErrAlreadyFinalized
		}
		if check != nil {
			if err := check(m); err != nil {
				return err
			}
		}

		bets, err := tx.Bets()
		if err != nil {
			return err
		}
		table, err := CalculateRefunds(m, bets)
		if err != nil {
			return err
		}
		table.Summary.Reason = reason
		refunds = len(table.Bets)

		if !tx.Transition(models.MarketStatusCancelled) {
			return ErrAlreadyFinalized
		}
		if err := applyTable(tx, table); err != nil {
			return err
		}
		result = &table.Summary
		return tx.Emit(events.MarketCancelled, result)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MarketFinalized(string(models.SettlementCancelled))
	s.log.Info("market cancelled",
		zap.Uint("market_id", marketID),
		zap.String("reason", reason),
		zap.Int("refunds", refunds),
		zap.Stringer("refunded", result.TotalPayout),
	)
	return result, nil
}

// applyTable writes payouts and the settlement record inside tx.
func applyTable(tx *ledger.Tx, table *PayoutTable) error {
	db := tx.DB()
	m := tx.Market()

	if err := db.Model(&models.Bet{}).
		Where("market_id = ?", m.ID).
		Updates(map[string]any{"settled": true, "payout": 0}).Error; err != nil {
		return fmt.Errorf("failed to mark bets settled: %w", err)
	}
	for _, line := range table.Bets {
		if line.Payout == 0 {
			continue
		}
		if err := db.Model(&models.Bet{}).
			Where("id = ?", line.BetID).
			Update("payout", line.Payout).Error; err != nil {
			return fmt.Errorf("failed to write payout for bet %s: %w", line.BetID, err)
		}
	}

	table.Summary.SettledAt = tx.Now()
	if err := db.Create(&table.Summary).Error; err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	return nil
}

// GetSettlement returns the settlement record of a finalized market.
func (s *SettlementService) GetSettlement(ctx context.Context, marketID uint) (*models.Settlement, error) {
	var st models.Settlement
	err := s.ledger.DB().WithContext(ctx).Where("market_id = ?", marketID).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return &st, nil
}

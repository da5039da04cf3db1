package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blink-market/internal/events"
	"blink-market/internal/ledger"
	"blink-market/internal/logger"
	"blink-market/internal/models"
	"blink-market/internal/odds"
	"blink-market/internal/telemetry"
)

// BetService admits stakes into market pools and pays out claims. It is the
// only writer of pool totals while a market is Active.
type BetService struct {
	ledger  *ledger.Ledger
	policy  BettingPolicy
	metrics *telemetry.Metrics
	log     *zap.Logger
}

func NewBetService(l *ledger.Ledger, policy BettingPolicy, metrics *telemetry.Metrics, log *zap.Logger) *BetService {
	return &BetService{
		ledger:  l,
		policy:  policy,
		metrics: metrics,
		log:     logger.OrNop(log).Named("bets"),
	}
}

type PlaceBetRequest struct {
	MarketID uint
	Bettor   string
	Side     string
	Amount   models.Amount
}

// PlaceBet admits a bet. Preconditions are checked in order against the
// locked market and the first failure wins: the market must be Active, its
// deadline not reached, the amount within bounds and the side valid. The
// bet is priced at the odds quoted before its own stake lands.
func (s *BetService) PlaceBet(ctx context.Context, req PlaceBetRequest) (*models.Bet, error) {
	var bet *models.Bet
	err := s.ledger.Update(ctx, req.MarketID, func(tx *ledger.Tx) error {
		m := tx.Market()
		if m.Status != models.MarketStatusActive {
			return ErrMarketNotActive
		}
		if m.Expired(tx.Now()) {
			return ErrMarketExpired
		}
		if req.Amount <= 0 || req.Amount < s.policy.MinBet || req.Amount > s.policy.MaxBet {
			return ErrInvalidAmount
		}
		side, ok := models.ParseSide(req.Side)
		if !ok {
			return ErrInvalidSide
		}

		quote := odds.QuoteBet(m.Pools(), side, req.Amount)
		b, err := tx.AppendBet(req.Bettor, side, req.Amount, quote)
		if err != nil {
			return err
		}
		bet = b
		return nil
	})
	if err != nil {
		s.metrics.BetRejected(rejectReason(err))
		return nil, err
	}

	s.metrics.BetPlaced(string(bet.Side()), bet.Amount.Decimal().InexactFloat64())
	s.log.Debug("bet placed",
		zap.Uint("market_id", bet.MarketID),
		zap.String("bet_id", bet.ID.String()),
		zap.String("bettor", bet.Bettor),
		zap.String("side", string(bet.Side())),
		zap.Stringer("amount", bet.Amount),
		zap.String("odds", bet.Odds.String()),
	)
	return bet, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, ErrMarketNotActive):
		return "market_not_active"
	case errors.Is(err, ErrMarketExpired):
		return "market_expired"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	}
	return "internal"
}

// Quote prices a prospective bet without admitting it. Amounts outside the
// bet limits are rejected as they would be by PlaceBet.
func (s *BetService) Quote(ctx context.Context, marketID uint, side models.Side, amount models.Amount) (odds.Quote, error) {
	if amount <= 0 || amount < s.policy.MinBet || amount > s.policy.MaxBet {
		return odds.Quote{}, ErrInvalidAmount
	}
	pools, err := s.ledger.GetPools(ctx, marketID)
	if err != nil {
		return odds.Quote{}, err
	}
	return odds.QuoteBet(pools, side, amount), nil
}

// GetBet retrieves a bet by ID
func (s *BetService) GetBet(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	var bet models.Bet
	if err := s.ledger.DB().WithContext(ctx).Where("id = ?", id).First(&bet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	return &bet, nil
}

// ListMarketBets returns a market's bets, newest first.
func (s *BetService) ListMarketBets(ctx context.Context, marketID uint, limit, offset int) ([]models.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var bets []models.Bet
	err := s.ledger.DB().WithContext(ctx).
		Where("market_id = ?", marketID).
		Order(`"timestamp" DESC`).
		Limit(limit).Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return bets, nil
}

// ListUserBets returns a bettor's bets, newest first.
func (s *BetService) ListUserBets(ctx context.Context, bettor string, limit, offset int) ([]models.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var bets []models.Bet
	err := s.ledger.DB().WithContext(ctx).
		Where("bettor = ?", bettor).
		Order(`"timestamp" DESC`).
		Limit(limit).Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user bets: %w", err)
	}
	return bets, nil
}

// ClaimBet marks a settled bet's payout as paid to its bettor. A bet can be
// claimed once, and only when it has something to pay.
func (s *BetService) ClaimBet(ctx context.Context, betID uuid.UUID, bettor string) (*models.Bet, error) {
	found, err := s.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}

	var bet models.Bet
	err = s.ledger.Update(ctx, found.MarketID, func(tx *ledger.Tx) error {
		if err := tx.DB().Where("id = ?", betID).First(&bet).Error; err != nil {
			return fmt.Errorf("failed to load bet: %w", err)
		}
		if bet.Bettor != bettor {
			return ErrUnauthorized
		}
		if !bet.Settled || bet.Payout == 0 {
			return ErrNotClaimable
		}
		if bet.Claimed {
			return ErrAlreadyClaimed
		}

		now := tx.Now()
		res := tx.DB().Model(&models.Bet{}).
			Where("id = ? AND claimed = ?", betID, false).
			Updates(map[string]any{"claimed": true, "claimed_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to mark bet claimed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}
		bet.Claimed = true
		bet.ClaimedAt = &now

		return tx.Emit(events.PayoutClaimed, map[string]any{
			"bet_id": bet.ID.String(),
			"bettor": bettor,
			"amount": bet.Payout,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bet payout claimed",
		zap.String("bet_id", bet.ID.String()),
		zap.String("bettor", bettor),
		zap.Stringer("amount", bet.Payout),
	)
	return &bet, nil
}

// UserStats aggregates a bettor's record. Wins and losses count bets on
// resolved markets only; refunds of cancelled markets are neither.
func (s *BetService) UserStats(ctx context.Context, bettor string) (*models.UserStats, error) {
	stats := models.UserStats{}
	err := s.ledger.DB().WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total_bets,
			COALESCE(SUM(b.amount), 0) AS total_volume,
			COALESCE(SUM(CASE WHEN m.status = ? AND b.outcome = m.outcome THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(CASE WHEN m.status = ? AND b.outcome <> m.outcome THEN 1 ELSE 0 END), 0) AS losses,
			COALESCE(SUM(CASE WHEN m.status = ? THEN 1 ELSE 0 END), 0) AS open_bets,
			COALESCE(SUM(b.payout), 0) AS total_payout
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.bettor = ?`,
		models.MarketStatusSettled, models.MarketStatusSettled, models.MarketStatusActive, bettor,
	).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	stats.Bettor = bettor
	return &stats, nil
}

// LeaderboardQuery selects the markets a leaderboard is computed over. A zero
// Window covers all time.
type LeaderboardQuery struct {
	Window   time.Duration
	Category string
	Limit    int
}

// Leaderboard ranks bettors by net profit on markets settled within
// q.Window, breaking ties by wins. Cancelled markets are refunds and do not
// count.
func (s *BetService) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]models.LeaderboardEntry, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50
	}

	query := s.ledger.DB().WithContext(ctx).
		Table("bets AS b").
		Select(`b.bettor AS bettor,
			COALESCE(MAX(u.nickname), '') AS nickname,
			COUNT(*) AS total_bets,
			COALESCE(SUM(b.amount), 0) AS total_volume,
			COALESCE(SUM(CASE WHEN b.outcome = m.outcome THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(b.payout), 0) AS total_payout,
			COALESCE(SUM(b.payout), 0) - COALESCE(SUM(b.amount), 0) AS net_profit`).
		Joins("JOIN markets m ON m.id = b.market_id").
		Joins("LEFT JOIN users u ON u.wallet_address = b.bettor").
		Where("m.status = ?", models.MarketStatusSettled)
	if q.Window > 0 {
		query = query.Where("m.settled_at >= ?", s.ledger.Now().Add(-q.Window))
	}
	if q.Category != "" {
		query = query.Where("m.category = ?", q.Category)
	}

	var entries []models.LeaderboardEntry
	err := query.
		Group("b.bettor").
		Order("net_profit DESC, wins DESC, b.bettor ASC").
		Limit(q.Limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}

	for i := range entries {
		entries[i].Rank = i + 1
		if entries[i].TotalBets > 0 {
			entries[i].WinRate = float64(entries[i].Wins) / float64(entries[i].TotalBets)
		}
	}
	return entries, nil
}

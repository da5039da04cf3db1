package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blink-market/internal/events"
	"blink-market/internal/ledger"
	"blink-market/internal/logger"
	"blink-market/internal/models"
	"blink-market/internal/odds"
)

// MarketService owns market creation and the creator-side lifecycle.
type MarketService struct {
	ledger     *ledger.Ledger
	settlement *SettlementService
	policy     BettingPolicy
	log        *zap.Logger
}

func NewMarketService(l *ledger.Ledger, settlement *SettlementService, policy BettingPolicy, log *zap.Logger) *MarketService {
	return &MarketService{
		ledger:     l,
		settlement: settlement,
		policy:     policy,
		log:        logger.OrNop(log).Named("markets"),
	}
}

// CreateMarket validates req and opens an Active market with empty pools.
func (s *MarketService) CreateMarket(ctx context.Context, req *CreateMarketRequest) (*models.Market, error) {
	if err := ValidateMarket(req, s.policy); err != nil {
		return nil, err
	}

	params, err := decodeParams(req.PredictionType, req.Params)
	if err != nil {
		return nil, err
	}
	encoded, err := models.EncodeParams(req.PredictionType, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	tmpl := models.Templates[req.PredictionType]
	market := &models.Market{
		PredictionType: req.PredictionType,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Category:       tmpl.Category,
		TargetID:       strings.TrimSpace(req.TargetID),
		Threshold:      req.Threshold,
		Params:         encoded,
		Deadline:       s.ledger.Now().Add(req.Duration).UTC(),
		Creator:        req.Creator,
		CreatorStake:   req.CreatorStake,
	}
	if err := s.ledger.CreateMarket(ctx, market); err != nil {
		return nil, err
	}

	s.log.Info("market created",
		zap.Uint("market_id", market.ID),
		zap.Stringer("type", market.PredictionType),
		zap.String("creator", market.Creator),
		zap.Stringer("creator_stake", market.CreatorStake),
		zap.Time("deadline", market.Deadline),
	)
	return market, nil
}

// GetMarket retrieves a market by ID
func (s *MarketService) GetMarket(ctx context.Context, id uint) (*models.Market, error) {
	var market models.Market
	if err := s.ledger.DB().WithContext(ctx).First(&market, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return &market, nil
}

type MarketFilter struct {
	Status   models.MarketStatus
	Type     *models.PredictionType
	Category string
	Creator  string
	Limit    int
	Offset   int
}

// ListMarkets returns markets matching filter, soonest deadline first.
func (s *MarketService) ListMarkets(ctx context.Context, filter MarketFilter) ([]models.Market, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	query := s.ledger.DB().WithContext(ctx).Model(&models.Market{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("prediction_type = ?", *filter.Type)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Creator != "" {
		query = query.Where("creator = ?", filter.Creator)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count markets: %w", err)
	}

	var markets []models.Market
	if err := query.Order("deadline ASC").Order("id ASC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&markets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list markets: %w", err)
	}
	return markets, total, nil
}

// DueMarkets returns Active markets whose deadline has passed.
func (s *MarketService) DueMarkets(ctx context.Context, limit int) ([]models.Market, error) {
	var markets []models.Market
	err := s.ledger.DB().WithContext(ctx).
		Where("status = ? AND deadline <= ?", models.MarketStatusActive, s.ledger.Now().UTC()).
		Order("deadline ASC").
		Limit(limit).
		Find(&markets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get due markets: %w", err)
	}
	return markets, nil
}

// MarketView is a market with its live odds.
type MarketView struct {
	models.Market
	Odds odds.Board `json:"odds"`
}

func NewMarketView(m *models.Market) MarketView {
	return MarketView{Market: *m, Odds: odds.BoardFor(m.Pools())}
}

// WithdrawCreatorStake lets the creator pull out of a market nobody has bet
// on yet. The market is cancelled and the stake returned.
func (s *MarketService) WithdrawCreatorStake(ctx context.Context, marketID uint, caller string) (*models.Settlement, error) {
	return s.settlement.cancel(ctx, marketID, "withdrawn by creator", func(m *models.Market) error {
		if m.Creator != caller {
			return ErrNotCreator
		}
		if m.TotalBets > 0 {
			return ErrMarketHasBets
		}
		return nil
	})
}

// CancelMarket is the administrative cancellation: all bets are refunded.
func (s *MarketService) CancelMarket(ctx context.Context, marketID uint, reason string) (*models.Settlement, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by admin"
	}
	return s.settlement.Cancel(ctx, marketID, reason)
}

// ClaimCreatorPayout marks the creator's stake and reward as paid out.
// It succeeds once per market.
func (s *MarketService) ClaimCreatorPayout(ctx context.Context, marketID uint, caller string) (*models.Settlement, error) {
	var claimed models.Settlement
	err := s.ledger.Update(ctx, marketID, func(tx *ledger.Tx) error {
		m := tx.Market()
		if m.Creator != caller {
			return ErrNotCreator
		}
		if !m.Status.Terminal() {
			return ErrNotClaimable
		}

		if err := tx.DB().Where("market_id = ?", m.ID).First(&claimed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotClaimable
			}
			return fmt.Errorf("failed to load settlement: %w", err)
		}
		if claimed.CreatorPayout() == 0 {
			return ErrNotClaimable
		}
		if claimed.CreatorClaimed {
			return ErrAlreadyClaimed
		}

		res := tx.DB().Model(&models.Settlement{}).
			Where("id = ? AND creator_claimed = ?", claimed.ID, false).
			Update("creator_claimed", true)
		if res.Error != nil {
			return fmt.Errorf("failed to mark creator payout claimed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}
		claimed.CreatorClaimed = true

		return tx.Emit(events.PayoutClaimed, map[string]any{
			"creator": caller,
			"amount":  claimed.CreatorPayout(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("creator payout claimed",
		zap.Uint("market_id", marketID),
		zap.String("creator", caller),
		zap.Stringer("amount", claimed.CreatorPayout()),
	)
	return &claimed, nil
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blink-market/internal/auth"
	"blink-market/internal/models"
	"blink-market/internal/resolution"
	"blink-market/internal/services"
)

// ProgressReporter reads live metrics for a market. *resolution.ThresholdResolver
// satisfies it.
type ProgressReporter interface {
	Progress(ctx context.Context, m *models.Market) (*resolution.Progress, error)
}

type MarketHandler struct {
	markets    *services.MarketService
	settlement *services.SettlementService
	progress   ProgressReporter
	log        *zap.Logger
}

func NewMarketHandler(markets *services.MarketService, settlement *services.SettlementService, progress ProgressReporter, log *zap.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, settlement: settlement, progress: progress, log: log}
}

// GetMarkets returns markets with optional filtering
// GET /api/markets?status=active&type=VIRAL_CAST&category=content&creator=0x..
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	limit, offset := pagination(c)
	filter := services.MarketFilter{
		Status:   models.MarketStatus(strings.ToUpper(c.DefaultQuery("status", "active"))),
		Category: c.Query("category"),
		Creator:  c.Query("creator"),
		Limit:    limit,
		Offset:   offset,
	}
	if filter.Status == "ALL" {
		filter.Status = ""
	}
	if raw := c.Query("type"); raw != "" {
		t, err := parsePredictionType(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Type = &t
	}

	markets, total, err := h.markets.ListMarkets(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	views := make([]services.MarketView, len(markets))
	for i := range markets {
		views[i] = services.NewMarketView(&markets[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
		"count":   len(views),
		"total":   total,
	})
}

// GetMarketByID returns a market with its current odds
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	market, err := h.markets.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    services.NewMarketView(market),
	})
}

// GetMarketMetrics reports the target's live progress and the projected
// likelihood of reaching the threshold before the deadline.
// GET /api/markets/:id/metrics
func (h *MarketHandler) GetMarketMetrics(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	market, err := h.markets.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	progress, err := h.progress.Progress(c.Request.Context(), market)
	if err != nil {
		if errors.Is(err, resolution.ErrProviderUnavailable) {
			h.log.Warn("metrics provider failed", zap.Uint("market_id", id), zap.Error(err))
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": progress})
}

// GetSettlement returns how a finalized market's funds were distributed
func (h *MarketHandler) GetSettlement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	settlement, err := h.settlement.GetSettlement(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settlement})
}

// GetTemplates lists the supported market kinds
func (h *MarketHandler) GetTemplates(c *gin.Context) {
	templates := make([]models.MarketTemplate, 0, len(models.Templates))
	for _, t := range models.Templates {
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Type < templates[j].Type })
	c.JSON(http.StatusOK, gin.H{"success": true, "data": templates})
}

type createMarketBody struct {
	PredictionType string          `json:"prediction_type" binding:"required"`
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description"`
	TargetID       string          `json:"target_id" binding:"required"`
	Threshold      int64           `json:"threshold"`
	DurationHours  int             `json:"duration_hours" binding:"required"`
	CreatorStake   string          `json:"creator_stake"`
	Params         json.RawMessage `json:"params"`
}

// CreateMarket opens a market owned by the caller
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	wallet, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body createMarketBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := parsePredictionType(body.PredictionType)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var stake models.Amount
	if body.CreatorStake != "" {
		if stake, err = models.ParseAmount(body.CreatorStake); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	market, err := h.markets.CreateMarket(c.Request.Context(), &services.CreateMarketRequest{
		PredictionType: t,
		Title:          body.Title,
		Description:    body.Description,
		TargetID:       body.TargetID,
		Threshold:      body.Threshold,
		Duration:       time.Duration(body.DurationHours) * time.Hour,
		Creator:        wallet,
		CreatorStake:   stake,
		Params:         body.Params,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    services.NewMarketView(market),
	})
}

// WithdrawCreatorStake cancels the caller's market while it has no bets
func (h *MarketHandler) WithdrawCreatorStake(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	wallet, _ := auth.GetWalletAddress(c)
	settlement, err := h.markets.WithdrawCreatorStake(c.Request.Context(), id, wallet)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settlement})
}

// ClaimCreatorPayout pays out the creator's stake and reward once
func (h *MarketHandler) ClaimCreatorPayout(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	wallet, _ := auth.GetWalletAddress(c)
	settlement, err := h.markets.ClaimCreatorPayout(c.Request.Context(), id, wallet)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"market_id": settlement.MarketID,
			"amount":    settlement.CreatorPayout(),
		},
	})
}

// CancelMarket refunds every bet (admin only)
func (h *MarketHandler) CancelMarket(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	settlement, err := h.markets.CancelMarket(c.Request.Context(), id, body.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	wallet, _ := auth.GetWalletAddress(c)
	h.log.Info("market cancelled by admin", zap.Uint("market_id", id), zap.String("admin", wallet))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settlement})
}

// SettleMarket records an oracle outcome (oracle only)
func (h *MarketHandler) SettleMarket(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Outcome             *bool  `json:"outcome" binding:"required"`
		Override            bool   `json:"override"`
		ForfeitCreatorStake bool   `json:"forfeit_creator_stake"`
		Reason              string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	settlement, err := h.settlement.Settle(c.Request.Context(), services.SettleRequest{
		MarketID:            id,
		Outcome:             *body.Outcome,
		OracleOverride:      body.Override,
		ForfeitCreatorStake: body.ForfeitCreatorStake,
		Reason:              body.Reason,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settlement})
}

// parsePredictionType accepts either the type name or its numeric code.
func parsePredictionType(s string) (models.PredictionType, error) {
	if n, err := strconv.Atoi(s); err == nil {
		t := models.PredictionType(n)
		if !t.Valid() {
			return 0, services.ErrInvalidMarket
		}
		return t, nil
	}
	return models.ParsePredictionType(s)
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blink-market/internal/auth"
	"blink-market/internal/models"
	"blink-market/internal/services"
)

type BetHandler struct {
	bets   *services.BetService
	policy services.BettingPolicy
	log    *zap.Logger
}

func NewBetHandler(bets *services.BetService, policy services.BettingPolicy, log *zap.Logger) *BetHandler {
	return &BetHandler{bets: bets, policy: policy, log: log}
}

// PlaceBet stakes the caller's funds on one side of a market.
// POST /api/markets/:id/bets {"side":"yes","amount":"12.5"}
func (h *BetHandler) PlaceBet(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	wallet, _ := auth.GetWalletAddress(c)

	var body struct {
		Side   string `json:"side" binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	amount, err := models.ParseAmount(body.Amount)
	if err != nil {
		respondError(c, h.log, services.ErrInvalidAmount)
		return
	}

	bet, err := h.bets.PlaceBet(c.Request.Context(), services.PlaceBetRequest{
		MarketID: id,
		Bettor:   wallet,
		Side:     body.Side,
		Amount:   amount,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": bet})
}

// Quote prices a bet at the current pools without placing it.
// GET /api/markets/:id/quote?side=yes&amount=10
func (h *BetHandler) Quote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	side, ok := models.ParseSide(c.Query("side"))
	if !ok {
		respondError(c, h.log, services.ErrInvalidSide)
		return
	}
	amount, err := models.ParseAmount(c.DefaultQuery("amount", "1"))
	if err != nil {
		respondError(c, h.log, services.ErrInvalidAmount)
		return
	}

	quote, err := h.bets.Quote(c.Request.Context(), id, side, amount)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": quote})
}

// GetMarketBets lists a market's bets, newest first
func (h *BetHandler) GetMarketBets(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	bets, err := h.bets.ListMarketBets(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": bets, "count": len(bets)})
}

// GetBet returns a single bet
func (h *BetHandler) GetBet(c *gin.Context) {
	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid bet id")
		return
	}
	bet, err := h.bets.GetBet(c.Request.Context(), betID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": bet})
}

// ClaimBet pays out a settled bet to its owner once
func (h *BetHandler) ClaimBet(c *gin.Context) {
	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid bet id")
		return
	}
	wallet, _ := auth.GetWalletAddress(c)

	bet, err := h.bets.ClaimBet(c.Request.Context(), betID, wallet)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": bet})
}

// GetUserBets lists the caller's bets, newest first
func (h *BetHandler) GetUserBets(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)
	limit, offset := pagination(c)
	bets, err := h.bets.ListUserBets(c.Request.Context(), wallet, limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": bets, "count": len(bets)})
}

// GetUserStats summarises the caller's betting history
func (h *BetHandler) GetUserStats(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)
	stats, err := h.bets.UserStats(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

var leaderboardPeriods = map[string]time.Duration{
	"daily":    24 * time.Hour,
	"weekly":   7 * 24 * time.Hour,
	"monthly":  30 * 24 * time.Hour,
	"all-time": 0,
}

// GetLeaderboard ranks bettors by profit over settled markets
// GET /api/leaderboard?period=weekly&category=content&limit=50
func (h *BetHandler) GetLeaderboard(c *gin.Context) {
	window, ok := leaderboardPeriods[c.DefaultQuery("period", "all-time")]
	if !ok {
		badRequest(c, "period must be one of daily, weekly, monthly, all-time")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		badRequest(c, "invalid limit")
		return
	}

	entries, err := h.bets.Leaderboard(c.Request.Context(), services.LeaderboardQuery{
		Window:   window,
		Category: c.Query("category"),
		Limit:    limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries, "count": len(entries)})
}

// GetLimits exposes the bet and creator stake bounds
// GET /api/config/limits
func (h *BetHandler) GetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"min_bet":             h.policy.MinBet,
			"max_bet":             h.policy.MaxBet,
			"house_edge_bps":      h.policy.HouseEdgeBps,
			"min_creator_stake":   h.policy.MinCreatorStake,
			"max_creator_stake":   h.policy.MaxCreatorStake,
			"creator_reward_bps":  h.policy.CreatorRewardBps,
			"min_activity_volume": h.policy.MinActivityVolume,
			"amount_decimals":     models.AmountDecimals,
		},
	})
}

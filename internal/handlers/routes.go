package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blink-market/internal/auth"
)

// Router bundles everything the HTTP routes need.
type Router struct {
	Auth    *AuthHandler
	Markets *MarketHandler
	Bets    *BetHandler
	Stream  *StreamHandler

	Issuer        *auth.TokenIssuer
	AdminWallets  []string
	OracleWallets []string
	Log           *zap.Logger
}

// Register mounts every route on r.
func (rt *Router) Register(r *gin.Engine) {
	authMW := auth.AuthMiddleware(rt.Issuer, rt.Log)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	authRoutes := r.Group("/auth")
	{
		authRoutes.GET("/nonce", rt.Auth.GetNonce)
		authRoutes.POST("/wallet", rt.Auth.WalletLogin)
		authRoutes.GET("/me", authMW, rt.Auth.GetMe)
	}

	r.GET("/api/config/limits", rt.Bets.GetLimits)
	r.GET("/api/templates", rt.Markets.GetTemplates)
	r.GET("/api/markets", rt.Markets.GetMarkets)
	r.GET("/api/markets/:id", rt.Markets.GetMarketByID)
	r.GET("/api/markets/:id/quote", rt.Bets.Quote)
	r.GET("/api/markets/:id/bets", rt.Bets.GetMarketBets)
	r.GET("/api/markets/:id/settlement", rt.Markets.GetSettlement)
	r.GET("/api/markets/:id/metrics", rt.Markets.GetMarketMetrics)
	r.GET("/api/leaderboard", rt.Bets.GetLeaderboard)
	r.GET("/api/bets/:id", rt.Bets.GetBet)
	if rt.Stream != nil {
		r.GET("/ws/markets", rt.Stream.Stream)
	}

	api := r.Group("/api")
	api.Use(authMW)
	{
		api.POST("/markets", rt.Markets.CreateMarket)
		api.POST("/markets/:id/bets", rt.Bets.PlaceBet)
		api.POST("/markets/:id/withdraw", rt.Markets.WithdrawCreatorStake)
		api.POST("/markets/:id/claim-creator", rt.Markets.ClaimCreatorPayout)
		api.POST("/bets/:id/claim", rt.Bets.ClaimBet)

		api.GET("/user/bets", rt.Bets.GetUserBets)
		api.GET("/user/stats", rt.Bets.GetUserStats)
	}

	admin := r.Group("/api/admin")
	admin.Use(authMW, auth.RequireWallet(rt.AdminWallets))
	{
		admin.POST("/markets/:id/cancel", rt.Markets.CancelMarket)
	}

	oracle := r.Group("/api/oracle")
	oracle.Use(authMW, auth.RequireWallet(rt.OracleWallets))
	{
		oracle.POST("/markets/:id/settle", rt.Markets.SettleMarket)
	}
}

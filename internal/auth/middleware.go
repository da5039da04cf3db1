package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxUserID        = "user_id"
	ctxWalletAddress = "wallet_address"
)

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware(issuer *TokenIssuer, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			return
		}

		claims, err := issuer.ValidateToken(parts[1])
		if err != nil {
			if log != nil {
				log.Debug("token validation failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxWalletAddress, claims.WalletAddress)
		c.Next()
	}
}

// RequireWallet only lets through wallets in allowed. It must run after
// AuthMiddleware.
func RequireWallet(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, w := range allowed {
		set[NormalizeAddress(w)] = struct{}{}
	}
	return func(c *gin.Context) {
		addr, ok := GetWalletAddress(c)
		if _, allowed := set[NormalizeAddress(addr)]; !ok || !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetWalletAddress retrieves the wallet address from the context
func GetWalletAddress(c *gin.Context) (string, bool) {
	addr, exists := c.Get(ctxWalletAddress)
	if !exists {
		return "", false
	}
	address, ok := addr.(string)
	return address, ok && address != ""
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blink-market/internal/auth"
	"blink-market/internal/services"
)

// SignInMessage is the text a wallet signs to log in. The nonce must stay
// at the end of the message.
const SignInMessage = "Sign in to blink-market at %s"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	issuer      *auth.TokenIssuer
	nonces      auth.NonceStore
	verifier    auth.MultiVerifier
	log         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService, issuer *auth.TokenIssuer, nonces auth.NonceStore, verifier auth.MultiVerifier, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		issuer:      issuer,
		nonces:      nonces,
		verifier:    verifier,
		log:         log,
	}
}

// GetNonce issues a single-use nonce and the message to sign with it.
// GET /auth/nonce
func (h *AuthHandler) GetNonce(c *gin.Context) {
	nonce, err := h.nonces.Issue(c.Request.Context())
	if err != nil {
		h.log.Error("failed to issue nonce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nonce":   nonce,
		"message": fmt.Sprintf(SignInMessage, nonce),
	})
}

// WalletLogin authenticates a wallet by a signature over the sign-in
// message for an outstanding nonce. EVM wallets sign with personal_sign, Solana
// wallets with ed25519.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nonce, ok := auth.ExtractNonce(req.Message)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not end with a nonce"})
		return
	}
	if req.Message != fmt.Sprintf(SignInMessage, nonce) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unexpected sign-in message"})
		return
	}

	// Verify before consuming so a bad signature cannot burn someone else's nonce.
	address, kind, err := h.verifier.VerifyWallet(req.WalletAddress, req.Message, req.Signature)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrInvalidAddress) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	fresh, err := h.nonces.Consume(c.Request.Context(), nonce)
	if err != nil {
		h.log.Error("failed to consume nonce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		return
	}
	if !fresh {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "nonce expired or already used"})
		return
	}

	user, err := h.authService.ProcessWalletLogin(c.Request.Context(), address, kind)
	if err != nil {
		h.log.Error("wallet login failed", zap.String("wallet", address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		return
	}

	token, err := h.issuer.GenerateToken(user.ID, user.WalletAddress, string(user.WalletKind))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// GetMe returns the currently authenticated user's profile
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	wallet, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.GetUserByWallet(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

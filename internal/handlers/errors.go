package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blink-market/internal/locks"
	"blink-market/internal/resolution"
	"blink-market/internal/services"
	"blink-market/internal/socialgraph"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrMarketNotFound),
		errors.Is(err, services.ErrBetNotFound),
		errors.Is(err, services.ErrSettlementNotFound),
		errors.Is(err, resolution.ErrNoMetric),
		errors.Is(err, socialgraph.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrMarketNotActive),
		errors.Is(err, services.ErrMarketExpired),
		errors.Is(err, services.ErrAlreadyFinalized),
		errors.Is(err, services.ErrNotReadyToSettle),
		errors.Is(err, services.ErrStorageConflict),
		errors.Is(err, services.ErrMarketHasBets),
		errors.Is(err, services.ErrNotClaimable),
		errors.Is(err, services.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidSide),
		errors.Is(err, services.ErrInvalidMarket):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, locks.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, resolution.ErrProviderUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as JSON. Internal failures are logged and their
// detail is withheld from the client.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["problems"] = verr.Problems
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

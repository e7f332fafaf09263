package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"estatehub/api/internal/middleware"
	"estatehub/api/internal/service"
)

// respondError maps the service error taxonomy onto HTTP. Ownership
// rejections are logged at warn with the principal, since they are
// security-relevant rather than plain bad input.
func respondError(c *gin.Context, log zerolog.Logger, principalID string, err error) {
	var (
		validation   *service.ValidationError
		ownership    *service.OwnershipError
		throttle     *service.ThrottleError
		inconsistent *service.StorageInconsistencyError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": validation.Reason})
	case errors.As(err, &ownership):
		log.Warn().
			Str("principal_id", principalID).
			Str("reason", ownership.Reason).
			Msg("ownership rejection")
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "detail": ownership.Reason})
	case errors.As(err, &throttle):
		c.Header("Retry-After", fmt.Sprintf("%d", int(throttle.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
	case errors.As(err, &inconsistent):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "images_missing",
			"missingKeys": inconsistent.MissingKeys,
		})
	default:
		log.Error().Err(err).Str("principal_id", principalID).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func principalID(c *gin.Context) (string, bool) {
	val, exists := c.Get(middleware.ContextPrincipalID)
	if !exists {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

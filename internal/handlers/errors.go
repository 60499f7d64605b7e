package handlers

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/services"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

// statusFor maps an error to its HTTP status. Verification failures get
// their own status unless the registry itself was unreachable.
func statusFor(err error) int {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindValidation && apperrors.CodeOf(err) == services.ErrVerificationFailed.Code {
		return http.StatusUnprocessableEntity
	}
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindStateConflict, apperrors.KindConcurrencyConflict:
		return http.StatusConflict
	case apperrors.KindExternalService:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the error body. Internal errors are logged and
// reported, and their details are not leaked to the caller.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error(), "code": apperrors.CodeOf(err)}

	if apperrors.IsRetryable(err) {
		body["retryable"] = true
	}
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		if apperrors.KindOf(err) == apperrors.KindInternal {
			body["error"] = "internal server error"
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "code": apperrors.ErrValidation.Code})
}

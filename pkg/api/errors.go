package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/storage"
)

// statusFor maps a processing error code to an HTTP status.
func statusFor(code scanerrors.ErrorCode) int {
	switch code {
	case scanerrors.ErrorDecodeFailed:
		return http.StatusBadRequest
	case scanerrors.ErrorOCRFailed,
		scanerrors.ErrorStructuringFailed,
		scanerrors.ErrorUnparseable,
		scanerrors.ErrorTranslationFailed,
		scanerrors.ErrorCountMismatch:
		return http.StatusBadGateway
	case scanerrors.ErrorProcessingTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	logger := logging.Ctx(c.Request.Context(), log).WithError(err)

	var pe *scanerrors.ProcessingError
	switch {
	case errors.As(err, &pe):
		status := statusFor(pe.Code)
		body := pe.ToMap()
		body["error"] = pe.Message
		logger.WithField("error_code", pe.Code).Warn("Request failed")
		c.JSON(status, body)
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
	case errors.Is(err, scanerrors.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		logger.Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	logging.Ctx(c.Request.Context(), log).Warn(msg)
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

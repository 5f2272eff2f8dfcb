package utils

import (
	"errors"
	"net/http"

	"tourbook/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// StatusFor maps an error kind to the HTTP status a client should see.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInputValidation:
		return http.StatusBadRequest
	case models.KindInventoryConflict, models.KindReconciliationConflict:
		return http.StatusConflict
	case models.KindPricingUnavailable, models.KindVoucherRejected:
		return http.StatusUnprocessableEntity
	case models.KindSignatureInvalid:
		return http.StatusUnauthorized
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// DomainErrorJSON writes err using its domain kind and code. Persistence failures
// are reported without internal detail.
func DomainErrorJSON(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := StatusFor(kind)
	var de *models.DomainError
	if errors.As(err, &de) {
		GetLogger().Info("request rejected", zap.String("code", de.Code), zap.String("kind", string(kind)))
		c.JSON(status, ErrorResponse{Message: de.Message, Code: de.Code})
		return
	}
	GetLogger().Error("request failed", zap.Error(err))
	c.JSON(status, ErrorResponse{
		Message: "Internal Server Error",
		Code:    string(models.KindPersistenceFailure),
		Details: "The request could not be completed. It is safe to retry.",
	})
}

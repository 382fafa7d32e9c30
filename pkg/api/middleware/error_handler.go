package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
)

// ErrorHandler turns panics into 500 responses and renders any errors
// handlers attached to the context without writing a body themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Error:   "Internal Server Error",
					Message: "An unexpected error occurred",
					Code:    "INTERNAL_ERROR",
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		status := c.Writer.Status()
		if status == http.StatusOK {
			status = http.StatusInternalServerError
		}
		c.JSON(status, dto.ErrorResponse{
			Error:   http.StatusText(status),
			Message: c.Errors.Last().Error(),
		})
	}
}

// AbortWithError stops the handler chain with a coded error response.
func AbortWithError(c *gin.Context, statusCode int, code, message string) {
	AbortWithErrorDetails(c, statusCode, code, message, nil)
}

// AbortWithErrorDetails is AbortWithError with a per-field detail map,
// used for validation failures.
func AbortWithErrorDetails(c *gin.Context, statusCode int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(statusCode, dto.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// AbortWithDomainError maps well-known storage and state machine errors
// onto HTTP statuses. Anything unrecognized becomes a 500.
func AbortWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		AbortWithError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, storage.ErrInvalidID):
		AbortWithError(c, http.StatusBadRequest, "INVALID_ID", err.Error())
	case errors.Is(err, state.ErrInvalidTransition):
		AbortWithError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, state.ErrOptimisticLock):
		AbortWithError(c, http.StatusConflict, "CONCURRENT_UPDATE", err.Error())
	default:
		AbortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// DataResponse wraps successful payloads
type DataResponse struct {
	Data interface{} `json:"data"`
}

func sendError(c *gin.Context, status int, err string, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   err,
		Message: message,
		Code:    status,
	})
}

func sendData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, DataResponse{Data: data})
}

// sendDomainError maps entry and metric failures onto HTTP statuses
func sendDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fuel.ErrEntryNotFound):
		sendError(c, http.StatusNotFound, "Entry not found", err.Error())
	case errors.Is(err, service.ErrInvalidPayload):
		sendError(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, fuel.ErrNonMonotonicOdometer):
		sendError(c, http.StatusUnprocessableEntity, "Metrics unavailable", err.Error())
	case fuel.IsValidationError(err):
		sendError(c, http.StatusUnprocessableEntity, "Validation failed", err.Error())
	default:
		_ = c.Error(err)
		sendError(c, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred")
	}
}

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// StatusFor maps a domain error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrInvalidConfig), errors.Is(err, types.ErrNavigation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInstanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInstanceDestroyed):
		return http.StatusGone
	case errors.Is(err, types.ErrStateUnavailable):
		return http.StatusConflict
	case errors.Is(err, types.ErrScript), errors.Is(err, types.ErrCapture):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrUnsupportedPlatform):
		return http.StatusNotImplemented
	case errors.Is(err, types.ErrLoadTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// abort writes the error body and stops the chain
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

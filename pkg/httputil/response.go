package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithMessage sends a success response carrying only a message.
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Status:  StatusSuccess,
		Message: message,
	})
}

// RespondWithError sends an error response. Errors that carry no AppError are
// reported as a generic internal error, their cause is only logged.
func RespondWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ErrorStatus(err), ErrorResponse(c, err))
}

// ErrorStatus returns the HTTP status for err.
func ErrorStatus(err error) int {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// ErrorResponse builds the error envelope for err.
func ErrorResponse(c *gin.Context, err error) Response {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}

	if appErr.Kind == apperrors.KindInternal {
		log.Error().Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("internal error")
	}

	return Response{
		Status:  StatusError,
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/safar/order-engine/internal/apperr"
	"go.uber.org/zap"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func respondWithMeta(c *gin.Context, data, meta interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

func respondMessage(c *gin.Context, message string) {
	respondOK(c, gin.H{"detail": message})
}

// respondError renders err with the status of its kind. Anything that is not
// an *apperr.Error is logged and hidden behind a generic 500.
func (h *handler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		abortWith(c, http.StatusInternalServerError, ErrorBody{
			Code:    apperr.KindInternal.String(),
			Message: "internal server error",
		})
		return
	}

	body := ErrorBody{Code: appErr.Kind.String(), Message: appErr.Message}
	if appErr.Details != (apperr.Details{}) {
		body.Details = appErr.Details
	}

	if appErr.Kind == apperr.KindUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	abortWith(c, appErr.Kind.HTTPStatus(), body)
}

// respondBindError reports a request body or query that failed to bind.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		abortWith(c, http.StatusBadRequest, ErrorBody{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Details: validationErrors(verrs),
		})
		return
	}

	abortWith(c, http.StatusBadRequest, ErrorBody{
		Code:    "BAD_REQUEST",
		Message: "malformed request body",
	})
}

func abortWith(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: &body})
}

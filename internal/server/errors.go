package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/accounts"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/serviceerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidRequest     = "invalid_request"
	errorCodeNotFound           = "not_found"
	errorCodeUnauthorized       = "unauthorized"
	errorCodeLastStatus         = "last_status"
	errorCodeEmailTaken         = "email_taken"
	errorCodeInvalidCredentials = "invalid_credentials"
	errorCodePasswordMismatch   = "password_mismatch"
	errorCodeSuperseded         = "request_superseded"
	errorCodeInternal           = "internal_error"

	// statusClientClosedRequest marks a request whose caller went away before the answer.
	statusClientClosedRequest = 499
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// respondError maps service failures onto HTTP statuses without leaking internals.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	if h.respondIfSuperseded(c) {
		return
	}

	var validation *history.ValidationError
	var input *accounts.InputError
	switch {
	case errors.Is(err, context.Canceled):
		h.logger.Info("request cancelled by client",
			zap.String("path", c.FullPath()),
			zap.String("code", serviceerr.CodeOf(err)))
		c.AbortWithStatus(statusClientClosedRequest)
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorCodeInvalidRequest, Message: validation.Reason})
	case errors.As(err, &input):
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorCodeInvalidRequest, Message: input.Reason})
	case errors.Is(err, history.ErrNotFound), errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: errorCodeNotFound, Message: "resource not found"})
	case errors.Is(err, history.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: errorCodeUnauthorized, Message: "not allowed to access this application"})
	case errors.Is(err, history.ErrInvariantViolation):
		c.JSON(http.StatusConflict, errorResponse{Error: errorCodeLastStatus, Message: "an application must keep at least one status"})
	case errors.Is(err, accounts.ErrEmailTaken):
		c.JSON(http.StatusConflict, errorResponse{Error: errorCodeEmailTaken, Message: "email already in use"})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: errorCodeInvalidCredentials, Message: "invalid email or password"})
	case errors.Is(err, accounts.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorCodePasswordMismatch, Message: "password is incorrect"})
	default:
		code := serviceerr.CodeOf(err)
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: errorCodeInternal, Message: "internal server error", Code: code})
	}
}

func respondInvalidRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: errorCodeInvalidRequest, Message: message})
}

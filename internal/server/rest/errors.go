package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/storage"
	"github.com/gin-gonic/gin"
)

// errorStatus maps a service error to a status code and the message shown
// to the client.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrEmailTaken):
		return http.StatusBadRequest, common.ErrEmailTaken.Error()
	case errors.Is(err, common.ErrUsernameTaken):
		return http.StatusBadRequest, common.ErrUsernameTaken.Error()
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest, "Invalid file name"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case isAuthError(err):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, storage.ErrUploadFailed):
		return http.StatusBadGateway, storage.ErrUploadFailed.Error()
	case errors.Is(err, storage.ErrRemoveFailed):
		return http.StatusBadGateway, storage.ErrRemoveFailed.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, common.ErrorUnauthorized) ||
		errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrTokenRevoked)
}

// validationMessage strips the sentinel prefix from "validation error: <why>".
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, common.ErrorValidation.Error()+": "); i >= 0 {
		return msg[i+len(common.ErrorValidation.Error())+2:]
	}
	return msg
}

func (s *Server) respondError(c *gin.Context, err error) {
	code, msg := errorStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

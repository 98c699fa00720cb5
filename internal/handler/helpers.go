package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/middleware"
	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

// mapErrCode translates a service error to its wire code and a client-safe
// message.
func mapErrCode(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrForbidden):
		return errcode.ErrForbidden, "forbidden"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrSourceTooLarge):
		return errcode.ErrSourceTooLarge, err.Error()
	case errors.Is(err, appErr.ErrIngestion):
		return errcode.ErrIngestionFailed, err.Error()
	case errors.Is(err, appErr.ErrJobTerminal):
		return errcode.ErrJobTerminal, "job already finished"
	case errors.Is(err, appErr.ErrJobCancelled):
		return errcode.ErrJobCancelled, "job cancelled"
	case errors.Is(err, appErr.ErrJobValidation):
		return errcode.ErrJobValidation, err.Error()
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	case errors.Is(err, appErr.ErrProviderAuth):
		return errcode.ErrProviderAuth, "provider auth failed"
	case errors.Is(err, appErr.ErrProviderRateLimited):
		return errcode.ErrProviderRateLimited, "provider rate limited"
	case errors.Is(err, appErr.ErrProviderTimeout):
		return errcode.ErrProviderTimeout, "provider timeout"
	case errors.Is(err, appErr.ErrProviderUnavailable):
		return errcode.ErrProviderUnavailable, "provider unavailable"
	case errors.Is(err, appErr.ErrSynthesisProvider):
		return errcode.ErrSynthesisFailed, "synthesis failed before any output"
	default:
		return errcode.ErrInternal, "internal error"
	}
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	code, message := mapErrCode(err)
	response.Error(c, code, message)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	value := c.Query(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

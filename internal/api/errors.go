package api

import (
	"errors"
	"net/http"

	"studyrag/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var errInvalidBody = errors.New("malformed request body")

// writeError maps a pipeline error to a status and a message safe to show
// the caller. Internal details only go to the log.
func writeError(c *gin.Context, err error) {
	status, msg := toAPIError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.Any("request_id", requestID),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func toAPIError(err error) (int, string) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, "Malformed JSON request body."
	case errors.Is(err, rag.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, rag.ErrNoContentFound):
		return http.StatusNotFound, "No relevant content found. Upload study material first."
	case errors.Is(err, rag.ErrCompletion):
		return http.StatusInternalServerError, "The language model is unavailable. Please retry shortly."
	default:
		return http.StatusInternalServerError, "Internal server error. Please retry or check service logs."
	}
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"linkup/errors"

	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "Internal server error"

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation), errors.Is(err, errors.ErrUpload):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageOf is what the caller sees. Internal details never leave the server.
func messageOf(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return internalErrorMessage
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusNotFound:
		return "Not found"
	default:
		return err.Error()
	}
}

func abortWithError(c *gin.Context, log *slog.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
	} else {
		log.Debug("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": messageOf(status, err)})
}

// bindJSON decodes the body, turning decoding failures into validation errors.
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.ErrImageTooLarge
		}
		return fmt.Errorf("%w: malformed request body", errors.ErrValidation)
	}
	return nil
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/photoflow-io/photoflow/internal/blobstore"
	"github.com/photoflow-io/photoflow/internal/photorepo"
)

// ErrorEnvelope is the uniform error response body (§7 "User-visible error
// responses are a uniform envelope").
type ErrorEnvelope struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Path      string         `json:"path"`
	Details   map[string]any `json:"details,omitempty"`
}

// Failure codes from the §6/§7 taxonomy. FILE_TOO_LARGE and
// UNSUPPORTED_FORMAT are produced per-file by ingest.validateFile (see
// ingest.CodeFileTooLarge / ingest.CodeUnsupportedFormat) and surfaced
// through ingestFileResultDTO.Code, not through this envelope.
const (
	codeValidationError = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND"
	codeProcessingError = "PROCESSING_ERROR"
	codeDatabaseError   = "DATABASE_ERROR"
	codeInternalError   = "INTERNAL_ERROR"
)

// mapServiceError maps a component error into the uniform envelope and
// its HTTP status, mirroring the teacher's pkg/api/errors.go
// mapServiceError shape, generalized to photorepo/blobstore/ingest's
// sentinel errors.
func mapServiceError(c *echo.Context, err error) error {
	code, status := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "path", c.Request().URL.Path)
	}
	return c.JSON(status, &ErrorEnvelope{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		Path:      c.Request().URL.Path,
	})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, photorepo.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return codeNotFound, http.StatusNotFound
	case errors.Is(err, photorepo.ErrConflict):
		return codeDatabaseError, http.StatusInternalServerError
	case errors.Is(err, photorepo.ErrDisallowedTransition):
		return codeProcessingError, http.StatusInternalServerError
	default:
		return codeInternalError, http.StatusInternalServerError
	}
}

func validationError(c *echo.Context, code, message string, details map[string]any) error {
	return c.JSON(http.StatusBadRequest, &ErrorEnvelope{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Path:      c.Request().URL.Path,
		Details:   details,
	})
}

func notFoundError(c *echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, &ErrorEnvelope{
		Error:     codeNotFound,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Path:      c.Request().URL.Path,
	})
}

package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxFileSize is the per-file size cap (§4.4, "Size ≤ 10 MiB").
const maxFileSize = 10 * 1024 * 1024

// MaxBatchFiles is the largest batch this pipeline accepts (§4.4).
const MaxBatchFiles = 1000

// MaxBatchBytes is the largest total request body this pipeline accepts
// (§4.4, "request body ≤ 5 GiB").
const MaxBatchBytes = 5 * 1024 * 1024 * 1024

// allowedContentTypes is the content-type allowlist (§4.4).
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// allowedExtensions is the extension allowlist, matched case-insensitively
// (§4.4).
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// File is one candidate upload before validation (§4.4 "each file has an
// original filename, a declared content type, a size, and a byte
// buffer").
type File struct {
	OriginalFilename string
	ContentType      string
	Size             int64
	Data             []byte
}

// Failure codes from the per-file validation taxonomy (§6/§7 "reasons:
// FILE_TOO_LARGE, UNSUPPORTED_FORMAT"). ValidationError carries one of
// these so the API layer can surface the right code in a batch's
// partial-failure report without re-deriving it from message text.
const (
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeValidationError   = "VALIDATION_ERROR"
)

// ValidationError is a per-file validation failure with an associated
// taxonomy code.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// validateFile runs the per-file checks in §4.4, fast-failing on the
// first violation. It does not fail the batch — callers collect the
// error per file and continue.
func validateFile(f File) error {
	if f.Size > maxFileSize {
		return &ValidationError{Code: CodeFileTooLarge,
			Message: fmt.Sprintf("file %q exceeds maximum size of %d bytes", f.OriginalFilename, maxFileSize)}
	}
	if !allowedContentTypes[strings.ToLower(f.ContentType)] {
		return &ValidationError{Code: CodeUnsupportedFormat,
			Message: fmt.Sprintf("file %q has disallowed content type %q", f.OriginalFilename, f.ContentType)}
	}
	ext := strings.ToLower(filepath.Ext(f.OriginalFilename))
	if !allowedExtensions[ext] {
		return &ValidationError{Code: CodeUnsupportedFormat,
			Message: fmt.Sprintf("file %q has disallowed extension %q", f.OriginalFilename, ext)}
	}
	if len(f.Data) == 0 {
		return &ValidationError{Code: CodeValidationError,
			Message: fmt.Sprintf("file %q is empty", f.OriginalFilename)}
	}
	return nil
}

package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/photoflow-io/photoflow/internal/blobstore"
	"github.com/photoflow-io/photoflow/internal/ingest"
	"github.com/photoflow-io/photoflow/internal/model"
)

// uploadHandler handles POST /api/v1/photos: a multipart batch upload
// (§4.4, §6 "Upload batch").
func (s *Server) uploadHandler(c *echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return validationError(c, codeValidationError, "request is not a valid multipart form", nil)
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return validationError(c, codeValidationError, "at least one file is required", nil)
	}
	if len(fileHeaders) > ingest.MaxBatchFiles {
		return validationError(c, codeValidationError,
			"batch exceeds maximum of "+strconv.Itoa(ingest.MaxBatchFiles)+" files", nil)
	}

	files := make([]ingest.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, contentType, err := readMultipartFile(fh)
		if err != nil {
			return validationError(c, codeValidationError, "failed to read upload %q: "+err.Error(), map[string]any{"filename": fh.Filename})
		}
		files = append(files, ingest.File{
			OriginalFilename: fh.Filename,
			ContentType:      contentType,
			Size:             fh.Size,
			Data:             data,
		})
	}

	result, err := s.pipeline.Ingest(c.Request().Context(), files)
	if err != nil && result == nil {
		// Empty or oversized batch: the whole request is rejected (§4.4
		// "Empty batch fails the whole request").
		return validationError(c, codeValidationError, err.Error(), nil)
	}

	resp := &ingestResponse{
		Succeeded: toPhotoDTOs(result.Succeeded),
		Failed:    make([]ingestFileResultDTO, len(result.Failed)),
	}
	for i, f := range result.Failed {
		code := f.Code
		if code == "" {
			code = codeProcessingError
		}
		resp.Failed[i] = ingestFileResultDTO{Filename: f.OriginalFilename, Error: f.Error, Code: code}
	}
	return c.JSON(http.StatusCreated, resp)
}

// readMultipartFile copies one multipart section into an owned in-memory
// buffer. The ingest pipeline fans uploads out to a worker pool, so the
// request-bound multipart reader must never outlive this handler — §9
// "Parallel-upload correctness" requires the copy happen before the file
// is handed off, which is exactly what Pipeline.Ingest expects of its
// File.Data.
func readMultipartFile(fh *multipart.FileHeader) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// listPhotosHandler handles GET /api/v1/photos?status=&page=&pageSize=
// (§6 "List photos").
func (s *Server) listPhotosHandler(c *echo.Context) error {
	status := model.Status(strings.ToUpper(c.QueryParam("status")))
	if status == "" {
		status = model.StatusUploaded
	}
	if !status.Valid() {
		return validationError(c, codeValidationError, "unknown status filter", nil)
	}

	page := pageFromQuery(c)
	photos, err := s.repo.FindByStatus(c.Request().Context(), status, page)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toPhotoDTOs(photos))
}

// getPhotoHandler handles GET /api/v1/photos/:id. 404 if not found or
// soft-deleted (§6 "Get photo by id").
func (s *Server) getPhotoHandler(c *echo.Context) error {
	photo, err := s.repo.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	if photo.Deleted() {
		return notFoundError(c, "photo not found")
	}
	return c.JSON(http.StatusOK, toPhotoDTO(photo))
}

// pollHandler handles GET /api/v1/photos/poll?since=&photoIds= (§4.9
// "Fallback polling contract", §6 "Poll status").
func (s *Server) pollHandler(c *echo.Context) error {
	sinceParam := c.QueryParam("since")
	if sinceParam == "" {
		return validationError(c, codeValidationError, "since is required", nil)
	}
	since, err := time.Parse(time.RFC3339Nano, sinceParam)
	if err != nil {
		return validationError(c, codeValidationError, "since must be RFC3339", nil)
	}

	var ids []string
	if raw := c.QueryParam("photoIds"); raw != "" {
		ids = strings.Split(raw, ",")
	}

	photos, err := s.repo.FindUpdatedAfter(c.Request().Context(), since, ids)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &pollResponse{
		Photos:    toPhotoDTOs(photos),
		Timestamp: time.Now().UTC(),
	})
}

// softDeleteHandler handles DELETE /api/v1/photos/:id (§6 "Delete photo").
func (s *Server) softDeleteHandler(c *echo.Context) error {
	if err := s.repo.DeleteByID(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// permanentDeleteHandler handles DELETE /api/v1/photos/:id/permanent
// (§6 "Permanent delete": removes row + blob + thumbnail).
func (s *Server) permanentDeleteHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	photo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapServiceError(c, err)
	}

	if err := s.blobs.Delete(ctx, blobstore.BucketPhotos, photo.StoragePath); err != nil {
		return mapServiceError(c, err)
	}
	if photo.ThumbnailPath != nil {
		if err := s.blobs.Delete(ctx, blobstore.BucketThumbnails, *photo.ThumbnailPath); err != nil {
			return mapServiceError(c, err)
		}
	}
	if err := s.repo.PermanentDeleteByID(ctx, id); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// renameHandler handles PATCH /api/v1/photos/:id/rename — the
// originalFilename update implied by the RENAMED event type (§3).
func (s *Server) renameHandler(c *echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil || req.Filename == "" {
		return validationError(c, codeValidationError, "filename is required", nil)
	}
	if err := s.repo.RenameByID(c.Request().Context(), c.Param("id"), req.Filename); err != nil {
		return mapServiceError(c, err)
	}
	if _, err := s.events.Append(c.Request().Context(), c.Param("id"), model.EventRenamed, "Photo renamed", nil); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// favoriteHandler handles PATCH /api/v1/photos/:id/favorite.
func (s *Server) favoriteHandler(c *echo.Context) error {
	var req favoriteRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, codeValidationError, "invalid request body", nil)
	}
	if err := s.repo.SetFavorite(c.Request().Context(), c.Param("id"), req.IsFavorite); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func pageFromQuery(c *echo.Context) model.Page {
	page := model.Page{Limit: 50}
	if v := c.QueryParam("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Limit = n
		}
	}
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			page.Offset = (n - 1) * page.Limit
		}
	}
	return page.Normalize()
}

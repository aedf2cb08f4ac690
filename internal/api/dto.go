package api

import (
	"time"

	"github.com/photoflow-io/photoflow/internal/model"
)

// photoDTO is the JSON shape returned for a Photo (§3, §8 round-trip law).
type photoDTO struct {
	ID               string         `json:"id"`
	ShortID          *string        `json:"shortId,omitempty"`
	Filename         string         `json:"filename"`
	OriginalFilename string         `json:"originalFilename"`
	Status           string         `json:"status"`
	Size             int64          `json:"size"`
	MimeType         string         `json:"mimeType"`
	StoragePath      string         `json:"storagePath"`
	ThumbnailPath    *string        `json:"thumbnailPath,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	IsFavorite       bool           `json:"isFavorite"`
	DeletedAt        *time.Time     `json:"deletedAt,omitempty"`
	UploadedAt       time.Time      `json:"uploadedAt"`
	ProcessedAt      *time.Time     `json:"processedAt,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func toPhotoDTO(p *model.Photo) *photoDTO {
	return &photoDTO{
		ID:               p.ID,
		ShortID:          p.ShortID,
		Filename:         p.Filename,
		OriginalFilename: p.OriginalFilename,
		Status:           string(p.Status),
		Size:             p.Size,
		MimeType:         p.MimeType,
		StoragePath:      p.StoragePath,
		ThumbnailPath:    p.ThumbnailPath,
		Metadata:         p.Metadata,
		IsFavorite:       p.IsFavorite,
		DeletedAt:        p.DeletedAt,
		UploadedAt:       p.UploadedAt,
		ProcessedAt:      p.ProcessedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toPhotoDTOs(photos []*model.Photo) []*photoDTO {
	out := make([]*photoDTO, len(photos))
	for i, p := range photos {
		out[i] = toPhotoDTO(p)
	}
	return out
}

// eventDTO is the JSON shape returned for an EventLog row (§3).
type eventDTO struct {
	ID        int64          `json:"id"`
	PhotoID   string         `json:"photoId"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func toEventDTO(e *model.Event) *eventDTO {
	return &eventDTO{
		ID:        e.ID,
		PhotoID:   e.PhotoID,
		Type:      string(e.Type),
		Message:   e.Message,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
}

func toEventDTOs(events []*model.Event) []*eventDTO {
	out := make([]*eventDTO, len(events))
	for i, e := range events {
		out[i] = toEventDTO(e)
	}
	return out
}

// ingestFileResultDTO reports one file's batch-ingest outcome (§4.4
// "Partial-failure semantics"). Code is one of the §6/§7 taxonomy codes.
type ingestFileResultDTO struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

// ingestResponse is the response body for POST /photos (§6 "Upload
// batch").
type ingestResponse struct {
	Succeeded []*photoDTO           `json:"succeeded"`
	Failed    []ingestFileResultDTO `json:"failed"`
}

// pollResponse is the response body for GET /photos/poll (§6 "Poll
// status").
type pollResponse struct {
	Photos    []*photoDTO `json:"photos"`
	Timestamp time.Time   `json:"timestamp"`
}

// renameRequest is the request body for the rename action.
type renameRequest struct {
	Filename string `json:"filename"`
}

// favoriteRequest is the request body for the favorite-toggle action.
type favoriteRequest struct {
	IsFavorite bool `json:"isFavorite"`
}

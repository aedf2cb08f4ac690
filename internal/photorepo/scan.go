package photorepo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/photoflow-io/photoflow/internal/model"
)

// photoRow is the internal scan target for a photos row; ToModel converts
// it to the public model.Photo.
type photoRow struct {
	ID               string
	ShortID          sql.NullString
	Filename         string
	OriginalFilename string
	Status           string
	Size             int64
	MimeType         string
	StoragePath      string
	ThumbnailPath    sql.NullString
	Metadata         []byte
	IsFavorite       bool
	DeletedAt        sql.NullTime
	UploadedAt       time.Time
	ProcessedAt      sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

const photoColumns = `id, short_id, filename, original_filename, status, size, mime_type,
	storage_path, thumbnail_path, metadata, is_favorite, deleted_at, uploaded_at,
	processed_at, created_at, updated_at`

const selectPhotoForUpdateSQL = `SELECT ` + photoColumns + ` FROM photos WHERE id = $1 FOR UPDATE`

const selectPhotoSQL = `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

func scanPhotoRow(s rowScanner) (*photoRow, error) {
	var row photoRow
	err := s.Scan(
		&row.ID, &row.ShortID, &row.Filename, &row.OriginalFilename, &row.Status, &row.Size,
		&row.MimeType, &row.StoragePath, &row.ThumbnailPath, &row.Metadata, &row.IsFavorite,
		&row.DeletedAt, &row.UploadedAt, &row.ProcessedAt, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ToModel converts the scanned row into the public domain type.
func (r *photoRow) ToModel() (*model.Photo, error) {
	p := &model.Photo{
		ID:               r.ID,
		Filename:         r.Filename,
		OriginalFilename: r.OriginalFilename,
		Status:           model.Status(r.Status),
		Size:             r.Size,
		MimeType:         r.MimeType,
		StoragePath:      r.StoragePath,
		IsFavorite:       r.IsFavorite,
		UploadedAt:       r.UploadedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.ShortID.Valid {
		p.ShortID = &r.ShortID.String
	}
	if r.ThumbnailPath.Valid {
		p.ThumbnailPath = &r.ThumbnailPath.String
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		p.DeletedAt = &t
	}
	if r.ProcessedAt.Valid {
		t := r.ProcessedAt.Time
		p.ProcessedAt = &t
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &p.Metadata); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// eventRow is the internal scan target for an event_log row.
type eventRow struct {
	ID        int64
	PhotoID   string
	EventType string
	Message   string
	Metadata  []byte
	Timestamp time.Time
	Sequence  int64
}

const eventColumns = `id, photo_id, event_type, message, metadata, "timestamp", sequence`

func scanEventRow(s rowScanner) (*eventRow, error) {
	var row eventRow
	err := s.Scan(&row.ID, &row.PhotoID, &row.EventType, &row.Message, &row.Metadata, &row.Timestamp, &row.Sequence)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ToModel converts the scanned row into the public domain type.
func (r *eventRow) ToModel() (*model.Event, error) {
	ev := &model.Event{
		ID:        r.ID,
		PhotoID:   r.PhotoID,
		Type:      model.EventType(r.EventType),
		Message:   r.Message,
		Timestamp: r.Timestamp,
		Sequence:  r.Sequence,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &ev.Metadata); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

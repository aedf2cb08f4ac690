package photorepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/photoflow-io/photoflow/internal/model"
)

// insertEvent writes a single event_log row within tx and returns its
// model. Shared by InsertWithUploadedEvent and AppendEvent so both paths
// produce identical rows.
func insertEvent(ctx context.Context, tx *sql.Tx, photoID string, eventType model.EventType, message string, metadata map[string]any, timestamp time.Time, sequence int64) (*model.Event, error) {
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO event_log (photo_id, event_type, message, metadata, "timestamp", sequence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		photoID, string(eventType), message, metaJSON, timestamp, sequence,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert event for %s: %w", photoID, err)
	}

	return &model.Event{
		ID:        id,
		PhotoID:   photoID,
		Type:      eventType,
		Message:   message,
		Metadata:  metadata,
		Timestamp: timestamp,
		Sequence:  sequence,
	}, nil
}

// AppendEvent appends a new event for photoID under the row's write lock,
// assigning the next monotonic sequence number (§4.3 "append(photoId,
// type, message, metadata?)"). Returns ErrNotFound if the photo does not
// exist.
func (r *Repository) AppendEvent(ctx context.Context, photoID string, eventType model.EventType, message string, metadata map[string]any) (*model.Event, error) {
	tx, row, err := r.lockPhotoTx(ctx, photoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if row == nil {
		return nil, fmt.Errorf("append event for %s: %w", photoID, ErrNotFound)
	}

	seq, err := nextSequence(ctx, tx, photoID)
	if err != nil {
		return nil, err
	}

	ev, err := insertEvent(ctx, tx, photoID, eventType, message, metadata, time.Now().UTC(), seq)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append event for %s: %w", photoID, err)
	}
	return ev, nil
}

// ListByPhoto returns every event for photoID, most recent first (§4.3
// "events for a photo are returned newest-first").
func (r *Repository) ListByPhoto(ctx context.Context, photoID string) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event_log WHERE photo_id = $1 ORDER BY "timestamp" DESC, sequence DESC`
	rows, err := r.db.QueryContext(ctx, query, photoID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", photoID, err)
	}
	defer rows.Close()
	return scanEventModels(rows)
}

// List returns events matching filter, newest first, paginated. When both
// PhotoID and EventType are set the predicate is applied in a single
// query rather than post-filtering an unfiltered result set (§4.3 "when
// both filters are present the query is evaluated in-store, not by
// client-side filtering").
func (r *Repository) List(ctx context.Context, filter model.EventFilter, page model.Page) ([]*model.Event, error) {
	page = page.Normalize()

	query := `SELECT ` + eventColumns + ` FROM event_log WHERE 1=1`
	var args []any

	if filter.PhotoID != "" {
		args = append(args, filter.PhotoID)
		query += fmt.Sprintf(" AND photo_id = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}

	args = append(args, page.Limit)
	query += fmt.Sprintf(` ORDER BY "timestamp" DESC, sequence DESC LIMIT $%d`, len(args))
	args = append(args, page.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEventModels(rows)
}

func scanEventModels(rows *sql.Rows) ([]*model.Event, error) {
	var out []*model.Event
	for rows.Next() {
		row, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev, err := row.ToModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

package photorepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/photoflow-io/photoflow/internal/model"
)

// InsertWithUploadedEvent inserts photo in status Uploaded and appends its
// first UPLOADED event in one transaction (§4.2 "insert a photo plus its
// UPLOADED event"; §3 "the first event is UPLOADED").
func (r *Repository) InsertWithUploadedEvent(ctx context.Context, photo *model.Photo, message string) (*model.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	metaJSON, err := marshalMetadata(photo.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO photos (id, short_id, filename, original_filename, status, size, mime_type,
			storage_path, thumbnail_path, metadata, is_favorite, uploaded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $12)`,
		photo.ID, nullableString(photo.ShortID), photo.Filename, photo.OriginalFilename,
		string(photo.Status), photo.Size, photo.MimeType, photo.StoragePath,
		nullableString(photo.ThumbnailPath), metaJSON, photo.IsFavorite, photo.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert photo %s: %w", photo.ID, err)
	}

	ev, err := insertEvent(ctx, tx, photo.ID, model.EventUploaded, message, nil, photo.UploadedAt, 1)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert photo %s: %w", photo.ID, err)
	}
	return ev, nil
}

// FindByID returns the photo regardless of soft-delete state — soft-deleted
// photos remain addressable (§3). Callers that must honor the "404 if not
// found or soft-deleted" API rule (§6) check Photo.Deleted() themselves.
func (r *Repository) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	row, err := scanPhotoRow(r.db.QueryRowContext(ctx, selectPhotoSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find photo %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find photo %s: %w", id, err)
	}
	return row.ToModel()
}

// FindAllByID returns every photo whose id is in ids, in no particular
// order. Missing ids are silently omitted.
func (r *Repository) FindAllByID(ctx context.Context, ids []string) ([]*model.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pqStringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("find photos by id: %w", err)
	}
	defer rows.Close()
	return scanPhotoModels(rows)
}

// FindByStatus returns photos in the given status, excluding soft-deleted
// rows, ordered by uploaded_at ascending, paginated (§4.2).
func (r *Repository) FindByStatus(ctx context.Context, status model.Status, page model.Page) ([]*model.Photo, error) {
	page = page.Normalize()
	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY uploaded_at ASC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, string(status), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("find photos by status %s: %w", status, err)
	}
	defer rows.Close()
	return scanPhotoModels(rows)
}

// FindUpdatedAfter is the polling query (§4.2, §4.9 "Fallback polling
// contract"): every row whose updated_at > t, ordered by updated_at
// ascending, optionally restricted to ids.
func (r *Repository) FindUpdatedAfter(ctx context.Context, t time.Time, ids []string) ([]*model.Photo, error) {
	var (
		query string
		args  []any
	)
	if len(ids) > 0 {
		query = `SELECT ` + photoColumns + ` FROM photos
			WHERE updated_at > $1 AND id = ANY($2)
			ORDER BY updated_at ASC`
		args = []any{t, pqStringArray(ids)}
	} else {
		query = `SELECT ` + photoColumns + ` FROM photos
			WHERE updated_at > $1
			ORDER BY updated_at ASC`
		args = []any{t}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find photos updated after %s: %w", t, err)
	}
	defer rows.Close()
	return scanPhotoModels(rows)
}

// DeleteByID soft-deletes a photo: sets deleted_at via an optimistic
// compare-and-set on updated_at, retried once with a fresh read on
// conflict (§4.2 "Optimistic-concurrency conflicts during user-initiated
// delete must be retried once"). If the photo no longer exists, the delete
// is a no-op.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	for attempt := 0; attempt < 2; attempt++ {
		photo, err := r.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if photo.Deleted() {
			return nil
		}

		now := time.Now().UTC()
		res, err := r.db.ExecContext(ctx, `
			UPDATE photos SET deleted_at = $1, updated_at = $1
			WHERE id = $2 AND updated_at = $3`,
			now, id, photo.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("soft delete %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("soft delete %s: %w", id, err)
		}
		if n == 1 {
			return nil
		}
		// Zero rows affected: another writer raced us. Retry once with a
		// fresh read, per §4.2.
	}
	return fmt.Errorf("soft delete %s: %w", id, ErrConflict)
}

// RestoreByID clears a soft-delete (the RESTORED event type in §3), with
// the same compare-and-set-and-retry-once discipline as DeleteByID.
func (r *Repository) RestoreByID(ctx context.Context, id string) error {
	for attempt := 0; attempt < 2; attempt++ {
		photo, err := r.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !photo.Deleted() {
			return nil
		}

		now := time.Now().UTC()
		res, err := r.db.ExecContext(ctx, `
			UPDATE photos SET deleted_at = NULL, updated_at = $1
			WHERE id = $2 AND updated_at = $3`,
			now, id, photo.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("restore %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("restore %s: %w", id, err)
		}
		if n == 1 {
			return nil
		}
	}
	return fmt.Errorf("restore %s: %w", id, ErrConflict)
}

// PermanentDeleteByID removes the photo row (cascading event_log rows via
// ON DELETE CASCADE). The caller is responsible for deleting the
// corresponding blobs first (§6 "Permanent delete").
func (r *Repository) PermanentDeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("permanent delete %s: %w", id, err)
	}
	return nil
}

// RenameByID updates a photo's original_filename (the user-facing rename
// action implied by the RENAMED event type, §3), with the same
// compare-and-set-and-retry-once discipline as DeleteByID.
func (r *Repository) RenameByID(ctx context.Context, id, newFilename string) error {
	for attempt := 0; attempt < 2; attempt++ {
		photo, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := r.db.ExecContext(ctx, `
			UPDATE photos SET original_filename = $1, updated_at = $2
			WHERE id = $3 AND updated_at = $4`,
			newFilename, now, id, photo.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("rename %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rename %s: %w", id, err)
		}
		if n == 1 {
			return nil
		}
	}
	return fmt.Errorf("rename %s: %w", id, ErrConflict)
}

// SetFavorite toggles is_favorite, with the same CAS-and-retry-once
// discipline as DeleteByID.
func (r *Repository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	for attempt := 0; attempt < 2; attempt++ {
		photo, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := r.db.ExecContext(ctx, `
			UPDATE photos SET is_favorite = $1, updated_at = $2
			WHERE id = $3 AND updated_at = $4`,
			favorite, now, id, photo.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("set favorite %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("set favorite %s: %w", id, err)
		}
		if n == 1 {
			return nil
		}
	}
	return fmt.Errorf("set favorite %s: %w", id, ErrConflict)
}

// ErrDisallowedTransition is returned when newStatus is not reachable from
// the photo's current non-terminal status under §4.8's table — a
// programming error, not a
// runtime condition callers should recover from.
var ErrDisallowedTransition = errors.New("disallowed lifecycle transition")

// TransitionStatus updates a photo's status and appends the corresponding
// event within the same row-locked transaction (§4.8 "Allowed transitions
// atomically: update row ..., append event ..."). The current status is
// read and checked against model.Status.CanTransitionTo under the same
// lock that performs the update, so two concurrent deliveries for the same
// photo can never both apply.
//
// If the photo does not exist, it returns (nil, nil, nil) — the caller
// (lifecycle.Coordinator) treats this as a no-op, per §4.8's
// delete-during-processing race clause. If the photo is already in a
// terminal state, it returns (photo, nil, nil): an idempotent no-op, not
// an error (§4.8, §5.I5 "a re-delivered message must not regress a
// terminal state"). Any other disallowed transition is
// ErrDisallowedTransition — a programming error per §4.8.
func (r *Repository) TransitionStatus(ctx context.Context, photoID string, newStatus model.Status, eventType model.EventType, message string, terminal bool) (*model.Photo, *model.Event, error) {
	tx, row, err := r.lockPhotoTx(ctx, photoID)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if row == nil {
		return nil, nil, nil
	}

	current := model.Status(row.Status)
	if current.Terminal() {
		photo, perr := row.ToModel()
		if perr != nil {
			return nil, nil, perr
		}
		return photo, nil, nil
	}
	if !current.CanTransitionTo(newStatus) {
		return nil, nil, fmt.Errorf("transition %s: %s -> %s: %w", photoID, current, newStatus, ErrDisallowedTransition)
	}

	now := time.Now().UTC()
	if terminal {
		_, err = tx.ExecContext(ctx, `UPDATE photos SET status = $1, updated_at = $2, processed_at = $2 WHERE id = $3`,
			string(newStatus), now, photoID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE photos SET status = $1, updated_at = $2 WHERE id = $3`,
			string(newStatus), now, photoID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("transition %s to %s: %w", photoID, newStatus, err)
	}

	seq, err := nextSequence(ctx, tx, photoID)
	if err != nil {
		return nil, nil, err
	}
	ev, err := insertEvent(ctx, tx, photoID, eventType, message, nil, now, seq)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit transition %s to %s: %w", photoID, newStatus, err)
	}

	photo, err := row.ToModel()
	if err != nil {
		return nil, nil, err
	}
	photo.Status = newStatus
	photo.UpdatedAt = now
	if terminal {
		photo.ProcessedAt = &now
	}
	return photo, ev, nil
}

func scanPhotoModels(rows *sql.Rows) ([]*model.Photo, error) {
	var out []*model.Photo
	for rows.Next() {
		row, err := scanPhotoRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo row: %w", err)
		}
		p, err := row.ToModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// pqStringArray renders a Go string slice as a Postgres text array literal,
// suitable for binding to an ANY($1) predicate without requiring the
// lib/pq array helper type.
func pqStringArray(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

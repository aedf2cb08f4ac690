// Package photorepo is the metadata repository (§4.2): photo and event-log
// CRUD, transactional status transitions, and the polling query. It is the
// only package that issues SQL against the photos/event_log tables.
//
// Ent's schema (ent/schema/photo.go, ent/schema/event.go) is the
// schema-of-record the migrations in internal/dbx/migrations are hand-kept
// in sync with, the same relationship pkg/database/migrations has to
// ent/schema in the teacher. Query execution here goes through database/sql
// + pgx directly rather than a generated ent client — see DESIGN.md.
package photorepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors, mirroring the teacher's pkg/services/errors.go shape.
var (
	// ErrNotFound is returned when a photo or event does not exist.
	ErrNotFound = errors.New("photo not found")

	// ErrConflict is returned when an optimistic-concurrency compare-and-set
	// fails (§4.2, §9 "Optimistic concurrency").
	ErrConflict = errors.New("concurrent modification detected")
)

// Repository is the metadata repository.
type Repository struct {
	db *sql.DB
}

// New wraps db (typically (*dbx.Client).DB()) as a Repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// lockPhotoTx opens a transaction and takes a row-level write lock on
// photo id via SELECT ... FOR UPDATE. This is how per-photo ordering is
// enforced (§5 "Status transitions are serialized per-photo by the
// metadata store's row-level locking"): a row can have at most one
// in-flight mutation (status change or event append) at a time.
//
// The caller must commit or rollback tx. photo is nil (with no error) if
// the row does not exist — callers that require it to exist should check
// photo == nil themselves; this lets no-op paths (e.g. "photo deleted
// before dispatch") proceed without an error.
func (r *Repository) lockPhotoTx(ctx context.Context, id string) (*sql.Tx, *photoRow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}

	row, err := scanPhotoRow(tx.QueryRowContext(ctx, selectPhotoForUpdateSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tx, nil, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("lock photo %s: %w", id, err)
	}
	return tx, row, nil
}

// nextSequence returns the next per-photo monotonic event sequence number
// (§3 "Invariant", §4.3 "if the store's timestamp resolution is
// insufficient, a monotonic per-photo sequence number must be added").
// Must be called within the same transaction that holds the photo row lock.
func nextSequence(ctx context.Context, tx *sql.Tx, photoID string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM event_log WHERE photo_id = $1`, photoID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", photoID, err)
	}
	return seq, nil
}

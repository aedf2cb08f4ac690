// Package ingest is the ingest pipeline (§4.4): per-file validation,
// filename sanitization, bounded-concurrency parallel blob upload, and the
// transactional insert -> enqueue -> Queued sequence.
package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photoflow-io/photoflow/internal/blobstore"
	"github.com/photoflow-io/photoflow/internal/lifecycle"
	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/notify"
	"github.com/photoflow-io/photoflow/internal/queue"
)

// uploadConcurrency bounds how many blob uploads run in parallel per
// ingest call (§4.4 "design target: 10 concurrent uploads per ingest
// call").
const uploadConcurrency = 10

// Repository is the subset of photorepo.Repository the pipeline needs.
type Repository interface {
	InsertWithUploadedEvent(ctx context.Context, photo *model.Photo, message string) (*model.Event, error)
}

// Enqueuer is the subset of queue.Producer the pipeline needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// FileResult reports one file's outcome (§4.4 "Partial-failure
// semantics"). Code is one of the §6/§7 taxonomy codes when the failure
// is a validation rejection (CodeFileTooLarge, CodeUnsupportedFormat,
// CodeValidationError); it is empty for failures past validation (upload,
// persist, enqueue), which the API layer reports as PROCESSING_ERROR
// instead.
type FileResult struct {
	OriginalFilename string
	Photo            *model.Photo
	Error            string
	Code             string
}

// BatchResult is the ingest pipeline's response for one batch call.
type BatchResult struct {
	Succeeded []*model.Photo
	Failed    []FileResult
}

// Pipeline is the ingest pipeline.
type Pipeline struct {
	blobs     blobstore.Store
	repo      Repository
	enqueuer  Enqueuer
	lifecycle *lifecycle.Coordinator
	notifier  *notify.Broker
	log       *slog.Logger
}

// New builds a Pipeline. notifier may be nil, in which case the initial
// Uploaded transition is not published (used by offline tooling / tests
// that don't need pub/sub).
func New(blobs blobstore.Store, repo Repository, enqueuer Enqueuer, coord *lifecycle.Coordinator, notifier *notify.Broker, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{blobs: blobs, repo: repo, enqueuer: enqueuer, lifecycle: coord, notifier: notifier, log: log}
}

// Ingest validates, uploads, and persists files (§4.4). An empty batch or
// one over MaxBatchFiles is rejected with a nil BatchResult; otherwise
// the batch errors only when every file fails validation or upload — a
// partial success is reported in BatchResult, never as an error
// (§4.4 "Partial-failure semantics").
func (p *Pipeline) Ingest(ctx context.Context, files []File) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("ingest: empty batch")
	}
	if len(files) > MaxBatchFiles {
		return nil, fmt.Errorf("ingest: batch of %d files exceeds limit of %d", len(files), MaxBatchFiles)
	}

	result := &BatchResult{}
	var mu sync.Mutex

	sem := make(chan struct{}, uploadConcurrency)
	var wg sync.WaitGroup

	for _, f := range files {
		f := f
		if err := validateFile(f); err != nil {
			code := CodeValidationError
			var verr *ValidationError
			if errors.As(err, &verr) {
				code = verr.Code
			}
			mu.Lock()
			result.Failed = append(result.Failed, FileResult{OriginalFilename: f.OriginalFilename, Error: err.Error(), Code: code})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			photo, err := p.ingestOne(ctx, f)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, FileResult{OriginalFilename: f.OriginalFilename, Error: err.Error()})
				return
			}
			result.Succeeded = append(result.Succeeded, photo)
		}()
	}
	wg.Wait()

	if len(result.Succeeded) == 0 {
		return result, fmt.Errorf("ingest: all %d files failed", len(files))
	}
	return result, nil
}

// ingestOne uploads a single validated file, inserts its photo row plus
// UPLOADED event, then enqueues and transitions it to Queued
// (§4.4 "Execution"). Each Put call is given its own owned byte buffer
// (f.Data, a request-scoped copy) so the blob store is free to retain it
// past this call's lifetime — see §9 "Parallel-upload correctness".
func (p *Pipeline) ingestOne(ctx context.Context, f File) (*model.Photo, error) {
	sanitized := sanitizeFilename(f.OriginalFilename)
	storageKey, err := storageKeyFor(sanitized)
	if err != nil {
		return nil, fmt.Errorf("generate storage key: %w", err)
	}

	if err := p.blobs.Put(ctx, blobstore.BucketPhotos, storageKey, f.Data, f.ContentType); err != nil {
		return nil, fmt.Errorf("upload %q: %w", f.OriginalFilename, err)
	}

	now := time.Now().UTC()
	photo := &model.Photo{
		ID: uuid.NewString(),
		// Filename is the sanitized storage filename (§3); OriginalFilename
		// is the client-provided name, stored verbatim (§8 round-trip law).
		Filename:         sanitized,
		OriginalFilename: f.OriginalFilename,
		Status:           model.StatusUploaded,
		Size:             int64(len(f.Data)),
		MimeType:         f.ContentType,
		StoragePath:      storageKey,
		UploadedAt:       now,
	}

	uploadedEvent, err := p.repo.InsertWithUploadedEvent(ctx, photo, "Photo uploaded")
	if err != nil {
		return nil, fmt.Errorf("persist %q: %w", f.OriginalFilename, err)
	}
	if p.notifier != nil {
		p.notifier.Publish(notify.Notification{
			PhotoID:   photo.ID,
			EventType: string(model.StatusUploaded),
			Message:   "Photo uploaded",
			Timestamp: uploadedEvent.Timestamp,
		})
	}

	if err := p.enqueuer.Enqueue(ctx, queue.Job{
		PhotoID:     photo.ID,
		Filename:    photo.Filename,
		StoragePath: photo.StoragePath,
	}); err != nil {
		// Blob is intentionally not deleted on failure (§4.4) — it
		// remains addressable by admin tools.
		p.failPhoto(ctx, photo.ID, fmt.Sprintf("failed to enqueue for processing: %v", err))
		return nil, fmt.Errorf("enqueue %q: %w", f.OriginalFilename, err)
	}

	if err := p.lifecycle.Transition(ctx, photo.ID, model.StatusQueued, "Photo queued for processing"); err != nil {
		p.failPhoto(ctx, photo.ID, fmt.Sprintf("failed to transition to queued: %v", err))
		return nil, fmt.Errorf("queue transition for %q: %w", f.OriginalFilename, err)
	}

	photo.Status = model.StatusQueued
	return photo, nil
}

// failPhoto best-effort transitions photoID to Failed; errors are logged,
// not propagated, since the caller is already reporting a different error
// for this file.
func (p *Pipeline) failPhoto(ctx context.Context, photoID, message string) {
	if err := p.lifecycle.Transition(ctx, photoID, model.StatusFailed, message); err != nil {
		p.log.Error("failed to mark photo as failed after ingest error", "photo_id", photoID, "error", err)
	}
}

// storageKeyFor generates the opaque storage key (§4.4 "a freshly-generated
// opaque unique token plus the lowercased extension").
func storageKeyFor(sanitizedFilename string) (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("generate storage token: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(sanitizedFilename))
	return hex.EncodeToString(token) + ext, nil
}

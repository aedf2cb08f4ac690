package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoflow-io/photoflow/internal/blobstore"
	"github.com/photoflow-io/photoflow/internal/eventlog"
	"github.com/photoflow-io/photoflow/internal/ingest"
	"github.com/photoflow-io/photoflow/internal/lifecycle"
	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/notify"
	"github.com/photoflow-io/photoflow/internal/photorepo"
	"github.com/photoflow-io/photoflow/internal/queue"
)

// fakeRepo backs every collaborator interface the API surface and its
// pipeline/eventlog dependencies need, so handler tests exercise the real
// Server routing and JSON shapes against an in-memory double instead of a
// database.
type fakeRepo struct {
	photos map[string]*model.Photo
	events []*model.Event
	seq    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{photos: make(map[string]*model.Photo)}
}

func (r *fakeRepo) InsertWithUploadedEvent(ctx context.Context, photo *model.Photo, message string) (*model.Event, error) {
	r.photos[photo.ID] = photo
	r.seq++
	ev := &model.Event{PhotoID: photo.ID, Type: model.EventUploaded, Message: message, Sequence: r.seq, Timestamp: time.Now().UTC()}
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *fakeRepo) TransitionStatus(ctx context.Context, photoID string, newStatus model.Status, eventType model.EventType, message string, terminal bool) (*model.Photo, *model.Event, error) {
	photo, ok := r.photos[photoID]
	if !ok {
		return nil, nil, nil
	}
	if photo.Status.Terminal() {
		return photo, nil, nil
	}
	photo.Status = newStatus
	r.seq++
	return photo, &model.Event{PhotoID: photoID, Type: eventType, Message: message, Sequence: r.seq, Timestamp: time.Now().UTC()}, nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	photo, ok := r.photos[id]
	if !ok {
		return nil, photorepo.ErrNotFound
	}
	return photo, nil
}

func (r *fakeRepo) FindByStatus(ctx context.Context, status model.Status, page model.Page) ([]*model.Photo, error) {
	var out []*model.Photo
	for _, p := range r.photos {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindUpdatedAfter(ctx context.Context, t time.Time, ids []string) ([]*model.Photo, error) {
	var out []*model.Photo
	for _, p := range r.photos {
		if p.UpdatedAt.After(t) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteByID(ctx context.Context, id string) error {
	photo, ok := r.photos[id]
	if !ok {
		return photorepo.ErrNotFound
	}
	now := time.Now().UTC()
	photo.DeletedAt = &now
	return nil
}

func (r *fakeRepo) PermanentDeleteByID(ctx context.Context, id string) error {
	if _, ok := r.photos[id]; !ok {
		return photorepo.ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *fakeRepo) RenameByID(ctx context.Context, id, newFilename string) error {
	photo, ok := r.photos[id]
	if !ok {
		return photorepo.ErrNotFound
	}
	photo.OriginalFilename = newFilename
	return nil
}

func (r *fakeRepo) SetFavorite(ctx context.Context, id string, favorite bool) error {
	photo, ok := r.photos[id]
	if !ok {
		return photorepo.ErrNotFound
	}
	photo.IsFavorite = favorite
	return nil
}

func (r *fakeRepo) AppendEvent(ctx context.Context, photoID string, eventType model.EventType, message string, metadata map[string]any) (*model.Event, error) {
	if _, ok := r.photos[photoID]; !ok {
		return nil, photorepo.ErrNotFound
	}
	r.seq++
	ev := &model.Event{PhotoID: photoID, Type: eventType, Message: message, Metadata: metadata, Sequence: r.seq, Timestamp: time.Now().UTC()}
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *fakeRepo) ListByPhoto(ctx context.Context, photoID string) ([]*model.Event, error) {
	var out []*model.Event
	for _, ev := range r.events {
		if ev.PhotoID == photoID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *fakeRepo) List(ctx context.Context, filter model.EventFilter, page model.Page) ([]*model.Event, error) {
	if filter.PhotoID == "" && filter.EventType == "" {
		return r.events, nil
	}
	var out []*model.Event
	for _, ev := range r.events {
		if filter.PhotoID != "" && ev.PhotoID != filter.PhotoID {
			continue
		}
		if filter.EventType != "" && ev.Type != filter.EventType {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(ctx context.Context, job queue.Job) error { return nil }

func newTestServer(repo *fakeRepo) *Server {
	broker := notify.NewBroker(nil)
	coord := lifecycle.New(repo, broker, nil)
	pipeline := ingest.New(blobstore.NewMemoryStore(), repo, noopEnqueuer{}, coord, broker, nil)
	events := eventlog.New(repo, broker, nil)

	return NewServer(Deps{
		Repo:        repo,
		Pipeline:    pipeline,
		Events:      events,
		Blobs:       blobstore.NewMemoryStore(),
		ConnManager: notify.NewConnectionManager(broker, nil),
	})
}

func multipartUploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="files"; filename="` + filename + `"`},
		"Content-Type":        {contentType},
	})
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/photos", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadHandlerSucceeds(t *testing.T) {
	s := newTestServer(newFakeRepo())
	req := multipartUploadRequest(t, "beach.jpg", "image/jpeg", []byte("bytes"))
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Succeeded, 1)
	assert.Equal(t, string(model.StatusQueued), resp.Succeeded[0].Status)
	assert.Empty(t, resp.Failed)
}

func TestUploadHandlerRejectsEmptyBatch(t *testing.T) {
	s := newTestServer(newFakeRepo())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/photos", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPhotoHandlerNotFound(t *testing.T) {
	s := newTestServer(newFakeRepo())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos/missing", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, codeNotFound, body.Error)
}

func TestGetPhotoHandlerReturnsSoftDeletedAsNotFound(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now().UTC()
	repo.photos["p1"] = &model.Photo{ID: "p1", Status: model.StatusCompleted, DeletedAt: &now}
	s := newTestServer(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos/p1", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPhotosHandlerFiltersByStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.photos["p1"] = &model.Photo{ID: "p1", Status: model.StatusUploaded}
	repo.photos["p2"] = &model.Photo{ID: "p2", Status: model.StatusCompleted}
	s := newTestServer(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos?status=completed", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var photos []*photoDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &photos))
	require.Len(t, photos, 1)
	assert.Equal(t, "p2", photos[0].ID)
}

func TestSoftDeleteHandlerMarksDeletedAt(t *testing.T) {
	repo := newFakeRepo()
	repo.photos["p1"] = &model.Photo{ID: "p1", Status: model.StatusCompleted}
	s := newTestServer(repo)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/photos/p1", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, repo.photos["p1"].Deleted())
}

func TestRenameHandlerAppendsRenamedEvent(t *testing.T) {
	repo := newFakeRepo()
	repo.photos["p1"] = &model.Photo{ID: "p1", Status: model.StatusCompleted, OriginalFilename: "old.jpg"}
	s := newTestServer(repo)

	body, _ := json.Marshal(renameRequest{Filename: "new.jpg"})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/photos/p1/rename", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "new.jpg", repo.photos["p1"].OriginalFilename)
	require.Len(t, repo.events, 1)
	assert.Equal(t, model.EventRenamed, repo.events[0].Type)
}

func TestFavoriteHandlerTogglesFlag(t *testing.T) {
	repo := newFakeRepo()
	repo.photos["p1"] = &model.Photo{ID: "p1", Status: model.StatusCompleted}
	s := newTestServer(repo)

	body, _ := json.Marshal(favoriteRequest{IsFavorite: true})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/photos/p1/favorite", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, repo.photos["p1"].IsFavorite)
}

func TestPollHandlerRequiresSinceParam(t *testing.T) {
	s := newTestServer(newFakeRepo())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos/poll", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthzHandlerReturnsOK(t *testing.T) {
	s := newTestServer(newFakeRepo())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

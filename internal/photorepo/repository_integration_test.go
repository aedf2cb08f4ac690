package photorepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/photoflow-io/photoflow/internal/config"
	"github.com/photoflow-io/photoflow/internal/dbx"
	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/photorepo"
)

// newTestRepository starts a disposable PostgreSQL container, applies
// photoflow's embedded migrations through dbx.NewClient, and returns a
// Repository backed by it — mirroring the teacher's pkg/database
// client_test.go newTestClient helper.
func newTestRepository(t *testing.T) *photorepo.Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("photoflow_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	client, err := dbx.NewClient(ctx, config.Database{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "photoflow_test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
		AcquireTimeout:  30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return photorepo.New(client.DB())
}

func insertTestPhoto(t *testing.T, repo *photorepo.Repository, id string) *model.Photo {
	t.Helper()
	photo := &model.Photo{
		ID:               id,
		Filename:         "a1b2c3.jpg",
		OriginalFilename: "beach.jpg",
		Status:           model.StatusUploaded,
		Size:             1024,
		MimeType:         "image/jpeg",
		StoragePath:      "a1b2c3.jpg",
		UploadedAt:       time.Now().UTC(),
	}
	_, err := repo.InsertWithUploadedEvent(context.Background(), photo, "Photo uploaded")
	require.NoError(t, err)
	return photo
}

func TestRepositoryInsertWithUploadedEventCreatesPhotoAndEvent(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")

	got, err := repo.FindByID(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, got.Status)

	events, err := repo.ListByPhoto(context.Background(), photo.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventUploaded, events[0].Type)
	assert.Equal(t, int64(1), events[0].Sequence)
}

func TestRepositoryTransitionStatusFollowsTable(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")
	ctx := context.Background()

	got, ev, err := repo.TransitionStatus(ctx, photo.ID, model.StatusQueued, model.EventQueued, "queued", false)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, model.StatusQueued, got.Status)
	assert.Equal(t, int64(2), ev.Sequence, "sequence continues from the UPLOADED event")
}

func TestRepositoryTransitionStatusRejectsSkippedStep(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")

	_, _, err := repo.TransitionStatus(context.Background(), photo.ID, model.StatusProcessing, model.EventProcessing, "processing", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, photorepo.ErrDisallowedTransition)
}

func TestRepositoryTransitionStatusOnTerminalIsNoop(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")
	ctx := context.Background()

	_, _, err := repo.TransitionStatus(ctx, photo.ID, model.StatusQueued, model.EventQueued, "queued", false)
	require.NoError(t, err)
	_, _, err = repo.TransitionStatus(ctx, photo.ID, model.StatusProcessing, model.EventProcessing, "processing", false)
	require.NoError(t, err)
	_, _, err = repo.TransitionStatus(ctx, photo.ID, model.StatusCompleted, model.EventCompleted, "completed", true)
	require.NoError(t, err)

	got, ev, err := repo.TransitionStatus(ctx, photo.ID, model.StatusFailed, model.EventFailed, "retry", true)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestRepositoryTransitionStatusOnMissingPhotoIsNoop(t *testing.T) {
	repo := newTestRepository(t)
	photo, ev, err := repo.TransitionStatus(context.Background(), "missing", model.StatusQueued, model.EventQueued, "queued", false)
	require.NoError(t, err)
	assert.Nil(t, photo)
	assert.Nil(t, ev)
}

func TestRepositoryDeleteByIDIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")
	ctx := context.Background()

	require.NoError(t, repo.DeleteByID(ctx, photo.ID))
	got, err := repo.FindByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())

	// Soft-deleting an already-deleted photo is a no-op, not an error.
	require.NoError(t, repo.DeleteByID(ctx, photo.ID))
}

func TestRepositoryRestoreByIDClearsDeletedAt(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")
	ctx := context.Background()

	require.NoError(t, repo.DeleteByID(ctx, photo.ID))
	require.NoError(t, repo.RestoreByID(ctx, photo.ID))

	got, err := repo.FindByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.False(t, got.Deleted())
}

func TestRepositoryPermanentDeleteByIDCascadesEvents(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")
	ctx := context.Background()

	require.NoError(t, repo.PermanentDeleteByID(ctx, photo.ID))

	_, err := repo.FindByID(ctx, photo.ID)
	assert.ErrorIs(t, err, photorepo.ErrNotFound)

	events, err := repo.ListByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRepositoryRenameByIDUpdatesOriginalFilename(t *testing.T) {
	repo := newTestRepository(t)
	photo := insertTestPhoto(t, repo, "p1")
	ctx := context.Background()

	require.NoError(t, repo.RenameByID(ctx, photo.ID, "new-name.jpg"))

	got, err := repo.FindByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-name.jpg", got.OriginalFilename)
}

func TestRepositoryFindByStatusExcludesSoftDeleted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	a := insertTestPhoto(t, repo, "p1")
	_ = insertTestPhoto(t, repo, "p2")
	require.NoError(t, repo.DeleteByID(ctx, a.ID))

	photos, err := repo.FindByStatus(ctx, model.StatusUploaded, model.Page{Limit: 50})
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "p2", photos[0].ID)
}

func TestRepositoryFindUpdatedAfterReturnsRecentRows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	cutoff := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)
	photo := insertTestPhoto(t, repo, "p1")

	photos, err := repo.FindUpdatedAfter(ctx, cutoff, nil)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, photo.ID, photos[0].ID)
}

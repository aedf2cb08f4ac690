// Package api exposes the HTTP endpoints the core serves (§6): batch
// upload, list/get, poll, event-log query, soft/permanent delete, and the
// real-time WebSocket subscription endpoint. Adapted from the teacher's
// pkg/api (echo v5 route-group layout, pkg/api/errors.go's
// mapServiceError pattern) — see DESIGN.md.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/photoflow-io/photoflow/internal/blobstore"
	"github.com/photoflow-io/photoflow/internal/eventlog"
	"github.com/photoflow-io/photoflow/internal/ingest"
	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/notify"
)

// maxUploadBytes bounds the whole multipart request body (§4.4 "request
// body ≤ 5 GiB").
const maxUploadBytes = ingest.MaxBatchBytes

// PhotoRepository is the subset of photorepo.Repository the API surface
// needs.
type PhotoRepository interface {
	FindByID(ctx context.Context, id string) (*model.Photo, error)
	FindByStatus(ctx context.Context, status model.Status, page model.Page) ([]*model.Photo, error)
	FindUpdatedAfter(ctx context.Context, t time.Time, ids []string) ([]*model.Photo, error)
	DeleteByID(ctx context.Context, id string) error
	PermanentDeleteByID(ctx context.Context, id string) error
	RenameByID(ctx context.Context, id, newFilename string) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
}

// HealthChecker reports backing-service reachability for /healthz.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// Server is the ingest node's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	repo           PhotoRepository
	pipeline       *ingest.Pipeline
	events         *eventlog.Service
	blobs          blobstore.Store
	connMgr        *notify.ConnectionManager
	healthCheckers []HealthChecker
}

// Deps bundles Server's collaborators.
type Deps struct {
	Repo           PhotoRepository
	Pipeline       *ingest.Pipeline
	Events         *eventlog.Service
	Blobs          blobstore.Store
	ConnManager    *notify.ConnectionManager
	HealthCheckers []HealthChecker
}

// NewServer builds a Server and registers all routes.
func NewServer(deps Deps) *Server {
	e := echo.New()
	e.Use(middleware.BodyLimit(maxUploadBytes))

	s := &Server{
		echo:           e,
		repo:           deps.Repo,
		pipeline:       deps.Pipeline,
		events:         deps.Events,
		blobs:          deps.Blobs,
		connMgr:        deps.ConnManager,
		healthCheckers: deps.HealthCheckers,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/photos", s.uploadHandler)
	v1.GET("/photos", s.listPhotosHandler)
	v1.GET("/photos/poll", s.pollHandler)
	v1.GET("/photos/:id", s.getPhotoHandler)
	v1.DELETE("/photos/:id", s.softDeleteHandler)
	v1.DELETE("/photos/:id/permanent", s.permanentDeleteHandler)
	v1.PATCH("/photos/:id/rename", s.renameHandler)
	v1.PATCH("/photos/:id/favorite", s.favoriteHandler)
	v1.GET("/events", s.listEventsHandler)
	v1.GET("/photos/:id/events", s.photoEventsHandler)
	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Command ingest runs the ingest node: the HTTP API that accepts photo
// uploads, serves queries and the WebSocket subscription endpoint, and
// enqueues uploaded photos for the worker node to process. Adapted from
// the teacher's cmd/tarsy/main.go bootstrap shape (.env loading,
// env-var config, graceful shutdown).
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/photoflow-io/photoflow/internal/api"
	"github.com/photoflow-io/photoflow/internal/blobstore"
	"github.com/photoflow-io/photoflow/internal/config"
	"github.com/photoflow-io/photoflow/internal/dbx"
	"github.com/photoflow-io/photoflow/internal/eventlog"
	"github.com/photoflow-io/photoflow/internal/ingest"
	"github.com/photoflow-io/photoflow/internal/lifecycle"
	"github.com/photoflow-io/photoflow/internal/notify"
	"github.com/photoflow-io/photoflow/internal/photorepo"
	"github.com/photoflow-io/photoflow/internal/queue"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file loaded, continuing with process environment", "error", err)
	}

	if err := run(log); err != nil {
		log.Error("ingest node exited with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbClient, err := dbx.NewClient(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Error("error closing database client", "error", err)
		}
	}()
	log.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	blobs, err := blobstore.NewMinioStore(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	log.Info("connected to object store", "endpoint", cfg.ObjectStore.Endpoint)

	rdb := queue.NewRedisClient(cfg.Queue)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("error closing redis client", "error", err)
		}
	}()
	producer := queue.NewProducer(rdb, cfg.Queue.Stream, cfg.Queue.ConsumerGroup)

	repo := photorepo.New(dbClient.DB())
	broker := notify.NewBroker(log)
	connMgr := notify.NewConnectionManager(broker, log)
	coord := lifecycle.New(repo, broker, log)
	events := eventlog.New(repo, broker, log)
	pipeline := ingest.New(blobs, repo, producer, coord, broker, log)

	server := api.NewServer(api.Deps{
		Repo:        repo,
		Pipeline:    pipeline,
		Events:      events,
		Blobs:       blobs,
		ConnManager: connMgr,
		HealthCheckers: []api.HealthChecker{
			dbHealthChecker{db: dbClient},
			redisHealthChecker{rdb: rdb},
			blobHealthChecker{blobs: blobs},
		},
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("ingest HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := server.Start(cfg.HTTP.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type dbHealthChecker struct {
	db *dbx.Client
}

func (c dbHealthChecker) Name() string { return "database" }

func (c dbHealthChecker) Check(ctx context.Context) error {
	status, err := dbx.Health(ctx, c.db.DB())
	if err != nil {
		return err
	}
	if status.Status != "healthy" {
		return errors.New("database unhealthy")
	}
	return nil
}

type redisHealthChecker struct {
	rdb *redis.Client
}

func (c redisHealthChecker) Name() string { return "redis" }

func (c redisHealthChecker) Check(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

type blobHealthChecker struct {
	blobs *blobstore.MinioStore
}

func (c blobHealthChecker) Name() string { return "object_store" }

func (c blobHealthChecker) Check(ctx context.Context) error {
	return c.blobs.Health(ctx)
}

// Command worker runs the worker node: the consumer-group runtime that
// claims enqueued photos, drives them through the Processing simulation,
// and transitions them to Completed or Failed. The worker and ingest
// nodes share only the database, object store, and queue — each process
// owns its own in-memory notification Broker, so a worker-side status
// transition is published only on the worker's Broker and is not
// delivered to the ingest node's WebSocket subscribers; clients see it
// through the ingest node's polling endpoint.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/photoflow-io/photoflow/internal/config"
	"github.com/photoflow-io/photoflow/internal/dbx"
	"github.com/photoflow-io/photoflow/internal/eventlog"
	"github.com/photoflow-io/photoflow/internal/lifecycle"
	"github.com/photoflow-io/photoflow/internal/notify"
	"github.com/photoflow-io/photoflow/internal/photorepo"
	"github.com/photoflow-io/photoflow/internal/processing"
	"github.com/photoflow-io/photoflow/internal/queue"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file loaded, continuing with process environment", "error", err)
	}

	if err := run(log); err != nil {
		log.Error("worker node exited with error", "error", err)
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

	rdb := queue.NewRedisClient(cfg.Queue)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("error closing redis client", "error", err)
		}
	}()

	repo := photorepo.New(dbClient.DB())
	// No cross-process notification fabric: this Broker only has local
	// subscribers, of which there are none in this process today. Status
	// transitions are still durably recorded via events and photos.updated_at,
	// which is what the ingest node's /api/v1/photos/poll fallback reads from.
	broker := notify.NewBroker(log)
	coord := lifecycle.New(repo, broker, log)
	events := eventlog.New(repo, broker, log)
	simulator := processing.New(events)
	handler := queue.NewMessageHandler(repo, coord, simulator)

	runner := queue.NewRunner(rdb, queue.RunnerConfig(cfg.Queue), handler.Handle, log)
	if err := runner.Start(ctx); err != nil {
		return err
	}
	log.Info("worker node started",
		"stream", cfg.Queue.Stream,
		"consumer_group", cfg.Queue.ConsumerGroup,
		"consumer_name", cfg.Queue.ConsumerName,
		"worker_pool_size", cfg.Queue.WorkerPoolSize,
	)

	healthSrv := startHealthServer(cfg.HTTP.WorkerHealthAddr, dbClient, rdb, runner, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	runner.Stop()
	return nil
}

// startHealthServer serves GET /healthz reporting database, Redis, and
// worker-pool utilization, the worker-side counterpart of the ingest
// node's /healthz (SPEC_FULL.md "pool/queue health introspection
// surfaced on the worker node's health endpoint").
func startHealthServer(addr string, dbClient *dbx.Client, rdb *redis.Client, runner *queue.Runner, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		checks := map[string]string{"pool": "ok"}

		if _, err := dbx.Health(r.Context(), dbClient.DB()); err != nil {
			status = "unhealthy"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			status = "unhealthy"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": status,
			"checks": checks,
			"pool":   runner.Health(),
		})
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker health server exited", "error", err)
		}
	}()
	return srv
}

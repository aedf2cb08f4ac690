// Package config loads photoflow's environment-driven configuration, one
// loader function per concern, the way pkg/config and
// pkg/database/config.go do it in the teacher repo.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Database holds PostgreSQL connection and pool settings, adapted from the
// teacher's pkg/database/config.go.
type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AcquireTimeout  time.Duration
}

// ObjectStore holds the blob store adapter's connection settings (§4.1).
type ObjectStore struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PhotosBucket    string
	ThumbnailBucket string
}

// Queue holds the stream-based queue / consumer-group runtime's tunables
// (§4.5, §4.6, §6 "Queue").
type Queue struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Stream        string
	ConsumerGroup string
	ConsumerName  string

	ReadBatchSize   int64
	ReadInterval    time.Duration
	ReclaimBatch    int64
	ReclaimInterval time.Duration
	MinIdleTime     time.Duration

	WorkerPoolSize int
	UploadPoolSize int
}

// HTTP holds the API server's listen settings.
type HTTP struct {
	Addr string

	// WorkerHealthAddr is the worker node's own minimal health listen
	// address (SPEC_FULL.md "pool/queue health introspection surfaced on
	// the worker node's health endpoint").
	WorkerHealthAddr string
}

// Config is the full process configuration. Both cmd/ingest and cmd/worker
// load one of these; each role only uses the sections it needs.
type Config struct {
	Database    Database
	ObjectStore ObjectStore
	Queue       Queue
	HTTP        HTTP
}

// Load builds a Config from environment variables with production-safe
// defaults, validating as it goes — mirrors
// pkg/database.LoadConfigFromEnv's shape, generalized to every backing
// service this system depends on.
func Load() (Config, error) {
	db, err := loadDatabase()
	if err != nil {
		return Config{}, fmt.Errorf("database config: %w", err)
	}

	objectStore := loadObjectStore()
	queue, err := loadQueue()
	if err != nil {
		return Config{}, fmt.Errorf("queue config: %w", err)
	}

	return Config{
		Database:    db,
		ObjectStore: objectStore,
		Queue:       queue,
		HTTP: HTTP{
			Addr:             ":" + getEnvOrDefault("HTTP_PORT", "8080"),
			WorkerHealthAddr: ":" + getEnvOrDefault("WORKER_HEALTH_PORT", "8081"),
		},
	}, nil
}

func loadDatabase() (Database, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Database{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	// worker_pool + 10, per §5's design floor. The pool size is read from
	// the environment here because Load calls loadDatabase before loadQueue.
	workerPool, _ := strconv.Atoi(getEnvOrDefault("QUEUE_WORKER_POOL_SIZE", "40"))
	defaultMaxOpen := workerPool + 10

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", strconv.Itoa(defaultMaxOpen)))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "10"))

	maxLifetime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return Database{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return Database{}, fmt.Errorf("invalid DB_CONN_MAX_IDLE_TIME: %w", err)
	}
	acquireTimeout, err := time.ParseDuration(getEnvOrDefault("DB_ACQUIRE_TIMEOUT", "30s"))
	if err != nil {
		return Database{}, fmt.Errorf("invalid DB_ACQUIRE_TIMEOUT: %w", err)
	}

	cfg := Database{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "photoflow"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "photoflow"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
		AcquireTimeout:  acquireTimeout,
	}

	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		return Database{}, fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)", cfg.MaxIdleConns, cfg.MaxOpenConns)
	}
	if cfg.MaxOpenConns < 1 {
		return Database{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}

	return cfg, nil
}

func loadObjectStore() ObjectStore {
	return ObjectStore{
		Endpoint:        getEnvOrDefault("OBJECT_STORE_ENDPOINT", "localhost:9000"),
		AccessKeyID:     getEnvOrDefault("OBJECT_STORE_ACCESS_KEY", "photoflow"),
		SecretAccessKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
		UseSSL:          getEnvOrDefault("OBJECT_STORE_USE_SSL", "false") == "true",
		PhotosBucket:    getEnvOrDefault("OBJECT_STORE_PHOTOS_BUCKET", "photos"),
		ThumbnailBucket: getEnvOrDefault("OBJECT_STORE_THUMBNAILS_BUCKET", "thumbnails"),
	}
}

func loadQueue() (Queue, error) {
	readBatch, _ := strconv.ParseInt(getEnvOrDefault("QUEUE_READ_BATCH_SIZE", "40"), 10, 64)
	reclaimBatch, _ := strconv.ParseInt(getEnvOrDefault("QUEUE_RECLAIM_BATCH_SIZE", "10"), 10, 64)
	workerPool, _ := strconv.Atoi(getEnvOrDefault("QUEUE_WORKER_POOL_SIZE", "40"))
	uploadPool, _ := strconv.Atoi(getEnvOrDefault("INGEST_UPLOAD_POOL_SIZE", "10"))
	redisDB, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))

	readInterval, err := time.ParseDuration(getEnvOrDefault("QUEUE_READ_INTERVAL", "1s"))
	if err != nil {
		return Queue{}, fmt.Errorf("invalid QUEUE_READ_INTERVAL: %w", err)
	}
	reclaimInterval, err := time.ParseDuration(getEnvOrDefault("QUEUE_RECLAIM_INTERVAL", "30s"))
	if err != nil {
		return Queue{}, fmt.Errorf("invalid QUEUE_RECLAIM_INTERVAL: %w", err)
	}
	minIdle, err := time.ParseDuration(getEnvOrDefault("QUEUE_MIN_IDLE_TIME", "60s"))
	if err != nil {
		return Queue{}, fmt.Errorf("invalid QUEUE_MIN_IDLE_TIME: %w", err)
	}

	return Queue{
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		Stream:          getEnvOrDefault("QUEUE_STREAM", "photo_stream"),
		ConsumerGroup:   getEnvOrDefault("QUEUE_CONSUMER_GROUP", "workers"),
		ConsumerName:    getEnvOrDefault("QUEUE_CONSUMER_NAME", "worker-1"),
		ReadBatchSize:   readBatch,
		ReadInterval:    readInterval,
		ReclaimBatch:    reclaimBatch,
		ReclaimInterval: reclaimInterval,
		MinIdleTime:     minIdle,
		WorkerPoolSize:  workerPool,
		UploadPoolSize:  uploadPool,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

package queue

import (
	"github.com/redis/go-redis/v9"

	"github.com/photoflow-io/photoflow/internal/config"
)

// NewRedisClient builds the shared go-redis client both the producer and
// the consumer-group Runner use, from cfg's Redis settings.
func NewRedisClient(cfg config.Queue) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// RunnerConfig builds a Runner Config from cfg.Queue.
func RunnerConfig(cfg config.Queue) Config {
	return Config{
		Stream:          cfg.Stream,
		Group:           cfg.ConsumerGroup,
		Consumer:        cfg.ConsumerName,
		ReadBatchSize:   cfg.ReadBatchSize,
		ReadInterval:    cfg.ReadInterval,
		ReclaimBatch:    cfg.ReclaimBatch,
		ReclaimInterval: cfg.ReclaimInterval,
		MinIdleTime:     cfg.MinIdleTime,
		WorkerPoolSize:  cfg.WorkerPoolSize,
	}
}

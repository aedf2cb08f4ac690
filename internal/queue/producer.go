// Package queue is the Redis Streams queue client: the producer that
// appends jobs (§4.5) and the consumer-group runtime that a worker node
// runs to claim and dispatch them (§4.6). Grounded on storj-storj's
// go-redis dependency and on the other_examples flyingrobots work-queue
// reference's QueueBackend shape — see DESIGN.md.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Job is one queue message's payload (§4.5 "{photoId, filename,
// storagePath}").
type Job struct {
	PhotoID     string `json:"photoId"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storagePath"`
}

// fieldPhotoID, fieldFilename, and fieldStoragePath are the Redis Stream
// entry field names Job marshals to/from — a stream entry is a flat
// field/value map, not a JSON blob, so each Job field gets its own key.
const (
	fieldPhotoID     = "photoId"
	fieldFilename    = "filename"
	fieldStoragePath = "storagePath"
)

func (j Job) values() map[string]any {
	return map[string]any{
		fieldPhotoID:     j.PhotoID,
		fieldFilename:    j.Filename,
		fieldStoragePath: j.StoragePath,
	}
}

func jobFromValues(values map[string]any) (Job, error) {
	photoID, ok1 := values[fieldPhotoID].(string)
	filename, ok2 := values[fieldFilename].(string)
	storagePath, ok3 := values[fieldStoragePath].(string)
	if !ok1 || !ok2 || !ok3 {
		return Job{}, fmt.Errorf("malformed queue message: %v", values)
	}
	return Job{PhotoID: photoID, Filename: filename, StoragePath: storagePath}, nil
}

// Producer appends jobs to the photo_stream (§4.5).
type Producer struct {
	rdb    *redis.Client
	stream string
	group  string

	groupOnce sync.Once
	groupErr  error
}

// NewProducer builds a Producer targeting stream/group on rdb.
func NewProducer(rdb *redis.Client, stream, group string) *Producer {
	return &Producer{rdb: rdb, stream: stream, group: group}
}

// Enqueue appends job to the stream, creating it implicitly on first
// append (XADD does this natively), then lazily ensures the consumer
// group exists, tolerating "group already exists" as success (§4.5). Safe
// to call concurrently: the group-creation attempt runs at most once
// regardless of how many goroutines call Enqueue before it completes.
func (p *Producer) Enqueue(ctx context.Context, job Job) error {
	if _, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: job.values(),
	}).Result(); err != nil {
		return fmt.Errorf("enqueue job for photo %s: %w", job.PhotoID, err)
	}

	p.groupOnce.Do(func() { p.groupErr = p.ensureGroup(ctx) })
	return p.groupErr
}

func (p *Producer) ensureGroup(ctx context.Context) error {
	err := p.rdb.XGroupCreateMkStream(ctx, p.stream, p.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", p.group, err)
	}
	return nil
}

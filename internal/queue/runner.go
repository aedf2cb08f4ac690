package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one dequeued Job. A returned error leaves the message
// unacked and eligible for reclaim (§4.6 "On any exception before ack: the
// message remains pending and is eligible for reclaim").
type Handler func(ctx context.Context, job Job) error

// Runner is the consumer-group runtime a worker node runs (§4.6): a live
// loop that reads and dispatches new messages, and a reclaim loop that
// claims this consumer name's own pending messages left unacked by a dead
// or stuck earlier run. Both loops are
// non-blocking with respect to the scheduler — they fire a batch of
// dispatches and return immediately, never waiting for the batch to
// finish before the next tick (§4.6).
//
// Modeled on the teacher's pkg/queue WorkerPool/Worker split, with the DB
// row-claim (SELECT ... FOR UPDATE SKIP LOCKED) replaced by Redis's
// native XREADGROUP/XCLAIM claim semantics.
type Runner struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string

	readBatchSize   int64
	readInterval    time.Duration
	reclaimBatch    int64
	reclaimInterval time.Duration
	minIdleTime     time.Duration

	handler  Handler
	sem      chan struct{}
	inFlight atomic.Int64
	log      *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PoolHealth reports the worker pool's current utilization, the
// consumer-group runtime's equivalent of the teacher's
// WorkerPool.Health()/PoolHealth (SPEC_FULL.md "Supplemented features").
type PoolHealth struct {
	Capacity int   `json:"capacity"`
	InFlight int64 `json:"inFlight"`
}

// Health returns the Runner's current PoolHealth, read without blocking
// the live/reclaim loops.
func (r *Runner) Health() PoolHealth {
	return PoolHealth{Capacity: cap(r.sem), InFlight: r.inFlight.Load()}
}

// Config bundles the Runner's tunables, sourced from config.Queue.
type Config struct {
	Stream          string
	Group           string
	Consumer        string
	ReadBatchSize   int64
	ReadInterval    time.Duration
	ReclaimBatch    int64
	ReclaimInterval time.Duration
	MinIdleTime     time.Duration
	WorkerPoolSize  int
}

// NewRunner builds a Runner dispatching claimed jobs to handler, bounded
// to cfg.WorkerPoolSize concurrent in-flight jobs (§4.6 "worker pool of 40
// goroutines/tasks/threads").
func NewRunner(rdb *redis.Client, cfg Config, handler Handler, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Runner{
		rdb:             rdb,
		stream:          cfg.Stream,
		group:           cfg.Group,
		consumer:        cfg.Consumer,
		readBatchSize:   cfg.ReadBatchSize,
		readInterval:    cfg.ReadInterval,
		reclaimBatch:    cfg.ReclaimBatch,
		reclaimInterval: cfg.ReclaimInterval,
		minIdleTime:     cfg.MinIdleTime,
		handler:         handler,
		sem:             make(chan struct{}, poolSize),
		log:             log,
		stopCh:          make(chan struct{}),
	}
}

// Start ensures the consumer group exists, then launches the live and
// reclaim loops in background goroutines. Returns once both are running;
// call Stop to shut them down.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.ensureGroup(ctx); err != nil {
		return err
	}

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.liveLoop(ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.reclaimLoop(ctx)
	}()
	return nil
}

// Stop signals both loops to exit and waits for in-flight ticks (not
// in-flight job handlers) to return.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Runner) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !isBusyGroup(err) {
		return err
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// liveLoop reads up to readBatchSize new messages every readInterval and
// dispatches each (§4.6 "Live loop every 1s").
func (r *Runner) liveLoop(ctx context.Context) {
	ticker := time.NewTicker(r.readInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.readAndDispatch(ctx)
		}
	}
}

func (r *Runner) readAndDispatch(ctx context.Context) {
	streams, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    r.readBatchSize,
		Block:    -1,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Error("queue read failed", "error", err)
		}
		return
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			r.dispatch(ctx, msg)
		}
	}
}

// reclaimLoop enumerates this consumer's pending messages every
// reclaimInterval and claims up to reclaimBatch idle longer than
// minIdleTime (§4.6 "Reclaim loop every 30s").
func (r *Runner) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(r.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reclaimAndDispatch(ctx)
		}
	}
}

func (r *Runner) reclaimAndDispatch(ctx context.Context) {
	pending, err := r.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   r.stream,
		Group:    r.group,
		Consumer: r.consumer,
		Idle:     r.minIdleTime,
		Start:    "-",
		End:      "+",
		Count:    r.reclaimBatch,
	}).Result()
	if err != nil {
		r.log.Error("queue pending scan failed", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	msgs, err := r.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.stream,
		Group:    r.group,
		Consumer: r.consumer,
		MinIdle:  r.minIdleTime,
		Messages: ids,
	}).Result()
	if err != nil {
		r.log.Error("queue claim failed", "error", err)
		return
	}

	for _, msg := range msgs {
		r.dispatch(ctx, msg)
	}
}

// dispatch runs handler for msg on the bounded worker pool and acks on
// success, non-blocking with respect to the caller (§4.6 "non-blocking
// with respect to the scheduler"). The semaphore acquisition happens
// inside the spawned goroutine, not before it, so a saturated pool never
// stalls readAndDispatch/reclaimAndDispatch — and therefore never delays
// the next scheduler tick.
func (r *Runner) dispatch(ctx context.Context, msg redis.XMessage) {
	job, err := jobFromValues(msg.Values)
	if err != nil {
		r.log.Error("dropping malformed queue message", "message_id", msg.ID, "error", err)
		r.ack(ctx, msg.ID)
		return
	}

	go func() {
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		r.inFlight.Add(1)
		defer func() { r.inFlight.Add(-1); <-r.sem }()

		if err := r.handler(ctx, job); err != nil {
			r.log.Error("job processing failed, leaving unacked for reclaim",
				"photo_id", job.PhotoID, "message_id", msg.ID, "error", err)
			return
		}
		r.ack(ctx, msg.ID)
	}()
}

func (r *Runner) ack(ctx context.Context, messageID string) {
	if err := r.rdb.XAck(ctx, r.stream, r.group, messageID).Err(); err != nil {
		r.log.Error("ack failed", "message_id", messageID, "error", err)
	}
}

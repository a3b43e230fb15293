package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"metersquare/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueNotifications = "jobs:notifications"

	JobTypeNotification = "notification"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
	Redrives int             `json:"redrives,omitempty"`
}

var errNoQueue = errors.New("worker: redis is not configured")

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Notify enqueues a workflow notification. It satisfies service.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, n dto.Notification) error {
	return d.enqueue(ctx, QueueNotifications, JobTypeNotification, n)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	if d == nil || d.rdb == nil {
		return errNoQueue
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return pushJob(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func pushJob(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// Processor handles the payload of one job type.
type Processor interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// PoolConfig holds the worker pool dependencies.
type PoolConfig struct {
	RDB         *redis.Client
	Workers     int
	MaxAttempts int
	Processors  map[string]Processor

	// PollBackoff is the pause after a failed BRPOP (Redis unreachable).
	PollBackoff time.Duration
	// RetryDelay is multiplied by the attempt count before a failed job is re-queued.
	RetryDelay time.Duration
}

// StartWorkerPool launches cfg.Workers goroutines consuming the notification queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, cfg PoolConfig) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollBackoff <= 0 {
		cfg.PollBackoff = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	for i := 0; i < cfg.Workers; i++ {
		go runWorker(ctx, cfg, i)
	}
	log.Info().Msgf("worker pool started with %d workers", cfg.Workers)
}

func runWorker(ctx context.Context, cfg PoolConfig, id int) {
	queues := []string{QueueNotifications}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := cfg.RDB.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue // timeout or context cancelled
				}
				log.Error().Err(err).Int("worker", id).Msg("dequeue failed")
				sleepCtx(ctx, cfg.PollBackoff)
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, cfg, result[0], result[1])
		}
	}
}

// processJob runs one job. A failed job is re-queued until MaxAttempts, then
// moved to the DLQ.
func processJob(ctx context.Context, cfg PoolConfig, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, cfg.RDB, queue, Job{Type: "unknown", Payload: json.RawMessage(`null`)}, "unparseable job: "+err.Error())
		return
	}
	p, ok := cfg.Processors[job.Type]
	if !ok {
		SendToDLQ(ctx, cfg.RDB, queue, job, "no processor for job type")
		return
	}

	job.Attempts++
	err := p.Process(ctx, job.Payload)
	if err == nil {
		return
	}
	if job.Attempts >= cfg.MaxAttempts || errors.Is(err, ErrPermanent) {
		SendToDLQ(ctx, cfg.RDB, queue, job, err.Error())
		return
	}
	log.Warn().
		Err(err).
		Str("queue", queue).
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Msg("job failed, re-queued")
	if !sleepCtx(ctx, retryDelay(cfg.RetryDelay, job.Attempts)) {
		// Shutting down: put the job back without waiting.
		ctx = context.WithoutCancel(ctx)
	}
	if err := pushJob(ctx, cfg.RDB, queue, job); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("re-queue failed")
	}
}

func retryDelay(base time.Duration, attempts int) time.Duration {
	if base <= 0 || attempts <= 0 {
		return 0
	}
	return base * time.Duration(attempts)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

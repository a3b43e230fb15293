package worker

// redrive_cron.go
// Background goroutine that periodically moves dead-lettered notification
// jobs back onto their queue. It pauses while the gateway breaker is open so
// a downed gateway is not hammered, and parks jobs that were already
// re-driven MaxRedrives times.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"metersquare/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redriveTickInterval = 30 * time.Second
	redriveBatchSize    = 20
	defaultMaxRedrives  = 3
)

// RedriveCronConfig holds all dependencies for the re-drive goroutine.
type RedriveCronConfig struct {
	RDB         *redis.Client
	CB          *infra.CircuitBreaker
	Queue       string
	MaxRedrives int
}

// StartRedriveCron launches a background goroutine that ticks every 30s.
// It respects the context for graceful shutdown.
func StartRedriveCron(ctx context.Context, cfg RedriveCronConfig) {
	go func() {
		ticker := time.NewTicker(redriveTickInterval)
		defer ticker.Stop()

		log.Info().Str("queue", cfg.Queue).Msg("redrive_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("redrive_cron: shutting down")
				return
			case <-ticker.C:
				if n := RedriveDLQ(ctx, cfg); n > 0 {
					log.Info().Int("count", n).Str("queue", cfg.Queue).Msg("redrive_cron: jobs re-queued")
				}
			}
		}
	}()
}

// RedriveDLQ moves up to one batch of DLQ entries back onto cfg.Queue and
// returns how many were re-queued. Entries over the re-drive limit go back to
// the DLQ head and are not looked at again in the same pass.
func RedriveDLQ(ctx context.Context, cfg RedriveCronConfig) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("redrive_cron: circuit breaker is open, skipping tick")
		return 0
	}
	if cfg.MaxRedrives <= 0 {
		cfg.MaxRedrives = defaultMaxRedrives
	}

	dlqKey := DLQPrefix + cfg.Queue
	pending, err := cfg.RDB.LLen(ctx, dlqKey).Result()
	if err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("redrive_cron: failed to read DLQ length")
		return 0
	}
	if pending > redriveBatchSize {
		pending = redriveBatchSize
	}

	moved := 0
	for i := int64(0); i < pending; i++ {
		// The breaker may trip mid-batch.
		if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
			return moved
		}
		raw, err := cfg.RDB.RPop(ctx, dlqKey).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Error().Err(err).Msg("redrive_cron: pop failed")
			}
			return moved
		}

		var entry DLQEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Error().Err(err).Msg("redrive_cron: dropping unreadable DLQ entry")
			continue
		}
		if entry.Redrives >= cfg.MaxRedrives {
			_ = cfg.RDB.LPush(ctx, dlqKey, raw).Err()
			continue
		}

		job := Job{Type: entry.JobType, Payload: entry.Payload, Redrives: entry.Redrives + 1}
		if err := pushJob(ctx, cfg.RDB, cfg.Queue, job); err != nil {
			log.Error().Err(err).Msg("redrive_cron: re-queue failed, restoring DLQ entry")
			_ = cfg.RDB.RPush(ctx, dlqKey, raw).Err()
			return moved
		}
		moved++
	}
	return moved
}

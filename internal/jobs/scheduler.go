package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"healthbyte/api/internal/queue"
)

// Scheduler enqueues periodic maintenance. The nightly sweep re-drives
// the purge of orphaned blobs whose inline cleanup failed.
type Scheduler struct {
	cron  *cron.Cron
	redis *redis.Client
	log   zerolog.Logger
}

func NewScheduler(redisClient *redis.Client, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		redis: redisClient,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.redis == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 3 * * *", s.sweepOrphans); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

// sweepOrphans drains the orphan set back onto the work stream.
func (s *Scheduler) sweepOrphans() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys, err := s.redis.SMembers(ctx, queue.OrphanSetKey).Result()
	if err != nil {
		s.log.Error().Err(err).Msg("read orphan set failed")
		return
	}
	if len(keys) == 0 {
		return
	}

	for _, key := range keys {
		if err := s.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: queue.StreamMeals,
			Values: map[string]any{
				"type":    "purge",
				"objects": key,
			},
		}).Err(); err != nil {
			s.log.Error().Err(err).Str("object_key", key).Msg("enqueue purge failed")
			continue
		}
		if err := s.redis.SRem(ctx, queue.OrphanSetKey, key).Err(); err != nil {
			s.log.Error().Err(err).Str("object_key", key).Msg("remove from orphan set failed")
		}
	}
	s.log.Info().Int("count", len(keys)).Msg("orphan sweep enqueued")
}

package queue

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"healthbyte/api/internal/models"
)

// StreamMeals carries post-pipeline work: thumbnail generation for
// committed meals and purging of orphaned blobs.
const StreamMeals = "meals:events"

// OrphanSetKey tracks blobs awaiting purge until the task succeeds.
const OrphanSetKey = "meals:orphans"

// Publisher feeds the background consumer. Satisfies pipeline.Notifier.
type Publisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPublisher(client *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		log:    log.With().Str("component", "publisher").Logger(),
	}
}

func (p *Publisher) MealCommitted(ctx context.Context, meal models.Meal, objectKeys []string) {
	p.publish(ctx, map[string]any{
		"type":    "thumbnail",
		"mealId":  meal.ID,
		"objects": strings.Join(objectKeys, ","),
	})
}

// BlobsOrphaned records the keys in the orphan set before enqueueing the
// purge, so the nightly sweep can re-drive any that slip through.
func (p *Publisher) BlobsOrphaned(ctx context.Context, objectKeys []string) {
	if p.client == nil {
		return
	}
	if err := p.client.SAdd(ctx, OrphanSetKey, toMembers(objectKeys)...).Err(); err != nil {
		p.log.Error().Err(err).Msg("record orphans failed")
	}
	p.publish(ctx, map[string]any{
		"type":    "purge",
		"objects": strings.Join(objectKeys, ","),
	})
}

func toMembers(keys []string) []any {
	members := make([]any, len(keys))
	for i, key := range keys {
		members[i] = key
	}
	return members
}

func (p *Publisher) publish(ctx context.Context, payload map[string]any) {
	if p.client == nil {
		return
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamMeals,
		Values: payload,
	}).Err(); err != nil {
		p.log.Error().Err(err).Interface("payload", payload).Msg("enqueue failed")
	}
}

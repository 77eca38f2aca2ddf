package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"healthbyte/api/internal/queue"
	"healthbyte/api/internal/storage"
)

const thumbMaxEdge = 320

// Processor executes background work queued by the pipeline: thumbnails
// for committed meals, purges for blobs whose run never committed.
type Processor struct {
	store  *storage.ObjectStore
	redis  *redis.Client
	logger zerolog.Logger
}

type TaskPayload struct {
	Type    string `json:"type"`
	MealID  string `json:"mealId"`
	Objects string `json:"objects"`
}

func NewProcessor(store *storage.ObjectStore, redisClient *redis.Client, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		redis:  redisClient,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case "thumbnail":
		return p.handleThumbnail(ctx, payload)
	case "purge":
		return p.handlePurge(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Processor) handleThumbnail(ctx context.Context, payload TaskPayload) error {
	for _, objectKey := range splitObjects(payload.Objects) {
		if err := p.makeThumbnail(ctx, objectKey); err != nil {
			return fmt.Errorf("thumbnail %s: %w", objectKey, err)
		}
	}
	p.logger.Info().Str("meal_id", payload.MealID).Msg("thumbnails generated")
	return nil
}

func (p *Processor) makeThumbnail(ctx context.Context, objectKey string) error {
	object, err := p.store.Client().GetObject(ctx, p.store.MealsBucket(), objectKey, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	thumb := imaging.Fit(img, thumbMaxEdge, thumbMaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	_, err = p.store.Client().PutObject(ctx, p.store.ThumbsBucket(), objectKey,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return fmt.Errorf("put thumbnail: %w", err)
	}
	return nil
}

func (p *Processor) handlePurge(ctx context.Context, payload TaskPayload) error {
	for _, objectKey := range splitObjects(payload.Objects) {
		if err := p.store.Remove(ctx, objectKey); err != nil {
			return fmt.Errorf("purge %s: %w", objectKey, err)
		}
		if p.redis != nil {
			_ = p.redis.SRem(ctx, queue.OrphanSetKey, objectKey).Err()
		}
		p.logger.Info().Str("object_key", objectKey).Msg("orphaned blob purged")
	}
	return nil
}

func splitObjects(joined string) []string {
	var keys []string
	for _, key := range strings.Split(joined, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

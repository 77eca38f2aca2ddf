package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"healthbyte/api/internal/models"
)

// BlobStore is the durable storage consumed by the pipeline. Implemented
// by storage.ObjectStore.
type BlobStore interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, objectKey string) error
}

// Uploader moves normalized items into blob storage. All uploads for a
// run are issued concurrently; the run's item cap bounds the fan-out.
type Uploader struct {
	store    BlobStore
	attempts uint64
	delay    time.Duration
	log      zerolog.Logger
}

func NewUploader(store BlobStore, attempts uint64, delay time.Duration, log zerolog.Logger) *Uploader {
	return &Uploader{
		store:    store,
		attempts: attempts,
		delay:    delay,
		log:      log.With().Str("component", "uploader").Logger(),
	}
}

// UploadAll persists every item and records its object key and public URL
// in place, so input order is preserved no matter which upload finishes
// first. The stage resolves only when every outcome is known; the first
// failure cancels the remaining uploads and is reported as an UploadError.
// Completed uploads are not rolled back here.
func (u *Uploader) UploadAll(ctx context.Context, owner models.Identity, items []*models.MediaItem) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, item := range items {
		item := item
		objectKey := buildObjectKey(owner, item.Filename)

		group.Go(func() error {
			operation := func() error {
				url, err := u.store.Put(ctx, objectKey, item.Data, item.NormalizedMIME)
				if err != nil {
					return err
				}
				item.ObjectKey = objectKey
				item.StorageURL = url
				return nil
			}

			policy := backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewConstantBackOff(u.delay), u.attempts),
				ctx,
			)
			if err := backoff.Retry(operation, policy); err != nil {
				return &UploadError{Filename: item.Filename, Err: err}
			}

			item.Advance(models.MediaStageUploaded)
			u.log.Debug().
				Str("object_key", objectKey).
				Int("size_bytes", len(item.Data)).
				Msg("blob stored")
			return nil
		})
	}

	return group.Wait()
}

// buildObjectKey derives a globally unique blob name. The random token
// makes collisions between concurrent runs a non-issue.
func buildObjectKey(owner models.Identity, filename string) string {
	return fmt.Sprintf("%s-%s-%s", owner.UserID, filename, uuid.NewString())
}

package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"healthbyte/api/internal/models"
	"healthbyte/api/internal/pipeline"
)

type flakyStore struct {
	mu       sync.Mutex
	failures int
	putCalls int
}

func (s *flakyStore) Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failures > 0 {
		s.failures--
		return "", errors.New("connection reset")
	}
	return "https://blobs.test/" + objectKey, nil
}

func (s *flakyStore) Remove(ctx context.Context, objectKey string) error { return nil }

func TestUploadAllRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{failures: 2}
	uploader := pipeline.NewUploader(store, 3, time.Millisecond, zerolog.Nop())

	items := []*models.MediaItem{{
		Filename:       "a.jpg",
		NormalizedMIME: "image/jpeg",
		Data:           []byte{0xff, 0xd8},
		Stage:          models.MediaStageNormalized,
	}}
	owner := models.Identity{UserID: "user-1"}

	require.NoError(t, uploader.UploadAll(context.Background(), owner, items))
	require.Equal(t, 3, store.putCalls)
	require.Equal(t, models.MediaStageUploaded, items[0].Stage)
	require.NotEmpty(t, items[0].StorageURL)
}

func TestUploadAllExhaustsRetries(t *testing.T) {
	store := &flakyStore{failures: 10}
	uploader := pipeline.NewUploader(store, 2, time.Millisecond, zerolog.Nop())

	items := []*models.MediaItem{{
		Filename:       "a.jpg",
		NormalizedMIME: "image/jpeg",
		Data:           []byte{0xff, 0xd8},
		Stage:          models.MediaStageNormalized,
	}}

	err := uploader.UploadAll(context.Background(), models.Identity{UserID: "user-1"}, items)

	var uploadErr *pipeline.UploadError
	require.ErrorAs(t, err, &uploadErr)
	require.Equal(t, 3, store.putCalls, "initial attempt plus two retries")
	require.Equal(t, models.MediaStageNormalized, items[0].Stage)
}

func TestUploadAllObjectKeyNaming(t *testing.T) {
	store := newFakeStore()
	uploader := pipeline.NewUploader(store, 0, time.Millisecond, zerolog.Nop())

	items := []*models.MediaItem{{
		Filename:       "dinner.jpg",
		NormalizedMIME: "image/jpeg",
		Data:           []byte{0xff, 0xd8},
		Stage:          models.MediaStageNormalized,
	}}
	require.NoError(t, uploader.UploadAll(context.Background(), models.Identity{UserID: "user-1"}, items))

	require.True(t, strings.HasPrefix(items[0].ObjectKey, "user-1-dinner.jpg-"),
		"key is owner, filename and a uniqueness token")
	require.Greater(t, len(items[0].ObjectKey), len("user-1-dinner.jpg-"))
}

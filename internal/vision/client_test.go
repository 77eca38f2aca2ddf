package vision_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/vision"
)

func newClient(endpoint string, attempts uint64) *vision.Client {
	return vision.NewClient(config.VisionConfig{
		Endpoint:      endpoint,
		Timeout:       2 * time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
	}, zerolog.Nop())
}

func TestAnnotateSuccess(t *testing.T) {
	var gotMethod string
	var gotRequest map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotRequest)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"labels": [
				{"description": "Food", "score": 0.97},
				{"description": "Tableware", "score": 0.61}
			],
			"safeSearch": {
				"adult": "VERY_UNLIKELY",
				"violence": "UNLIKELY",
				"racy": "POSSIBLE",
				"spoof": "LIKELY"
			}
		}`))
	}))
	defer server.Close()

	client := newClient(server.URL, 0)
	annotation, err := client.Annotate(context.Background(), "https://blobs.test/u1-salad.jpg-abc")
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "https://blobs.test/u1-salad.jpg-abc", gotRequest["imageUrl"])

	require.Len(t, annotation.Labels, 2)
	require.Equal(t, "Food", annotation.Labels[0].Description)
	require.InDelta(t, 0.97, annotation.Labels[0].Score, 1e-9)

	require.Equal(t, vision.LikelihoodVeryUnlikely, annotation.SafeSearch["adult"])
	require.Equal(t, vision.LikelihoodPossible, annotation.SafeSearch["racy"])
	// Extra categories are carried through untouched.
	require.Equal(t, vision.LikelihoodLikely, annotation.SafeSearch["spoof"])
}

func TestAnnotateUnknownLevelCollapses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"labels": [], "safeSearch": {"adult": "SOMETHING_NEW"}}`))
	}))
	defer server.Close()

	client := newClient(server.URL, 0)
	annotation, err := client.Annotate(context.Background(), "https://blobs.test/x")
	require.NoError(t, err)
	require.Equal(t, vision.LikelihoodUnknown, annotation.SafeSearch["adult"])
}

func TestAnnotateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "Error processing image", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"labels": [{"description": "Dish", "score": 0.8}], "safeSearch": {}}`))
	}))
	defer server.Close()

	client := newClient(server.URL, 3)
	annotation, err := client.Annotate(context.Background(), "https://blobs.test/x")
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, "Dish", annotation.Labels[0].Description)
}

func TestAnnotateFailsClosedAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "Error processing image", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newClient(server.URL, 2)
	_, err := client.Annotate(context.Background(), "https://blobs.test/x")

	var classificationErr *vision.ClassificationError
	require.ErrorAs(t, err, &classificationErr)
	require.Equal(t, "https://blobs.test/x", classificationErr.ImageURL)
	require.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestAnnotateBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "Image URL is required", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newClient(server.URL, 5)
	_, err := client.Annotate(context.Background(), "https://blobs.test/x")

	var classificationErr *vision.ClassificationError
	require.ErrorAs(t, err, &classificationErr)
	require.Equal(t, int32(1), calls.Load())
}

func TestLikelihoodOrdering(t *testing.T) {
	require.True(t, vision.LikelihoodLikely.AtLeast(vision.LikelihoodLikely))
	require.True(t, vision.LikelihoodVeryLikely.AtLeast(vision.LikelihoodLikely))
	require.False(t, vision.LikelihoodPossible.AtLeast(vision.LikelihoodLikely))
	require.False(t, vision.LikelihoodUnknown.AtLeast(vision.LikelihoodVeryUnlikely))
}

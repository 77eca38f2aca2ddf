package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/models"
)

// ClassificationError means the annotation service could not produce a
// verdict for an image. The gate treats it as a rejection, never a pass.
type ClassificationError struct {
	ImageURL string
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.ImageURL, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Annotation is the parsed response for one image: subject-matter labels
// plus a safety likelihood per category. Categories outside the known set
// are carried through and ignored by the gate.
type Annotation struct {
	Labels     []models.Label
	SafeSearch map[string]Likelihood
}

type annotateRequest struct {
	ImageURL string `json:"imageUrl"`
}

type annotateResponse struct {
	Labels     []models.Label    `json:"labels"`
	SafeSearch map[string]string `json:"safeSearch"`
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	attempts   uint64
	delay      time.Duration
	log        zerolog.Logger
}

func NewClient(cfg config.VisionConfig, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		attempts:   cfg.RetryAttempts,
		delay:      cfg.RetryDelay,
		log:        log.With().Str("component", "vision").Logger(),
	}
}

// Annotate submits one publicly retrievable image URL for label and
// safe-search detection. Transient failures are retried with a constant
// delay up to the configured attempt count.
func (c *Client) Annotate(ctx context.Context, imageURL string) (Annotation, error) {
	var annotation Annotation

	operation := func() error {
		result, err := c.annotateOnce(ctx, imageURL)
		if err != nil {
			return err
		}
		annotation = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), c.attempts),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return Annotation{}, &ClassificationError{ImageURL: imageURL, Err: err}
	}
	return annotation, nil
}

func (c *Client) annotateOnce(ctx context.Context, imageURL string) (Annotation, error) {
	body, err := json.Marshal(annotateRequest{ImageURL: imageURL})
	if err != nil {
		return Annotation{}, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Annotation{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Annotation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("detail", string(detail)).
			Msg("annotation request failed")

		err := fmt.Errorf("annotation service returned %d", resp.StatusCode)
		if resp.StatusCode == http.StatusBadRequest {
			// Malformed request, retrying will not help.
			return Annotation{}, backoff.Permanent(err)
		}
		return Annotation{}, err
	}

	var decoded annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Annotation{}, fmt.Errorf("decode response: %w", err)
	}

	annotation := Annotation{
		Labels:     decoded.Labels,
		SafeSearch: make(map[string]Likelihood, len(decoded.SafeSearch)),
	}
	for category, level := range decoded.SafeSearch {
		annotation.SafeSearch[category] = ParseLikelihood(level)
	}
	return annotation, nil
}

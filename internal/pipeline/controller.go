// Package pipeline runs one meal submission end to end: normalize the
// images, upload them, classify each one, gate the results and commit the
// meal record only when every image passes.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/gate"
	"healthbyte/api/internal/ids"
	"healthbyte/api/internal/models"
	"healthbyte/api/internal/vision"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusCommitted RunStatus = "committed"
	RunStatusRejected  RunStatus = "rejected"
	RunStatusFailed    RunStatus = "failed"
)

// Normalizer converts raw items into uniformly decodable raster bytes.
type Normalizer interface {
	NormalizeAll(ctx context.Context, items []*models.MediaItem) error
}

// Classifier annotates one uploaded image.
type Classifier interface {
	Annotate(ctx context.Context, imageURL string) (vision.Annotation, error)
}

// MealStore persists the committed record.
type MealStore interface {
	Create(ctx context.Context, meal models.Meal) error
}

// Notifier publishes post-run events for background processing. May be
// nil when no queue is configured.
type Notifier interface {
	MealCommitted(ctx context.Context, meal models.Meal, objectKeys []string)
	BlobsOrphaned(ctx context.Context, objectKeys []string)
}

// Submission is one run's worth of input. Items carry the raw bytes; Meal
// carries the metadata and is never mutated before commit.
type Submission struct {
	Identity models.Identity
	Meal     models.Meal
	Items    []*models.MediaItem
}

// Result is the terminal outcome of a run. Message is safe to show to the
// end user; Meal is populated only on commit.
type Result struct {
	Status  RunStatus
	Meal    models.Meal
	Message string
}

type Controller struct {
	normalizer Normalizer
	uploader   *Uploader
	classifier Classifier
	gate       *gate.Gate
	meals      MealStore
	store      BlobStore
	notifier   Notifier
	cfg        config.PipelineConfig
	log        zerolog.Logger
}

func NewController(
	norm Normalizer,
	uploader *Uploader,
	classifier Classifier,
	g *gate.Gate,
	meals MealStore,
	store BlobStore,
	notifier Notifier,
	cfg config.PipelineConfig,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		normalizer: norm,
		uploader:   uploader,
		classifier: classifier,
		gate:       g,
		meals:      meals,
		store:      store,
		notifier:   notifier,
		cfg:        cfg,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes the stages strictly in order; no stage starts before the
// previous one has resolved for every item. Stage errors end the run as
// Failed, a negative gate outcome ends it as Rejected, and in both cases
// any blobs already uploaded are compensated for. The meal record is
// written exactly once, on commit.
func (c *Controller) Run(ctx context.Context, sub Submission) (Result, error) {
	runID := ids.New()
	log := c.log.With().Str("run_id", runID).Str("owner", sub.Identity.UserID).Logger()

	if err := c.validate(sub); err != nil {
		log.Warn().Err(err).Msg("submission invalid")
		return Result{Status: RunStatusFailed, Message: UserMessage(err)}, err
	}

	if err := c.normalize(ctx, sub.Items); err != nil {
		log.Error().Err(err).Msg("normalization failed")
		return Result{Status: RunStatusFailed, Message: UserMessage(err)}, err
	}

	if err := c.upload(ctx, sub.Identity, sub.Items); err != nil {
		log.Error().Err(err).Msg("upload failed")
		c.cleanup(sub.Items, log)
		return Result{Status: RunStatusFailed, Message: UserMessage(err)}, err
	}

	if err := c.classify(ctx, sub.Items); err != nil {
		// Fail closed: an unclassifiable image never passes the gate.
		log.Error().Err(err).Msg("classification failed")
		c.cleanup(sub.Items, log)
		return Result{Status: RunStatusFailed, Message: UserMessage(err)}, err
	}

	if rejected := c.evaluate(sub.Items, log); len(rejected) > 0 {
		log.Info().Strs("rejected", rejected).Msg("submission rejected by policy")
		c.cleanup(sub.Items, log)
		return Result{
			Status:  RunStatusRejected,
			Message: fmt.Sprintf("%s did not pass the food/safety check", strings.Join(rejected, ", ")),
		}, nil
	}

	meal, err := c.commit(ctx, sub)
	if err != nil {
		log.Error().Err(err).Msg("commit failed")
		c.cleanup(sub.Items, log)
		return Result{Status: RunStatusFailed, Message: "could not save your meal, please try again"}, err
	}

	log.Info().Str("meal_id", meal.ID).Int("images", len(meal.ImgURLs)).Msg("submission committed")
	return Result{Status: RunStatusCommitted, Meal: meal}, nil
}

// validate fails fast, before any I/O.
func (c *Controller) validate(sub Submission) error {
	maxImages := c.cfg.MaxImages
	if maxImages <= 0 {
		maxImages = 6
	}

	switch {
	case sub.Identity.UserID == "":
		return &ValidationError{Reason: "missing owner identity"}
	case len(sub.Items) == 0:
		return &ValidationError{Reason: "at least one image is required"}
	case len(sub.Items) > maxImages:
		return &ValidationError{Reason: fmt.Sprintf("a maximum of %d images are allowed", maxImages)}
	case strings.TrimSpace(sub.Meal.Name) == "":
		return &ValidationError{Reason: "name is required"}
	case strings.TrimSpace(sub.Meal.Description) == "":
		return &ValidationError{Reason: "description is required"}
	case sub.Meal.Calories <= 0:
		return &ValidationError{Reason: "calories must be positive"}
	}
	return nil
}

func (c *Controller) normalize(ctx context.Context, items []*models.MediaItem) error {
	ctx, cancel := stageContext(ctx, c.cfg.NormalizeTimeout)
	defer cancel()
	return c.normalizer.NormalizeAll(ctx, items)
}

func (c *Controller) upload(ctx context.Context, owner models.Identity, items []*models.MediaItem) error {
	ctx, cancel := stageContext(ctx, c.cfg.UploadTimeout)
	defer cancel()
	return c.uploader.UploadAll(ctx, owner, items)
}

// classify fans out over the items with a bounded concurrency and joins
// all results before the gate runs. Items are independent and
// side-effect-free to classify, so completion order does not matter.
func (c *Controller) classify(ctx context.Context, items []*models.MediaItem) error {
	ctx, cancel := stageContext(ctx, c.cfg.ClassifyTimeout)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	if c.cfg.ClassifyConcurrency > 0 {
		group.SetLimit(c.cfg.ClassifyConcurrency)
	}

	for _, item := range items {
		item := item
		group.Go(func() error {
			annotation, err := c.classifier.Annotate(ctx, item.StorageURL)
			if err != nil {
				return err
			}
			item.Labels = annotation.Labels
			item.Safety = make(map[string]string, len(annotation.SafeSearch))
			for category, level := range annotation.SafeSearch {
				item.Safety[category] = string(level)
			}
			item.Advance(models.MediaStageClassified)
			return nil
		})
	}

	return group.Wait()
}

// evaluate applies the gate per item and returns the filenames that
// failed. The run commits only when this comes back empty.
func (c *Controller) evaluate(items []*models.MediaItem, log zerolog.Logger) []string {
	var rejected []string
	for _, item := range items {
		safety := make(map[string]vision.Likelihood, len(item.Safety))
		for category, level := range item.Safety {
			safety[category] = vision.ParseLikelihood(level)
		}
		verdict := c.gate.Evaluate(vision.Annotation{Labels: item.Labels, SafeSearch: safety})
		if verdict.Accepted {
			item.Advance(models.MediaStageAccepted)
			continue
		}
		item.Advance(models.MediaStageRejected)
		log.Info().Str("filename", item.Filename).Str("reason", verdict.Reason).Msg("image rejected")
		rejected = append(rejected, item.Filename)
	}
	return rejected
}

func (c *Controller) commit(ctx context.Context, sub Submission) (models.Meal, error) {
	meal := sub.Meal
	meal.ID = ids.New()
	meal.OwnerID = sub.Identity.UserID
	meal.Timestamp = time.Now().UTC()

	// First URL is the designated cover image; input order is preserved.
	meal.ImgURLs = make([]string, 0, len(sub.Items))
	objectKeys := make([]string, 0, len(sub.Items))
	for _, item := range sub.Items {
		meal.ImgURLs = append(meal.ImgURLs, item.StorageURL)
		objectKeys = append(objectKeys, item.ObjectKey)
	}

	if err := c.meals.Create(ctx, meal); err != nil {
		return models.Meal{}, fmt.Errorf("create meal: %w", err)
	}

	if c.notifier != nil {
		c.notifier.MealCommitted(ctx, meal, objectKeys)
	}
	return meal, nil
}

// cleanup compensates for blobs uploaded by a run that will not commit.
// Removal failures are handed to the background sweep rather than
// surfaced to the user.
func (c *Controller) cleanup(items []*models.MediaItem, log zerolog.Logger) {
	if !c.cfg.CleanupOnReject {
		return
	}

	// The run's context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var orphaned []string
	for _, item := range items {
		if item.ObjectKey == "" {
			continue
		}
		if err := c.store.Remove(ctx, item.ObjectKey); err != nil {
			log.Warn().Err(err).Str("object_key", item.ObjectKey).Msg("blob cleanup failed")
			orphaned = append(orphaned, item.ObjectKey)
		}
	}
	if len(orphaned) > 0 && c.notifier != nil {
		c.notifier.BlobsOrphaned(ctx, orphaned)
	}
}

func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

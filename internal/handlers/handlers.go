package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/gate"
	"healthbyte/api/internal/media/normalizer"
	"healthbyte/api/internal/middleware"
	"healthbyte/api/internal/pipeline"
	"healthbyte/api/internal/queue"
	"healthbyte/api/internal/repository"
	"healthbyte/api/internal/storage"
	"healthbyte/api/internal/vision"
)

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	db         *pgxpool.Pool
	cache      *redis.Client
	store      *storage.ObjectStore
	meals      *repository.MealRepository
	controller *pipeline.Controller
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	mealRepo := repository.NewMealRepository(db)
	publisher := queue.NewPublisher(cache, log)

	controller := pipeline.NewController(
		normalizer.New(log),
		pipeline.NewUploader(store, cfg.Pipeline.UploadRetryAttempts, cfg.Pipeline.UploadRetryDelay, log),
		vision.NewClient(cfg.Vision, log),
		gate.New(cfg.Moderation),
		mealRepo,
		store,
		publisher,
		cfg.Pipeline,
		log,
	)

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		db:         db,
		cache:      cache,
		store:      store,
		meals:      mealRepo,
		controller: controller,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	meals := v1.Group("/meals")
	meals.GET("", h.ListMeals)
	meals.GET("/:id", h.GetMeal)

	protected := v1.Group("/meals")
	protected.Use(middleware.Auth(h.cfg))
	protected.POST("", h.SubmitMeal)
	protected.POST("/:id/like", h.LikeMeal)
}

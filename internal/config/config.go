package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	BucketMeals  string
	BucketThumbs string
	UseSSL       bool
	Region       string
}

type SecurityConfig struct {
	JWTAccessSecret string
}

// VisionConfig points the classification client at the vision
// annotation endpoint.
type VisionConfig struct {
	Endpoint      string
	Timeout       time.Duration
	RetryAttempts uint64
	RetryDelay    time.Duration
}

// PipelineConfig bounds a submission run: item cap, per-stage
// timeouts and the compensating cleanup switch.
type PipelineConfig struct {
	MaxImages           int
	NormalizeTimeout    time.Duration
	UploadTimeout       time.Duration
	ClassifyTimeout     time.Duration
	ClassifyConcurrency int
	UploadRetryAttempts uint64
	UploadRetryDelay    time.Duration
	CleanupOnReject     bool
}

type ModerationConfig struct {
	AllowedLabels []string
	BlockedLevel  string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Vision           VisionConfig
	Pipeline         PipelineConfig
	Moderation       ModerationConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("HEALTHBYTE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketmeals", "healthbyte-meals")
	v.SetDefault("storage.bucketthumbs", "healthbyte-thumbs")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("vision.timeout", "15s")
	v.SetDefault("vision.retryattempts", 2)
	v.SetDefault("vision.retrydelay", "500ms")

	v.SetDefault("pipeline.maximages", 6)
	v.SetDefault("pipeline.normalizetimeout", "30s")
	v.SetDefault("pipeline.uploadtimeout", "60s")
	v.SetDefault("pipeline.classifytimeout", "45s")
	v.SetDefault("pipeline.classifyconcurrency", 3)
	v.SetDefault("pipeline.uploadretryattempts", 2)
	v.SetDefault("pipeline.uploadretrydelay", "300ms")
	v.SetDefault("pipeline.cleanuponreject", true)

	v.SetDefault("moderation.allowedlabels", []string{"Food", "Dish", "Cuisine", "Drink", "Meal"})
	v.SetDefault("moderation.blockedlevel", "LIKELY")
}

package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"local"`
	HTTPPort   int    `env:"HTTP_PORT" envDefault:"8080"`
	HealthPort int    `env:"HEALTH_PORT" envDefault:"9090"`

	PostgresDSN   string `env:"POSTGRES_DSN,required"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	YouTubeAPIKey string `env:"YT_API_KEY,required"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	SentimentBatchSize  int           `env:"SENTIMENT_BATCH_SIZE" envDefault:"20"`
	DefaultMaxComments  int           `env:"DEFAULT_MAX_COMMENTS" envDefault:"500"`
	MaxCommentsCeiling  int           `env:"MAX_COMMENTS_CEILING" envDefault:"5000"`
	IncludeReplies      bool          `env:"INCLUDE_REPLIES" envDefault:"true"`
	TopTokenCount       int           `env:"TOP_TOKEN_COUNT" envDefault:"30"`
	JobRetention        time.Duration `env:"JOB_RETENTION" envDefault:"168h"`
	QueueMaxDeliveries  int           `env:"QUEUE_MAX_DELIVERIES" envDefault:"3"`
	PurgeInterval       time.Duration `env:"PURGE_INTERVAL" envDefault:"1h"`
	CORSAllowedOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`
	FetchMaxRetries     int           `env:"FETCH_MAX_RETRIES" envDefault:"5"`
	FetchInitialBackoff time.Duration `env:"FETCH_INITIAL_BACKOFF" envDefault:"2s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

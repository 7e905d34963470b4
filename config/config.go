package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"inspire-matcher"`
	Port                          int      `env:"PORT" env-default:"3010"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`

	// Matching algorithms (YAML or JSON, one file per config or a directory of them)
	MatcherConfigPath string `env:"MATCHER_CONFIG_PATH" env-default:""`

	// authors_titles validator
	AuthorsTitlesMaxAuthors        int     `env:"AUTHORS_TITLES_MAX_AUTHORS" env-default:"5"`
	AuthorsTitlesTitleThreshold    float64 `env:"AUTHORS_TITLES_TITLE_THRESHOLD" env-default:"0.5"`
	AuthorsTitlesMathThreshold     float64 `env:"AUTHORS_TITLES_MATH_THRESHOLD" env-default:"0.3"`
	AuthorsTitlesMetric            string  `env:"AUTHORS_TITLES_METRIC" env-default:"jaccard"`
	AuthorsTitlesLastNameThreshold float64 `env:"AUTHORS_TITLES_LAST_NAME_THRESHOLD" env-default:"0"` // 0 requires equal last names
	AuthorsTitlesAuthorsWeight     float64 `env:"AUTHORS_TITLES_AUTHORS_WEIGHT" env-default:"1"`
	AuthorsTitlesTitlesWeight      float64 `env:"AUTHORS_TITLES_TITLES_WEIGHT" env-default:"1"`

	// Elasticsearch
	SearchAddresses      []string `env:"SEARCH_ADDRESSES" env-default:"http://localhost:9200"`
	SearchUsername       string   `env:"SEARCH_USERNAME" env-default:""`
	SearchPassword       string   `env:"SEARCH_PASSWORD" env-default:""`
	SearchRequestsPerSec float64  `env:"SEARCH_REQUESTS_PER_SECOND" env-default:"0"` // 0 disables the limiter
	SearchBurst          int      `env:"SEARCH_BURST" env-default:"10"`
	SearchTimeoutSeconds int      `env:"SEARCH_TIMEOUT_SECONDS" env-default:"10"`

	// Match result cache
	RedisEnabled  bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisAddr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	RedisPrefix   string        `env:"REDIS_PREFIX" env-default:"matcher"`
	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"1h"`

	// PostgreSQL (match results)
	DatabaseEnabled               bool          `env:"DB_ENABLED" env-default:"false"`
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"matcher"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Kafka (worker)
	KafkaBrokers       []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic    string   `env:"KAFKA_INPUT_TOPIC" env-default:"records-to-match"`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" env-default:"inspire-matcher"`
	KafkaOutputTopic   string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"match-events"`
	KafkaBatchSize     int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout  int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks  int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression   string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
	WorkerCount        int      `env:"WORKER_COUNT" env-default:"4"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	TracingInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Queue store: "memory" or "postgres"
	Store string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (preference cache); empty host disables the cache
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	PrefsCacheTTL time.Duration

	// Delivery gateway: "log", "webhook" or "sns"
	Gateway        string
	WebhookURL     string
	WebhookTimeout time.Duration
	SNSTopicARN    string

	// Tracking sink: "log" or "sqs"
	TrackSink   string
	SQSQueueURL string

	AWSRegion string

	// Dispatch loop
	DispatchInterval  time.Duration
	DispatchBatchSize int
	RetryBaseDelay    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		Store: "memory",

		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "chime",
		DBName:    "chime",
		DBSSLMode: "disable",

		RedisPort:     6379,
		PrefsCacheTTL: 5 * time.Minute,

		Gateway:        "log",
		WebhookTimeout: 30 * time.Second,
		TrackSink:      "log",

		AWSRegion: "us-east-1",

		DispatchInterval:  30 * time.Second,
		DispatchBatchSize: 50,
		RetryBaseDelay:    5 * time.Minute,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if store := os.Getenv("QUEUE_STORE"); store != "" {
		if store != "memory" && store != "postgres" {
			return nil, fmt.Errorf("invalid QUEUE_STORE: %q", store)
		}
		cfg.Store = store
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if ttl := os.Getenv("PREFS_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid PREFS_CACHE_TTL: %w", err)
		}
		cfg.PrefsCacheTTL = d
	}

	if gw := os.Getenv("GATEWAY"); gw != "" {
		if gw != "log" && gw != "webhook" && gw != "sns" {
			return nil, fmt.Errorf("invalid GATEWAY: %q", gw)
		}
		cfg.Gateway = gw
	}

	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		cfg.WebhookURL = url
	}

	if timeout := os.Getenv("WEBHOOK_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
		}
		cfg.WebhookTimeout = d
	}

	if arn := os.Getenv("SNS_TOPIC_ARN"); arn != "" {
		cfg.SNSTopicARN = arn
	}

	if sink := os.Getenv("TRACK_SINK"); sink != "" {
		if sink != "log" && sink != "sqs" {
			return nil, fmt.Errorf("invalid TRACK_SINK: %q", sink)
		}
		cfg.TrackSink = sink
	}

	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.SQSQueueURL = url
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if interval := os.Getenv("DISPATCH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_INTERVAL: %w", err)
		}
		cfg.DispatchInterval = d
	}

	if size := os.Getenv("DISPATCH_BATCH_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_BATCH_SIZE: %w", err)
		}
		cfg.DispatchBatchSize = n
	}

	if delay := os.Getenv("RETRY_BASE_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_BASE_DELAY: %w", err)
		}
		cfg.RetryBaseDelay = d
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
	Auth       AuthConfig
	Clustering ClusteringConfig
	Risk       RiskConfig
	Ingest     IngestConfig
	Scheduler  SchedulerConfig
	Classifier ClassifierConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
	CORSOrigins             []string
	RunsPerMinute           int
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AutoMigrate     bool
}

// RedisConfig points at the run lock backend; credentials and db index go in the URL
type RedisConfig struct {
	URL string
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// AuthConfig guards the run endpoints. TokenHash is a bcrypt hash of the
// operator token; an empty hash leaves the endpoints open.
type AuthConfig struct {
	TokenHash string
	Header    string
}

type ClusteringConfig struct {
	MentionBatch      int
	IssueWindow       int
	SignatureMentions int
	Threshold         float64
	TitleKeywords     int
	SummaryLength     int
	StatusWindow      int
	LockTTL           time.Duration
	// ExtraStopwords extend the built-in stopword list, e.g. the brand's own name
	ExtraStopwords []string
}

type RiskConfig struct {
	IssueLimit     int
	MentionLimit   int
	SentimentLimit int
	// WeightsPath is an optional YAML file overlaying the default weights
	WeightsPath string
}

type IngestConfig struct {
	Concurrency    int
	RateLimit      float64
	FetchTimeout   time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	MaxItemsPerRun int
	UserAgent      string
}

// SchedulerConfig holds cron expressions; an empty expression disables the job
type SchedulerConfig struct {
	Enabled      bool
	IngestCron   string
	ClusterCron  string
	RiskCron     string
	Organization string
}

type ClassifierConfig struct {
	LexiconPath string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:             getEnvList("SERVER_CORS_ORIGINS", nil),
			RunsPerMinute:           getEnvInt("SERVER_RUNS_PER_MINUTE", 30),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Auth: AuthConfig{
			TokenHash: getEnv("AUTH_OPERATOR_TOKEN_HASH", ""),
			Header:    getEnv("AUTH_HEADER", "Authorization"),
		},
		Clustering: ClusteringConfig{
			MentionBatch:      getEnvInt("CLUSTER_MENTION_BATCH", 200),
			IssueWindow:       getEnvInt("CLUSTER_ISSUE_WINDOW", 50),
			SignatureMentions: getEnvInt("CLUSTER_SIGNATURE_MENTIONS", 25),
			Threshold:         getEnvFloat("CLUSTER_THRESHOLD", 0.28),
			TitleKeywords:     getEnvInt("CLUSTER_TITLE_KEYWORDS", 6),
			SummaryLength:     getEnvInt("CLUSTER_SUMMARY_LENGTH", 240),
			StatusWindow:      getEnvInt("CLUSTER_STATUS_WINDOW", 50),
			LockTTL:           getEnvDuration("CLUSTER_LOCK_TTL", 5*time.Minute),
			ExtraStopwords:    getEnvList("CLUSTER_EXTRA_STOPWORDS", nil),
		},
		Risk: RiskConfig{
			IssueLimit:     getEnvInt("RISK_ISSUE_LIMIT", 80),
			MentionLimit:   getEnvInt("RISK_MENTION_LIMIT", 250),
			SentimentLimit: getEnvInt("RISK_SENTIMENT_LIMIT", 40),
			WeightsPath:    getEnv("RISK_WEIGHTS_PATH", ""),
		},
		Ingest: IngestConfig{
			Concurrency:    getEnvInt("INGEST_CONCURRENCY", 4),
			RateLimit:      getEnvFloat("INGEST_RATE_LIMIT", 5.0),
			FetchTimeout:   getEnvDuration("INGEST_FETCH_TIMEOUT", 20*time.Second),
			RetryAttempts:  getEnvInt("INGEST_RETRY_ATTEMPTS", 3),
			RetryDelay:     getEnvDuration("INGEST_RETRY_DELAY", 2*time.Second),
			MaxItemsPerRun: getEnvInt("INGEST_MAX_ITEMS", 200),
			UserAgent:      getEnv("INGEST_USER_AGENT", "IssueRadar/1.0 (+rss ingest)"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvBool("SCHEDULER_ENABLED", false),
			IngestCron:   getEnv("SCHEDULER_INGEST_CRON", "*/15 * * * *"),
			ClusterCron:  getEnv("SCHEDULER_CLUSTER_CRON", "*/5 * * * *"),
			RiskCron:     getEnv("SCHEDULER_RISK_CRON", "*/10 * * * *"),
			Organization: getEnv("SCHEDULER_ORG", ""),
		},
		Classifier: ClassifierConfig{
			LexiconPath: getEnv("CLASSIFIER_LEXICON_PATH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Clustering.Threshold < 0 || c.Clustering.Threshold > 1 {
		return fmt.Errorf("clustering threshold must be within [0,1]: %v", c.Clustering.Threshold)
	}
	if c.Clustering.MentionBatch < 1 || c.Clustering.IssueWindow < 1 {
		return fmt.Errorf("clustering batch and issue window must be at least 1")
	}
	if c.Risk.IssueLimit < 1 || c.Risk.MentionLimit < 1 || c.Risk.SentimentLimit < 1 {
		return fmt.Errorf("risk limits must be at least 1")
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest concurrency must be at least 1")
	}
	if c.Ingest.RateLimit <= 0 {
		return fmt.Errorf("ingest rate limit must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Auth      AuthConfig
	AI        AIConfig
	Profile   ProfileConfig
	RateLimit RateLimitConfig
	CloudSync CloudSyncConfig
	Webhooks  WebhooksConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
	Client    ClientConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Vhost      string
	MaxRetries int
}

// AuthConfig holds token issuing configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// AIConfig holds the generative language API configuration
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ProfileConfig holds profile defaults and caching
type ProfileConfig struct {
	DefaultCredits int
	CacheTTL       time.Duration
}

// RateLimitConfig holds request rate limits
type RateLimitConfig struct {
	AuthPerSecond    float64
	AuthBurst        int
	GiftCodeAttempts int
	GiftCodeWindow   time.Duration
}

// CloudSyncConfig holds cloud sync worker configuration
type CloudSyncConfig struct {
	Enabled           bool
	RetentionInterval time.Duration
}

// WebhooksConfig holds account event receivers
type WebhooksConfig struct {
	Endpoints []models.WebhookEndpoint
	Timeout   time.Duration
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TracingConfig holds jaeger configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
	SamplingRate   float64
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// ClientConfig holds CLI client configuration
type ClientConfig struct {
	APIBaseURL     string
	DataDir        string
	StoreBackend   string
	RequestTimeout time.Duration
	FFmpegPath     string
	InputFormat    string
	InputDevice    string
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("IDEASAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks the settings the API server cannot run without
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return apperrors.Configuration("jwt_secret", "Authentication is not configured").
			WithDetails("auth.jwtSecret is empty")
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		return apperrors.Configuration("database", "Database is not configured").
			WithDetails("database.host and database.dbname are required")
	}
	if c.Profile.DefaultCredits < 0 {
		return apperrors.Configuration("default_credits", "Invalid profile configuration").
			WithDetails("profile.defaultCredits must not be negative")
	}
	return nil
}

// ValidateClient checks the settings the CLI client cannot run without
func (c *Config) ValidateClient() error {
	if c.Client.APIBaseURL == "" {
		return apperrors.Configuration("api_base_url", "Backend is not configured").
			WithDetails("client.apiBaseURL is empty")
	}
	if c.Client.DataDir == "" {
		return apperrors.Configuration("data_dir", "Local data directory is not configured").
			WithDetails("client.dataDir is empty")
	}
	switch c.Client.StoreBackend {
	case "file", "sqlite":
	default:
		return apperrors.Configuration("store_backend", "Unknown local store backend").
			WithDetails(fmt.Sprintf("client.storeBackend %q is not file or sqlite", c.Client.StoreBackend))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.allowedOrigins", []string{"*"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ideasaver")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "recordings")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.maxRetries", 3)

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "24h")

	// AI defaults
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.baseURL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.model", "gemini-1.5-flash-latest")
	v.SetDefault("ai.timeout", "60s")

	// Profile defaults
	v.SetDefault("profile.defaultCredits", models.DefaultCredits)
	v.SetDefault("profile.cacheTTL", "5m")

	// Rate limit defaults
	v.SetDefault("rateLimit.authPerSecond", 1.0)
	v.SetDefault("rateLimit.authBurst", 5)
	v.SetDefault("rateLimit.giftCodeAttempts", 5)
	v.SetDefault("rateLimit.giftCodeWindow", "1m")

	// Cloud sync defaults
	v.SetDefault("cloudSync.enabled", true)
	v.SetDefault("cloudSync.retentionInterval", "1h")

	// Webhook defaults
	v.SetDefault("webhooks.timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "ideasaver")
	v.SetDefault("tracing.jaegerEndpoint", "localhost:6831")
	v.SetDefault("tracing.samplingRate", 1.0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Client defaults
	v.SetDefault("client.apiBaseURL", "http://localhost:8080")
	v.SetDefault("client.dataDir", defaultDataDir())
	v.SetDefault("client.storeBackend", "file")
	v.SetDefault("client.requestTimeout", "90s")
	v.SetDefault("client.ffmpegPath", "ffmpeg")
	v.SetDefault("client.inputFormat", "pulse")
	v.SetDefault("client.inputDevice", "default")
}

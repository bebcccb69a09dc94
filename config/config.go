package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Environment       string `mapstructure:"DKN_ENVIRONMENT"`
	ServerName        string `mapstructure:"DKN_SERVER_NAME"`
	ServerAddress     string `mapstructure:"DKN_SERVER_BIND_ADDR"`
	ServerReadTimeout int16  `mapstructure:"DKN_SERVER_READ_TIMEOUT"`
	ServerBodyLimitMB int    `mapstructure:"DKN_SERVER_BODY_LIMIT_MB"`
	AllowedOrigins    string `mapstructure:"DKN_ALLOWED_ORIGINS"` // comma-separated
	LogFormat         string `mapstructure:"DKN_LOG_FORMAT"`      // text or json
	LogLevel          string `mapstructure:"DKN_LOG_LEVEL"`       // debug, info, warn, error
	LogExportOTLP     bool   `mapstructure:"DKN_LOG_EXPORT_OTLP"`
	RateLimitMax      int    `mapstructure:"DKN_RATE_LIMIT_MAX"`
	RateLimitWindow   int    `mapstructure:"DKN_RATE_LIMIT_WINDOW"`

	DbHost           string `mapstructure:"DKN_DB_HOST"`
	DbPort           int16  `mapstructure:"DKN_DB_PORT"`
	DbSSLMode        string `mapstructure:"DKN_DB_SSL"`
	DbUser           string `mapstructure:"DKN_DB_USER"`
	DbPassword       string `mapstructure:"DKN_DB_PASSWORD"`
	DbDatabaseName   string `mapstructure:"DKN_DB_DATABASE"`
	DbMaxConnections int    `mapstructure:"DKN_DB_MAX_CONNECTIONS"`
	DbAutoMigrate    bool   `mapstructure:"DKN_DB_AUTO_MIGRATE"`

	// Redis catalog cache
	RedisEnabled     bool   `mapstructure:"DKN_REDIS_ENABLED"`
	RedisHost        string `mapstructure:"DKN_REDIS_HOST"`
	RedisPort        int16  `mapstructure:"DKN_REDIS_PORT"`
	RedisDb          int    `mapstructure:"DKN_REDIS_DB"`
	RedisUser        string `mapstructure:"DKN_REDIS_USER"`
	RedisPass        string `mapstructure:"DKN_REDIS_PASS"`
	CatalogCacheTTLS int    `mapstructure:"DKN_CATALOG_CACHE_TTL"` // seconds

	OtlpEndpoint   string `mapstructure:"DKN_OTLP_ENDPOINT"`
	JaegerEndpoint string `mapstructure:"DKN_JAEGER_ENDPOINT"`

	// Hosted auth provider issues HS256 tokens signed with this secret
	AuthJWTSecret string `mapstructure:"DKN_AUTH_JWT_SECRET"`
	AuthAudience  string `mapstructure:"DKN_AUTH_AUDIENCE"`

	// Vision model (OpenAI-compatible API)
	VisionAPIKey         string  `mapstructure:"DKN_VISION_API_KEY"`
	VisionModel          string  `mapstructure:"DKN_VISION_MODEL"`
	VisionBaseURL        string  `mapstructure:"DKN_VISION_BASE_URL"`
	VisionMaxTokens      int     `mapstructure:"DKN_VISION_MAX_TOKENS"`
	VisionTemperature    float64 `mapstructure:"DKN_VISION_TEMPERATURE"`
	VisionTimeout        int     `mapstructure:"DKN_VISION_TIMEOUT"` // seconds
	VisionRequestsPerMin int     `mapstructure:"DKN_VISION_REQUESTS_PER_MINUTE"`
	VisionMaxRetries     int     `mapstructure:"DKN_VISION_MAX_RETRIES"`
	VisionPromptsDir     string  `mapstructure:"DKN_VISION_PROMPTS_DIR"`
	ImageMaxWidth        int     `mapstructure:"DKN_IMAGE_MAX_WIDTH"`
	ImageJPEGQuality     int     `mapstructure:"DKN_IMAGE_JPEG_QUALITY"`

	// Matching thresholds
	MatchCandidateFloor  float64 `mapstructure:"DKN_MATCH_CANDIDATE_FLOOR"`
	MatchAcceptThreshold float64 `mapstructure:"DKN_MATCH_ACCEPT_THRESHOLD"`

	// Cloud Storage Configuration
	CloudProvider                string `mapstructure:"DKN_CLOUD_PROVIDER"` // azure, s3 or none
	AzureStorageConnectionString string `mapstructure:"DKN_AZURE_STORAGE_CONNECTION_STRING"`
	AzureStorageAccountName      string `mapstructure:"DKN_AZURE_STORAGE_ACCOUNT_NAME"`
	AzureStorageAccountKey       string `mapstructure:"DKN_AZURE_STORAGE_ACCOUNT_KEY"`
	AzureStorageContainerName    string `mapstructure:"DKN_AZURE_STORAGE_CONTAINER_NAME"`
	AzureStorageBaseURL          string `mapstructure:"DKN_AZURE_STORAGE_BASE_URL"`
	AzureStorageUseHTTPS         bool   `mapstructure:"DKN_AZURE_STORAGE_USE_HTTPS"`
	S3Endpoint                   string `mapstructure:"DKN_S3_ENDPOINT"`
	S3Region                     string `mapstructure:"DKN_S3_REGION"`
	S3AccessKey                  string `mapstructure:"DKN_S3_ACCESS_KEY"`
	S3SecretKey                  string `mapstructure:"DKN_S3_SECRET_KEY"`
	S3Bucket                     string `mapstructure:"DKN_S3_BUCKET"`
	S3UseSSL                     bool   `mapstructure:"DKN_S3_USE_SSL"`
}

// DefaultConfig generates a config with sane defaults.
func DefaultConfig() Config {
	return Config{
		Environment:       "local",
		ServerName:        "dakino",
		ServerAddress:     "0.0.0.0:3001",
		ServerReadTimeout: 60,
		ServerBodyLimitMB: 12,
		AllowedOrigins:    "*",
		LogFormat:         "text",
		LogLevel:          "info",
		LogExportOTLP:     false,
		RateLimitMax:      100,
		RateLimitWindow:   30,

		DbHost:           "localhost",
		DbPort:           5432,
		DbSSLMode:        "disable",
		DbUser:           "postgres",
		DbPassword:       "postgres",
		DbDatabaseName:   "dakino",
		DbMaxConnections: 20,
		DbAutoMigrate:    true,

		RedisEnabled:     false,
		RedisHost:        "localhost",
		RedisPort:        6379,
		RedisDb:          0,
		RedisUser:        "",
		RedisPass:        "",
		CatalogCacheTTLS: 300,

		OtlpEndpoint:   "localhost:4317",
		JaegerEndpoint: "http://localhost:14268/api/traces",

		AuthJWTSecret: "",
		AuthAudience:  "authenticated",

		VisionAPIKey:         "",
		VisionModel:          "gpt-4o-mini",
		VisionBaseURL:        "https://api.openai.com/v1",
		VisionMaxTokens:      2000,
		VisionTemperature:    0.1,
		VisionTimeout:        60,
		VisionRequestsPerMin: 30,
		VisionMaxRetries:     2,
		VisionPromptsDir:     "prompts",
		ImageMaxWidth:        1600,
		ImageJPEGQuality:     85,

		MatchCandidateFloor:  0.4,
		MatchAcceptThreshold: 0.6,

		CloudProvider:                "none",
		AzureStorageConnectionString: "",
		AzureStorageAccountName:      "",
		AzureStorageAccountKey:       "",
		AzureStorageContainerName:    "tickets",
		AzureStorageBaseURL:          "",
		AzureStorageUseHTTPS:         true,
		S3Endpoint:                   "localhost:9000",
		S3Region:                     "us-east-1",
		S3AccessKey:                  "",
		S3SecretKey:                  "",
		S3Bucket:                     "tickets",
		S3UseSSL:                     false,
	}
}

// LoadConfig will attempt to load a configuration from the default file location and fallback to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("DKN_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		cfg, err = ConfigFromFile(envFile)
	}
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func newViper(config Config) *viper.Viper {
	v := viper.New()
	v.SetDefault("DKN_ENVIRONMENT", config.Environment)
	v.SetDefault("DKN_SERVER_NAME", config.ServerName)
	v.SetDefault("DKN_SERVER_BIND_ADDR", config.ServerAddress)
	v.SetDefault("DKN_SERVER_READ_TIMEOUT", config.ServerReadTimeout)
	v.SetDefault("DKN_SERVER_BODY_LIMIT_MB", config.ServerBodyLimitMB)
	v.SetDefault("DKN_ALLOWED_ORIGINS", config.AllowedOrigins)
	v.SetDefault("DKN_LOG_LEVEL", config.LogLevel)
	v.SetDefault("DKN_LOG_FORMAT", config.LogFormat)
	v.SetDefault("DKN_LOG_EXPORT_OTLP", config.LogExportOTLP)
	v.SetDefault("DKN_RATE_LIMIT_MAX", config.RateLimitMax)
	v.SetDefault("DKN_RATE_LIMIT_WINDOW", config.RateLimitWindow)
	v.SetDefault("DKN_DB_HOST", config.DbHost)
	v.SetDefault("DKN_DB_PORT", config.DbPort)
	v.SetDefault("DKN_DB_SSL", config.DbSSLMode)
	v.SetDefault("DKN_DB_USER", config.DbUser)
	v.SetDefault("DKN_DB_PASSWORD", config.DbPassword)
	v.SetDefault("DKN_DB_DATABASE", config.DbDatabaseName)
	v.SetDefault("DKN_DB_MAX_CONNECTIONS", config.DbMaxConnections)
	v.SetDefault("DKN_DB_AUTO_MIGRATE", config.DbAutoMigrate)
	v.SetDefault("DKN_REDIS_ENABLED", config.RedisEnabled)
	v.SetDefault("DKN_REDIS_HOST", config.RedisHost)
	v.SetDefault("DKN_REDIS_PORT", config.RedisPort)
	v.SetDefault("DKN_REDIS_USER", config.RedisUser)
	v.SetDefault("DKN_REDIS_PASS", config.RedisPass)
	v.SetDefault("DKN_REDIS_DB", config.RedisDb)
	v.SetDefault("DKN_CATALOG_CACHE_TTL", config.CatalogCacheTTLS)
	v.SetDefault("DKN_OTLP_ENDPOINT", config.OtlpEndpoint)
	v.SetDefault("DKN_JAEGER_ENDPOINT", config.JaegerEndpoint)
	v.SetDefault("DKN_AUTH_JWT_SECRET", config.AuthJWTSecret)
	v.SetDefault("DKN_AUTH_AUDIENCE", config.AuthAudience)
	v.SetDefault("DKN_VISION_API_KEY", config.VisionAPIKey)
	v.SetDefault("DKN_VISION_MODEL", config.VisionModel)
	v.SetDefault("DKN_VISION_BASE_URL", config.VisionBaseURL)
	v.SetDefault("DKN_VISION_MAX_TOKENS", config.VisionMaxTokens)
	v.SetDefault("DKN_VISION_TEMPERATURE", config.VisionTemperature)
	v.SetDefault("DKN_VISION_TIMEOUT", config.VisionTimeout)
	v.SetDefault("DKN_VISION_REQUESTS_PER_MINUTE", config.VisionRequestsPerMin)
	v.SetDefault("DKN_VISION_MAX_RETRIES", config.VisionMaxRetries)
	v.SetDefault("DKN_VISION_PROMPTS_DIR", config.VisionPromptsDir)
	v.SetDefault("DKN_IMAGE_MAX_WIDTH", config.ImageMaxWidth)
	v.SetDefault("DKN_IMAGE_JPEG_QUALITY", config.ImageJPEGQuality)
	v.SetDefault("DKN_MATCH_CANDIDATE_FLOOR", config.MatchCandidateFloor)
	v.SetDefault("DKN_MATCH_ACCEPT_THRESHOLD", config.MatchAcceptThreshold)
	v.SetDefault("DKN_CLOUD_PROVIDER", config.CloudProvider)
	v.SetDefault("DKN_AZURE_STORAGE_CONNECTION_STRING", config.AzureStorageConnectionString)
	v.SetDefault("DKN_AZURE_STORAGE_ACCOUNT_NAME", config.AzureStorageAccountName)
	v.SetDefault("DKN_AZURE_STORAGE_ACCOUNT_KEY", config.AzureStorageAccountKey)
	v.SetDefault("DKN_AZURE_STORAGE_CONTAINER_NAME", config.AzureStorageContainerName)
	v.SetDefault("DKN_AZURE_STORAGE_BASE_URL", config.AzureStorageBaseURL)
	v.SetDefault("DKN_AZURE_STORAGE_USE_HTTPS", config.AzureStorageUseHTTPS)
	v.SetDefault("DKN_S3_ENDPOINT", config.S3Endpoint)
	v.SetDefault("DKN_S3_REGION", config.S3Region)
	v.SetDefault("DKN_S3_ACCESS_KEY", config.S3AccessKey)
	v.SetDefault("DKN_S3_SECRET_KEY", config.S3SecretKey)
	v.SetDefault("DKN_S3_BUCKET", config.S3Bucket)
	v.SetDefault("DKN_S3_USE_SSL", config.S3UseSSL)
	v.AutomaticEnv()
	return v
}

// ConfigFromEnvironment will look for the specified configuration from environment variables.
func ConfigFromEnvironment() (config Config, err error) {
	config = DefaultConfig()
	v := newViper(config)
	err = v.Unmarshal(&config)
	return
}

// ConfigFromFile will look for the specified configuration file and initialize a Config from it.
// Values provided by environment variables will override ones found in the file.
func ConfigFromFile(f string) (config Config, err error) {
	config = DefaultConfig()
	v := newViper(config)
	v.SetConfigFile(f)
	v.SetConfigType("env")

	if err = v.ReadInConfig(); err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", c.LogFormat)
	}

	switch strings.ToLower(c.CloudProvider) {
	case "azure", "s3", "none", "":
	default:
		return fmt.Errorf("cloud provider must be 'azure', 's3' or 'none', got: %s", c.CloudProvider)
	}

	if c.MatchCandidateFloor < 0 || c.MatchCandidateFloor > 1 {
		return fmt.Errorf("match candidate floor must be within [0,1], got: %v", c.MatchCandidateFloor)
	}
	if c.MatchAcceptThreshold < 0 || c.MatchAcceptThreshold > 1 {
		return fmt.Errorf("match accept threshold must be within [0,1], got: %v", c.MatchAcceptThreshold)
	}
	if c.MatchAcceptThreshold < c.MatchCandidateFloor {
		return fmt.Errorf("match accept threshold (%v) must not be below candidate floor (%v)",
			c.MatchAcceptThreshold, c.MatchCandidateFloor)
	}

	if c.AuthJWTSecret == "" && !c.IsLocal() {
		return errors.New("auth JWT secret is required (set DKN_AUTH_JWT_SECRET)")
	}

	return nil
}

func (c Config) IsLocal() bool {
	return strings.EqualFold(c.Environment, "local")
}

// Fiber initializes and returns a Fiber config based on server config values.
// See https://docs.gofiber.io/api/fiber#config
func (c Config) Fiber() fiber.Config {
	return fiber.Config{
		AppName:     c.ServerName,
		ReadTimeout: time.Second * time.Duration(c.ServerReadTimeout),
		BodyLimit:   c.ServerBodyLimitMB * 1024 * 1024,
	}
}

// DbConnectionString generates a connection string for the database based on config values.
func (c Config) DbConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s", c.DbUser, url.QueryEscape(c.DbPassword), c.DbHost, c.DbPort, c.DbDatabaseName, c.DbSSLMode)
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetAllowedOrigins returns the CORS origins in the format fiber expects.
func (c Config) GetAllowedOrigins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ", ")
}

// GetRedisOptions converts config values to go-redis options.
func (c Config) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort),
		Username: c.RedisUser,
		Password: c.RedisPass,
		DB:       c.RedisDb,
	}
}

func (c Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLS) * time.Second
}

// VisionConfig holds the ticket vision model client configuration
type VisionConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	PromptsDir        string
}

// GetVisionConfig converts config values to the vision client configuration struct.
func (c Config) GetVisionConfig() VisionConfig {
	return VisionConfig{
		APIKey:            c.VisionAPIKey,
		Model:             c.VisionModel,
		BaseURL:           c.VisionBaseURL,
		MaxTokens:         c.VisionMaxTokens,
		Temperature:       c.VisionTemperature,
		Timeout:           time.Duration(c.VisionTimeout) * time.Second,
		RequestsPerMinute: c.VisionRequestsPerMin,
		MaxRetries:        c.VisionMaxRetries,
		PromptsDir:        c.VisionPromptsDir,
	}
}

// ImageConfig controls photo compression before upload and vision analysis
type ImageConfig struct {
	MaxWidth int
	Quality  int
}

func (c Config) GetImageConfig() ImageConfig {
	return ImageConfig{
		MaxWidth: c.ImageMaxWidth,
		Quality:  c.ImageJPEGQuality,
	}
}

// MatchingConfig holds the two product matching thresholds
type MatchingConfig struct {
	CandidateFloor  float64
	AcceptThreshold float64
}

func (c Config) GetMatchingConfig() MatchingConfig {
	return MatchingConfig{
		CandidateFloor:  c.MatchCandidateFloor,
		AcceptThreshold: c.MatchAcceptThreshold,
	}
}

// GetCloudConfig converts config values to cloud storage configuration struct.
func (c Config) GetCloudConfig() CloudConfig {
	return CloudConfig{
		Provider: c.CloudProvider,
		Azure: AzureCloudConfig{
			StorageAccountName: c.AzureStorageAccountName,
			StorageAccountKey:  c.AzureStorageAccountKey,
			ConnectionString:   c.AzureStorageConnectionString,
			ContainerName:      c.AzureStorageContainerName,
			BaseURL:            c.AzureStorageBaseURL,
			UseHTTPS:           c.AzureStorageUseHTTPS,
		},
		S3: S3CloudConfig{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Bucket:    c.S3Bucket,
			UseSSL:    c.S3UseSSL,
		},
	}
}

// CloudConfig holds cloud storage configuration
type CloudConfig struct {
	Provider string
	Azure    AzureCloudConfig
	S3       S3CloudConfig
}

// AzureCloudConfig holds Azure Blob Storage specific configuration
type AzureCloudConfig struct {
	StorageAccountName string
	StorageAccountKey  string
	ConnectionString   string
	ContainerName      string
	BaseURL            string
	UseHTTPS           bool
}

// S3CloudConfig holds S3-compatible storage configuration
type S3CloudConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

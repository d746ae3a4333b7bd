package config

import (
	"strings"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultImageQuality = 85
	DefaultMaxWidth     = 1982

	minImageQuality = 10
	maxImageQuality = 100
	minMaxWidth     = 320
	maxMaxWidth     = 4000
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Sync     SyncConfig
	LogLevel string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	RecordTTLSeconds int
	LockTTLSeconds   int
}

// SyncConfig is the read-only snapshot handed to the sync engine for one run.
type SyncConfig struct {
	Enabled         bool
	Provider        string
	Bucket          string
	Folder          string
	CredentialsJSON string
	BaseDir         string
	BaseURL         string
	ImageQuality    int
	MaxWidth        int
	AutoDeleteLocal bool
	ItemTimeout     time.Duration
	Concurrency     int
	// URLCacheTTL bounds how long a server keeps serving a stale URL after
	// another process syncs the item.
	URLCacheTTL time.Duration
	S3          S3Config
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Load reads .env and the environment into a fresh Config value.
func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "media")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RECORD_TTL_SECONDS", 300)
	v.SetDefault("CACHE_LOCK_TTL_SECONDS", 600)
	v.SetDefault("SYNC_ENABLED", false)
	v.SetDefault("SYNC_PROVIDER", "gcs")
	v.SetDefault("SYNC_BASE_DIR", "./data/uploads")
	v.SetDefault("SYNC_BASE_URL", "http://localhost:8080/uploads")
	v.SetDefault("SYNC_IMAGE_QUALITY", DefaultImageQuality)
	v.SetDefault("SYNC_MAX_WIDTH", DefaultMaxWidth)
	v.SetDefault("SYNC_AUTO_DELETE_LOCAL", false)
	v.SetDefault("SYNC_ITEM_TIMEOUT_SECONDS", 0)
	v.SetDefault("SYNC_CONCURRENCY", 1)
	v.SetDefault("SYNC_URL_CACHE_TTL_SECONDS", 30)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			RecordTTLSeconds: v.GetInt("CACHE_RECORD_TTL_SECONDS"),
			LockTTLSeconds:   v.GetInt("CACHE_LOCK_TTL_SECONDS"),
		},
		Sync: SyncConfig{
			Enabled:         v.GetBool("SYNC_ENABLED"),
			Provider:        v.GetString("SYNC_PROVIDER"),
			Bucket:          v.GetString("SYNC_BUCKET"),
			Folder:          v.GetString("SYNC_FOLDER"),
			CredentialsJSON: v.GetString("SYNC_CREDENTIALS_JSON"),
			BaseDir:         v.GetString("SYNC_BASE_DIR"),
			BaseURL:         v.GetString("SYNC_BASE_URL"),
			ImageQuality:    v.GetInt("SYNC_IMAGE_QUALITY"),
			MaxWidth:        v.GetInt("SYNC_MAX_WIDTH"),
			AutoDeleteLocal: v.GetBool("SYNC_AUTO_DELETE_LOCAL"),
			ItemTimeout:     time.Duration(v.GetInt("SYNC_ITEM_TIMEOUT_SECONDS")) * time.Second,
			Concurrency:     v.GetInt("SYNC_CONCURRENCY"),
			URLCacheTTL:     time.Duration(v.GetInt("SYNC_URL_CACHE_TTL_SECONDS")) * time.Second,
			S3: S3Config{
				Endpoint:  v.GetString("S3_ENDPOINT"),
				Region:    v.GetString("S3_REGION"),
				AccessKey: v.GetString("S3_ACCESS_KEY"),
				SecretKey: v.GetString("S3_SECRET_KEY"),
				UseSSL:    v.GetBool("S3_USE_SSL"),
			},
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
	cfg.Sync = cfg.Sync.Sanitize()
	return cfg
}

// Sanitize clamps numeric settings into their supported ranges and trims
// text fields. Out-of-range values are clamped, zero values fall back to
// the defaults.
func (c SyncConfig) Sanitize() SyncConfig {
	c.Bucket = strings.TrimSpace(c.Bucket)
	c.Folder = strings.TrimSpace(c.Folder)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "gcs"
	}
	if c.ImageQuality == 0 {
		c.ImageQuality = DefaultImageQuality
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	c.ImageQuality = clamp(c.ImageQuality, minImageQuality, maxImageQuality)
	c.MaxWidth = clamp(c.MaxWidth, minMaxWidth, maxMaxWidth)
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.ItemTimeout < 0 {
		c.ItemTimeout = 0
	}
	if c.URLCacheTTL < 0 {
		c.URLCacheTTL = 0
	}
	return c
}

// Validate reports whether a batch may start with this configuration.
func (c SyncConfig) Validate() error {
	if !c.Enabled {
		return domain.ConfigError("media sync is not enabled")
	}
	if c.Bucket == "" {
		return domain.ConfigError("bucket name is not configured")
	}
	if c.BaseDir == "" {
		return domain.ConfigError("media base directory is not configured")
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	LiveKit  LiveKitConfig
	Storage  StorageConfig
	Webhook  WebhookConfig
	Sessions SessionsConfig
	Redis    RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicBaseURL      string // base URL used in shareable session links
}

// LiveKitConfig holds media server credentials and endpoints.
type LiveKitConfig struct {
	APIKey    string
	APISecret string
	WSURL     string // wss:// endpoint handed to clients with their token
	APIURL    string // https:// endpoint for RoomService / Egress APIs
}

// Configured reports whether the media server credentials are present.
func (c LiveKitConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != "" && c.APIURL != ""
}

// StorageConfig holds object storage settings for egress output.
type StorageConfig struct {
	AccessKey            string
	SecretKey            string
	Bucket               string
	Endpoint             string // empty = AWS S3
	Region               string
	PublicBaseURL        string // public URL prefix for uploaded objects, optional
	ForcePathStyle       bool
	PresignExpireMinutes int
}

// Configured reports whether egress output can be written to object storage.
func (c StorageConfig) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// WebhookConfig holds inbound webhook validation settings.
type WebhookConfig struct {
	Secret string // static bearer secret the media server sends with events
}

// SessionsConfig holds session registry settings.
type SessionsConfig struct {
	Backend       string // "memory" (default) or "redis"
	TTLMinutes    int    // idle sessions older than this are evicted
	SweepMinutes  int    // sweep interval for the memory backend
}

// RedisConfig holds Redis connection settings (used when Sessions.Backend = redis).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		LiveKit: LiveKitConfig{
			APIKey:    getEnv("LIVEKIT_API_KEY", ""),
			APISecret: getEnv("LIVEKIT_API_SECRET", ""),
			WSURL:     getEnv("LIVEKIT_WS_URL", ""),
			APIURL:    getEnv("LIVEKIT_API_URL", ""),
		},
		Storage: StorageConfig{
			AccessKey:            getEnv("S3_ACCESS_KEY", ""),
			SecretKey:            getEnv("S3_SECRET_KEY", ""),
			Bucket:               getEnv("S3_BUCKET", ""),
			Endpoint:             getEnv("S3_ENDPOINT", ""),
			Region:               getEnv("S3_REGION", "us-east-1"),
			PublicBaseURL:        strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),
			ForcePathStyle:       getEnvBool("S3_FORCE_PATH_STYLE", false),
			PresignExpireMinutes: getEnvInt("S3_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Sessions: SessionsConfig{
			Backend:      getEnv("SESSION_STORE", "memory"),
			TTLMinutes:   getEnvInt("SESSION_TTL_MINUTES", 720),
			SweepMinutes: getEnvInt("SESSION_SWEEP_MINUTES", 15),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

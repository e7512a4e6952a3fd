package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Upload backends.
const (
	UploadLocal = "local"
	UploadS3    = "s3"
)

// Session backends.
const (
	SessionSQL   = "sql"
	SessionRedis = "redis"
)

// Password digest schemes used for newly written hashes.
const (
	HashPBKDF2 = "pbkdf2"
	HashBcrypt = "bcrypt"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	DatabaseURL   string
	SecretKey     string
	PublicBaseURL string
	CORSOrigins   []string

	AllowedExtensions []string
	UploadFolder      string
	UploadBackend     string
	MaxUploadBytes    int64
	S3                S3Config

	Mail MailConfig

	SessionBackend      string
	SessionTTL          time.Duration
	SessionCookieSecure bool
	Redis               RedisConfig

	PasswordHash string
}

// S3Config points avatar storage at an S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// MailConfig configures the outbound SMTP relay. An empty Server selects the log-only mailer.
type MailConfig struct {
	DefaultSender string
	Server        string
	Port          int
	Username      string
	Password      string
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	port := fallback(os.Getenv("PORT"), "8080")
	cfg := Config{
		Port:          port,
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SecretKey:     strings.TrimSpace(os.Getenv("SECRET_KEY")),
		PublicBaseURL: strings.TrimRight(fallback(os.Getenv("PUBLIC_BASE_URL"), "http://localhost:"+port), "/"),
		CORSOrigins:   parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*"), "*"),

		AllowedExtensions: lowerAll(parseCSV(fallback(os.Getenv("ALLOWED_EXTENSIONS"), "png,jpg,jpeg,gif"), "png")),
		UploadFolder:      fallback(os.Getenv("UPLOAD_FOLDER"), "uploads"),
		UploadBackend:     strings.ToLower(fallback(os.Getenv("UPLOAD_BACKEND"), UploadLocal)),
		MaxUploadBytes:    int64(positiveInt(os.Getenv("MAX_UPLOAD_MB"), 5)) << 20,
		S3: S3Config{
			Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Region:    fallback(os.Getenv("S3_REGION"), "us-east-1"),
			Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
			Prefix:    strings.Trim(os.Getenv("S3_PREFIX"), "/ "),
		},

		Mail: MailConfig{
			DefaultSender: fallback(os.Getenv("MAIL_DEFAULT_SENDER"), "noreply@example.com"),
			Server:        strings.TrimSpace(os.Getenv("MAIL_SERVER")),
			Port:          positiveInt(os.Getenv("MAIL_PORT"), 587),
			Username:      strings.TrimSpace(os.Getenv("MAIL_USERNAME")),
			Password:      os.Getenv("MAIL_PASSWORD"),
		},

		SessionBackend:      strings.ToLower(fallback(os.Getenv("SESSION_BACKEND"), SessionSQL)),
		SessionTTL:          time.Duration(positiveInt(os.Getenv("SESSION_TTL_MINUTES"), 1440)) * time.Minute,
		SessionCookieSecure: parseBool(os.Getenv("SESSION_COOKIE_SECURE")),
		Redis: RedisConfig{
			Addr:     fallback(os.Getenv("REDIS_ADDR"), "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       nonNegativeInt(os.Getenv("REDIS_DB"), 0),
		},

		PasswordHash: strings.ToLower(fallback(os.Getenv("PASSWORD_HASH"), HashPBKDF2)),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return Config{}, errors.New("SECRET_KEY is required")
	}
	switch cfg.UploadBackend {
	case UploadLocal:
	case UploadS3:
		if cfg.S3.Bucket == "" {
			return Config{}, errors.New("S3_BUCKET is required when UPLOAD_BACKEND=s3")
		}
	default:
		return Config{}, fmt.Errorf("unknown UPLOAD_BACKEND %q", cfg.UploadBackend)
	}
	if cfg.SessionBackend != SessionSQL && cfg.SessionBackend != SessionRedis {
		return Config{}, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
	if cfg.PasswordHash != HashPBKDF2 && cfg.PasswordHash != HashBcrypt {
		return Config{}, fmt.Errorf("unknown PASSWORD_HASH %q", cfg.PasswordHash)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
		return n
	}
	return def
}

func nonNegativeInt(value string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 0 {
		return n
	}
	return def
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func parseCSV(input, def string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{def}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimPrefix(s, ".")))
	}
	return out
}

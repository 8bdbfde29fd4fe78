// config.go - Environment configuration.
package server

import (
	"errors"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds everything the backend needs to run. Values come from the
// environment (optionally via a .env file); defaults are tuned for local
// development against docker-compose Postgres and MinIO.
type Config struct {
	Addr        string `env:"SPD_ADDR" env-default:":8080"`
	Version     string `env:"SPD_VERSION" env-default:"dev"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"SPD_JWT_SECRET"`

	S3Endpoint  string `env:"SPD_S3_ENDPOINT" env-default:"localhost:9000"`
	S3AccessKey string `env:"SPD_S3_ACCESS_KEY"`
	S3SecretKey string `env:"SPD_S3_SECRET_KEY"`
	Bucket      string `env:"SPD_BUCKET" env-default:"print-drop"`

	// MaxUploadBytes caps the encrypted payload; the mobile client enforces
	// the same 50 MiB limit.
	MaxUploadBytes int64 `env:"SPD_MAX_UPLOAD_BYTES" env-default:"52428800"`
	ListPageSize   int   `env:"SPD_LIST_PAGE_SIZE" env-default:"100"`

	KeepaliveInterval time.Duration `env:"SPD_SSE_KEEPALIVE" env-default:"20s"`
	ShutdownTimeout   time.Duration `env:"SPD_SHUTDOWN_TIMEOUT" env-default:"5s"`

	// Upload rate limit, per client IP over a sliding window.
	UploadRate       int           `env:"SPD_UPLOAD_RATE" env-default:"30"`
	UploadRateWindow time.Duration `env:"SPD_UPLOAD_RATE_WINDOW" env-default:"1m"`

	// Retention for soft-deleted records. Zero max age disables the janitor.
	RetentionInterval time.Duration `env:"SPD_RETENTION_INTERVAL" env-default:"1h"`
	RetentionMaxAge   time.Duration `env:"SPD_RETENTION_MAX_AGE" env-default:"720h"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, errors.New("cannot read config")
		}
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("SPD_JWT_SECRET is required")
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

type Config struct {
	AppName string
	// AppURL is the public base URL of this API; verification links point at it.
	AppURL    string
	AppScheme string
	HTTPAddr  string

	DatabaseURL     string
	MigrateOnStart  bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	VerificationSecret string
	VerificationIssuer string
	VerificationTTL    time.Duration
	BcryptCost         int

	ResendAPIKey string
	MailFrom     string

	StorageDriver string
	StorageRoot   string
	StorageURL    string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3PublicURL   string
	S3PathStyle   bool

	RedisURL string

	LogLevel       string
	LogFile        string
	MetricsEnabled bool
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	env := envReader{getenv: getenv}
	cfg := Config{
		AppName:   env.str("APP_NAME", "Merch Hub"),
		AppURL:    strings.TrimRight(env.str("APP_URL", "http://localhost:8080"), "/"),
		AppScheme: env.str("APP_SCHEME", "merchhub"),
		HTTPAddr:  env.str("HTTP_ADDR", ":8080"),

		DatabaseURL:     env.str("DATABASE_URL", ""),
		MigrateOnStart:  env.boolean("MIGRATE_ON_START", true),
		MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		VerificationSecret: env.str("VERIFICATION_SECRET", getenv("JWT_SECRET")),
		VerificationIssuer: env.str("VERIFICATION_ISSUER", "merchhub"),
		VerificationTTL:    env.duration("VERIFICATION_TTL", 60*time.Minute),
		BcryptCost:         env.integer("BCRYPT_COST", 0),

		ResendAPIKey: env.str("RESEND_API_KEY", ""),
		MailFrom:     env.str("MAIL_FROM", ""),

		StorageDriver: strings.ToLower(env.str("STORAGE_DRIVER", StorageDisk)),
		StorageRoot:   env.str("STORAGE_ROOT", "storage/public"),
		S3Region:      env.str("S3_REGION", "us-east-1"),
		S3Endpoint:    env.str("S3_ENDPOINT", ""),
		S3AccessKey:   env.str("S3_ACCESS_KEY", ""),
		S3SecretKey:   env.str("S3_SECRET_KEY", ""),
		S3Bucket:      env.str("S3_BUCKET", ""),
		S3PublicURL:   env.str("S3_PUBLIC_URL", ""),
		S3PathStyle:   env.boolean("S3_PATH_STYLE", false),

		RedisURL: env.str("REDIS_URL", ""),

		LogLevel:       env.str("LOG_LEVEL", "info"),
		LogFile:        env.str("LOG_FILE", ""),
		MetricsEnabled: env.boolean("METRICS_ENABLED", true),
	}
	cfg.StorageURL = strings.TrimRight(env.str("STORAGE_URL", cfg.AppURL+"/storage"), "/")

	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if len(c.VerificationSecret) < 16 {
		problems = append(problems, "VERIFICATION_SECRET (or JWT_SECRET) must be at least 16 bytes")
	}
	switch c.StorageDriver {
	case StorageDisk:
	case StorageS3:
		if c.S3Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for the s3 storage driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// VerificationURL is the endpoint verification links point at.
func (c Config) VerificationURL() string {
	return c.AppURL + "/api/email/verify"
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (r *envReader) str(key, fallback string) string {
	if value := strings.TrimSpace(r.getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (r *envReader) integer(key string, fallback int) int {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return value
}

func (r *envReader) boolean(key string, fallback bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return value
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return value
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

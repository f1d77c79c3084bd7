package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Log         LogConfig
	Tracing     TracingConfig
	CORS        CORSConfig
	ObjectStore ObjectStoreConfig
	Ingestion   IngestionConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
}

func (d DatabaseConfig) DNS() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s Timezone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// JWTConfig describes how bearer tokens minted by the identity provider are verified.
type JWTConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRate  float64
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type ObjectStoreBackend string

const (
	BackendGCS ObjectStoreBackend = "gcs"
	BackendS3  ObjectStoreBackend = "s3"
)

type ObjectStoreConfig struct {
	Backend ObjectStoreBackend
	Bucket  string

	// PublicBaseURL overrides the provider default host for resolved locators.
	PublicBaseURL string
	CDNDomain     string

	// GCS only
	EmulatorHost string

	// S3 only
	Region     string
	Endpoint   string
	PresignTTL time.Duration
}

type IngestionConfig struct {
	AcceptedMediaTypes []string
	MaxFileBytes       int64
	MaxFiles           int
	UploadTimeout      time.Duration
	CommitTimeout      time.Duration
	// CleanupOrphans deletes objects uploaded by a failed attempt (best effort).
	CleanupOrphans bool
	// AbortOnDisconnect propagates client disconnects into in-flight submissions.
	AbortOnDisconnect bool
}

func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "medintake"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.0.0"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 2*time.Minute),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			Name:               getEnv("DB_NAME", "medintake"),
			User:               getEnv("DB_USER", "medintake"),
			Password:           getEnv("DB_PASSWORD", ""),
			SSLMode:            getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime:    getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "medintake-identity"),
			Audience:  getEnv("JWT_AUDIENCE", ""),
			ClockSkew: getEnvDuration("JWT_CLOCK_SKEW", 10*time.Second),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "medintake"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "otel-collector:4318"),
			Insecure:    getEnvBool("OTLP_INSECURE", true),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvDuration("CORS_MAX_AGE", 12*time.Hour),
		},
		ObjectStore: ObjectStoreConfig{
			Backend:       ObjectStoreBackend(strings.ToLower(getEnv("OBJECT_STORE_BACKEND", string(BackendGCS)))),
			Bucket:        getEnv("OBJECT_STORE_BUCKET", "patient_uploads"),
			PublicBaseURL: getEnv("OBJECT_STORE_PUBLIC_BASE_URL", ""),
			CDNDomain:     getEnv("OBJECT_STORE_CDN_DOMAIN", ""),
			EmulatorHost:  getEnv("STORAGE_EMULATOR_HOST", ""),
			Region:        getEnv("AWS_REGION", "us-east-1"),
			Endpoint:      getEnv("AWS_ENDPOINT_URL", ""),
			PresignTTL:    getEnvDuration("OBJECT_STORE_PRESIGN_TTL", 0),
		},
		Ingestion: IngestionConfig{
			AcceptedMediaTypes: getEnvSlice("INGEST_ACCEPTED_MEDIA_TYPES", []string{"image/png", "image/jpeg"}),
			MaxFileBytes:       int64(getEnvInt("INGEST_MAX_FILE_BYTES", 20<<20)),
			MaxFiles:           getEnvInt("INGEST_MAX_FILES", 20),
			UploadTimeout:      getEnvDuration("INGEST_UPLOAD_TIMEOUT", 2*time.Minute),
			CommitTimeout:      getEnvDuration("INGEST_COMMIT_TIMEOUT", 15*time.Second),
			CleanupOrphans:     getEnvBool("INGEST_CLEANUP_ORPHANS", false),
			AbortOnDisconnect:  getEnvBool("INGEST_ABORT_ON_DISCONNECT", false),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces production security requirements.
func validate(cfg *Config) error {
	var errs []string

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.Database.Password == "" && cfg.App.Environment != "development" {
		errs = append(errs, "DB_PASSWORD is required in non-development environments")
	}

	if cfg.Database.SSLMode == "disable" && cfg.App.Environment == "production" {
		errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
	}

	switch cfg.ObjectStore.Backend {
	case BackendGCS, BackendS3:
	default:
		errs = append(errs, fmt.Sprintf("OBJECT_STORE_BACKEND=%q is not supported (gcs, s3)", cfg.ObjectStore.Backend))
	}

	if strings.TrimSpace(cfg.ObjectStore.Bucket) == "" {
		errs = append(errs, "OBJECT_STORE_BUCKET is required")
	}

	if cfg.ObjectStore.PublicBaseURL != "" {
		if u, err := url.Parse(cfg.ObjectStore.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "OBJECT_STORE_PUBLIC_BASE_URL must be an absolute URL")
		}
	}

	if len(cfg.Ingestion.AcceptedMediaTypes) == 0 {
		errs = append(errs, "INGEST_ACCEPTED_MEDIA_TYPES must list at least one media type")
	}

	if cfg.Ingestion.MaxFileBytes <= 0 {
		errs = append(errs, "INGEST_MAX_FILE_BYTES must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

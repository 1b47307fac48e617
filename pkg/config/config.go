package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Timeline TimelineConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	AutoMigrate   bool
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates the blob store on disk and the prefix it is served under.
type StorageConfig struct {
	Dir           string
	Bucket        string
	PublicBaseURL string
	MaxFileBytes  int64
}

// UploadConfig tunes the per-session upload queue.
type UploadConfig struct {
	FileTimeout    time.Duration
	MaxDimension   int
	JPEGQuality    int
	CompletedGrace time.Duration
	BufferSize     int
}

// TimelineConfig tunes the optimistic store and projection.
type TimelineConfig struct {
	LikeDebounce   time.Duration
	BatchWindow    time.Duration
	CacheEnabled   bool
	CacheTTL       time.Duration
	SessionIdleTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 7*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFile := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFile <= 0 {
		maxFile = 200 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Dir:           v.GetString("STORAGE_DIR"),
		Bucket:        v.GetString("STORAGE_BUCKET"),
		PublicBaseURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/"),
		MaxFileBytes:  maxFile,
	}

	cfg.Upload = UploadConfig{
		FileTimeout:    parseDuration(v.GetString("UPLOAD_FILE_TIMEOUT"), 30*time.Second),
		MaxDimension:   v.GetInt("UPLOAD_MAX_DIMENSION"),
		JPEGQuality:    v.GetInt("UPLOAD_JPEG_QUALITY"),
		CompletedGrace: parseDuration(v.GetString("UPLOAD_COMPLETED_GRACE"), 5*time.Second),
		BufferSize:     v.GetInt("UPLOAD_QUEUE_BUFFER"),
	}

	cfg.Timeline = TimelineConfig{
		LikeDebounce:   parseDuration(v.GetString("TIMELINE_LIKE_DEBOUNCE"), time.Second),
		BatchWindow:    parseDuration(v.GetString("TIMELINE_BATCH_WINDOW"), 120*time.Second),
		CacheEnabled:   v.GetBool("TIMELINE_CACHE_ENABLED"),
		CacheTTL:       parseDuration(v.GetString("TIMELINE_CACHE_TTL"), 5*time.Minute),
		SessionIdleTTL: parseDuration(v.GetString("TIMELINE_SESSION_IDLE_TTL"), 2*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "love_timeline")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_MIGRATIONS_DIR", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "love-timeline")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DIR", "./media")
	v.SetDefault("STORAGE_BUCKET", "LoveTimelineMedias")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/media")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 200*1024*1024)

	v.SetDefault("UPLOAD_FILE_TIMEOUT", "30s")
	v.SetDefault("UPLOAD_MAX_DIMENSION", 1920)
	v.SetDefault("UPLOAD_JPEG_QUALITY", 80)
	v.SetDefault("UPLOAD_COMPLETED_GRACE", "5s")
	v.SetDefault("UPLOAD_QUEUE_BUFFER", 64)

	v.SetDefault("TIMELINE_LIKE_DEBOUNCE", "1s")
	v.SetDefault("TIMELINE_BATCH_WINDOW", "120s")
	v.SetDefault("TIMELINE_CACHE_ENABLED", true)
	v.SetDefault("TIMELINE_CACHE_TTL", "5m")
	v.SetDefault("TIMELINE_SESSION_IDLE_TTL", "2h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	FrontendURL    string
	RequestTimeout time.Duration

	MongoURI string
	MongoDB  string

	JWTSecret  string
	CookieName string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string
	UploadRPS      int

	RedisAddr      string
	RedisDB        int
	RedisPass      string
	CacheTTL       time.Duration
	SearchCacheTTL time.Duration

	NATSURL string

	ImportFile    string
	ImportWorkers int
	FetchRPS      int
}

// Load reads the process configuration from the environment. A .env file in
// the working directory is honoured when present.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("loaded .env file")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":7000"),
		MetricsAddr:    env("METRICS_ADDR", ""),
		FrontendURL:    env("FRONTEND_URL", "http://localhost:5173"),
		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		MongoURI:       env("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:        env("MONGODB_DATABASE", "hotelbook"),
		JWTSecret:      env("JWT_SECRET_KEY", ""),
		CookieName:     env("AUTH_COOKIE_NAME", "auth_token"),
		MinIOEndpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:    env("MINIO_BUCKET", "hotel-images"),
		MinIOUseSSL:    envBool("MINIO_USE_SSL", false),
		MinIOPublicURL: env("MINIO_PUBLIC_URL", ""),
		UploadRPS:      atoi("UPLOAD_RPS", 20),
		RedisAddr:      env("REDIS_ADDR", ""),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		SearchCacheTTL: time.Duration(atoi("SEARCH_CACHE_TTL_SECONDS", 15)) * time.Second,
		NATSURL:        env("NATS_URL", ""),
		ImportFile:     env("IMPORT_FILE", "seed/hotels.json"),
		ImportWorkers:  atoi("IMPORT_WORKERS", 4),
		FetchRPS:       atoi("FETCH_RPS", 5),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET_KEY is not set")
	}
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty, caching disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid boolean, using default")
		return def
	}
	return b
}

package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppPort string

	// DatabaseURL selects the backend by prefix: postgres://... or
	// sqlite://path. Defaults to a local sqlite file for development.
	DatabaseURL string
	RedisAddr   string

	// CronSpec controls how often the ingestor runs.
	CronSpec string

	// SourceBaseURL is the root of the external item API
	// (topstories.json / item/<id>.json shape).
	SourceBaseURL string
	// IngestLimit caps how many top IDs a single run considers.
	IngestLimit int

	PageSize int

	// AllowDuplicateVotes lets repeat votes from the same identity
	// accumulate instead of being rejected.
	AllowDuplicateVotes bool

	AdminToken string
	CORSOrigin string
}

func Load() *Config {
	cfg := &Config{
		AppPort:             getEnv("APP_PORT", "9000"),
		DatabaseURL:         getEnv("DATABASE_URL", "sqlite://newsfeed.db"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		CronSpec:            getEnv("CRON_SPEC", "0 * * * *"),
		SourceBaseURL:       getEnv("SOURCE_BASE_URL", "https://hacker-news.firebaseio.com/v0"),
		IngestLimit:         getEnvInt("INGEST_LIMIT", 50),
		PageSize:            getEnvInt("PAGE_SIZE", 10),
		AllowDuplicateVotes: getEnvBool("ALLOW_DUPLICATE_VOTES", false),
		AdminToken:          getEnv("ADMIN_TOKEN", ""),
		CORSOrigin:          getEnv("CORS_ORIGIN", "*"),
	}

	log.Printf("config loaded: port=%s cron=%s ingest_limit=%d page_size=%d",
		cfg.AppPort, cfg.CronSpec, cfg.IngestLimit, cfg.PageSize)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %t", key, v, def)
		return def
	}
	return b
}

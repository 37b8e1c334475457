package shared

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	UserAgent    string
	FetchTimeout time.Duration
	FetchRPS     int
	MaxBodyBytes int64

	BrowserPath      string
	BrowserNoSandbox bool
	BrowserTimeout   time.Duration

	Workers         int
	DefaultMaxPages int
	MaxPageCeiling  int
	LoadMoreCeiling int
	LoadMoreLabel   string
	CacheTTL        time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	return Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/holidays?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		UserAgent: env("FETCH_USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"),
		FetchTimeout: time.Duration(atoi("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		FetchRPS:     atoi("FETCH_RPS", 2),
		MaxBodyBytes: int64(atoi("FETCH_MAX_BODY_BYTES", 400_000)),

		BrowserPath:      env("BROWSER_PATH", ""),
		BrowserNoSandbox: env("BROWSER_NO_SANDBOX", "") == "1",
		BrowserTimeout:   time.Duration(atoi("BROWSER_TIMEOUT_SECONDS", 20)) * time.Second,

		Workers:         atoi("CRAWL_WORKERS", 4),
		DefaultMaxPages: atoi("CRAWL_DEFAULT_MAX_PAGES", 10),
		MaxPageCeiling:  atoi("CRAWL_MAX_PAGE_CEILING", 50),
		LoadMoreCeiling: atoi("CRAWL_LOAD_MORE_CEILING", 100),
		LoadMoreLabel:   env("CRAWL_LOAD_MORE_LABEL", "pokaż więcej"),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline applied by the router

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Access control
	AdminCIDRS          []string // optional, restrict /readyz and /api/reload to these IPs/CIDRs
	TrustProxy          bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	ImportBurst         int      // import requests allowed at once per client IP
	ImportRefillPerMin  int      // import requests regained per minute per client IP
	MaxRequestBodyBytes int64    // upper bound on import request bodies

	// Storage
	DatabasePath          string        // sqlite file holding resources
	FallbackEnabled       bool          // true => in-memory tier takes over when a primary store fails
	ReplayTTL             time.Duration // how long an idempotency key replays (default: 24h)
	ReplayCleanupInterval time.Duration // interval to prune expired replay records (default: 1h)

	// Bookmark import (optional, empty BookmarkFile = disabled)
	BookmarkFile   string        // path to a bookmarks.yaml export
	BookmarkOwner  string        // owner the bookmarks are imported for
	ReloadInterval time.Duration // interval to re-import the bookmark file (default: 24h)

	// Redis (optional, empty RedisAddr = in-memory replay store)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TABSTASH_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TABSTASH_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("TABSTASH_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("TABSTASH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TABSTASH_PRETTY_LOG", true),

		// Access restrictions
		AdminCIDRS:          splitAndTrim(getenv("TABSTASH_ADMIN_CIDRS", "")),
		TrustProxy:          mustBool("TABSTASH_TRUST_PROXY", false),
		ImportBurst:         getenvInt("TABSTASH_IMPORT_BURST", 20),
		ImportRefillPerMin:  getenvInt("TABSTASH_IMPORT_REFILL_PER_MIN", 60),
		MaxRequestBodyBytes: int64(getenvInt("TABSTASH_MAX_BODY_BYTES", 8<<20)),

		// Storage
		DatabasePath:          getenv("TABSTASH_DB_PATH", "tabstash.db"),
		FallbackEnabled:       mustBool("TABSTASH_FALLBACK_ENABLED", true),
		ReplayTTL:             mustDuration("TABSTASH_REPLAY_TTL", 24*time.Hour),
		ReplayCleanupInterval: mustDuration("TABSTASH_REPLAY_CLEANUP_INTERVAL", time.Hour),

		// Bookmarks
		BookmarkFile:   getenv("TABSTASH_BOOKMARK_FILE", ""),
		BookmarkOwner:  getenv("TABSTASH_BOOKMARK_OWNER", ""),
		ReloadInterval: mustDuration("TABSTASH_RELOAD_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:             getenv("TABSTASH_REDIS_ADDR", ""),
		RedisUser:             getenv("TABSTASH_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("TABSTASH_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("TABSTASH_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("TABSTASH_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),
	}

	if cfg.BookmarkFile != "" {
		cfg.BookmarkOwner = requireEnv("TABSTASH_BOOKMARK_OWNER")
	}

	// Validate Redis password configuration
	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: TABSTASH_REDIS_PASSWORD is required when TABSTASH_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// RedisEnabled reports whether a Redis replay store is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// BookmarksEnabled reports whether the bookmark importer should run.
func (c *Config) BookmarksEnabled() bool {
	return c.BookmarkFile != ""
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

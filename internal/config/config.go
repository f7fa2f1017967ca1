// Package config defines process configuration and how it is loaded.
//
// Scoring tunables are not here: they live in the stored AppConfig and are
// edited through the admin API.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabaseBackend is sqlite, postgres, mysql or memory.
	DatabaseBackend string `koanf:"database_backend"`
	DatabaseDSN     string `koanf:"database_dsn"`

	// CacheBackend is memory or redis.
	CacheBackend  string `koanf:"cache_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// MockMode makes every provider read fixtures instead of calling upstream.
	MockMode   bool   `koanf:"mock_mode"`
	FixtureDir string `koanf:"fixture_dir"`

	// DungeonSource selects the dungeon provider: warcraftlogs or raiderio.
	DungeonSource string `koanf:"dungeon_source"`

	WCLBaseURL         string `koanf:"wcl_base_url"`
	WCLClientID        string `koanf:"wcl_client_id"`
	WCLClientSecret    string `koanf:"wcl_client_secret"`
	WCLZoneID          int    `koanf:"wcl_zone_id"`
	WCLDifficulty      int    `koanf:"wcl_difficulty"`
	WCLRaidPages       int    `koanf:"wcl_raid_pages"`
	WCLMythicZoneID    int    `koanf:"wcl_mplus_zone_id"`
	WCLMythicDifficult int    `koanf:"wcl_mplus_difficulty"`
	WCLMythicBracket   int    `koanf:"wcl_mplus_bracket"`
	WCLMythicPages     int    `koanf:"wcl_mplus_pages"`

	RaiderIOBaseURL string `koanf:"raiderio_base_url"`
	RaiderIOPages   int    `koanf:"raiderio_pages"`

	// UpstreamRPS rate-limits upstream requests; 0 disables the limiter.
	UpstreamRPS float64 `koanf:"upstream_rps"`

	// QueueSize bounds the refresh job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets how many refresh jobs run concurrently.
	WorkerCount int `koanf:"worker_count"`
	// JobAttempts and JobBackoffMS control per-job retries.
	JobAttempts  int `koanf:"job_attempts"`
	JobBackoffMS int `koanf:"job_backoff_ms"`
	// DedupeSize is how many job ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// WorkerMode is interval (self-scheduling) or cron (external trigger only).
	WorkerMode             string `koanf:"worker_mode"`
	RefreshIntervalMinutes int    `koanf:"refresh_interval_minutes"`
	SeedOnStart            bool   `koanf:"seed_on_start"`

	// AdminLogsLimit is the default number of job runs listed by the admin API.
	AdminLogsLimit int `koanf:"admin_logs_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		DatabaseBackend:        "sqlite",
		DatabaseDSN:            "tierlist.db",
		CacheBackend:           "memory",
		RedisAddr:              "localhost:6379",
		MockMode:               true,
		FixtureDir:             "fixtures",
		DungeonSource:          "warcraftlogs",
		WCLBaseURL:             "https://www.warcraftlogs.com",
		WCLZoneID:              38,
		WCLDifficulty:          5,
		WCLRaidPages:           2,
		WCLMythicZoneID:        20,
		WCLMythicDifficult:     10,
		WCLMythicBracket:       10,
		WCLMythicPages:         12,
		RaiderIOBaseURL:        "https://raider.io",
		RaiderIOPages:          4,
		QueueSize:              64,
		WorkerCount:            2,
		JobAttempts:            2,
		JobBackoffMS:           1000,
		DedupeSize:             1024,
		WorkerMode:             "interval",
		RefreshIntervalMinutes: 30,
		SeedOnStart:            true,
		AdminLogsLimit:         40,
	}
}

// RefreshInterval returns the scheduler period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// JobBackoff returns the base delay between job attempts.
func (c *Config) JobBackoff() time.Duration {
	return time.Duration(c.JobBackoffMS) * time.Millisecond
}

// Validate checks enumerations and bounds.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(c.Addr != "", "addr must not be empty")
	check(oneOf(c.DatabaseBackend, "sqlite", "postgres", "mysql", "memory"), "unknown database_backend %q", c.DatabaseBackend)
	check(oneOf(c.CacheBackend, "memory", "redis"), "unknown cache_backend %q", c.CacheBackend)
	check(oneOf(c.DungeonSource, "warcraftlogs", "raiderio"), "unknown dungeon_source %q", c.DungeonSource)
	check(oneOf(c.WorkerMode, "interval", "cron"), "unknown worker_mode %q", c.WorkerMode)
	check(c.QueueSize > 0, "queue_size must be positive")
	check(c.WorkerCount > 0, "worker_count must be positive")
	check(c.JobAttempts > 0, "job_attempts must be positive")
	check(c.WorkerMode != "interval" || c.RefreshIntervalMinutes > 0, "refresh_interval_minutes must be positive")
	check(c.UpstreamRPS >= 0, "upstream_rps must not be negative")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

package tierq

import (
	"os"
	"strconv"
	"time"
)

// DefaultForegroundConcurrency is the secondary queue's max concurrency
// while the host application is foregrounded.
const DefaultForegroundConcurrency = 4

// DefaultCooldown is how long the secondary queue stays paused after a job
// finishes while the host is backgrounded. It throttles back-to-back
// background work even when more is already queued.
const DefaultCooldown = 60 * time.Second

// Config represents scheduler configuration.
type Config struct {
	// Cooldown pause applied to the secondary queue after a job finishes
	// while backgrounded (default: 60s). Tests use a short duration.
	Cooldown time.Duration

	// ForegroundConcurrency is the secondary queue's max concurrency while
	// foregrounded (default: 4). The backgrounded value is always 1.
	ForegroundConcurrency int

	// Clock abstracts time for the resume timer and job instrumentation.
	// Nil means the system clock. Tests inject a controllable clock.
	Clock Clock
}

// LoadConfig loads scheduler configuration from environment variables.
// It reads the following environment variables:
//   - TIERQ_COOLDOWN: background cool-down duration (default: 60s)
//   - TIERQ_FOREGROUND_CONCURRENCY: secondary queue concurrency while
//     foregrounded (default: 4)
//
// Duration values can be specified as:
//   - Integer number of seconds (e.g., "60" = 60 seconds)
//   - Duration string (e.g., "90s", "1m30s")
//
// Returns a Config struct with default values if environment variables are
// not set.
func LoadConfig() *Config {
	cfg := &Config{
		Cooldown:              getEnvDuration("TIERQ_COOLDOWN", DefaultCooldown),
		ForegroundConcurrency: getEnvInt("TIERQ_FOREGROUND_CONCURRENCY", DefaultForegroundConcurrency),
	}

	return cfg
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
		// Try parsing as duration string (e.g., "90s", "1m30s")
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

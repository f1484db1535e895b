// Package config handles environment-based configuration loading for the
// inbox sync core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings for a single
// process (not hot-updatable).
type EnvConfig struct {
	// Storage
	DBPath string

	// OAuth (the handshake itself is external; these feed the token
	// service's refresh calls against each provider's token endpoint)
	EncryptionKey       string
	YouTubeClientID     string
	YouTubeClientSecret string
	SpotifyClientID     string
	SpotifyClientSecret string
	OAuthRedirectURI    string

	// Concurrency budgets (§5 outbound-connection budget)
	SpotifyEpisodeFetchConcurrency int
	YouTubePollWaveSize            int

	// Cron
	CronSchedule string

	// Timeouts
	OutboundTimeout time.Duration

	// Token service
	TokenRefreshBuffer time.Duration
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error collecting every invalid variable at once.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.DBPath = envStr("INBOXSYNC_DB_PATH", "/var/lib/inboxsync/inbox.db")

	cfg.EncryptionKey = envStr("ENCRYPTION_KEY", "")
	cfg.YouTubeClientID = envStr("YOUTUBE_CLIENT_ID", "")
	cfg.YouTubeClientSecret = envStr("YOUTUBE_CLIENT_SECRET", "")
	cfg.SpotifyClientID = envStr("SPOTIFY_CLIENT_ID", "")
	cfg.SpotifyClientSecret = envStr("SPOTIFY_CLIENT_SECRET", "")
	cfg.OAuthRedirectURI = envStr("OAUTH_REDIRECT_URI", "")

	cfg.SpotifyEpisodeFetchConcurrency = envInt("SPOTIFY_EPISODE_FETCH_CONCURRENCY", 5, &errs)
	cfg.YouTubePollWaveSize = envInt("INBOXSYNC_YOUTUBE_WAVE_SIZE", 6, &errs)

	cfg.CronSchedule = envStr("INBOXSYNC_CRON_SCHEDULE", "* * * * *")

	cfg.OutboundTimeout = envDuration("INBOXSYNC_OUTBOUND_TIMEOUT", 20*time.Second, &errs)
	cfg.TokenRefreshBuffer = envDuration("INBOXSYNC_TOKEN_REFRESH_BUFFER", 60*time.Minute, &errs)

	validatePositive("SPOTIFY_EPISODE_FETCH_CONCURRENCY", cfg.SpotifyEpisodeFetchConcurrency, &errs)
	validatePositive("INBOXSYNC_YOUTUBE_WAVE_SIZE", cfg.YouTubePollWaveSize, &errs)
	if strings.TrimSpace(cfg.DBPath) == "" {
		errs = append(errs, "INBOXSYNC_DB_PATH must not be empty")
	}
	if cfg.OutboundTimeout <= 0 {
		errs = append(errs, "INBOXSYNC_OUTBOUND_TIMEOUT must be positive")
	}
	if cfg.TokenRefreshBuffer <= 0 {
		errs = append(errs, "INBOXSYNC_TOKEN_REFRESH_BUFFER must be positive")
	}
	if _, err := cron.ParseStandard(cfg.CronSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("INBOXSYNC_CRON_SCHEDULE: invalid cron expression %q: %v", cfg.CronSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadEnvConfig_Defaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "DBPath", cfg.DBPath, "/var/lib/inboxsync/inbox.db")
	assertEqual(t, "SpotifyEpisodeFetchConcurrency", cfg.SpotifyEpisodeFetchConcurrency, 5)
	assertEqual(t, "YouTubePollWaveSize", cfg.YouTubePollWaveSize, 6)
	assertEqual(t, "CronSchedule", cfg.CronSchedule, "* * * * *")
	assertEqual(t, "OutboundTimeout", cfg.OutboundTimeout, 20*time.Second)
	assertEqual(t, "TokenRefreshBuffer", cfg.TokenRefreshBuffer, 60*time.Minute)
}

func TestLoadEnvConfig_EnvOverrides(t *testing.T) {
	t.Setenv("INBOXSYNC_DB_PATH", "/tmp/inbox.db")
	t.Setenv("SPOTIFY_EPISODE_FETCH_CONCURRENCY", "8")
	t.Setenv("INBOXSYNC_YOUTUBE_WAVE_SIZE", "3")
	t.Setenv("INBOXSYNC_CRON_SCHEDULE", "*/5 * * * *")
	t.Setenv("INBOXSYNC_OUTBOUND_TIMEOUT", "45s")
	t.Setenv("INBOXSYNC_TOKEN_REFRESH_BUFFER", "30m")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "DBPath", cfg.DBPath, "/tmp/inbox.db")
	assertEqual(t, "SpotifyEpisodeFetchConcurrency", cfg.SpotifyEpisodeFetchConcurrency, 8)
	assertEqual(t, "YouTubePollWaveSize", cfg.YouTubePollWaveSize, 3)
	assertEqual(t, "CronSchedule", cfg.CronSchedule, "*/5 * * * *")
	assertEqual(t, "OutboundTimeout", cfg.OutboundTimeout, 45*time.Second)
	assertEqual(t, "TokenRefreshBuffer", cfg.TokenRefreshBuffer, 30*time.Minute)
}

func TestLoadEnvConfig_InvalidConcurrency(t *testing.T) {
	t.Setenv("SPOTIFY_EPISODE_FETCH_CONCURRENCY", "0")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-positive concurrency")
	}
	assertContains(t, err.Error(), "SPOTIFY_EPISODE_FETCH_CONCURRENCY")
}

func TestLoadEnvConfig_InvalidConcurrencyNotNumber(t *testing.T) {
	t.Setenv("INBOXSYNC_YOUTUBE_WAVE_SIZE", "abc")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-numeric wave size")
	}
	assertContains(t, err.Error(), "INBOXSYNC_YOUTUBE_WAVE_SIZE")
}

func TestLoadEnvConfig_EmptyDBPath(t *testing.T) {
	t.Setenv("INBOXSYNC_DB_PATH", "   ")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for empty db path")
	}
	assertContains(t, err.Error(), "INBOXSYNC_DB_PATH")
}

func TestLoadEnvConfig_InvalidOutboundTimeout(t *testing.T) {
	t.Setenv("INBOXSYNC_OUTBOUND_TIMEOUT", "0s")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-positive outbound timeout")
	}
	assertContains(t, err.Error(), "INBOXSYNC_OUTBOUND_TIMEOUT")
}

func TestLoadEnvConfig_InvalidDuration(t *testing.T) {
	t.Setenv("INBOXSYNC_TOKEN_REFRESH_BUFFER", "not-a-duration")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	assertContains(t, err.Error(), "INBOXSYNC_TOKEN_REFRESH_BUFFER")
}

func TestLoadEnvConfig_InvalidCronSchedule(t *testing.T) {
	t.Setenv("INBOXSYNC_CRON_SCHEDULE", "not-a-cron")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid cron schedule")
	}
	assertContains(t, err.Error(), "INBOXSYNC_CRON_SCHEDULE")
}

// --- test helpers ---

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/config"
	"github.com/ejohane/zine-sub/internal/health"
	"github.com/ejohane/zine-sub/internal/ingest"
	"github.com/ejohane/zine-sub/internal/initialfetch"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/ops"
	"github.com/ejohane/zine-sub/internal/poller"
	"github.com/ejohane/zine-sub/internal/provider/spotify"
	"github.com/ejohane/zine-sub/internal/provider/youtube"
	"github.com/ejohane/zine-sub/internal/ratelimit"
	"github.com/ejohane/zine-sub/internal/scheduler"
	"github.com/ejohane/zine-sub/internal/state"
	"github.com/ejohane/zine-sub/internal/token"
)

// app holds every component main wires up, so the cron handler and the
// operations router (the seam a future transport layer hangs off of) share
// one fully-built graph instead of each re-deriving it.
type app struct {
	scheduler *scheduler.Scheduler
	router    *ops.Router
}

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	db, err := state.OpenDB(envCfg.DBPath)
	if err != nil {
		fatalf("open db: %v", err)
	}
	defer db.Close()
	log.Println("Phase 1: database opened")

	if err := state.MigrateDB(db); err != nil {
		fatalf("migrate: %v", err)
	}
	log.Println("Phase 2: migrations applied")

	theApp := build(envCfg, db)
	log.Println("Phase 3: component graph wired")

	c := cron.New()
	if _, err := c.AddFunc(envCfg.CronSchedule, func() {
		result := theApp.scheduler.Run(context.Background())
		if result.Skipped {
			log.Printf("tick %s skipped: %s", result.RunID, result.SkipReason)
			return
		}
		log.Printf("tick %s complete: processed=%d newItems=%d errors=%d",
			result.RunID, result.Processed, result.NewItems, len(result.Errors))
	}); err != nil {
		fatalf("schedule cron job: %v", err)
	}
	c.Start()
	log.Printf("Phase 4: cron started (%s)", envCfg.CronSchedule)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutdown signal received")
	<-c.Stop().Done()
	log.Println("cron stopped")
}

// build wires the full dependency graph: repos, the ingestion core, the
// token service and its per-provider refreshers, the provider pollers, the
// scheduler, and the operations router. Mirrors the teacher's own
// phased-construction style in cmd/resin/app_runtime.go, collapsed to one
// function since this process has a single background loop, not a topology
// of long-lived subsystems to stand up independently.
func build(envCfg *config.EnvConfig, db *sql.DB) *app {
	c := clock.System{}
	ids := clock.NewIDGenerator(c)
	store := kv.NewMemStore()

	subscriptions := state.NewSubscriptionRepo(db)
	subscriptionItems := state.NewSubscriptionItemRepo(db)
	userItems := state.NewUserItemRepo(db)
	connections := state.NewProviderConnectionRepo(db)
	creators := state.NewCreatorRepo(db)
	items := state.NewItemRepo(db)
	seen := state.NewProviderItemsSeenRepo(db)
	dlq := state.NewDeadLetterQueueRepo(db)
	notifications := state.NewUserNotificationRepo(db)

	core := ingest.New(seen, items, creators, userItems, subscriptionItems, dlq, ids, c)

	refreshers := map[model.Provider]token.Refresher{
		model.ProviderYouTube: &youtube.TokenExchanger{
			ClientID:     envCfg.YouTubeClientID,
			ClientSecret: envCfg.YouTubeClientSecret,
		},
		model.ProviderSpotify: &spotify.TokenExchanger{
			ClientID:     envCfg.SpotifyClientID,
			ClientSecret: envCfg.SpotifyClientSecret,
		},
	}
	tokens := token.New(connections, refreshers, store, c, envCfg.TokenRefreshBuffer)

	healthMonitor := health.New(connections, subscriptions, notifications, store, ids, c)
	rateLimiter := ratelimit.New(ratelimit.DefaultRates)
	fetchRunner := initialfetch.New(core, subscriptions, c)

	youtubePoller := poller.NewYouTubePoller(core, subscriptions, c)
	spotifyPoller := poller.NewSpotifyPoller(core, subscriptions, store, c, envCfg.SpotifyEpisodeFetchConcurrency)
	rssPoller := poller.NewRSSPoller(core, subscriptions, c)

	sched := scheduler.New(store, subscriptions, subscriptionItems, rateLimiter, tokens,
		healthMonitor, youtubePoller, spotifyPoller, rssPoller, c)

	router := ops.New(subscriptions, subscriptionItems, userItems, connections, creators,
		core, fetchRunner, youtubePoller, spotifyPoller, rssPoller, tokens, rateLimiter, store, ids, c)

	return &app{scheduler: sched, router: router}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}

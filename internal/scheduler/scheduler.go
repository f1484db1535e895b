// Package scheduler implements the Scheduler: the cron-tick entrypoint that
// acquires the poll lock, selects due subscriptions, groups them by user
// and provider, and dispatches each group into the matching Provider Poller.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/health"
	"github.com/ejohane/zine-sub/internal/interval"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/poller"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/provider/rss"
	"github.com/ejohane/zine-sub/internal/provider/spotify"
	"github.com/ejohane/zine-sub/internal/provider/youtube"
	"github.com/ejohane/zine-sub/internal/ratelimit"
	"github.com/ejohane/zine-sub/internal/state"
	"github.com/ejohane/zine-sub/internal/token"
)

// lockKey is the singleton cron lock every Scheduler.Run call contends for.
const lockKey = "cron:poll-subscriptions:lock"

// lockTTL bounds how long a stuck run can hold the lock before another
// process is allowed to take over.
const lockTTL = 900 * time.Second

// dueBatchLimit bounds one tick's due-subscription query.
const dueBatchLimit = 500

// Result reports one tick's outcome.
type Result struct {
	RunID      string
	Skipped    bool
	SkipReason string
	Processed  int
	NewItems   int
	Errors     []string
}

// Scheduler wires the repos, rate limiter, token service, health monitor,
// and provider pollers a tick dispatches into.
type Scheduler struct {
	kv                kv.Store
	subscriptions     *state.SubscriptionRepo
	subscriptionItems *state.SubscriptionItemRepo
	rateLimiter       *ratelimit.Limiter
	tokens            *token.Service
	health            *health.Monitor
	youtubePoller     *poller.YouTubePoller
	spotifyPoller     *poller.SpotifyPoller
	rssPoller         *poller.RSSPoller
	clock             clock.Clock
}

// New builds a Scheduler.
func New(
	store kv.Store,
	subscriptions *state.SubscriptionRepo,
	subscriptionItems *state.SubscriptionItemRepo,
	rateLimiter *ratelimit.Limiter,
	tokens *token.Service,
	healthMonitor *health.Monitor,
	youtubePoller *poller.YouTubePoller,
	spotifyPoller *poller.SpotifyPoller,
	rssPoller *poller.RSSPoller,
	c clock.Clock,
) *Scheduler {
	if c == nil {
		c = clock.System{}
	}
	return &Scheduler{
		kv: store, subscriptions: subscriptions, subscriptionItems: subscriptionItems,
		rateLimiter: rateLimiter, tokens: tokens, health: healthMonitor,
		youtubePoller: youtubePoller, spotifyPoller: spotifyPoller, rssPoller: rssPoller,
		clock: c,
	}
}

type group struct {
	userID   string
	provider model.Provider
	subs     []*model.Subscription
}

// Run implements the tick contract of §4.1: lock, select, group, dispatch,
// always release. A held lock is a no-op skip, not an error.
func (s *Scheduler) Run(ctx context.Context) Result {
	runID := uuid.NewString()

	release, ok := s.kv.TryLock(lockKey, lockTTL)
	if !ok {
		return Result{RunID: runID, Skipped: true, SkipReason: "lock_held"}
	}
	defer release()

	now := s.clock.NowMillis()
	due, err := s.subscriptions.DueForPoll(now, dueBatchLimit)
	if err != nil {
		log.Printf("scheduler[%s]: load due subscriptions: %v", runID, err)
		return Result{RunID: runID, Errors: []string{err.Error()}}
	}

	result := Result{RunID: runID}
	for _, g := range groupByUserThenProvider(due) {
		if !s.rateLimiter.Allow(g.provider, g.userID) {
			continue
		}

		newItems, errs := s.dispatch(ctx, g)
		result.Processed += len(g.subs)
		result.NewItems += newItems
		for _, e := range errs {
			result.Errors = append(result.Errors, e.Error())
		}
	}

	log.Printf("scheduler[%s]: tick complete processed=%d newItems=%d errors=%d",
		runID, result.Processed, result.NewItems, len(result.Errors))
	return result
}

func (s *Scheduler) dispatch(ctx context.Context, g group) (int, []error) {
	if g.provider == model.ProviderRSS {
		return s.dispatchRSS(ctx, g)
	}

	accessToken, err := s.tokens.GetValidToken(ctx, g.userID, g.provider)
	if err != nil {
		s.handleTokenError(g.userID, g.provider, err)
		return 0, nil
	}

	switch g.provider {
	case model.ProviderYouTube:
		client, err := youtube.NewClient(ctx, accessToken)
		if err != nil {
			return 0, []error{err}
		}
		return s.reconcile(g, s.youtubePoller.PollBatch(ctx, g.subs, g.userID, client))
	case model.ProviderSpotify:
		client := spotify.NewClient(accessToken)
		return s.reconcile(g, s.spotifyPoller.PollBatch(ctx, g.subs, g.userID, client))
	default:
		return 0, nil
	}
}

func (s *Scheduler) dispatchRSS(ctx context.Context, g group) (int, []error) {
	client := rss.NewClient()
	results := make([]poller.SubscriptionResult, len(g.subs))
	for i, sub := range g.subs {
		results[i] = s.rssPoller.PollSingle(ctx, sub, g.userID, client)
	}
	return s.reconcile(g, results)
}

// reconcile applies the result of a dispatched batch: health bookkeeping,
// adaptive-interval recompute on success, error collection on failure.
func (s *Scheduler) reconcile(g group, results []poller.SubscriptionResult) (int, []error) {
	newItems := 0
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			if err := s.health.RecordPollFailure(g.userID, g.provider, r.SubscriptionID); err != nil {
				log.Printf("scheduler: record poll failure: %v", err)
			}
			if err := s.health.HandleAuthFailure(g.userID, g.provider, provider.Classify(r.Err)); err != nil {
				log.Printf("scheduler: handle auth failure: %v", err)
			}
			continue
		}
		newItems += r.NewItems
		if err := s.health.RecordPollSuccess(g.userID, g.provider, r.SubscriptionID); err != nil {
			log.Printf("scheduler: record poll success: %v", err)
		}
		s.maybeRecomputeInterval(r.SubscriptionID)
	}
	return newItems, errs
}

// maybeRecomputeInterval applies the Adaptive Interval trigger (§4.5) once
// a subscription's poll succeeded.
func (s *Scheduler) maybeRecomputeInterval(subscriptionID string) {
	sub, err := s.subscriptions.GetByID(subscriptionID)
	if err != nil {
		return
	}
	now := s.clock.NowMillis()
	if !interval.ShouldRecompute(sub.CreatedAt, now, sub.PollIntervalSeconds) {
		return
	}
	recent, err := s.subscriptionItems.RecentPublishedAt(subscriptionID, interval.RecentItemsLimit)
	if err != nil {
		return
	}
	candidate := interval.PollIntervalSeconds(interval.ComputeMetrics(now, recent))
	if !interval.ShouldApply(sub.PollIntervalSeconds, candidate) {
		return
	}
	if err := s.subscriptions.SetPollInterval(subscriptionID, candidate, now); err != nil {
		log.Printf("scheduler: apply adaptive interval: %v", err)
	}
}

// handleTokenError implements §4.1 step 4: refresh-invalid and
// access-revoked failures delegate to HM; no-connection, transient and
// rate-limited failures just skip this group for the current tick.
func (s *Scheduler) handleTokenError(userID string, p model.Provider, err error) {
	var terr *token.Error
	if !errors.As(err, &terr) {
		return
	}
	switch terr.Kind {
	case token.KindRefreshInvalid:
		if err := s.health.HandleAuthFailure(userID, p, provider.KindRefreshInvalid); err != nil {
			log.Printf("scheduler: handle auth failure: %v", err)
		}
	case token.KindAccessRevoked:
		if err := s.health.HandleAuthFailure(userID, p, provider.KindAccessRevoked); err != nil {
			log.Printf("scheduler: handle auth failure: %v", err)
		}
	}
}

// groupByUserThenProvider preserves DueForPoll's never-polled-first,
// oldest-lastPolledAt-first ordering across groups.
func groupByUserThenProvider(subs []model.Subscription) []group {
	type key struct {
		userID   string
		provider model.Provider
	}

	var order []key
	byKey := make(map[key][]*model.Subscription)
	for i := range subs {
		sub := &subs[i]
		k := key{userID: sub.UserID, provider: sub.Provider}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], sub)
	}

	groups := make([]group, 0, len(order))
	for _, k := range order {
		groups = append(groups, group{userID: k.userID, provider: k.provider, subs: byKey[k]})
	}
	return groups
}

package poller

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/ingest"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider/spotify"
	"github.com/ejohane/zine-sub/internal/state"
)

// showCacheKey is the KV key for a cached show-metadata batch lookup.
func showCacheKey(showID string) string { return "spotify:show:" + showID }

// spotifyClient is the subset of *spotify.Client the poller needs; narrowed
// to an interface so tests can supply a fake instead of hitting the real API.
type spotifyClient interface {
	BatchShowDetails(ctx context.Context, showIDs []string) (map[string]spotify.Show, error)
	ListEpisodes(ctx context.Context, showID string, limit int) ([]spotify.Episode, error)
}

// SpotifyPoller implements PP-S: pollBatch (preferred, with show-batch and
// delta detection) and pollSingle for podcast shows.
type SpotifyPoller struct {
	ingest         *ingest.Core
	subscriptions  *state.SubscriptionRepo
	kv             kv.Store
	clock          clock.Clock
	episodeFetchConcurrency int
}

// NewSpotifyPoller builds a SpotifyPoller. episodeFetchConcurrency defaults
// to spotify.EpisodeFetchConcurrency when <= 0.
func NewSpotifyPoller(ingestCore *ingest.Core, subscriptions *state.SubscriptionRepo, store kv.Store, c clock.Clock, episodeFetchConcurrency int) *SpotifyPoller {
	if c == nil {
		c = clock.System{}
	}
	if episodeFetchConcurrency <= 0 {
		episodeFetchConcurrency = spotify.EpisodeFetchConcurrency
	}
	return &SpotifyPoller{ingest: ingestCore, subscriptions: subscriptions, kv: store,
		clock: c, episodeFetchConcurrency: episodeFetchConcurrency}
}

// PollBatch implements pollBatch(subs, client, userId) per §4.3.
func (p *SpotifyPoller) PollBatch(ctx context.Context, subs []*model.Subscription, userID string, client spotifyClient) []SubscriptionResult {
	now := p.clock.NowMillis()
	results := make([]SubscriptionResult, len(subs))

	showIDs := make([]string, len(subs))
	for i, sub := range subs {
		showIDs[i] = sub.ProviderChannelID
	}
	shows, err := client.BatchShowDetails(ctx, showIDs)
	if err != nil {
		for i, sub := range subs {
			results[i] = SubscriptionResult{SubscriptionID: sub.ID, Err: err}
		}
		return results
	}

	var needsFetch []int
	for i, sub := range subs {
		show, ok := shows[sub.ProviderChannelID]
		if !ok {
			if err := p.markShowUnavailable(sub, now); err != nil {
				results[i] = SubscriptionResult{SubscriptionID: sub.ID, Err: err}
			}
			continue
		}
		if sub.TotalItems != nil && int64(show.TotalEpisodes) == *sub.TotalItems {
			if err := p.subscriptions.UpdateAfterPoll(sub.ID, now, nil, nil); err != nil {
				results[i] = SubscriptionResult{SubscriptionID: sub.ID, Err: err}
			}
			continue
		}
		needsFetch = append(needsFetch, i)
	}

	episodesBySub := make([][]spotify.Episode, len(subs))
	fetchErrs := make([]error, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.episodeFetchConcurrency)
	for _, i := range needsFetch {
		i, sub := i, subs[i]
		g.Go(func() error {
			episodes, err := client.ListEpisodes(gctx, sub.ProviderChannelID, 10)
			if err != nil {
				fetchErrs[i] = err
				return nil
			}
			episodesBySub[i] = episodes
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range needsFetch {
		sub := subs[i]
		if fetchErrs[i] != nil {
			results[i] = SubscriptionResult{SubscriptionID: sub.ID, Err: fetchErrs[i]}
			continue
		}
		show := shows[sub.ProviderChannelID]
		newItems, err := p.ingestAndWatermark(userID, sub, episodesBySub[i], show, now)
		results[i] = SubscriptionResult{SubscriptionID: sub.ID, NewItems: newItems, Err: err}
	}

	return results
}

// PollSingle implements pollSingle per §4.3's closing line: the same rules
// minus the show-batch and delta-detection steps.
func (p *SpotifyPoller) PollSingle(ctx context.Context, sub *model.Subscription, userID string, client spotifyClient) SubscriptionResult {
	now := p.clock.NowMillis()

	episodes, err := client.ListEpisodes(ctx, sub.ProviderChannelID, 10)
	if err != nil {
		_ = p.subscriptions.UpdateAfterPoll(sub.ID, now, nil, nil)
		return SubscriptionResult{SubscriptionID: sub.ID, Err: err}
	}

	newItems, err := p.ingestAndWatermark(userID, sub, episodes, spotify.Show{}, now)
	return SubscriptionResult{SubscriptionID: sub.ID, NewItems: newItems, Err: err}
}

func (p *SpotifyPoller) markShowUnavailable(sub *model.Subscription, now int64) error {
	reason := "Show no longer available"
	p.kv.Del(showCacheKey(sub.ProviderChannelID))
	return p.subscriptions.SetStatus(sub.ID, model.SubscriptionStatusDisconnected, &now, &reason, now)
}

// ingestAndWatermark applies steps 5-9 of §4.3 shared by PollBatch and
// PollSingle once a subscription's episode list is in hand.
func (p *SpotifyPoller) ingestAndWatermark(userID string, sub *model.Subscription, episodes []spotify.Episode, show spotify.Show, now int64) (int, error) {
	type datedEpisode struct {
		ep          spotify.Episode
		publishedAt int64
	}

	var playable []datedEpisode
	for _, ep := range episodes {
		if !ep.IsPlayable {
			continue
		}
		publishedAt, ok := spotify.NormalizeReleaseDate(ep.ReleaseDate)
		if !ok {
			publishedAt = now
		}
		playable = append(playable, datedEpisode{ep: ep, publishedAt: publishedAt})
	}

	var surviving []datedEpisode
	if sub.LastPublishedAt == nil {
		var newest *datedEpisode
		for i := range playable {
			d := &playable[i]
			if newest == nil || d.publishedAt > newest.publishedAt {
				newest = d
			}
		}
		if newest != nil {
			surviving = []datedEpisode{*newest}
		}
	} else {
		for _, d := range playable {
			if d.publishedAt > *sub.LastPublishedAt {
				surviving = append(surviving, d)
			}
		}
	}

	newItems := 0
	var newestIngestedAt int64
	var hasNewestIngested bool
	var firstErr error

	for _, d := range surviving {
		decoded := spotify.Decode(d.ep, d.publishedAt)
		res, err := p.ingest.IngestItem(userID, sub.ID, model.ProviderSpotify, decoded)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.Created {
			newItems++
			if !hasNewestIngested || d.publishedAt > newestIngestedAt {
				newestIngestedAt = d.publishedAt
				hasNewestIngested = true
			}
		}
	}

	var newLastPublishedAt *int64
	var newTotalItems *int64
	if hasNewestIngested {
		newLastPublishedAt = &newestIngestedAt
		if show.TotalEpisodes > 0 {
			total := int64(show.TotalEpisodes)
			newTotalItems = &total
		}
		p.kv.Set(showCacheKey(sub.ProviderChannelID), show, spotify.ShowCacheTTL)
	}

	if err := p.subscriptions.UpdateAfterPoll(sub.ID, now, newLastPublishedAt, newTotalItems); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	}

	return newItems, firstErr
}
